package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-studio/internal/ai"
	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/middleware"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Discard()
}

// withUser подставляет пользователя так же, как это делает AuthMiddleware.
func withUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Next()
	}
}

func perform(r http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestProposalHandler_Unauthorized(t *testing.T) {
	r := gin.New()
	handler := &ProposalHandler{}
	r.POST("/proposals", handler.Create)
	r.GET("/proposals", handler.List)
	r.GET("/proposals/:id/export", handler.Export)
	r.POST("/proposals/:id/send", handler.Send)

	id := uuid.New().String()
	cases := []struct{ method, path string }{
		{"POST", "/proposals"},
		{"GET", "/proposals"},
		{"GET", "/proposals/" + id + "/export"},
		{"POST", "/proposals/" + id + "/send"},
	}
	for _, tc := range cases {
		w := perform(r, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.path)
	}
}

func TestProposalHandler_InvalidID(t *testing.T) {
	r := gin.New()
	handler := &ProposalHandler{}
	r.Use(withUser(uuid.New()))
	r.GET("/proposals/:id", handler.Get)
	r.DELETE("/proposals/:id", handler.Delete)
	r.PUT("/proposals/:id/status", handler.UpdateStatus)

	assert.Equal(t, http.StatusBadRequest, perform(r, "GET", "/proposals/invalid-uuid", nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "DELETE", "/proposals/42", nil).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "PUT", "/proposals/nope/status", strings.NewReader(`{"status":"sent"}`)).Code)
}

func TestProposalHandler_CreateRequiresTitle(t *testing.T) {
	r := gin.New()
	handler := &ProposalHandler{}
	r.Use(withUser(uuid.New()))
	r.POST("/proposals", handler.Create)

	w := perform(r, "POST", "/proposals", strings.NewReader(`{"client_name":"ACME"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShareHandler_OwnerRoutesRequireAuth(t *testing.T) {
	r := gin.New()
	handler := &ShareHandler{}
	r.POST("/proposals/:id/shares", handler.Create)
	r.DELETE("/shares/:id", handler.Revoke)
	r.POST("/shares/:id/extend", handler.Extend)

	id := uuid.New().String()
	assert.Equal(t, http.StatusUnauthorized, perform(r, "POST", "/proposals/"+id+"/shares", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "DELETE", "/shares/"+id, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "POST", "/shares/"+id+"/extend", nil).Code)
}

func TestShareHandler_NegativeTTLRejected(t *testing.T) {
	r := gin.New()
	handler := &ShareHandler{}
	r.Use(withUser(uuid.New()))
	r.POST("/proposals/:id/shares", handler.Create)

	w := perform(r, "POST", "/proposals/"+uuid.New().String()+"/shares", strings.NewReader(`{"expires_in_days":-1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignatureHandler_InvalidSignerID(t *testing.T) {
	r := gin.New()
	handler := &SignatureHandler{}
	r.POST("/shared/:token/signatures/:signerId", handler.Sign)
	r.GET("/shared/:token/signatures/:signerId/image", handler.SharedImage)

	assert.Equal(t, http.StatusBadRequest, perform(r, "POST", "/shared/abc/signatures/bad", strings.NewReader(`{}`)).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, "GET", "/shared/abc/signatures/bad/image", nil).Code)
}

func TestMediaHandler_UploadRequiresFile(t *testing.T) {
	r := gin.New()
	handler := NewMediaHandler(nil, 1024)
	r.Use(withUser(uuid.New()))
	r.POST("/media", handler.Upload)

	w := perform(r, "POST", "/media", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_Unauthorized(t *testing.T) {
	r := gin.New()
	handler := &WebhookHandler{}
	r.POST("/webhooks", handler.Create)
	r.POST("/webhooks/:id/test", handler.Test)

	assert.Equal(t, http.StatusUnauthorized, perform(r, "POST", "/webhooks", strings.NewReader(`{}`)).Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, "POST", "/webhooks/"+uuid.New().String()+"/test", nil).Code)
}

type stubCopyWriter struct {
	text string
	err  error
}

func (w stubCopyWriter) GenerateSection(ctx context.Context, in ai.GenerateInput) (string, error) {
	return w.text, w.err
}

func (w stubCopyWriter) Improve(ctx context.Context, text, instruction string) (string, error) {
	return w.text, w.err
}

func TestAIHandler_Generate(t *testing.T) {
	r := gin.New()
	handler := NewAIHandler(service.NewAIService(stubCopyWriter{text: "Черновик раздела"}))
	r.Use(withUser(uuid.New()))
	r.POST("/ai/generate", handler.Generate)

	w := perform(r, "POST", "/ai/generate", strings.NewReader(`{"prompt":"сайт для пекарни","section_type":"objective"}`))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.AITextResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Черновик раздела", resp.Text)
}

func TestAIHandler_ProviderErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code string
	}{
		{ai.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{ai.ErrCreditsExhausted, http.StatusPaymentRequired, "PAYMENT_REQUIRED"},
		{ai.ErrUpstream, http.StatusBadGateway, "BAD_GATEWAY"},
	}
	for _, tc := range cases {
		r := gin.New()
		handler := NewAIHandler(service.NewAIService(stubCopyWriter{err: tc.err}))
		r.Use(withUser(uuid.New()))
		r.POST("/ai/improve", handler.Improve)

		w := perform(r, "POST", "/ai/improve", strings.NewReader(`{"text":"Старый текст"}`))
		assert.Equal(t, tc.want, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tc.code, resp.Code)
		assert.NotEmpty(t, resp.Error)
	}
}

func TestAIHandler_NoProviderConfigured(t *testing.T) {
	r := gin.New()
	handler := NewAIHandler(service.NewAIService(nil))
	r.Use(withUser(uuid.New()))
	r.POST("/ai/generate", handler.Generate)

	w := perform(r, "POST", "/ai/generate", strings.NewReader(`{"prompt":"что-нибудь"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestWriteDocument_BrotliWhenAccepted(t *testing.T) {
	const html = "<html><body><h1>Предложение</h1></body></html>"
	r := gin.New()
	r.GET("/doc", func(c *gin.Context) { writeDocument(c, html, "proposal.html") })

	req, _ := http.NewRequest("GET", "/doc", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename=proposal.html`)

	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, html, string(plain))
}

func TestWriteDocument_PlainWithoutBrotli(t *testing.T) {
	const html = "<p>ok</p>"
	r := gin.New()
	r.GET("/doc", func(c *gin.Context) { writeDocument(c, html, "") })

	req, _ := http.NewRequest("GET", "/doc", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, htmlContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, html, w.Body.String())
}

func TestHealthHandler_NoDatabase(t *testing.T) {
	r := gin.New()
	r.GET("/health", NewHealthHandler(nil, "test").Health)

	w := perform(r, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
}
