package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Discard()
}

type stubParser struct {
	userID uuid.UUID
	err    error
}

func (p stubParser) ParseAccess(token string) (uuid.UUID, string, error) {
	if token != "good" {
		return uuid.Nil, "", errors.New("bad token")
	}
	return p.userID, "user", p.err
}

func serve(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	r := gin.New()
	r.GET("/me", AuthMiddleware(stubParser{userID: userID}), func(c *gin.Context) {
		got, _ := c.Get(ContextUserIDKey)
		c.String(http.StatusOK, got.(uuid.UUID).String())
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/me", map[string]string{"Authorization": "Bearer bad"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "GET", "/me", map[string]string{"Authorization": "Basic good"}).Code)

	w := serve(r, "GET", "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/file", OptionalAuth(stubParser{userID: uuid.New()}), func(c *gin.Context) {
		_, ok := c.Get(ContextUserIDKey)
		if ok {
			c.String(http.StatusOK, "owner")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", serve(r, "GET", "/file", nil).Body.String())
	assert.Equal(t, "anonymous", serve(r, "GET", "/file", map[string]string{"Authorization": "Bearer bad"}).Body.String())
	assert.Equal(t, "owner", serve(r, "GET", "/file", map[string]string{"Authorization": "Bearer good"}).Body.String())
}

func TestKeyedRateLimit_BlocksAfterLimit(t *testing.T) {
	r := gin.New()
	r.GET("/ai", KeyedRateLimit(2, time.Minute, ByIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "GET", "/ai", nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, "GET", "/ai", nil).Code)

	w := serve(r, "GET", "/ai", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestKeyedRateLimit_SeparateUsers(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-User"); id != "" {
			c.Set(ContextUserIDKey, uuid.MustParse(id))
		}
		c.Next()
	})
	r.GET("/ai", KeyedRateLimit(1, time.Minute, ByUserOrIP), func(c *gin.Context) { c.Status(http.StatusOK) })

	first := map[string]string{"X-User": uuid.New().String()}
	second := map[string]string{"X-User": uuid.New().String()}

	assert.Equal(t, http.StatusOK, serve(r, "GET", "/ai", first).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, "GET", "/ai", first).Code)
	assert.Equal(t, http.StatusOK, serve(r, "GET", "/ai", second).Code)
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, "GET", "/x", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, "GET", "/x", map[string]string{"Origin": "https://evil.example.com"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, "OPTIONS", "/x", map[string]string{"Origin": "https://app.example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUUIDValidator(t *testing.T) {
	r := gin.New()
	r.GET("/p/:id/s/:signerId", UUIDValidator("id", "signerId"), func(c *gin.Context) { c.Status(http.StatusOK) })

	good := uuid.New().String()
	assert.Equal(t, http.StatusOK, serve(r, "GET", "/p/"+good+"/s/"+good, nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, "GET", "/p/"+good+"/s/bad", nil).Code)
}

func TestErrorHandler_MapsAppError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/gone", func(c *gin.Context) { _ = c.Error(apperror.ErrShareExpired) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("db down")) })

	assert.Equal(t, http.StatusGone, serve(r, "GET", "/gone", nil).Code)

	w := serve(r, "GET", "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(r, "GET", "/panic", nil).Code)
}
