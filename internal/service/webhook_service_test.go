package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
)

// fakeWebhookRepo хранит вебхуки в памяти. Диспетчер обращается к нему из горутин.
type fakeWebhookRepo struct {
	mu    sync.Mutex
	hooks map[uuid.UUID]*models.WebhookConfiguration
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{hooks: make(map[uuid.UUID]*models.WebhookConfiguration)}
}

func (r *fakeWebhookRepo) Create(ctx context.Context, w *models.WebhookConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w.ID = uuid.New()
	w.CreatedAt = time.Now()
	cp := *w
	r.hooks[w.ID] = &cp
	return nil
}

func (r *fakeWebhookRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WebhookConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.hooks[id]
	if !ok {
		return nil, repository.ErrWebhookNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWebhookRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WebhookConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookConfiguration
	for _, w := range r.hooks {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) Update(ctx context.Context, w *models.WebhookConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[w.ID]; !ok {
		return repository.ErrWebhookNotFound
	}
	cp := *w
	r.hooks[w.ID] = &cp
	return nil
}

func (r *fakeWebhookRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.hooks[id]
	if !ok {
		return repository.ErrWebhookNotFound
	}
	w.IsActive = active
	return nil
}

func (r *fakeWebhookRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[id]; !ok {
		return repository.ErrWebhookNotFound
	}
	delete(r.hooks, id)
	return nil
}

func (r *fakeWebhookRepo) ListActiveForEvent(ctx context.Context, userID uuid.UUID, event string) ([]models.WebhookConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookConfiguration
	for _, w := range r.hooks {
		if w.UserID == userID && w.IsActive && w.Subscribed(event) {
			out = append(out, *w)
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) RecordDelivery(ctx context.Context, id uuid.UUID, statusCode int, success bool, at time.Time) error {
	// как и база, запись с истёкшим контекстом не проходит
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.hooks[id]
	if !ok {
		return repository.ErrWebhookNotFound
	}
	w.LastTriggeredAt = &at
	w.LastStatusCode = &statusCode
	if success {
		w.FailureCount = 0
	} else {
		w.FailureCount++
	}
	return nil
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestWebhookService_CreateValidates(t *testing.T) {
	repo := newFakeWebhookRepo()
	svc := NewWebhookService(repo, NewWebhookDispatcher(repo, nil), true)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, WebhookInput{Name: strPtr("CRM")})
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Create(ctx, owner, WebhookInput{
		Name:   strPtr("CRM"),
		URL:    strPtr("http://crm.example.com/hook"),
		Events: []string{models.WebhookEventProposalSigned},
	})
	assert.True(t, apperror.IsValidation(err), "в production допускается только https")

	_, err = svc.Create(ctx, owner, WebhookInput{
		Name:   strPtr("CRM"),
		URL:    strPtr("https://crm.example.com/hook"),
		Events: []string{"proposal.deleted"},
	})
	assert.True(t, apperror.IsValidation(err))

	created, err := svc.Create(ctx, owner, WebhookInput{
		Name:   strPtr("CRM"),
		URL:    strPtr("https://crm.example.com/hook"),
		Events: []string{models.WebhookEventProposalSigned, models.WebhookEventPaymentCompleted},
	})
	require.NoError(t, err)
	assert.Len(t, created.Secret, 2*webhookSecretBytes)
	assert.True(t, created.IsActive)
}

func TestWebhookService_TogglePersists(t *testing.T) {
	repo := newFakeWebhookRepo()
	svc := NewWebhookService(repo, NewWebhookDispatcher(repo, nil), false)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, WebhookInput{
		Name:   strPtr("CRM"),
		URL:    strPtr("https://crm.example.com/hook"),
		Events: []string{models.WebhookEventProposalSent},
	})
	require.NoError(t, err)

	toggled, err := svc.Toggle(ctx, created.ID, owner, nil)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	stored, err := svc.Get(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	explicit, err := svc.Toggle(ctx, created.ID, owner, boolPtr(true))
	require.NoError(t, err)
	assert.True(t, explicit.IsActive)

	_, err = svc.Toggle(ctx, created.ID, uuid.New(), nil)
	assert.True(t, errors.Is(err, apperror.ErrWebhookNotFound))
}

func TestWebhookDispatcher_SignsAndRecordsDelivery(t *testing.T) {
	type received struct {
		event     string
		signature string
		body      []byte
	}
	got := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- received{
			event:     r.Header.Get(HeaderWebhookEvent),
			signature: r.Header.Get(HeaderWebhookSignature),
			body:      body,
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	dispatcher := NewWebhookDispatcher(repo, server.Client())
	svc := NewWebhookService(repo, dispatcher, false)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, WebhookInput{
		Name:   strPtr("CRM"),
		URL:    strPtr(server.URL),
		Events: []string{models.WebhookEventProposalSigned},
	})
	require.NoError(t, err)

	// На событие без подписки запрос не уходит.
	dispatcher.Dispatch(ctx, owner, models.WebhookEventProposalSent, map[string]any{"x": 1})
	dispatcher.Dispatch(ctx, owner, models.WebhookEventProposalSigned, map[string]any{"proposal_id": "p-1"})
	dispatcher.Wait()

	var req received
	select {
	case req = <-got:
	default:
		t.Fatal("вебхук не был вызван")
	}
	assert.Equal(t, models.WebhookEventProposalSigned, req.event)
	assert.Equal(t, "sha256="+SignWebhookBody(created.Secret, req.body), req.signature)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(req.body, &payload))
	assert.Equal(t, models.WebhookEventProposalSigned, payload.Event)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastStatusCode)
	assert.Equal(t, http.StatusNoContent, *stored.LastStatusCode)
	assert.Equal(t, 0, stored.FailureCount)
}

func TestWebhookService_TestReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	svc := NewWebhookService(repo, NewWebhookDispatcher(repo, server.Client()), false)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, WebhookInput{
		Name:     strPtr("CRM"),
		URL:      strPtr(server.URL),
		Events:   []string{models.WebhookEventProposalSigned},
		IsActive: boolPtr(false),
	})
	require.NoError(t, err)

	delivery, err := svc.Test(ctx, created.ID, owner)
	require.NoError(t, err)
	assert.False(t, delivery.Success)
	assert.Equal(t, http.StatusInternalServerError, delivery.StatusCode)
	assert.NotEmpty(t, delivery.Error)

	stored, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.FailureCount)
}

func TestWebhookDispatcher_TimeoutCountsAsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	dispatcher := NewWebhookDispatcher(repo, server.Client())
	dispatcher.timeout = 50 * time.Millisecond
	svc := NewWebhookService(repo, dispatcher, false)
	ctx := context.Background()
	owner := uuid.New()

	var ids []uuid.UUID
	for _, name := range []string{"CRM", "Slack"} {
		created, err := svc.Create(ctx, owner, WebhookInput{
			Name:   strPtr(name),
			URL:    strPtr(server.URL),
			Events: []string{models.WebhookEventProposalViewed},
		})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	dispatcher.Dispatch(ctx, owner, models.WebhookEventProposalViewed, map[string]any{"proposal_id": "p-1"})
	dispatcher.Wait()

	for _, id := range ids {
		stored, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.FailureCount)
		require.NotNil(t, stored.LastStatusCode)
		assert.Equal(t, 0, *stored.LastStatusCode)
	}
}

func TestWebhookDispatcher_SlowHooksGetOwnTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(120 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	dispatcher := NewWebhookDispatcher(repo, server.Client())
	dispatcher.timeout = 200 * time.Millisecond
	svc := NewWebhookService(repo, dispatcher, false)
	ctx := context.Background()
	owner := uuid.New()

	var ids []uuid.UUID
	for _, name := range []string{"CRM", "Slack"} {
		created, err := svc.Create(ctx, owner, WebhookInput{
			Name:   strPtr(name),
			URL:    strPtr(server.URL),
			Events: []string{models.WebhookEventProposalSigned},
		})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	dispatcher.Dispatch(ctx, owner, models.WebhookEventProposalSigned, nil)
	dispatcher.Wait()

	for _, id := range ids {
		stored, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.FailureCount)
		require.NotNil(t, stored.LastStatusCode)
		assert.Equal(t, http.StatusOK, *stored.LastStatusCode)
	}
}

func TestWebhookDispatcher_ShutdownDropsNewEvents(t *testing.T) {
	calls := make(chan struct{}, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	dispatcher := NewWebhookDispatcher(repo, server.Client())
	svc := NewWebhookService(repo, dispatcher, false)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, WebhookInput{
		Name:   strPtr("CRM"),
		URL:    strPtr(server.URL),
		Events: []string{models.WebhookEventProposalSent},
	})
	require.NoError(t, err)

	dispatcher.Dispatch(ctx, owner, models.WebhookEventProposalSent, nil)
	dispatcher.Shutdown()
	assert.Len(t, calls, 1)

	dispatcher.Dispatch(ctx, owner, models.WebhookEventProposalSent, nil)
	dispatcher.Wait()
	assert.Len(t, calls, 1)
}
