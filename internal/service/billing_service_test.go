package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/payments"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
)

// fakeSubscriptionRepo хранит подписки в памяти.
type fakeSubscriptionRepo struct {
	mu   sync.Mutex
	subs []*models.Subscription
}

func (r *fakeSubscriptionRepo) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.ExternalSubscriptionID == externalID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.subs) - 1; i >= 0; i-- {
		if r.subs[i].UserID == userID {
			cp := *r.subs[i]
			return &cp, nil
		}
	}
	return nil, repository.ErrSubscriptionNotFound
}

func (r *fakeSubscriptionRepo) Create(ctx context.Context, s *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	cp := *s
	r.subs = append(r.subs, &cp)
	return nil
}

func (r *fakeSubscriptionRepo) Update(ctx context.Context, s *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.subs {
		if existing.ID == s.ID {
			cp := *s
			r.subs[i] = &cp
			return nil
		}
	}
	return repository.ErrSubscriptionNotFound
}

// fakeLedger журнал событий провайдеров в памяти.
type fakeLedger struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	forgot int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: make(map[string]struct{})}
}

func (l *fakeLedger) TryRecord(ctx context.Context, provider, eventID, eventType string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := provider + ":" + eventID
	if _, ok := l.seen[key]; ok {
		return false, nil
	}
	l.seen[key] = struct{}{}
	return true, nil
}

func (l *fakeLedger) Forget(ctx context.Context, provider, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.seen, provider+":"+eventID)
	l.forgot++
	return nil
}

// mockCompleter mock отметки оплаты платёжных ссылок.
type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) MarkPaid(ctx context.Context, linkID uuid.UUID) error {
	return m.Called(ctx, linkID).Error(0)
}

func (m *mockCompleter) MarkPaidByExternal(ctx context.Context, provider, externalID string) error {
	return m.Called(ctx, provider, externalID).Error(0)
}

type billingFixture struct {
	svc       *BillingService
	subs      *fakeSubscriptionRepo
	ledger    *fakeLedger
	stripe    *mockStripe
	paypal    *mockPayPal
	completer *mockCompleter
	hub       *recordingHub
	owner     uuid.UUID
}

func newBillingFixture(production bool) *billingFixture {
	profiles := newFakeProfiles()
	f := &billingFixture{
		subs:      &fakeSubscriptionRepo{},
		ledger:    newFakeLedger(),
		stripe:    new(mockStripe),
		paypal:    new(mockPayPal),
		completer: new(mockCompleter),
		hub:       &recordingHub{},
		owner:     profiles.addUser("owner@example.com", "Студия Север"),
	}
	f.svc = NewBillingService(f.subs, f.ledger, f.stripe, f.paypal, f.completer, profiles, Links{AppURL: "https://app.test"}, production)
	f.svc.SetHub(f.hub)
	return f
}

func stripeEvent(t *testing.T, id, eventType string, object any) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestBillingService_StripeSubscriptionCheckoutActivates(t *testing.T) {
	f := newBillingFixture(true)
	ctx := context.Background()

	event := stripeEvent(t, "evt_1", "checkout.session.completed", map[string]any{
		"id":           "cs_sub_1",
		"mode":         "subscription",
		"subscription": "sub_123",
		"customer":     "cus_9",
		"metadata":     map[string]string{payments.MetaUserID: f.owner.String()},
	})
	f.stripe.On("ParseWebhook", []byte("payload"), "sig").Return(event, nil)

	result, err := f.svc.HandleStripeWebhook(ctx, []byte("payload"), "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	active, err := f.svc.HasActiveSubscription(ctx, f.owner)
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, f.hub.has(models.WSEventSubscription))

	view, err := f.svc.CurrentSubscription(ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, view.Plan)
	require.NotNil(t, view.Subscription.ExternalCustomerID)
	assert.Equal(t, "cus_9", *view.Subscription.ExternalCustomerID)
}

func TestBillingService_DuplicateStripeEventSkipped(t *testing.T) {
	f := newBillingFixture(true)
	ctx := context.Background()
	linkID := uuid.New()

	event := stripeEvent(t, "evt_pay", "checkout.session.completed", map[string]any{
		"id":             "cs_pay_1",
		"mode":           "payment",
		"payment_status": "paid",
		"metadata":       map[string]string{payments.MetaPaymentLinkID: linkID.String()},
	})
	f.stripe.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	f.completer.On("MarkPaid", mock.Anything, linkID).Return(nil).Once()

	first, err := f.svc.HandleStripeWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, first)

	second, err := f.svc.HandleStripeWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, second)

	f.completer.AssertNumberOfCalls(t, "MarkPaid", 1)
}

func TestBillingService_UnpaidSessionIgnored(t *testing.T) {
	f := newBillingFixture(true)

	event := stripeEvent(t, "evt_unpaid", "checkout.session.completed", map[string]any{
		"id":             "cs_pay_2",
		"mode":           "payment",
		"payment_status": "unpaid",
	})
	f.stripe.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)

	result, err := f.svc.HandleStripeWebhook(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)
	f.completer.AssertNotCalled(t, "MarkPaid", mock.Anything, mock.Anything)
}

func TestBillingService_InvalidStripeSignature(t *testing.T) {
	f := newBillingFixture(true)
	f.stripe.On("ParseWebhook", mock.Anything, mock.Anything).Return(stripe.Event{}, errors.New("bad signature"))

	_, err := f.svc.HandleStripeWebhook(context.Background(), []byte("{}"), "sig")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeBadRequest))
	assert.Empty(t, f.ledger.seen)
}

func TestBillingService_FailedEventCanBeRetried(t *testing.T) {
	f := newBillingFixture(true)
	ctx := context.Background()
	linkID := uuid.New()

	event := stripeEvent(t, "evt_retry", "checkout.session.completed", map[string]any{
		"id":                  "cs_pay_3",
		"mode":                "payment",
		"payment_status":      "paid",
		"client_reference_id": linkID.String(),
	})
	f.stripe.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	f.completer.On("MarkPaid", mock.Anything, linkID).Return(errors.New("db down")).Once()
	f.completer.On("MarkPaid", mock.Anything, linkID).Return(nil).Once()

	_, err := f.svc.HandleStripeWebhook(ctx, []byte("{}"), "sig")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInternal))
	assert.Equal(t, 1, f.ledger.forgot)

	result, err := f.svc.HandleStripeWebhook(ctx, []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)
}

func TestBillingService_UnknownPaymentLinkAcknowledged(t *testing.T) {
	f := newBillingFixture(true)
	linkID := uuid.New()

	event := stripeEvent(t, "evt_unknown", "checkout.session.completed", map[string]any{
		"id":             "cs_pay_4",
		"mode":           "payment",
		"payment_status": "paid",
		"metadata":       map[string]string{payments.MetaPaymentLinkID: linkID.String()},
	})
	f.stripe.On("ParseWebhook", mock.Anything, mock.Anything).Return(event, nil)
	f.completer.On("MarkPaid", mock.Anything, linkID).Return(apperror.ErrPaymentLinkNotFound)

	result, err := f.svc.HandleStripeWebhook(context.Background(), []byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, result)
	assert.Equal(t, 0, f.ledger.forgot)
}

func TestBillingService_PayPalSubscriptionLifecycle(t *testing.T) {
	f := newBillingFixture(false)
	ctx := context.Background()
	f.paypal.On("CanVerifyWebhooks").Return(false)

	activated := []byte(`{"id":"WH-1","event_type":"BILLING.SUBSCRIPTION.ACTIVATED","resource":{"id":"I-SUB1","status":"ACTIVE","custom_id":"` + f.owner.String() + `","subscriber":{"payer_id":"PAYER1"}}}`)
	result, err := f.svc.HandlePayPalWebhook(ctx, http.Header{}, activated)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	active, err := f.svc.HasActiveSubscription(ctx, f.owner)
	require.NoError(t, err)
	assert.True(t, active)

	cancelled := []byte(`{"id":"WH-2","event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource":{"id":"I-SUB1","status":"CANCELLED"}}`)
	result, err = f.svc.HandlePayPalWebhook(ctx, http.Header{}, cancelled)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)

	active, err = f.svc.HasActiveSubscription(ctx, f.owner)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestBillingService_PayPalRequiresVerificationInProduction(t *testing.T) {
	f := newBillingFixture(true)
	f.paypal.On("CanVerifyWebhooks").Return(false)

	body := []byte(`{"id":"WH-3","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{}}`)
	_, err := f.svc.HandlePayPalWebhook(context.Background(), http.Header{}, body)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeBadRequest))
}

func TestBillingService_PayPalOrderApprovedCaptures(t *testing.T) {
	f := newBillingFixture(true)
	linkID := uuid.New()

	f.paypal.On("CanVerifyWebhooks").Return(true)
	f.paypal.On("VerifyWebhookSignature", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.paypal.On("CaptureOrder", mock.Anything, "ORDER-1").Return("COMPLETED", nil)
	f.completer.On("MarkPaid", mock.Anything, linkID).Return(nil)

	body := []byte(`{"id":"WH-4","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1","status":"APPROVED","purchase_units":[{"custom_id":"` + linkID.String() + `"}]}}`)
	result, err := f.svc.HandlePayPalWebhook(context.Background(), http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, result)
	f.paypal.AssertExpectations(t)
	f.completer.AssertExpectations(t)
}

func TestBillingService_StartCheckout(t *testing.T) {
	f := newBillingFixture(true)
	ctx := context.Background()

	f.paypal.On("Enabled").Return(true)
	f.paypal.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(req payments.SubscriptionRequest) bool {
		return req.UserID == f.owner.String() && req.Email == "owner@example.com"
	})).Return(&payments.Checkout{ExternalID: "I-SUB9", URL: "https://paypal.test/approve"}, nil)

	res, err := f.svc.StartCheckout(ctx, f.owner, "paypal")
	require.NoError(t, err)
	assert.Equal(t, "https://paypal.test/approve", res.URL)

	sub, err := f.subs.GetByExternalID(ctx, "I-SUB9")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPending, sub.Status)

	f.stripe.On("Enabled").Return(false)
	_, err = f.svc.StartCheckout(ctx, f.owner, "")
	assert.True(t, errors.Is(err, apperror.ErrProviderDisabled))

	require.NoError(t, f.subs.Create(ctx, &models.Subscription{
		UserID:                 f.owner,
		Provider:               models.PaymentProviderStripe,
		ExternalSubscriptionID: "sub_live",
		Plan:                   models.PlanPro,
		Status:                 models.SubscriptionStatusActive,
	}))
	_, err = f.svc.StartCheckout(ctx, f.owner, "stripe")
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeConflict))
}

func TestBillingService_CurrentSubscriptionDefaultsToFree(t *testing.T) {
	f := newBillingFixture(true)

	view, err := f.svc.CurrentSubscription(context.Background(), f.owner)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, view.Plan)
	assert.Equal(t, "none", view.Status)
	assert.False(t, view.Active)
}
