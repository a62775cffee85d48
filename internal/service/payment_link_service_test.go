package service

import (
	"context"
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

// fakePaymentLinkRepo хранит платёжные ссылки в памяти. MarkPaid меняет
// ссылку и предложение вместе: при ошибке предложения ссылка не трогается.
type fakePaymentLinkRepo struct {
	mu           sync.Mutex
	links        map[uuid.UUID]*models.PaymentLink
	proposals    *fakeProposalRepo
	proposalErrs []error
}

func newFakePaymentLinkRepo(proposals *fakeProposalRepo) *fakePaymentLinkRepo {
	return &fakePaymentLinkRepo{links: make(map[uuid.UUID]*models.PaymentLink), proposals: proposals}
}

func (r *fakePaymentLinkRepo) Create(ctx context.Context, l *models.PaymentLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	cp := *l
	r.links[l.ID] = &cp
	return nil
}

func (r *fakePaymentLinkRepo) SetExternal(ctx context.Context, id uuid.UUID, externalID, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return repository.ErrPaymentLinkNotFound
	}
	l.ExternalID = &externalID
	l.URL = &url
	return nil
}

func (r *fakePaymentLinkRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, repository.ErrPaymentLinkNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakePaymentLinkRepo) GetByExternalID(ctx context.Context, provider, externalID string) (*models.PaymentLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.Provider == provider && l.ExternalID != nil && *l.ExternalID == externalID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentLinkNotFound
}

func (r *fakePaymentLinkRepo) ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.PaymentLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentLink
	for _, l := range r.links {
		if l.ProposalID == proposalID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakePaymentLinkRepo) Cancel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return repository.ErrPaymentLinkNotFound
	}
	if l.Status != models.PaymentLinkStatusPending {
		return repository.ErrPaymentLinkNotPending
	}
	l.Status = models.PaymentLinkStatusCancelled
	return nil
}

func (r *fakePaymentLinkRepo) MarkPaid(ctx context.Context, id, proposalID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return false, repository.ErrPaymentLinkNotFound
	}
	if l.Status == models.PaymentLinkStatusPaid {
		return false, nil
	}
	if len(r.proposalErrs) > 0 {
		err := r.proposalErrs[0]
		r.proposalErrs = r.proposalErrs[1:]
		return false, err
	}
	if _, err := r.proposals.mutate(proposalID, func(p *models.Proposal) bool {
		p.Status = models.ProposalStatusPaid
		if p.PaidAt == nil {
			p.PaidAt = &at
		}
		return true
	}); err != nil {
		return false, err
	}
	l.Status = models.PaymentLinkStatusPaid
	l.PaidAt = &at
	return true, nil
}

// mockStripe mock клиента Stripe.
type mockStripe struct {
	mock.Mock
}

func (m *mockStripe) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockStripe) CreatePaymentCheckout(ctx context.Context, req payments.PaymentRequest) (*payments.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Checkout), args.Error(1)
}

func (m *mockStripe) CreateSubscriptionCheckout(ctx context.Context, req payments.SubscriptionRequest) (*payments.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Checkout), args.Error(1)
}

func (m *mockStripe) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	args := m.Called(payload, signature)
	return args.Get(0).(stripe.Event), args.Error(1)
}

// mockPayPal mock клиента PayPal.
type mockPayPal struct {
	mock.Mock
}

func (m *mockPayPal) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockPayPal) CanVerifyWebhooks() bool {
	return m.Called().Bool(0)
}

func (m *mockPayPal) CreateOrder(ctx context.Context, req payments.PaymentRequest) (*payments.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Checkout), args.Error(1)
}

func (m *mockPayPal) CreateSubscription(ctx context.Context, req payments.SubscriptionRequest) (*payments.Checkout, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payments.Checkout), args.Error(1)
}

func (m *mockPayPal) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	args := m.Called(ctx, orderID)
	return args.String(0), args.Error(1)
}

func (m *mockPayPal) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	args := m.Called(ctx, headers, body)
	return args.Error(0)
}

type paymentLinkFixture struct {
	svc       *PaymentLinkService
	repo      *fakePaymentLinkRepo
	proposals *fakeProposalRepo
	stripe    *mockStripe
	paypal    *mockPayPal
	hub       *recordingHub
	dispatch  *recordingDispatcher
	owner     uuid.UUID
}

func newPaymentLinkFixture(subscribed bool) *paymentLinkFixture {
	proposals := newFakeProposalRepo()
	f := &paymentLinkFixture{
		repo:      newFakePaymentLinkRepo(proposals),
		proposals: proposals,
		stripe:    new(mockStripe),
		paypal:    new(mockPayPal),
		hub:       &recordingHub{},
		dispatch:  &recordingDispatcher{},
		owner:     uuid.New(),
	}
	f.svc = NewPaymentLinkService(f.repo, f.proposals, fakeSubscriptions(subscribed), f.stripe, f.paypal, Links{AppURL: "https://app.test"})
	f.svc.SetHub(f.hub)
	f.svc.SetDispatcher(f.dispatch)
	f.svc.SetEvents(&fakeEvents{})
	return f
}

func (f *paymentLinkFixture) signedProposal() *models.Proposal {
	email := "client@example.com"
	return f.proposals.put(&models.Proposal{
		UserID:      f.owner,
		Title:       "Сайт",
		Status:      models.ProposalStatusSigned,
		TotalAmount: 1500,
		Currency:    "EUR",
		ClientEmail: &email,
	})
}

func TestPaymentLinkService_CreateStripeLink(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.signedProposal()

	f.stripe.On("Enabled").Return(true)
	f.stripe.On("CreatePaymentCheckout", mock.Anything, mock.MatchedBy(func(req payments.PaymentRequest) bool {
		return req.Amount == 1500 && req.Currency == "EUR" && req.ClientEmail == "client@example.com"
	})).Return(&payments.Checkout{ExternalID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}, nil)

	link, err := f.svc.Create(context.Background(), p.ID, f.owner, CreatePaymentLinkInput{Provider: "Stripe"})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentProviderStripe, link.Provider)
	assert.Equal(t, models.PaymentLinkStatusPending, link.Status)
	require.NotNil(t, link.URL)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", *link.URL)

	stored, err := f.repo.GetByID(context.Background(), link.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExternalID)
	assert.Equal(t, "cs_test_1", *stored.ExternalID)
	f.stripe.AssertExpectations(t)
}

func TestPaymentLinkService_CreateRequiresSubscription(t *testing.T) {
	f := newPaymentLinkFixture(false)
	p := f.signedProposal()

	_, err := f.svc.Create(context.Background(), p.ID, f.owner, CreatePaymentLinkInput{Provider: "stripe"})
	assert.True(t, errors.Is(err, apperror.ErrSubscriptionRequired))
	f.stripe.AssertNotCalled(t, "CreatePaymentCheckout", mock.Anything, mock.Anything)
}

func TestPaymentLinkService_CreateProviderChecks(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.signedProposal()
	ctx := context.Background()

	_, err := f.svc.Create(ctx, p.ID, f.owner, CreatePaymentLinkInput{Provider: "bitcoin"})
	assert.True(t, apperror.IsValidation(err))

	f.paypal.On("Enabled").Return(false)
	_, err = f.svc.Create(ctx, p.ID, f.owner, CreatePaymentLinkInput{Provider: "paypal"})
	assert.True(t, errors.Is(err, apperror.ErrProviderDisabled))
}

func TestPaymentLinkService_ProviderFailureCancelsLink(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.signedProposal()

	f.stripe.On("Enabled").Return(true)
	f.stripe.On("CreatePaymentCheckout", mock.Anything, mock.Anything).Return(nil, errors.New("card_declined"))

	_, err := f.svc.Create(context.Background(), p.ID, f.owner, CreatePaymentLinkInput{Provider: "stripe"})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeBadGateway))

	links, err := f.repo.ListByProposal(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, models.PaymentLinkStatusCancelled, links[0].Status)
}

func TestPaymentLinkService_PaidProposalRejected(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.proposals.put(&models.Proposal{UserID: f.owner, Title: "Оплачено", Status: models.ProposalStatusPaid, TotalAmount: 10})
	f.stripe.On("Enabled").Return(true)

	_, err := f.svc.Create(context.Background(), p.ID, f.owner, CreatePaymentLinkInput{Provider: "stripe"})
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeConflict))
}

func TestPaymentLinkService_MarkPaidIsIdempotent(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.signedProposal()
	ctx := context.Background()

	link := &models.PaymentLink{
		ProposalID: p.ID,
		UserID:     f.owner,
		Provider:   models.PaymentProviderStripe,
		Amount:     1500,
		Currency:   "EUR",
		Status:     models.PaymentLinkStatusPending,
	}
	require.NoError(t, f.repo.Create(ctx, link))
	require.NoError(t, f.repo.SetExternal(ctx, link.ID, "cs_paid", "https://checkout.stripe.com/c/cs_paid"))

	require.NoError(t, f.svc.MarkPaidByExternal(ctx, models.PaymentProviderStripe, "cs_paid"))
	stored := f.proposals.get(p.ID)
	assert.Equal(t, models.ProposalStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
	firstPaidAt := *stored.PaidAt
	assert.True(t, f.hub.has(models.WSEventPaymentCompleted))
	assert.True(t, f.dispatch.has(models.WebhookEventPaymentCompleted))

	require.NoError(t, f.svc.MarkPaid(ctx, link.ID))
	assert.Equal(t, firstPaidAt, *f.proposals.get(p.ID).PaidAt)
	assert.Len(t, f.dispatch.events, 1)

	_, err := f.svc.Cancel(ctx, link.ID, f.owner)
	assert.True(t, errors.Is(err, apperror.ErrPaymentLinkNotActive))
}

func TestPaymentLinkService_MarkPaidRecoversAfterFailedWrite(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.signedProposal()
	ctx := context.Background()

	link := &models.PaymentLink{
		ProposalID: p.ID,
		UserID:     f.owner,
		Provider:   models.PaymentProviderStripe,
		Amount:     1500,
		Currency:   "EUR",
		Status:     models.PaymentLinkStatusPending,
	}
	require.NoError(t, f.repo.Create(ctx, link))
	f.repo.proposalErrs = []error{errors.New("db down")}

	err := f.svc.MarkPaid(ctx, link.ID)
	assert.True(t, apperror.HasCode(err, apperror.ErrCodeInternal))
	stored, err := f.repo.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentLinkStatusPending, stored.Status)
	assert.Equal(t, models.ProposalStatusSigned, f.proposals.get(p.ID).Status)
	assert.Empty(t, f.dispatch.events)

	// повторная доставка события провайдером
	require.NoError(t, f.svc.MarkPaid(ctx, link.ID))
	assert.Equal(t, models.ProposalStatusPaid, f.proposals.get(p.ID).Status)
	assert.True(t, f.hub.has(models.WSEventPaymentCompleted))
	assert.Len(t, f.dispatch.events, 1)
}

func TestPaymentLinkService_CancelForeignLink(t *testing.T) {
	f := newPaymentLinkFixture(true)
	p := f.signedProposal()
	ctx := context.Background()

	link := &models.PaymentLink{ProposalID: p.ID, UserID: f.owner, Provider: "stripe", Amount: 1, Currency: "EUR", Status: models.PaymentLinkStatusPending}
	require.NoError(t, f.repo.Create(ctx, link))

	_, err := f.svc.Cancel(ctx, link.ID, uuid.New())
	assert.True(t, errors.Is(err, apperror.ErrPaymentLinkNotFound))

	cancelled, err := f.svc.Cancel(ctx, link.ID, f.owner)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentLinkStatusCancelled, cancelled.Status)
}
