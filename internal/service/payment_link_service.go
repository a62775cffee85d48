package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/payments"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
	"github.com/ignatzorin/proposal-studio/internal/validation"
)

// PaymentLinkRepository описывает хранилище платёжных ссылок.
type PaymentLinkRepository interface {
	Create(ctx context.Context, l *models.PaymentLink) error
	SetExternal(ctx context.Context, id uuid.UUID, externalID, url string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentLink, error)
	GetByExternalID(ctx context.Context, provider, externalID string) (*models.PaymentLink, error)
	ListByProposal(ctx context.Context, proposalID uuid.UUID) ([]models.PaymentLink, error)
	Cancel(ctx context.Context, id uuid.UUID) error
	MarkPaid(ctx context.Context, id, proposalID uuid.UUID, at time.Time) (bool, error)
}

// PaymentProposalStore часть хранилища предложений, нужная оплате.
type PaymentProposalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error)
}

// StripeCheckout создаёт сессии Stripe Checkout.
type StripeCheckout interface {
	Enabled() bool
	CreatePaymentCheckout(ctx context.Context, req payments.PaymentRequest) (*payments.Checkout, error)
}

// PayPalOrders создаёт заказы PayPal.
type PayPalOrders interface {
	Enabled() bool
	CreateOrder(ctx context.Context, req payments.PaymentRequest) (*payments.Checkout, error)
}

// CreatePaymentLinkInput параметры новой платёжной ссылки.
type CreatePaymentLinkInput struct {
	Provider string
	Amount   *float64
	Currency string
}

// PaymentLinkService выставляет счета по предложениям через Stripe и PayPal.
type PaymentLinkService struct {
	repo          PaymentLinkRepository
	proposals     PaymentProposalStore
	subscriptions SubscriptionChecker
	stripe        StripeCheckout
	paypal        PayPalOrders
	links         Links
	events        EventRecorder
	hub           Notifier
	dispatcher    EventDispatcher
	cache         *CacheService
	now           func() time.Time
}

// NewPaymentLinkService создаёт сервис платёжных ссылок.
func NewPaymentLinkService(
	repo PaymentLinkRepository,
	proposals PaymentProposalStore,
	subscriptions SubscriptionChecker,
	stripe StripeCheckout,
	paypal PayPalOrders,
	links Links,
) *PaymentLinkService {
	return &PaymentLinkService{
		repo:          repo,
		proposals:     proposals,
		subscriptions: subscriptions,
		stripe:        stripe,
		paypal:        paypal,
		links:         links,
		now:           time.Now,
	}
}

// SetSubscriptions подключает проверку подписки после создания BillingService.
func (s *PaymentLinkService) SetSubscriptions(c SubscriptionChecker) { s.subscriptions = c }

// SetEvents подключает запись аналитики.
func (s *PaymentLinkService) SetEvents(events EventRecorder) { s.events = events }

// SetHub устанавливает WebSocket hub.
func (s *PaymentLinkService) SetHub(hub Notifier) { s.hub = hub }

// SetDispatcher подключает исходящие вебхуки.
func (s *PaymentLinkService) SetDispatcher(d EventDispatcher) { s.dispatcher = d }

// SetCache подключает кэш дашборда.
func (s *PaymentLinkService) SetCache(c *CacheService) { s.cache = c }

// Create создаёт ссылку у провайдера. Нужна активная подписка.
func (s *PaymentLinkService) Create(ctx context.Context, proposalID, userID uuid.UUID, in CreatePaymentLinkInput) (*models.PaymentLink, error) {
	p, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID)
	if err != nil {
		return nil, err
	}

	if err := s.requireSubscription(ctx, userID); err != nil {
		return nil, err
	}

	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if _, ok := models.ValidPaymentProviders[provider]; !ok {
		return nil, apperror.Validation("provider должен быть stripe или paypal")
	}
	if !s.providerEnabled(provider) {
		return nil, apperror.ErrProviderDisabled
	}

	switch p.Status {
	case models.ProposalStatusPaid:
		return nil, apperror.New(apperror.ErrCodeConflict, "предложение уже оплачено")
	case models.ProposalStatusArchived, models.ProposalStatusDeclined:
		return nil, apperror.ErrStatusTransition
	}

	amount := p.TotalAmount
	if in.Amount != nil {
		amount = *in.Amount
	}
	if err := validation.ValidateAmount(amount); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = p.Currency
	}
	if err := validation.ValidateCurrency(currency); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	link := &models.PaymentLink{
		ProposalID: p.ID,
		UserID:     userID,
		Provider:   provider,
		Amount:     amount,
		Currency:   currency,
		Status:     models.PaymentLinkStatusPending,
	}
	if err := s.repo.Create(ctx, link); err != nil {
		return nil, apperror.Internal(err)
	}

	req := payments.PaymentRequest{
		LinkID:      link.ID.String(),
		ProposalID:  p.ID.String(),
		Description: p.Title,
		Amount:      amount,
		Currency:    currency,
		ClientEmail: derefString(p.ClientEmail),
		SuccessURL:  s.links.PaymentResult(link.ID, "success"),
		CancelURL:   s.links.PaymentResult(link.ID, "cancel"),
	}

	ctx, span := telemetry.StartSpan(ctx, "payment_link.checkout")
	checkout, err := s.checkout(ctx, provider, req)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"proposal_id": p.ID,
			"provider":    provider,
		}).WithError(err).Error("payment link service: провайдер отклонил запрос")

		if cancelErr := s.repo.Cancel(ctx, link.ID); cancelErr != nil {
			logger.Log.WithField("payment_link_id", link.ID).WithError(cancelErr).Warn("payment link service: не удалось отменить ссылку")
		}
		if errors.Is(err, payments.ErrNotConfigured) {
			return nil, apperror.ErrProviderDisabled
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeBadGateway, apperror.ErrProviderUnavailable.Message)
	}

	if err := s.repo.SetExternal(ctx, link.ID, checkout.ExternalID, checkout.URL); err != nil {
		return nil, apperror.Internal(err)
	}
	link.ExternalID = &checkout.ExternalID
	link.URL = &checkout.URL

	return link, nil
}

// List возвращает ссылки предложения.
func (s *PaymentLinkService) List(ctx context.Context, proposalID, userID uuid.UUID) ([]models.PaymentLink, error) {
	if _, err := loadOwnedProposal(ctx, s.proposals, proposalID, userID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListByProposal(ctx, proposalID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if links == nil {
		links = []models.PaymentLink{}
	}
	return links, nil
}

// Cancel отменяет ожидающую оплаты ссылку.
func (s *PaymentLinkService) Cancel(ctx context.Context, linkID, userID uuid.UUID) (*models.PaymentLink, error) {
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrPaymentLinkNotFound, apperror.ErrPaymentLinkNotFound)
	}
	if link.UserID != userID {
		return nil, apperror.ErrPaymentLinkNotFound
	}

	if err := s.repo.Cancel(ctx, linkID); err != nil {
		return nil, mapRepoErr(err, repository.ErrPaymentLinkNotPending, apperror.ErrPaymentLinkNotActive)
	}
	link.Status = models.PaymentLinkStatusCancelled
	return link, nil
}

// MarkPaid отмечает оплату по ссылке. Повторный вызов ничего не делает.
func (s *PaymentLinkService) MarkPaid(ctx context.Context, linkID uuid.UUID) error {
	link, err := s.repo.GetByID(ctx, linkID)
	if err != nil {
		return mapRepoErr(err, repository.ErrPaymentLinkNotFound, apperror.ErrPaymentLinkNotFound)
	}
	return s.markPaid(ctx, link)
}

// MarkPaidByExternal отмечает оплату по идентификатору у провайдера.
func (s *PaymentLinkService) MarkPaidByExternal(ctx context.Context, provider, externalID string) error {
	link, err := s.repo.GetByExternalID(ctx, provider, externalID)
	if err != nil {
		return mapRepoErr(err, repository.ErrPaymentLinkNotFound, apperror.ErrPaymentLinkNotFound)
	}
	return s.markPaid(ctx, link)
}

func (s *PaymentLinkService) markPaid(ctx context.Context, link *models.PaymentLink) error {
	now := s.now()
	// ссылка и предложение меняются атомарно, повторная доставка события
	// после сбоя снова застанет ссылку неоплаченной
	changed, err := s.repo.MarkPaid(ctx, link.ID, link.ProposalID, now)
	if err != nil {
		return mapRepoErr(err, repository.ErrProposalNotFound, apperror.ErrProposalNotFound)
	}
	if !changed {
		return nil
	}
	if s.cache != nil {
		s.cache.InvalidateUserCache(link.UserID)
	}

	recordEvent(ctx, s.events, &models.ProposalAnalyticsEvent{
		ProposalID: link.ProposalID,
		EventType:  models.AnalyticsEventPayment,
	}, ViewerMeta{})

	payload := map[string]any{
		"proposal_id":     link.ProposalID,
		"payment_link_id": link.ID,
		"provider":        link.Provider,
		"amount":          link.Amount,
		"currency":        link.Currency,
		"paid_at":         now,
	}
	notify(s.hub, link.UserID, models.WSEventPaymentCompleted, payload)
	dispatch(ctx, s.dispatcher, link.UserID, models.WebhookEventPaymentCompleted, payload)

	logger.Log.WithFields(logrus.Fields{
		"payment_link_id": link.ID,
		"proposal_id":     link.ProposalID,
		"provider":        link.Provider,
	}).Info("payment link service: оплата получена")
	return nil
}

func (s *PaymentLinkService) requireSubscription(ctx context.Context, userID uuid.UUID) error {
	if s.subscriptions == nil {
		return apperror.ErrSubscriptionRequired
	}
	active, err := s.subscriptions.HasActiveSubscription(ctx, userID)
	if err != nil {
		return apperror.Internal(err)
	}
	if !active {
		return apperror.ErrSubscriptionRequired
	}
	return nil
}

func (s *PaymentLinkService) providerEnabled(provider string) bool {
	switch provider {
	case models.PaymentProviderStripe:
		return s.stripe != nil && s.stripe.Enabled()
	case models.PaymentProviderPayPal:
		return s.paypal != nil && s.paypal.Enabled()
	}
	return false
}

func (s *PaymentLinkService) checkout(ctx context.Context, provider string, req payments.PaymentRequest) (*payments.Checkout, error) {
	if provider == models.PaymentProviderPayPal {
		return s.paypal.CreateOrder(ctx, req)
	}
	return s.stripe.CreatePaymentCheckout(ctx, req)
}
