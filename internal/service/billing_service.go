package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/payments"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/repository"
	"github.com/ignatzorin/proposal-studio/internal/telemetry"
)

// Результаты обработки входящего вебхука провайдера.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

var (
	errInvalidWebhookSignature = apperror.New(apperror.ErrCodeBadRequest, "неверная подпись вебхука")
	errInvalidWebhookPayload   = apperror.New(apperror.ErrCodeBadRequest, "некорректное тело вебхука")
	errSubscriptionActive      = apperror.New(apperror.ErrCodeConflict, "подписка уже активна")

	// подписка пришла без user_id, привязать её не к кому
	errSubscriptionOwnerUnknown = errors.New("billing: владелец подписки неизвестен")
)

// SubscriptionRepository описывает хранилище подписок.
type SubscriptionRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	GetLatestForUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	Create(ctx context.Context, s *models.Subscription) error
	Update(ctx context.Context, s *models.Subscription) error
}

// WebhookEventLedger журнал обработанных событий провайдеров.
type WebhookEventLedger interface {
	TryRecord(ctx context.Context, provider, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, provider, eventID string) error
}

// StripeBilling операции Stripe, нужные подпискам.
type StripeBilling interface {
	Enabled() bool
	CreateSubscriptionCheckout(ctx context.Context, req payments.SubscriptionRequest) (*payments.Checkout, error)
	ParseWebhook(payload []byte, signature string) (stripe.Event, error)
}

// PayPalBilling операции PayPal, нужные подпискам и вебхукам.
type PayPalBilling interface {
	Enabled() bool
	CanVerifyWebhooks() bool
	CreateSubscription(ctx context.Context, req payments.SubscriptionRequest) (*payments.Checkout, error)
	CaptureOrder(ctx context.Context, orderID string) (string, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

// PaymentCompleter отмечает оплату платёжной ссылки.
type PaymentCompleter interface {
	MarkPaid(ctx context.Context, linkID uuid.UUID) error
	MarkPaidByExternal(ctx context.Context, provider, externalID string) error
}

// SubscriptionView текущий тариф пользователя.
type SubscriptionView struct {
	Plan         string               `json:"plan"`
	Status       string               `json:"status"`
	Active       bool                 `json:"active"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// CheckoutResult адрес, на который нужно отправить пользователя.
type CheckoutResult struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// BillingService проверяет подписки и обрабатывает вебхуки Stripe и PayPal.
type BillingService struct {
	subs       SubscriptionRepository
	ledger     WebhookEventLedger
	stripe     StripeBilling
	paypal     PayPalBilling
	payments   PaymentCompleter
	users      ProfileLookup
	links      Links
	production bool
	hub        Notifier
	cache      *CacheService
	now        func() time.Time
}

// NewBillingService создаёт сервис подписок.
func NewBillingService(
	subs SubscriptionRepository,
	ledger WebhookEventLedger,
	stripe StripeBilling,
	paypal PayPalBilling,
	paymentLinks PaymentCompleter,
	users ProfileLookup,
	links Links,
	production bool,
) *BillingService {
	return &BillingService{
		subs:       subs,
		ledger:     ledger,
		stripe:     stripe,
		paypal:     paypal,
		payments:   paymentLinks,
		users:      users,
		links:      links,
		production: production,
		now:        time.Now,
	}
}

// SetHub устанавливает WebSocket hub.
func (s *BillingService) SetHub(hub Notifier) { s.hub = hub }

// SetCache подключает кэш дашборда.
func (s *BillingService) SetCache(c *CacheService) { s.cache = c }

// HasActiveSubscription реализует SubscriptionChecker.
func (s *BillingService) HasActiveSubscription(ctx context.Context, userID uuid.UUID) (bool, error) {
	sub, err := s.subs.GetLatestForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.IsActive(s.now()), nil
}

// CurrentSubscription возвращает тариф пользователя. Без активной подписки тариф free.
func (s *BillingService) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionView, error) {
	sub, err := s.subs.GetLatestForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return &SubscriptionView{Plan: models.PlanFree, Status: "none"}, nil
		}
		return nil, apperror.Internal(err)
	}

	view := &SubscriptionView{Plan: models.PlanFree, Status: sub.Status, Subscription: sub}
	if sub.IsActive(s.now()) {
		view.Plan = sub.Plan
		view.Active = true
	}
	return view, nil
}

// StartCheckout начинает оформление тарифа Pro у выбранного провайдера.
func (s *BillingService) StartCheckout(ctx context.Context, userID uuid.UUID, provider string) (*CheckoutResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = models.PaymentProviderStripe
	}
	if _, ok := models.ValidPaymentProviders[provider]; !ok {
		return nil, apperror.Validation("provider должен быть stripe или paypal")
	}

	active, err := s.HasActiveSubscription(ctx, userID)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if active {
		return nil, errSubscriptionActive
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapRepoErr(err, repository.ErrUserNotFound, apperror.ErrUserNotFound)
	}

	req := payments.SubscriptionRequest{
		UserID:     userID.String(),
		Email:      user.Email,
		SuccessURL: s.links.Billing("success"),
		CancelURL:  s.links.Billing("cancel"),
	}

	ctx, span := telemetry.StartSpan(ctx, "billing.checkout")
	var checkout *payments.Checkout
	switch provider {
	case models.PaymentProviderPayPal:
		if s.paypal == nil || !s.paypal.Enabled() {
			err = payments.ErrNotConfigured
			break
		}
		checkout, err = s.paypal.CreateSubscription(ctx, req)
	default:
		if s.stripe == nil || !s.stripe.Enabled() {
			err = payments.ErrNotConfigured
			break
		}
		checkout, err = s.stripe.CreateSubscriptionCheckout(ctx, req)
	}
	telemetry.EndSpan(span, err)

	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return nil, apperror.ErrProviderDisabled
		}
		logger.Log.WithFields(logrus.Fields{
			"user_id":  userID,
			"provider": provider,
		}).WithError(err).Error("billing service: не удалось начать оформление подписки")
		return nil, apperror.Wrap(err, apperror.ErrCodeBadGateway, apperror.ErrProviderUnavailable.Message)
	}

	// PayPal сразу выдаёт id подписки, сохраняем её до подтверждения
	if provider == models.PaymentProviderPayPal {
		if err := s.upsertSubscription(ctx, models.SubscriptionUpdate{
			Provider:               provider,
			ExternalSubscriptionID: checkout.ExternalID,
			UserID:                 &userID,
			Plan:                   models.PlanPro,
			Status:                 models.SubscriptionStatusPending,
		}); err != nil {
			return nil, apperror.Internal(err)
		}
	}

	return &CheckoutResult{Provider: provider, ExternalID: checkout.ExternalID, URL: checkout.URL}, nil
}

// HandleStripeWebhook проверяет подпись и обрабатывает событие Stripe.
func (s *BillingService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	if s.stripe == nil {
		return "", apperror.ErrProviderDisabled
	}
	event, err := s.stripe.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return "", apperror.ErrProviderDisabled
		}
		logger.Log.WithError(err).Warn("billing service: отклонён вебхук Stripe")
		return "", errInvalidWebhookSignature
	}
	if event.Data == nil {
		return "", errInvalidWebhookPayload
	}

	return s.processOnce(ctx, models.PaymentProviderStripe, event.ID, string(event.Type), func(ctx context.Context) (bool, error) {
		return s.applyStripeEvent(ctx, string(event.Type), event.Data.Raw)
	})
}

// HandlePayPalWebhook проверяет подпись и обрабатывает событие PayPal.
func (s *BillingService) HandlePayPalWebhook(ctx context.Context, headers http.Header, body []byte) (string, error) {
	if err := s.verifyPayPal(ctx, headers, body); err != nil {
		return "", err
	}

	var event paypalEvent
	if err := json.Unmarshal(body, &event); err != nil || event.ID == "" || event.EventType == "" {
		return "", errInvalidWebhookPayload
	}

	return s.processOnce(ctx, models.PaymentProviderPayPal, event.ID, event.EventType, func(ctx context.Context) (bool, error) {
		return s.applyPayPalEvent(ctx, event)
	})
}

// processOnce обрабатывает событие ровно один раз. При ошибке запись удаляется,
// чтобы провайдер мог доставить событие повторно.
func (s *BillingService) processOnce(ctx context.Context, provider, eventID, eventType string, apply func(context.Context) (bool, error)) (string, error) {
	log := logger.Log.WithFields(logrus.Fields{
		"provider":   provider,
		"event_id":   eventID,
		"event_type": eventType,
	})

	fresh, err := s.ledger.TryRecord(ctx, provider, eventID, eventType)
	if err != nil {
		return "", apperror.Internal(err)
	}
	if !fresh {
		log.Info("billing service: повторное событие пропущено")
		return WebhookDuplicate, nil
	}

	handled, err := apply(ctx)
	if err != nil {
		if apperror.IsNotFound(err) || errors.Is(err, errSubscriptionOwnerUnknown) {
			log.WithError(err).Warn("billing service: событие не относится к известным объектам")
			return WebhookIgnored, nil
		}
		if forgetErr := s.ledger.Forget(ctx, provider, eventID); forgetErr != nil {
			log.WithError(forgetErr).Error("billing service: не удалось удалить запись о событии")
		}
		log.WithError(err).Error("billing service: ошибка обработки события")
		if _, ok := apperror.As(err); ok {
			return "", err
		}
		return "", apperror.Internal(err)
	}

	if !handled {
		log.Debug("billing service: событие проигнорировано")
		return WebhookIgnored, nil
	}
	log.Info("billing service: событие обработано")
	return WebhookProcessed, nil
}

func (s *BillingService) applyStripeEvent(ctx context.Context, eventType string, raw json.RawMessage) (bool, error) {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return false, errInvalidWebhookPayload
		}
		return s.applyStripeSession(ctx, &session)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return false, errInvalidWebhookPayload
		}

		update := models.SubscriptionUpdate{
			Provider:               models.PaymentProviderStripe,
			ExternalSubscriptionID: sub.ID,
			Plan:                   models.PlanPro,
			Status:                 stripeSubscriptionStatus(sub.Status),
		}
		if eventType == "customer.subscription.deleted" {
			update.Status = models.SubscriptionStatusCancelled
		}
		if sub.Customer != nil && sub.Customer.ID != "" {
			update.ExternalCustomerID = &sub.Customer.ID
		}
		if sub.CurrentPeriodEnd > 0 {
			end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			update.CurrentPeriodEnd = &end
		}
		update.UserID = parseUserID(sub.Metadata[payments.MetaUserID])

		return true, s.upsertSubscription(ctx, update)
	}
	return false, nil
}

func (s *BillingService) applyStripeSession(ctx context.Context, session *stripe.CheckoutSession) (bool, error) {
	switch session.Mode {
	case stripe.CheckoutSessionModePayment:
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid &&
			session.PaymentStatus != stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
			return false, nil
		}
		ref := session.Metadata[payments.MetaPaymentLinkID]
		if ref == "" {
			ref = session.ClientReferenceID
		}
		if linkID, err := uuid.Parse(ref); err == nil {
			return true, s.payments.MarkPaid(ctx, linkID)
		}
		return true, s.payments.MarkPaidByExternal(ctx, models.PaymentProviderStripe, session.ID)

	case stripe.CheckoutSessionModeSubscription:
		if session.Subscription == nil || session.Subscription.ID == "" {
			return false, nil
		}
		ref := session.Metadata[payments.MetaUserID]
		if ref == "" {
			ref = session.ClientReferenceID
		}

		update := models.SubscriptionUpdate{
			Provider:               models.PaymentProviderStripe,
			ExternalSubscriptionID: session.Subscription.ID,
			UserID:                 parseUserID(ref),
			Plan:                   models.PlanPro,
			Status:                 models.SubscriptionStatusActive,
		}
		if session.Customer != nil && session.Customer.ID != "" {
			update.ExternalCustomerID = &session.Customer.ID
		}
		return true, s.upsertSubscription(ctx, update)
	}
	return false, nil
}

type paypalEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalSubscriptionResource struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	CustomID    string `json:"custom_id"`
	BillingInfo struct {
		NextBillingTime *time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
	Subscriber struct {
		PayerID string `json:"payer_id"`
	} `json:"subscriber"`
}

type paypalCaptureResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	CustomID          string `json:"custom_id"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type paypalOrderResource struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	PurchaseUnits []struct {
		CustomID string `json:"custom_id"`
	} `json:"purchase_units"`
}

func (o paypalOrderResource) customID() string {
	for _, u := range o.PurchaseUnits {
		if u.CustomID != "" {
			return u.CustomID
		}
	}
	return ""
}

func (s *BillingService) applyPayPalEvent(ctx context.Context, event paypalEvent) (bool, error) {
	switch event.EventType {
	case "BILLING.SUBSCRIPTION.CREATED",
		"BILLING.SUBSCRIPTION.ACTIVATED",
		"BILLING.SUBSCRIPTION.UPDATED",
		"BILLING.SUBSCRIPTION.CANCELLED",
		"BILLING.SUBSCRIPTION.SUSPENDED",
		"BILLING.SUBSCRIPTION.EXPIRED",
		"BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		var res paypalSubscriptionResource
		if err := json.Unmarshal(event.Resource, &res); err != nil || res.ID == "" {
			return false, errInvalidWebhookPayload
		}

		update := models.SubscriptionUpdate{
			Provider:               models.PaymentProviderPayPal,
			ExternalSubscriptionID: res.ID,
			UserID:                 parseUserID(res.CustomID),
			Plan:                   models.PlanPro,
			Status:                 paypalSubscriptionStatus(event.EventType, res.Status),
			CurrentPeriodEnd:       res.BillingInfo.NextBillingTime,
		}
		if res.Subscriber.PayerID != "" {
			update.ExternalCustomerID = &res.Subscriber.PayerID
		}
		return true, s.upsertSubscription(ctx, update)

	case "PAYMENT.CAPTURE.COMPLETED":
		var res paypalCaptureResource
		if err := json.Unmarshal(event.Resource, &res); err != nil {
			return false, errInvalidWebhookPayload
		}
		if linkID, err := uuid.Parse(res.CustomID); err == nil {
			return true, s.payments.MarkPaid(ctx, linkID)
		}
		if orderID := res.SupplementaryData.RelatedIDs.OrderID; orderID != "" {
			return true, s.payments.MarkPaidByExternal(ctx, models.PaymentProviderPayPal, orderID)
		}
		return false, nil

	case "CHECKOUT.ORDER.COMPLETED":
		var res paypalOrderResource
		if err := json.Unmarshal(event.Resource, &res); err != nil || res.ID == "" {
			return false, errInvalidWebhookPayload
		}
		return true, s.markOrderPaid(ctx, res)

	case "CHECKOUT.ORDER.APPROVED":
		var res paypalOrderResource
		if err := json.Unmarshal(event.Resource, &res); err != nil || res.ID == "" {
			return false, errInvalidWebhookPayload
		}

		ctx, span := telemetry.StartSpan(ctx, "billing.paypal_capture")
		status, err := s.paypal.CaptureOrder(ctx, res.ID)
		telemetry.EndSpan(span, err)
		if err != nil {
			return false, err
		}
		if status != "COMPLETED" {
			return false, nil
		}
		return true, s.markOrderPaid(ctx, res)
	}
	return false, nil
}

func (s *BillingService) markOrderPaid(ctx context.Context, order paypalOrderResource) error {
	if linkID, err := uuid.Parse(order.customID()); err == nil {
		return s.payments.MarkPaid(ctx, linkID)
	}
	return s.payments.MarkPaidByExternal(ctx, models.PaymentProviderPayPal, order.ID)
}

func (s *BillingService) verifyPayPal(ctx context.Context, headers http.Header, body []byte) error {
	if s.paypal == nil || !s.paypal.CanVerifyWebhooks() {
		if s.production {
			logger.Log.Error("billing service: PAYPAL_WEBHOOK_ID не задан, вебхук PayPal отклонён")
			return errInvalidWebhookSignature
		}
		logger.Log.Warn("billing service: проверка подписи PayPal пропущена, PAYPAL_WEBHOOK_ID не задан")
		return nil
	}

	ctx, span := telemetry.StartSpan(ctx, "billing.paypal_verify")
	err := s.paypal.VerifyWebhookSignature(ctx, headers, body)
	telemetry.EndSpan(span, err)
	if err != nil {
		logger.Log.WithError(err).Warn("billing service: отклонён вебхук PayPal")
		if errors.Is(err, payments.ErrInvalidSignature) {
			return errInvalidWebhookSignature
		}
		return apperror.Wrap(err, apperror.ErrCodeBadGateway, apperror.ErrProviderUnavailable.Message)
	}
	return nil
}

// upsertSubscription обновляет подписку по внешнему id или создаёт её.
func (s *BillingService) upsertSubscription(ctx context.Context, u models.SubscriptionUpdate) error {
	sub, err := s.subs.GetByExternalID(ctx, u.ExternalSubscriptionID)
	switch {
	case err == nil:
		if u.ExternalCustomerID != nil {
			sub.ExternalCustomerID = u.ExternalCustomerID
		}
		if u.Plan != "" {
			sub.Plan = u.Plan
		}
		if u.Status != "" {
			sub.Status = u.Status
		}
		if u.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = u.CurrentPeriodEnd
		}
		if err := s.subs.Update(ctx, sub); err != nil {
			return err
		}

	case errors.Is(err, repository.ErrSubscriptionNotFound):
		if u.UserID == nil {
			return errSubscriptionOwnerUnknown
		}
		sub = &models.Subscription{
			UserID:                 *u.UserID,
			Provider:               u.Provider,
			ExternalSubscriptionID: u.ExternalSubscriptionID,
			ExternalCustomerID:     u.ExternalCustomerID,
			Plan:                   u.Plan,
			Status:                 u.Status,
			CurrentPeriodEnd:       u.CurrentPeriodEnd,
		}
		if sub.Plan == "" {
			sub.Plan = models.PlanPro
		}
		if err := s.subs.Create(ctx, sub); err != nil {
			return err
		}

	default:
		return err
	}

	if s.cache != nil {
		s.cache.InvalidateUserCache(sub.UserID)
	}
	notify(s.hub, sub.UserID, models.WSEventSubscription, map[string]any{
		"provider": sub.Provider,
		"plan":     sub.Plan,
		"status":   sub.Status,
		"active":   sub.IsActive(s.now()),
	})
	return nil
}

func stripeSubscriptionStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return models.SubscriptionStatusCancelled
	case stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionStatusExpired
	case stripe.SubscriptionStatusPaused:
		return models.SubscriptionStatusSuspended
	default:
		return models.SubscriptionStatusPending
	}
}

func paypalSubscriptionStatus(eventType, status string) string {
	switch eventType {
	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		return models.SubscriptionStatusPastDue
	case "BILLING.SUBSCRIPTION.CANCELLED":
		return models.SubscriptionStatusCancelled
	case "BILLING.SUBSCRIPTION.SUSPENDED":
		return models.SubscriptionStatusSuspended
	case "BILLING.SUBSCRIPTION.EXPIRED":
		return models.SubscriptionStatusExpired
	}

	switch strings.ToUpper(status) {
	case "ACTIVE":
		return models.SubscriptionStatusActive
	case "SUSPENDED":
		return models.SubscriptionStatusSuspended
	case "CANCELLED":
		return models.SubscriptionStatusCancelled
	case "EXPIRED":
		return models.SubscriptionStatusExpired
	default:
		return models.SubscriptionStatusPending
	}
}

func parseUserID(raw string) *uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &id
}
