package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/ignatzorin/proposal-studio/internal/config"
)

// Ключи метаданных Stripe.
const (
	MetaPaymentLinkID = "payment_link_id"
	MetaProposalID    = "proposal_id"
	MetaUserID        = "user_id"
)

// StripeGateway создаёт Checkout Session и проверяет вебхуки Stripe.
type StripeGateway struct {
	sessions      session.Client
	webhookSecret string
	proPriceID    string
}

// NewStripeGateway создаёт шлюз с боевым бэкендом Stripe.
func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	return newStripeGateway(cfg, stripe.GetBackend(stripe.APIBackend))
}

func newStripeGateway(cfg config.StripeConfig, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		webhookSecret: cfg.WebhookSecret,
		proPriceID:    cfg.ProPriceID,
	}
}

// Enabled сообщает, задан ли секретный ключ.
func (g *StripeGateway) Enabled() bool {
	return g != nil && g.sessions.Key != ""
}

// CreatePaymentCheckout создаёт сессию оплаты предложения.
func (g *StripeGateway) CreatePaymentCheckout(ctx context.Context, req PaymentRequest) (*Checkout, error) {
	if !g.Enabled() {
		return nil, ErrNotConfigured
	}

	metadata := map[string]string{
		MetaPaymentLinkID: req.LinkID,
		MetaProposalID:    req.ProposalID,
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.LinkID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(MinorUnits(req.Amount, req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if req.ClientEmail != "" {
		params.CustomerEmail = stripe.String(req.ClientEmail)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %v", ErrProvider, err)
	}
	return &Checkout{ExternalID: s.ID, URL: s.URL}, nil
}

// CreateSubscriptionCheckout создаёт сессию оформления тарифа Pro.
func (g *StripeGateway) CreateSubscriptionCheckout(ctx context.Context, req SubscriptionRequest) (*Checkout, error) {
	if !g.Enabled() || g.proPriceID == "" {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(g.proPriceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{MetaUserID: req.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetaUserID, req.UserID)
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: stripe: %v", ErrProvider, err)
	}
	return &Checkout{ExternalID: s.ID, URL: s.URL}, nil
}

// ParseWebhook проверяет подпись Stripe-Signature и разбирает событие.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (stripe.Event, error) {
	if g == nil || g.webhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return event, nil
}
