package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ignatzorin/proposal-studio/internal/config"
)

const defaultPayPalBaseURL = "https://api-m.sandbox.paypal.com"

// PayPalClient обращается к REST API PayPal.
type PayPalClient struct {
	baseURL    string
	clientID   string
	secret     string
	webhookID  string
	proPlanID  string
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// NewPayPalClient создаёт клиент PayPal.
func NewPayPalClient(cfg config.PayPalConfig) *PayPalClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultPayPalBaseURL
	}

	return &PayPalClient{
		baseURL:    baseURL,
		clientID:   cfg.ClientID,
		secret:     cfg.Secret,
		webhookID:  cfg.WebhookID,
		proPlanID:  cfg.ProPlanID,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled сообщает, заданы ли учётные данные.
func (c *PayPalClient) Enabled() bool {
	return c != nil && c.clientID != "" && c.secret != ""
}

// CanVerifyWebhooks сообщает, задан ли PAYPAL_WEBHOOK_ID.
func (c *PayPalClient) CanVerifyWebhooks() bool {
	return c.Enabled() && c.webhookID != ""
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalResource struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Links  []paypalLink `json:"links"`
}

func (r paypalResource) approveURL() string {
	for _, l := range r.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// CreateOrder создаёт заказ Orders v2 с intent=CAPTURE.
func (c *PayPalClient) CreateOrder(ctx context.Context, req PaymentRequest) (*Checkout, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.ProposalID,
			"custom_id":    req.LinkID,
			"description":  truncate(req.Description, 127),
			"amount": map[string]string{
				"currency_code": strings.ToUpper(req.Currency),
				"value":         DecimalString(req.Amount, req.Currency),
			},
		}},
		"application_context": map[string]string{
			"return_url":  req.SuccessURL,
			"cancel_url":  req.CancelURL,
			"user_action": "PAY_NOW",
		},
	}

	var order paypalResource
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", payload, &order); err != nil {
		return nil, err
	}
	return &Checkout{ExternalID: order.ID, URL: order.approveURL()}, nil
}

// CaptureOrder списывает средства по одобренному заказу.
func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	var order paypalResource
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(orderID)+"/capture", map[string]any{}, &order); err != nil {
		return "", err
	}
	return order.Status, nil
}

// CreateSubscription оформляет подписку через Billing Subscriptions API.
func (c *PayPalClient) CreateSubscription(ctx context.Context, req SubscriptionRequest) (*Checkout, error) {
	if !c.Enabled() || c.proPlanID == "" {
		return nil, ErrNotConfigured
	}

	payload := map[string]any{
		"plan_id":   c.proPlanID,
		"custom_id": req.UserID,
		"application_context": map[string]string{
			"return_url":  req.SuccessURL,
			"cancel_url":  req.CancelURL,
			"user_action": "SUBSCRIBE_NOW",
		},
	}
	if req.Email != "" {
		payload["subscriber"] = map[string]string{"email_address": req.Email}
	}

	var sub paypalResource
	if err := c.do(ctx, http.MethodPost, "/v1/billing/subscriptions", payload, &sub); err != nil {
		return nil, err
	}
	return &Checkout{ExternalID: sub.ID, URL: sub.approveURL()}, nil
}

// VerifyWebhookSignature проверяет подпись через verify-webhook-signature.
func (c *PayPalClient) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	if !c.CanVerifyWebhooks() {
		return ErrNotConfigured
	}

	payload := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, &result); err != nil {
		return err
	}
	if result.VerificationStatus != "SUCCESS" {
		return ErrInvalidSignature
	}
	return nil
}

func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: paypal: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: paypal: получение токена, код %d", ErrProvider, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: paypal: некорректный ответ токена: %v", ErrProvider, err)
	}

	c.accessToken = result.AccessToken
	// запас в минуту до истечения
	c.expiresAt = time.Now().Add(time.Duration(result.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func (c *PayPalClient) do(ctx context.Context, method, path string, payload, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: paypal: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: paypal: %s %s: код %d: %s", ErrProvider, method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: paypal: некорректный ответ: %v", ErrProvider, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
