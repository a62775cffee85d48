package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// maxWebhookBody ограничивает тело входящего вебхука провайдера.
const maxWebhookBody = 1 << 20

// BillingHandler подписка пользователя и вебхуки платёжных провайдеров.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler создаёт хэндлер.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Subscription обрабатывает GET /billing/subscription.
func (h *BillingHandler) Subscription(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	view, err := h.billing.CurrentSubscription(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Checkout обрабатывает POST /billing/checkout.
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.CheckoutRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.billing.StartCheckout(c.Request.Context(), userID, strings.ToLower(strings.TrimSpace(req.Provider)))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// StripeWebhook обрабатывает POST /webhooks/stripe.
func (h *BillingHandler) StripeWebhook(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}

	status, err := h.billing.HandleStripeWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAckResponse{Status: status})
}

// PayPalWebhook обрабатывает POST /webhooks/paypal.
func (h *BillingHandler) PayPalWebhook(c *gin.Context) {
	body, ok := readWebhookBody(c)
	if !ok {
		return
	}

	status, err := h.billing.HandlePayPalWebhook(c.Request.Context(), c.Request.Header, body)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WebhookAckResponse{Status: status})
}

func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		logger.Log.WithField("path", c.Request.URL.Path).WithError(err).Warn("billing: не удалось прочитать тело вебхука")
		common.RespondBadRequest(c, "не удалось прочитать тело запроса")
		return nil, false
	}
	return body, true
}
