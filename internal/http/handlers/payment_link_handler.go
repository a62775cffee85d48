package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// PaymentLinkHandler выставляет счета по предложениям.
type PaymentLinkHandler struct {
	links *service.PaymentLinkService
}

// NewPaymentLinkHandler создаёт хэндлер.
func NewPaymentLinkHandler(links *service.PaymentLinkService) *PaymentLinkHandler {
	return &PaymentLinkHandler{links: links}
}

// Create обрабатывает POST /proposals/:id/payment-links.
func (h *PaymentLinkHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	var req dto.CreatePaymentLinkRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	link, err := h.links.Create(c.Request.Context(), proposalID, userID, service.CreatePaymentLinkInput{
		Provider: strings.ToLower(strings.TrimSpace(req.Provider)),
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, link)
}

// List обрабатывает GET /proposals/:id/payment-links.
func (h *PaymentLinkHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	links, err := h.links.List(c.Request.Context(), proposalID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, links)
}

// Cancel обрабатывает POST /payment-links/:id/cancel.
func (h *PaymentLinkHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	linkID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id платёжной ссылки")
		return
	}

	link, err := h.links.Cancel(c.Request.Context(), linkID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, link)
}
