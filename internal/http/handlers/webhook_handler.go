package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// WebhookHandler управляет исходящими вебхуками пользователя.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

// NewWebhookHandler создаёт хэндлер.
func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Create обрабатывает POST /webhooks. Секрет возвращается только в этом ответе.
func (h *WebhookHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.WebhookRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	created, err := h.webhooks.Create(c.Request.Context(), userID, webhookInput(req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List обрабатывает GET /webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	hooks, err := h.webhooks.List(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, hooks)
}

// Get обрабатывает GET /webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id вебхука")
		return
	}

	hook, err := h.webhooks.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, hook)
}

// Update обрабатывает PUT /webhooks/:id.
func (h *WebhookHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id вебхука")
		return
	}

	var req dto.WebhookRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	hook, err := h.webhooks.Update(c.Request.Context(), id, userID, webhookInput(req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, hook)
}

// Toggle обрабатывает POST /webhooks/:id/toggle.
func (h *WebhookHandler) Toggle(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id вебхука")
		return
	}

	var req dto.ToggleWebhookRequest
	if c.Request.ContentLength > 0 {
		if err := common.BindAndValidate(c, &req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	hook, err := h.webhooks.Toggle(c.Request.Context(), id, userID, req.IsActive)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, hook)
}

// Delete обрабатывает DELETE /webhooks/:id.
func (h *WebhookHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id вебхука")
		return
	}

	if err := h.webhooks.Delete(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Test обрабатывает POST /webhooks/:id/test.
func (h *WebhookHandler) Test(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id вебхука")
		return
	}

	delivery, err := h.webhooks.Test(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, delivery)
}

func webhookInput(req dto.WebhookRequest) service.WebhookInput {
	return service.WebhookInput{
		Name:     req.Name,
		URL:      req.URL,
		Events:   req.Events,
		IsActive: req.IsActive,
	}
}
