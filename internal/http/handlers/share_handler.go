package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// ShareHandler управляет защищёнными ссылками и публичной страницей клиента.
type ShareHandler struct {
	shares *service.ShareService
}

// NewShareHandler создаёт хэндлер.
func NewShareHandler(shares *service.ShareService) *ShareHandler {
	return &ShareHandler{shares: shares}
}

// Create обрабатывает POST /proposals/:id/shares.
func (h *ShareHandler) Create(c *gin.Context) {
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

	var req dto.ShareRequest
	if c.Request.ContentLength > 0 {
		if err := common.BindAndValidate(c, &req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	share, err := h.shares.Create(c.Request.Context(), proposalID, userID, req.TTL())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, share)
}

// List обрабатывает GET /proposals/:id/shares.
func (h *ShareHandler) List(c *gin.Context) {
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

	shares, err := h.shares.List(c.Request.Context(), proposalID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, shares)
}

// Revoke обрабатывает DELETE /shares/:id.
func (h *ShareHandler) Revoke(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	shareID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id ссылки")
		return
	}

	if err := h.shares.Revoke(c.Request.Context(), shareID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Extend обрабатывает POST /shares/:id/extend.
func (h *ShareHandler) Extend(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	shareID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id ссылки")
		return
	}

	var req dto.ShareRequest
	if c.Request.ContentLength > 0 {
		if err := common.BindAndValidate(c, &req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	share, err := h.shares.Extend(c.Request.Context(), shareID, userID, req.TTL())
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, share)
}

// View обрабатывает GET /shared/:token.
func (h *ShareHandler) View(c *gin.Context) {
	view, err := h.shares.PublicView(c.Request.Context(), c.Param("token"), viewerMeta(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// HTML обрабатывает GET /shared/:token/html.
func (h *ShareHandler) HTML(c *gin.Context) {
	html, err := h.shares.RenderHTML(c.Request.Context(), c.Param("token"), viewerMeta(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	writeDocument(c, html, "")
}

// Export обрабатывает GET /shared/:token/export.
func (h *ShareHandler) Export(c *gin.Context) {
	html, filename, err := h.shares.Export(c.Request.Context(), c.Param("token"), viewerMeta(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	writeDocument(c, html, filename)
}

// TrackEvent обрабатывает POST /shared/:token/events.
func (h *ShareHandler) TrackEvent(c *gin.Context) {
	var req dto.TrackEventRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	err := h.shares.TrackEvent(c.Request.Context(), c.Param("token"), service.TrackEventInput{
		EventType:       req.EventType,
		Section:         req.Section,
		DurationSeconds: req.DurationSeconds,
	}, viewerMeta(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusAccepted)
}
