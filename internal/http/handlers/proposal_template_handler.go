package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// ProposalTemplateHandler обрабатывает запросы для шаблонов предложений.
type ProposalTemplateHandler struct {
	service *service.ProposalTemplateService
}

// NewProposalTemplateHandler создаёт новый handler.
func NewProposalTemplateHandler(s *service.ProposalTemplateService) *ProposalTemplateHandler {
	return &ProposalTemplateHandler{service: s}
}

// ListTemplates обрабатывает GET /templates?category=...
func (h *ProposalTemplateHandler) ListTemplates(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	templates, err := h.service.List(c.Request.Context(), userID, c.Query("category"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, templates)
}

// GetTemplate обрабатывает GET /templates/:id.
func (h *ProposalTemplateHandler) GetTemplate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id шаблона")
		return
	}

	template, err := h.service.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, template)
}

// CreateTemplate обрабатывает POST /templates.
func (h *ProposalTemplateHandler) CreateTemplate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.CreateTemplateRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	template, err := h.service.Create(c.Request.Context(), userID, service.CreateTemplateInput{
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Content:        req.Content,
		Theme:          req.Theme,
		FromProposalID: req.FromProposalID,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, template)
}

// DeleteTemplate обрабатывает DELETE /templates/:id.
func (h *ProposalTemplateHandler) DeleteTemplate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id шаблона")
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
