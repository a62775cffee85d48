package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/models"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// ProposalHandler обслуживает редактор предложений владельца.
type ProposalHandler struct {
	proposals *service.ProposalService
	analytics *service.AnalyticsService
}

// NewProposalHandler создаёт хэндлер.
func NewProposalHandler(proposals *service.ProposalService, analytics *service.AnalyticsService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, analytics: analytics}
}

// Create обрабатывает POST /proposals.
func (h *ProposalHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.CreateProposalRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.proposals.Create(c.Request.Context(), userID, service.CreateProposalInput{
		Title:         req.Title,
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientCompany: req.ClientCompany,
		Content:       req.Content,
		Theme:         req.Theme,
		Currency:      req.Currency,
		ValidUntil:    req.ValidUntil,
		TemplateID:    req.TemplateID,
		BrandKitID:    req.BrandKitID,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.response(proposal))
}

// List обрабатывает GET /proposals.
func (h *ProposalHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	limit, offset := common.GetPagination(c)
	proposals, total, err := h.proposals.List(c.Request.Context(), userID, models.ProposalFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedProposalsResponse{
		Data:       proposals,
		Pagination: dto.NewPagination(total, limit, offset),
	})
}

// Get обрабатывает GET /proposals/:id.
func (h *ProposalHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	proposal, err := h.proposals.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.response(proposal))
}

// Update обрабатывает PUT /proposals/:id.
func (h *ProposalHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	var req dto.UpdateProposalRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.proposals.Update(c.Request.Context(), id, userID, service.UpdateProposalInput{
		Title:         req.Title,
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientCompany: req.ClientCompany,
		Content:       req.Content,
		Theme:         req.Theme,
		Currency:      req.Currency,
		ValidUntil:    req.ValidUntil,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.response(proposal))
}

// Delete обрабатывает DELETE /proposals/:id.
func (h *ProposalHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	if err := h.proposals.Delete(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Duplicate обрабатывает POST /proposals/:id/duplicate.
func (h *ProposalHandler) Duplicate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	proposal, err := h.proposals.Duplicate(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.response(proposal))
}

// UpdateStatus обрабатывает PUT /proposals/:id/status.
func (h *ProposalHandler) UpdateStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	var req dto.UpdateProposalStatusRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.proposals.UpdateStatus(c.Request.Context(), id, userID, req.Status)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.response(proposal))
}

// ApplyBrandKit обрабатывает POST /proposals/:id/brand-kit.
func (h *ProposalHandler) ApplyBrandKit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	var req dto.ApplyBrandKitRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.proposals.ApplyBrandKit(c.Request.Context(), id, userID, req.BrandKitID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.response(proposal))
}

// Send обрабатывает POST /proposals/:id/send.
func (h *ProposalHandler) Send(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	// Тело необязательно.
	var req dto.SendProposalRequest
	if c.Request.ContentLength > 0 {
		if err := common.BindAndValidate(c, &req); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	result, err := h.proposals.Send(c.Request.Context(), id, userID, service.SendProposalInput{Message: req.Message})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Export обрабатывает GET /proposals/:id/export.
func (h *ProposalHandler) Export(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	html, filename, err := h.proposals.Export(c.Request.Context(), id, userID, viewerMeta(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	writeDocument(c, html, filename)
}

// Analytics обрабатывает GET /proposals/:id/analytics.
func (h *ProposalHandler) Analytics(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id предложения")
		return
	}

	summary, err := h.analytics.ProposalSummary(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *ProposalHandler) response(p *models.Proposal) dto.ProposalResponse {
	return dto.ProposalResponse{Proposal: p, Sections: h.proposals.Sections(p)}
}
