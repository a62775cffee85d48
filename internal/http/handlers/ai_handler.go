package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/ai"
	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// AIHandler помощник по тексту предложений.
type AIHandler struct {
	ai *service.AIService
}

// NewAIHandler создаёт хэндлер.
func NewAIHandler(ai *service.AIService) *AIHandler {
	return &AIHandler{ai: ai}
}

// Generate обрабатывает POST /ai/generate.
func (h *AIHandler) Generate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.AIGenerateRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	text, err := h.ai.Generate(c.Request.Context(), userID, ai.GenerateInput{
		SectionType:   req.SectionType,
		Prompt:        req.Prompt,
		ProposalTitle: req.ProposalTitle,
		ClientName:    req.ClientName,
		Tone:          req.Tone,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AITextResponse{Text: text})
}

// Improve обрабатывает POST /ai/improve.
func (h *AIHandler) Improve(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.AIImproveRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	text, err := h.ai.Improve(c.Request.Context(), userID, req.Text, req.Instruction)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.AITextResponse{Text: text})
}
