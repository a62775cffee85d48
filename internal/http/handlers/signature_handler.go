package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// SignatureHandler управляет подписантами и приёмом подписей клиента.
type SignatureHandler struct {
	signatures *service.SignatureService
}

// NewSignatureHandler создаёт хэндлер.
func NewSignatureHandler(signatures *service.SignatureService) *SignatureHandler {
	return &SignatureHandler{signatures: signatures}
}

// AddSigner обрабатывает POST /proposals/:id/signatures.
func (h *SignatureHandler) AddSigner(c *gin.Context) {
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

	var req dto.AddSignerRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	signer, err := h.signatures.AddSigner(c.Request.Context(), proposalID, userID, service.SignerInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, signer)
}

// ListSigners обрабатывает GET /proposals/:id/signatures.
func (h *SignatureHandler) ListSigners(c *gin.Context) {
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

	signers, err := h.signatures.ListSigners(c.Request.Context(), proposalID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, signers)
}

// RemoveSigner обрабатывает DELETE /proposals/:id/signatures/:signerId.
func (h *SignatureHandler) RemoveSigner(c *gin.Context) {
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
	signerID, err := common.ParseUUIDParam(c, "signerId")
	if err != nil {
		common.RespondBadRequest(c, "неверный id подписанта")
		return
	}

	if err := h.signatures.RemoveSigner(c.Request.Context(), proposalID, signerID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// OwnerImage обрабатывает GET /proposals/:id/signatures/:signerId/image.
func (h *SignatureHandler) OwnerImage(c *gin.Context) {
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
	signerID, err := common.ParseUUIDParam(c, "signerId")
	if err != nil {
		common.RespondBadRequest(c, "неверный id подписанта")
		return
	}

	data, mimeType, err := h.signatures.OwnerSignatureImage(c.Request.Context(), proposalID, signerID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, mimeType, data)
}

// Sign обрабатывает POST /shared/:token/signatures/:signerId.
func (h *SignatureHandler) Sign(c *gin.Context) {
	signerID, err := common.ParseUUIDParam(c, "signerId")
	if err != nil {
		common.RespondBadRequest(c, "неверный id подписанта")
		return
	}

	var req dto.SignRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.signatures.Sign(c.Request.Context(), c.Param("token"), signerID, service.SignInput{
		SignatureImage: req.SignatureImage,
		TypedName:      req.TypedName,
	}, viewerMeta(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SharedImage обрабатывает GET /shared/:token/signatures/:signerId/image.
func (h *SignatureHandler) SharedImage(c *gin.Context) {
	signerID, err := common.ParseUUIDParam(c, "signerId")
	if err != nil {
		common.RespondBadRequest(c, "неверный id подписанта")
		return
	}

	data, mimeType, err := h.signatures.SharedSignatureImage(c.Request.Context(), c.Param("token"), signerID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, mimeType, data)
}
