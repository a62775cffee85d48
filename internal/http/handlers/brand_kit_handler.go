package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/dto"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// BrandKitHandler CRUD бренд-китов.
type BrandKitHandler struct {
	kits *service.BrandKitService
}

// NewBrandKitHandler создаёт хэндлер.
func NewBrandKitHandler(kits *service.BrandKitService) *BrandKitHandler {
	return &BrandKitHandler{kits: kits}
}

// Create обрабатывает POST /brand-kits.
func (h *BrandKitHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	var req dto.BrandKitRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	kit, err := h.kits.Create(c.Request.Context(), userID, brandKitInput(req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, kit)
}

// List обрабатывает GET /brand-kits.
func (h *BrandKitHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	kits, err := h.kits.List(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, kits)
}

// Get обрабатывает GET /brand-kits/:id.
func (h *BrandKitHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id бренд-кита")
		return
	}

	kit, err := h.kits.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, kit)
}

// Update обрабатывает PUT /brand-kits/:id.
func (h *BrandKitHandler) Update(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id бренд-кита")
		return
	}

	var req dto.BrandKitRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	kit, err := h.kits.Update(c.Request.Context(), id, userID, brandKitInput(req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, kit)
}

// Delete обрабатывает DELETE /brand-kits/:id.
func (h *BrandKitHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный id бренд-кита")
		return
	}

	if err := h.kits.Delete(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func brandKitInput(req dto.BrandKitRequest) service.BrandKitInput {
	return service.BrandKitInput{
		Name:            req.Name,
		PrimaryColor:    req.PrimaryColor,
		SecondaryColor:  req.SecondaryColor,
		AccentColor:     req.AccentColor,
		TextColor:       req.TextColor,
		BackgroundColor: req.BackgroundColor,
		HeadingFont:     req.HeadingFont,
		BodyFont:        req.BodyFont,
		LogoMediaID:     req.LogoMediaID,
		ClearLogo:       req.ClearLogo,
		IsDefault:       req.IsDefault,
	}
}
