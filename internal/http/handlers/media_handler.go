package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// MediaHandler управляет загрузкой и выдачей медиа-файлов.
type MediaHandler struct {
	media    *service.MediaService
	maxBytes int64
}

// NewMediaHandler создаёт новый хэндлер.
func NewMediaHandler(media *service.MediaService, maxBytes int64) *MediaHandler {
	return &MediaHandler{media: media, maxBytes: maxBytes}
}

// Upload обрабатывает POST /media (multipart, поле file).
func (h *MediaHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}
	if h.maxBytes > 0 && file.Size > h.maxBytes {
		common.RespondAppError(c, apperror.ErrFileTooLarge)
		return
	}

	src, err := file.Open()
	if err != nil {
		common.RespondAppError(c, apperror.Internal(err))
		return
	}
	defer src.Close()

	private, _ := strconv.ParseBool(c.PostForm("private"))
	media, err := h.media.Upload(c.Request.Context(), userID, service.UploadInput{
		Filename: file.Filename,
		Body:     src,
		Private:  private,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, media)
}

// List обрабатывает GET /media.
func (h *MediaHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	limit, offset := common.GetPagination(c)
	files, err := h.media.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, files)
}

// Get обрабатывает GET /media/:id.
func (h *MediaHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор")
		return
	}

	media, err := h.media.Get(c.Request.Context(), id, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, media)
}

// File обрабатывает GET /media/:id/file. Публичные файлы доступны всем,
// приватные только владельцу.
func (h *MediaHandler) File(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор")
		return
	}

	media, body, err := h.media.Open(c.Request.Context(), id, common.OptionalUserID(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	defer body.Close()

	cacheControl := "public, max-age=86400"
	if !media.IsPublic {
		cacheControl = "private, max-age=300"
	}
	c.Header("Cache-Control", cacheControl)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Type", media.FileType)
	c.Header("Content-Length", strconv.FormatInt(media.FileSize, 10))
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, body); err != nil {
		logger.Log.WithField("media_id", id).WithError(err).Warn("media: обрыв при отдаче файла")
	}
}

// Delete обрабатывает DELETE /media/:id.
func (h *MediaHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "некорректный идентификатор")
		return
	}

	if err := h.media.Delete(c.Request.Context(), id, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
