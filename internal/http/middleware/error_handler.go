package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/proposal-studio/internal/logger"
	"github.com/ignatzorin/proposal-studio/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки, положенные хэндлерами в c.Errors.
// Ошибки логируются, клиент получает сообщение AppError или маскированную 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"status": c.Writer.Status(),
		}).WithError(err).Error("http: ошибка запроса")

		// Ответ уже отправлен хэндлером.
		if c.Writer.Written() {
			return
		}

		if appErr, ok := apperror.As(err); ok {
			c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message, "code": appErr.Code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера", "code": apperror.ErrCodeInternal})
	}
}

// Recovery превращает панику в 500 и пишет её в лог.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
			"panic":  recovered,
		}).Error("http: паника в обработчике")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера", "code": apperror.ErrCodeInternal})
	})
}
