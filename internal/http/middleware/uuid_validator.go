package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UUIDValidator проверяет, что перечисленные параметры пути являются валидными UUID.
// Использование: group.GET("/proposals/:id/signers/:signerId", UUIDValidator("id", "signerId"), h.Get)
func UUIDValidator(paramNames ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range paramNames {
			raw := c.Param(name)
			if raw == "" {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "параметр " + name + " обязателен",
					"code":  "VALIDATION_ERROR",
				})
				return
			}
			if _, err := uuid.Parse(raw); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"error": "параметр " + name + " должен быть валидным UUID",
					"code":  "VALIDATION_ERROR",
				})
				return
			}
		}
		c.Next()
	}
}
