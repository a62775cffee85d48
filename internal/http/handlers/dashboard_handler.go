package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/http/handlers/common"
	"github.com/ignatzorin/proposal-studio/internal/service"
)

// DashboardHandler агрегированная статистика для главной страницы.
type DashboardHandler struct {
	analytics *service.AnalyticsService
}

// NewDashboardHandler создаёт хэндлер.
func NewDashboardHandler(analytics *service.AnalyticsService) *DashboardHandler {
	return &DashboardHandler{analytics: analytics}
}

// GetDashboardData обрабатывает GET /dashboard. Результат кэшируется на минуту.
func (h *DashboardHandler) GetDashboardData(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, "")
		return
	}

	dashboard, err := h.analytics.Dashboard(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dashboard)
}
