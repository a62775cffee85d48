package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/proposal-studio/internal/logger"
)

// KeyFunc выбирает ключ, по которому считаются запросы.
type KeyFunc func(c *gin.Context) string

// ByIP считает запросы по IP клиента.
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUserOrIP считает запросы по пользователю, а для анонимов по IP.
func ByUserOrIP(c *gin.Context) string {
	if raw, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := raw.(interface{ String() string }); ok {
			return "user:" + id.String()
		}
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware создаёт middleware для ограничения количества запросов.
// По умолчанию: 10 запросов в минуту с одного IP.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	return KeyedRateLimit(limit, period, ByIP)
}

// KeyedRateLimit ограничивает запросы по произвольному ключу.
// У каждого вызова свой memory store, поэтому группы маршрутов считаются раздельно.
func KeyedRateLimit(limit int64, period time.Duration, key KeyFunc) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	instance := limiter.New(memory.NewStore(), rate)

	return func(c *gin.Context) {
		context, err := instance.Get(c, key(c))
		if err != nil {
			logger.Log.WithError(err).Error("rate limit: ошибка хранилища лимитов")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(context.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(context.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(context.Reset, 10))

		if context.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "слишком много запросов, попробуйте позже",
				"code":  "RATE_LIMITED",
			})
			return
		}

		c.Next()
	}
}
