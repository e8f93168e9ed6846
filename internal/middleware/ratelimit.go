package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ecommerce-transactions/internal/redis"
	"ecommerce-transactions/internal/transport/httpdto"
	"ecommerce-transactions/pkg/logger"
)

type ActivationLimiter interface {
	AllowActivation(ctx context.Context, clientIP string) (*redis.RateLimitResult, error)
}

// ActivationRateLimit caps how many transactions one client IP can start.
// A limiter failure lets the request through.
func ActivationRateLimit(limiter ActivationLimiter, l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		result, err := limiter.AllowActivation(c.Request.Context(), c.ClientIP())
		if err != nil {
			l.Warn(c.Request.Context(), "rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", httpdto.CodeRateLimited))
			return
		}
		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
