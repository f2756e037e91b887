package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-project-tracker/internal/service"
	"github.com/noah-isme/edu-project-tracker/pkg/cache"
	appErrors "github.com/noah-isme/edu-project-tracker/pkg/errors"
	"github.com/noah-isme/edu-project-tracker/pkg/response"
)

// Counter increments a windowed counter and returns the new value.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimit applies a fixed-window limit per client IP. A nil counter or a
// non-positive limit disables it, and counter failures let the request through.
func RateLimit(scope string, counter Counter, limit int, window time.Duration, metrics *service.MetricsService, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}
		key := cache.Key("ratelimit", scope, c.ClientIP())
		count, err := counter.Increment(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}
		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count > int64(limit) {
			metrics.RecordRateLimited(scope)
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
