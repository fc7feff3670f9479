package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"tradepost/internal/infra/ratelimit"
)

// RateLimit admits requests against a per-client quota and advertises the
// window state in X-RateLimit headers. Rejections carry Retry-After.
func RateLimit(limiter *ratelimit.Limiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.NormalizeKey(c.ClientIP()) + ":" + c.FullPath()
		res := limiter.Check(c.Request.Context(), key, limit, window)

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfterSeconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
