package middleware

import (
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/NomadCrew/feedback-attestation/errors"
	"github.com/NomadCrew/feedback-attestation/logger"
	"github.com/NomadCrew/feedback-attestation/services"
	"github.com/gin-gonic/gin"
)

// SubmitRateLimiter caps attestation submissions per client IP. Each one costs
// the service wallet gas, so the budget is small. Limiter failures let the
// request through.
func SubmitRateLimiter(limiter services.RateLimiterInterface, requestsPerWindow int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("submit:%s", c.ClientIP())

		allowed, retryAfter, err := limiter.CheckLimit(c.Request.Context(), key, requestsPerWindow, window)
		if err != nil {
			logger.GetLogger().Warnw("Rate limit check failed, allowing request", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(requestsPerWindow))
		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(seconds))

			_ = c.Error(apperrors.RateLimitExceeded("Too many submissions. Please try again later.", seconds))
			c.Abort()
			return
		}

		c.Next()
	}
}
