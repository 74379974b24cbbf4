package middleware

import (
	"strconv"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/Payphone-Digital/adminauth/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit caps requests per client address on the shared limiter. Limiter
// failures let the request through.
func RateLimit(limiter ratelimit.Limiter, maxRequest int, duration time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ip := c.ClientIP()
		key := constants.CacheKeyAPI + ip

		tooMany, err := limiter.TooManyAttempts(ctx, key, maxRequest)
		if err != nil {
			logger.WarnWithContext(ctx, "Rate limiter unavailable").
				String("client_ip", ip).
				Err(err).
				Log()
			c.Next()
			return
		}

		c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(maxRequest))

		if tooMany {
			wait, _ := limiter.AvailableIn(ctx, key)
			logger.WarnWithContext(ctx, "Rate limit exceeded").
				String("client_ip", ip).
				String("method", c.Request.Method).
				String("path", c.Request.URL.Path).
				Int("max_requests", maxRequest).
				Duration(duration).
				Log()
			c.Header(constants.HeaderRateLimitRemaining, "0")
			AbortWithError(c, apperrors.WithRetryAfter(apperrors.ErrThrottled, ratelimit.RetrySeconds(wait)))
			return
		}

		n, err := limiter.Hit(ctx, key, duration)
		if err == nil {
			remaining := maxRequest - int(n)
			if remaining < 0 {
				remaining = 0
			}
			c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(remaining))
		}

		c.Next()
	}
}
