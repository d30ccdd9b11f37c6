package middleware

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"report_worker/pkg/apperr"
	"report_worker/pkg/logger"
	"report_worker/pkg/ratelimit"
)

// Limiter is satisfied by ratelimit.SlidingWindowLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

var _ Limiter = (*ratelimit.SlidingWindowLimiter)(nil)

// RateLimit limits requests per client IP. Limiter errors let the request through.
func RateLimit(l Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, wait, err := l.Allow(c.UserContext(), c.IP())
		if err != nil {
			logger.WithError(err).Warn("rate limiter unavailable")
			return c.Next()
		}
		if !ok {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return apperr.RateLimited(wait)
		}
		return c.Next()
	}
}
