package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/redis/go-redis/v9"
)

// RateLimiter enforces fixed-window request counters in Redis. The checkout
// handlers call Allow directly; the ops server mounts the echo middleware.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// ErrRateLimited is returned when a key exceeded its window budget.
var ErrRateLimited = fmt.Errorf("rate limit exceeded")

// Allow counts one request against the key and errors once the window
// budget is spent.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) error {
	counterKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := r.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		// Redis being down must not block checkouts.
		return nil
	}
	if count == 1 {
		r.redis.Expire(ctx, counterKey, window)
	}
	if count > limit {
		return ErrRateLimited
	}
	return nil
}

// OpsRateLimit protects the ops endpoints, keyed by client IP.
func (r *RateLimiter) OpsRateLimit(limit int64, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := fmt.Sprintf("ops:%s", c.RealIP())
			if err := r.Allow(c.Request().Context(), key, limit, window); err != nil {
				return c.JSON(429, map[string]string{
					"error": "Too many requests",
				})
			}
			return next(c)
		}
	}
}

// AntiBotMiddleware rejects obvious scrapers from the ops endpoints.
func (r *RateLimiter) AntiBotMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userAgent := c.Request().Header.Get("User-Agent")
			if r.isSuspiciousUserAgent(userAgent) {
				return c.JSON(403, map[string]string{
					"error": "Access denied",
				})
			}
			return next(c)
		}
	}
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
