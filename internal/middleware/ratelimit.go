package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"realblog/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// rateLimitBypassed is true in environments where throttling only gets in the way.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "development", "test":
		return true
	}
	return false
}

// CheckRateLimit counts a hit for (resource, id) in a fixed Redis window.
// Returns true if allowed, false if limit exceeded.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	if rateLimitBypassed() {
		return true, nil
	}
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// localLimiters backs RateLimit when Redis is not configured. Limits are per process.
type localLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newLocalLimiters(limit int, window time.Duration) *localLimiters {
	return &localLimiters{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

func (l *localLimiters) allow(key string) bool {
	if rateLimitBypassed() {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated user when known, otherwise by remote IP.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name)
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy for Redis errors.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name string) fiber.Handler {
	local := newLocalLimiters(limit, window)

	return func(c *fiber.Ctx) error {
		id := "ip:" + c.IP()
		if uid := CurrentUserID(c); uid != 0 {
			id = fmt.Sprintf("user:%d", uid)
		}

		var allowed bool
		if rdb == nil {
			allowed = local.allow(name + ":" + id)
		} else {
			var err error
			allowed, err = CheckRateLimit(c.UserContext(), rdb, name, id, limit, window)
			if err != nil {
				if policy == FailClosed {
					Logger.WarnContext(c.UserContext(), "rate limit store unavailable",
						slog.String("resource", name), slog.String("error", err.Error()))
					return models.RespondWithError(c, fiber.StatusServiceUnavailable,
						models.NewExternalError("rate limiter", err))
				}
				allowed = local.allow(name + ":" + id)
			}
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
		}
		return c.Next()
	}
}
