package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/99minutos/messaging-system/internal/api/metrics"
	"github.com/99minutos/messaging-system/internal/core/domain"
	redisdb "github.com/99minutos/messaging-system/internal/infrastructure/db/redis"
)

// WindowLimiter is the shared limiter, usually *redisdb.FixedWindowLimiter.
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (redisdb.RateLimitResult, error)
}

// RateLimitConfig configures RateLimit. Limit requests per Window are allowed
// for every client IP and route.
type RateLimitConfig struct {
	Shared WindowLimiter
	Limit  int
	Window time.Duration
	Log    zerolog.Logger
}

// RateLimit rejects requests over the limit with domain.ErrRateLimited.
// While the shared limiter is unreachable each instance falls back to its own
// in-memory token buckets.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	local := newLocalLimiter(cfg.Limit, cfg.Window)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP() + "|" + c.Path()
			h := c.Response().Header()

			allowed, backend := false, "local"
			if cfg.Shared != nil {
				res, err := cfg.Shared.Allow(c.Request().Context(), key)
				if err == nil {
					allowed, backend = res.Allowed, "redis"
					h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
					h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
					h.Set("X-RateLimit-Reset", strconv.Itoa(seconds(res.ResetIn)))
					if !allowed {
						h.Set("Retry-After", strconv.Itoa(seconds(res.ResetIn)))
					}
				} else {
					cfg.Log.Warn().Err(err).Str("key", key).Msg("shared rate limiter unavailable, using local limiter")
				}
			}

			if backend == "local" {
				var retryIn time.Duration
				allowed, retryIn = local.allow(key)
				if !allowed {
					h.Set("Retry-After", strconv.Itoa(seconds(retryIn)))
				}
			}

			if !allowed {
				metrics.RateLimitedTotal.WithLabelValues(backend).Inc()
				return domain.ErrRateLimited
			}
			return next(c)
		}
	}
}

func seconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// localLimiter keeps one token bucket per key. Idle buckets are swept on
// access instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	m         map[string]*keyLimiter
	r         rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiter(limit int, window time.Duration) *localLimiter {
	if limit < 1 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &localLimiter{
		m:     make(map[string]*keyLimiter),
		r:     rate.Every(window / time.Duration(limit)),
		burst: limit,
		ttl:   2 * window,
		now:   time.Now,
	}
}

func (l *localLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.ttl {
		for k, v := range l.m {
			if now.Sub(v.seen) > l.ttl {
				delete(l.m, k)
			}
		}
		l.lastSweep = now
	}

	kl, ok := l.m[key]
	if !ok {
		kl = &keyLimiter{lim: rate.NewLimiter(l.r, l.burst)}
		l.m[key] = kl
	}
	kl.seen = now

	res := kl.lim.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}
