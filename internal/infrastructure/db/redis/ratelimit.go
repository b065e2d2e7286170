package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow increments the counter and starts its window on the first hit,
// so the window stays anchored there. Returns {count, pttl}.
var incrWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RateLimitResult describes the state of one window after a hit.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// FixedWindowLimiter counts hits per key in fixed windows shared by every
// instance through Redis. Key format: <prefix>:<key>
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewFixedWindowLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *FixedWindowLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &FixedWindowLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow records a hit for key. On Redis errors the hit is allowed and the
// error returned so callers can log it.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	vals, err := incrWindow.Run(ctx, l.client, []string{redisKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(vals) != 2 {
		if err == nil {
			err = fmt.Errorf("unexpected reply length %d", len(vals))
		}
		return RateLimitResult{Allowed: true, Limit: l.limit, Remaining: l.limit}, fmt.Errorf("rate limit: %w", err)
	}

	count := int(vals[0])
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetIn := time.Duration(vals[1]) * time.Millisecond
	if resetIn <= 0 {
		resetIn = l.window
	}

	return RateLimitResult{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}, nil
}
