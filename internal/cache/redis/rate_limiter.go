package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// Decision is the outcome of one rate limit check.
type Decision = domain.RateDecision

// RateLimiter implements domain.RateLimiter with a sliding window kept in a
// sorted set and updated atomically by a Lua script.
type RateLimiter struct {
	client        *Client
	slidingWindow *redis.Script
	now           func() time.Time
}

// NewRateLimiter creates a RateLimiter backed by c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		client:        c,
		slidingWindow: redis.NewScript(slidingWindowLua),
		now:           time.Now,
	}
}

// Check counts one request against key and reports whether it fits within
// limit requests per window.
func (rl *RateLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	res, err := rl.slidingWindow.Run(ctx, rl.client.rdb,
		[]string{rl.client.Key("ratelimit", key)},
		rl.now().UnixMicro(),
		window.Microseconds(),
		limit,
		uuid.NewString(),
		max(window.Milliseconds(), 1),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 3 {
		return Decision{}, fmt.Errorf("redis: rate limit %s: unexpected result length %d", key, len(res))
	}
	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Microsecond,
	}, nil
}

// Allow implements domain.RateLimiter.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	d, err := rl.Check(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	return d.Allowed, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
