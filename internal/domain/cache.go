package domain

import (
	"context"
	"time"
)

// RateDecision is the outcome of one rate limit check.
type RateDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (RateDecision, error)
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides fire-and-forget pub/sub for settlement events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Event channels published on the SignalBus.
const (
	ChannelDonations   = "donations"
	ChannelWithdrawals = "withdrawals"
	ChannelOracle      = "oracle"
)
