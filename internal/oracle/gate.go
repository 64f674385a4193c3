// Package oracle decides when the on-chain exchange rate must be refreshed
// and serializes the refreshes themselves.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

const (
	// DefaultUpdateInterval is the staleness window of the published rate.
	DefaultUpdateInterval = 5 * time.Minute

	flightKey = "oracle-refresh"
	lockKey   = "oracle:refresh"
)

// RefreshFunc fetches a quote and publishes it on-chain.
type RefreshFunc func(ctx context.Context) (domain.RateUpdate, error)

// GateConfig configures a Gate.
type GateConfig struct {
	UpdateInterval time.Duration
	// RefreshTimeout bounds one refresh, including the wait for the publish
	// slot (wait + fetch + publish + confirmation).
	RefreshTimeout time.Duration
	// Locker, when set, makes refreshes exclusive across processes.
	Locker  domain.LockManager
	LockTTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Gate tracks when the oracle was last refreshed. lastRefresh starts at the
// Unix epoch and only moves forward.
type Gate struct {
	interval    time.Duration
	timeout     time.Duration
	locker      domain.LockManager
	lockTTL     time.Duration
	now         func() time.Time
	lastRefresh atomic.Int64 // unix nanoseconds

	flight  singleflight.Group
	publish *semaphore.Weighted
	logger  *slog.Logger
}

// NewGate creates a Gate whose last refresh is epoch zero, so the first
// check always reports a refresh as due.
func NewGate(cfg GateConfig, logger *slog.Logger) *Gate {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 3 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.RefreshTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Gate{
		interval: cfg.UpdateInterval,
		timeout:  cfg.RefreshTimeout,
		locker:   cfg.Locker,
		lockTTL:  cfg.LockTTL,
		now:      cfg.Now,
		publish:  semaphore.NewWeighted(1),
		logger:   logger.With(slog.String("component", "oracle_gate")),
	}
	g.lastRefresh.Store(time.Unix(0, 0).UnixNano())
	return g
}

// Interval returns the configured staleness window.
func (g *Gate) Interval() time.Duration {
	return g.interval
}

// ShouldRefresh reports whether now is more than one interval past the last
// refresh.
func (g *Gate) ShouldRefresh(now time.Time) bool {
	return now.Sub(g.LastRefresh()) > g.interval
}

// MarkRefreshed records a successful refresh at now. Older timestamps are
// ignored.
func (g *Gate) MarkRefreshed(now time.Time) {
	ts := now.UnixNano()
	for {
		cur := g.lastRefresh.Load()
		if ts <= cur {
			return
		}
		if g.lastRefresh.CompareAndSwap(cur, ts) {
			return
		}
	}
}

// LastRefresh returns the time of the last successful refresh.
func (g *Gate) LastRefresh() time.Time {
	return time.Unix(0, g.lastRefresh.Load())
}

// RefreshIfDue runs fn when the rate is stale. Concurrent callers share one
// in-flight refresh and all receive its result. ok is false when no refresh
// was needed or another process holds the refresh lock.
//
// The refresh itself is detached from ctx and bounded by RefreshTimeout; the
// caller stops waiting as soon as ctx is done.
func (g *Gate) RefreshIfDue(ctx context.Context, fn RefreshFunc) (update domain.RateUpdate, ok bool, err error) {
	if !g.ShouldRefresh(g.now()) {
		return domain.RateUpdate{}, false, nil
	}

	ch := g.flight.DoChan(flightKey, func() (any, error) {
		return g.run(ctx, fn, false)
	})
	select {
	case res := <-ch:
		if res.Shared {
			g.logger.DebugContext(ctx, "joined in-flight oracle refresh")
		}
		if res.Err != nil {
			return domain.RateUpdate{}, false, res.Err
		}
		fr := res.Val.(flightResult)
		return fr.update, fr.ok, nil
	case <-ctx.Done():
		return domain.RateUpdate{}, false, fmt.Errorf("oracle: wait for refresh: %w", ctx.Err())
	}
}

// Refresh runs fn unconditionally, still serialized with every other refresh.
// Like RefreshIfDue it stops waiting when ctx is done while the refresh runs
// on under its own budget.
func (g *Gate) Refresh(ctx context.Context, fn RefreshFunc) (domain.RateUpdate, error) {
	type outcome struct {
		res flightResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := g.run(ctx, fn, true)
		ch <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-ctx.Done():
		return domain.RateUpdate{}, fmt.Errorf("oracle: wait for refresh: %w", ctx.Err())
	}
	if out.err != nil {
		return domain.RateUpdate{}, out.err
	}
	if !out.res.ok {
		return domain.RateUpdate{}, fmt.Errorf("oracle: refresh in progress on another instance: %w", domain.ErrLockHeld)
	}
	return out.res.update, nil
}

type flightResult struct {
	update domain.RateUpdate
	ok     bool
}

// run waits for the publish slot and then refreshes. The budget starts
// before the wait, so a queue of refreshes cannot stretch past it.
func (g *Gate) run(ctx context.Context, fn RefreshFunc, force bool) (flightResult, error) {
	// Waiters share this refresh, so it must not die with the first caller.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	if err := g.publish.Acquire(rctx, 1); err != nil {
		return flightResult{}, fmt.Errorf("oracle: wait for publish slot: %w", err)
	}
	defer g.publish.Release(1)

	// A flight that completed while we waited may already have refreshed.
	if !force && !g.ShouldRefresh(g.now()) {
		return flightResult{}, nil
	}

	if g.locker != nil {
		unlock, err := g.locker.Acquire(rctx, lockKey, g.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			g.logger.InfoContext(ctx, "oracle refresh held by another instance")
			return flightResult{}, nil
		}
		if err != nil {
			return flightResult{}, fmt.Errorf("oracle: acquire refresh lock: %w", err)
		}
		defer unlock()
	}

	started := g.now()
	update, err := fn(rctx)
	if err != nil {
		return flightResult{}, err
	}
	g.MarkRefreshed(g.now())

	g.logger.InfoContext(ctx, "oracle rate refreshed",
		slog.String("tx_hash", update.TxHash),
		slog.String("rate", update.Rate.String()),
		slog.Duration("took", g.now().Sub(started)),
	)
	return flightResult{update: update, ok: true}, nil
}
