package oracle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGate(cfg GateConfig) *Gate {
	return NewGate(cfg, discardLogger())
}

func okRefresh(calls *atomic.Int32, delay time.Duration) RefreshFunc {
	return func(ctx context.Context) (domain.RateUpdate, error) {
		calls.Add(1)
		time.Sleep(delay)
		return domain.RateUpdate{TxHash: "0xabc", Rate: decimal.NewFromInt(50_000_000)}, nil
	}
}

func TestGate_FreshGateIsDue(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})

	assert.Equal(t, time.Unix(0, 0), g.LastRefresh())
	assert.True(t, g.ShouldRefresh(time.Now()))
	assert.Equal(t, DefaultUpdateInterval, g.Interval())
}

func TestGate_IntervalBoundary(t *testing.T) {
	t.Parallel()

	// Arrange
	g := newTestGate(GateConfig{UpdateInterval: 5 * time.Minute})
	t0 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g.MarkRefreshed(t0)

	// Act / Assert: exactly one interval later is still fresh.
	assert.False(t, g.ShouldRefresh(t0.Add(5*time.Minute)))
	assert.True(t, g.ShouldRefresh(t0.Add(5*time.Minute+time.Millisecond)))
	assert.False(t, g.ShouldRefresh(t0.Add(time.Minute)))
}

func TestGate_MarkRefreshedNeverMovesBackwards(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})
	later := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	g.MarkRefreshed(later)
	g.MarkRefreshed(earlier)

	assert.True(t, g.LastRefresh().Equal(later))
}

func TestGate_RefreshIfDue_NotDue(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})
	g.MarkRefreshed(time.Now())
	var calls atomic.Int32

	_, ok, err := g.RefreshIfDue(context.Background(), okRefresh(&calls, 0))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, calls.Load())
}

func TestGate_RefreshIfDue_MarksOnSuccess(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})
	var calls atomic.Int32
	before := time.Now()

	update, ok, err := g.RefreshIfDue(context.Background(), okRefresh(&calls, 0))

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "0xabc", update.TxHash)
	assert.False(t, g.LastRefresh().Before(before))
	assert.False(t, g.ShouldRefresh(time.Now()))
}

func TestGate_RefreshIfDue_FailureLeavesGateDue(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})
	boom := errors.New("feed down")

	_, ok, err := g.RefreshIfDue(context.Background(), func(context.Context) (domain.RateUpdate, error) {
		return domain.RateUpdate{}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)
	assert.Equal(t, time.Unix(0, 0), g.LastRefresh())
	assert.True(t, g.ShouldRefresh(time.Now()))
}

func TestGate_ConcurrentCallersPublishOnce(t *testing.T) {
	t.Parallel()

	// Arrange
	g := newTestGate(GateConfig{})
	var calls atomic.Int32
	const callers = 64

	// Act
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, _, err := g.RefreshIfDue(context.Background(), okRefresh(&calls, 20*time.Millisecond))
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	// Assert
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGate_ForcedAndCoalescedNeverOverlap(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{UpdateInterval: time.Nanosecond})
	var active, maxActive atomic.Int32
	fn := func(context.Context) (domain.RateUpdate, error) {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return domain.RateUpdate{}, nil
	}

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, err := g.Refresh(context.Background(), fn)
				assert.NoError(t, err)
				return
			}
			_, _, err := g.RefreshIfDue(context.Background(), fn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestGate_RefreshIgnoresStaleness(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})
	g.MarkRefreshed(time.Now())
	var calls atomic.Int32

	update, err := g.Refresh(context.Background(), okRefresh(&calls, 0))

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "0xabc", update.TxHash)
}

func TestGate_RefreshSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	g := newTestGate(GateConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sawErr := make(chan error, 1)
	_, _, _ = g.RefreshIfDue(ctx, func(rctx context.Context) (domain.RateUpdate, error) {
		sawErr <- rctx.Err()
		return domain.RateUpdate{}, nil
	})

	select {
	case err := <-sawErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresh did not run after the caller went away")
	}
	assert.Eventually(t, func() bool { return !g.ShouldRefresh(time.Now()) }, time.Second, 5*time.Millisecond)
}

func TestGate_QueuedCallerHonoursItsDeadline(t *testing.T) {
	t.Parallel()

	// Arrange: a forced refresh runs until its whole budget is spent.
	budget := 400 * time.Millisecond
	g := newTestGate(GateConfig{RefreshTimeout: budget})
	started := make(chan struct{})
	forced := make(chan error, 1)
	go func() {
		_, err := g.Refresh(context.Background(), func(ctx context.Context) (domain.RateUpdate, error) {
			close(started)
			<-ctx.Done()
			return domain.RateUpdate{}, ctx.Err()
		})
		forced <- err
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var calls atomic.Int32

	// Act
	begin := time.Now()
	_, ok, err := g.RefreshIfDue(ctx, okRefresh(&calls, 0))
	took := time.Since(begin)

	// Assert: the caller leaves at its own deadline, not the refresh's.
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ok)
	assert.Less(t, took, budget/2)
	assert.ErrorIs(t, <-forced, context.DeadlineExceeded)
}

func TestGate_QueuedRefreshSharesOneBudget(t *testing.T) {
	t.Parallel()

	// Arrange: the slot is held for longer than the second refresh's budget.
	budget := 100 * time.Millisecond
	g := newTestGate(GateConfig{RefreshTimeout: budget})
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		_, _ = g.Refresh(context.Background(), func(context.Context) (domain.RateUpdate, error) {
			close(started)
			<-release
			return domain.RateUpdate{}, nil
		})
	}()
	<-started
	var calls atomic.Int32

	// Act: no caller deadline, only the refresh budget.
	begin := time.Now()
	_, err := g.Refresh(context.Background(), okRefresh(&calls, 0))
	took := time.Since(begin)

	// Assert: waiting for the slot spent the budget; fn never ran.
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, calls.Load())
	assert.Less(t, took, 5*budget)
}

type stubLocker struct {
	err      error
	acquired atomic.Int32
	released atomic.Int32
}

func (s *stubLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	if s.err != nil {
		return nil, s.err
	}
	s.acquired.Add(1)
	return func() { s.released.Add(1) }, nil
}

func TestGate_DistributedLock(t *testing.T) {
	t.Parallel()

	t.Run("held elsewhere", func(t *testing.T) {
		t.Parallel()

		locker := &stubLocker{err: domain.ErrLockHeld}
		g := newTestGate(GateConfig{Locker: locker})
		var calls atomic.Int32

		_, ok, err := g.RefreshIfDue(context.Background(), okRefresh(&calls, 0))
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = g.Refresh(context.Background(), okRefresh(&calls, 0))
		assert.ErrorIs(t, err, domain.ErrLockHeld)
		assert.Zero(t, calls.Load())
	})

	t.Run("acquired and released", func(t *testing.T) {
		t.Parallel()

		locker := &stubLocker{}
		g := newTestGate(GateConfig{Locker: locker})
		var calls atomic.Int32

		_, ok, err := g.RefreshIfDue(context.Background(), okRefresh(&calls, 0))

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int32(1), locker.acquired.Load())
		assert.Equal(t, int32(1), locker.released.Load())
	})

	t.Run("redis failure", func(t *testing.T) {
		t.Parallel()

		locker := &stubLocker{err: errors.New("redis: connection refused")}
		g := newTestGate(GateConfig{Locker: locker})
		var calls atomic.Int32

		_, _, err := g.RefreshIfDue(context.Background(), okRefresh(&calls, 0))

		require.Error(t, err)
		assert.Zero(t, calls.Load())
	})
}
