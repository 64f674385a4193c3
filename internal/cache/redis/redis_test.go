package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/web3dona/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr(), KeyPrefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestNew_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := New(ctx, ClientConfig{Addr: "127.0.0.1:1", MaxRetries: -1})

	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)

	assert.Equal(t, "test:lock:oracle:refresh", c.Key("lock", "oracle:refresh"))
}

func TestLockManager(t *testing.T) {
	t.Parallel()

	// Arrange
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	// Act: first holder wins, second is refused.
	unlock, err := lm.Acquire(ctx, "oracle:refresh", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "oracle:refresh", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	// Assert: release makes it available again and is idempotent.
	unlock()
	unlock()
	assert.False(t, mr.Exists("test:lock:oracle:refresh"))

	unlock2, err := lm.Acquire(ctx, "oracle:refresh", time.Minute)
	require.NoError(t, err)
	unlock2()
}

func TestLockManager_ExpiredHolderCannotReleaseNewLock(t *testing.T) {
	t.Parallel()

	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	stale, err := lm.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := lm.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("test:lock:k"))
	fresh()
	assert.False(t, mr.Exists("test:lock:k"))
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	t.Parallel()

	// Arrange
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	// Act / Assert: three requests fit, the fourth is refused.
	for i := range 3 {
		d, err := rl.Check(ctx, "donate:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
		now = now.Add(time.Second)
	}

	d, err := rl.Check(ctx, "donate:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 57*time.Second, d.RetryAfter)

	// Another key has its own window.
	ok, err := rl.Allow(ctx, "donate:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Once the first request leaves the window there is room again.
	now = now.Add(58 * time.Second)
	ok, err = rl.Allow(ctx, "donate:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	bus := NewSignalBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, domain.ChannelDonations)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, domain.ChannelWithdrawals, []byte(`{"type":"other"}`)))
	require.NoError(t, bus.Publish(ctx, domain.ChannelDonations, []byte(`{"type":"donate_success"}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"type":"donate_success"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, 2*time.Second, 10*time.Millisecond)
}
