package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestWindowAdmitsBurstThenRejects(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Now: clock.Now})

	for i := 0; i < 3; i++ {
		require.NoError(t, w.CheckAndRecord("u1"), "call %d", i+1)
		clock.Advance(3 * time.Second)
	}
	assert.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)
	assert.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)
}

func TestWindowRejectionDoesNotConsumeSlot(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Now: clock.Now})

	require.NoError(t, w.CheckAndRecord("u1"))
	clock.Advance(10 * time.Second)
	require.NoError(t, w.CheckAndRecord("u1"))
	require.NoError(t, w.CheckAndRecord("u1"))

	clock.Advance(20 * time.Second)
	require.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)

	// First call leaves the window 60s after it was made; the rejected call
	// at t=30s must not hold a slot.
	clock.Advance(30 * time.Second)
	require.NoError(t, w.CheckAndRecord("u1"))
	require.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)
}

func TestWindowResetsAfterInactivity(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Now: clock.Now})

	for i := 0; i < 3; i++ {
		require.NoError(t, w.CheckAndRecord("u1"))
	}
	require.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)

	clock.Advance(59999 * time.Millisecond)
	require.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)

	clock.Advance(time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.CheckAndRecord("u1"))
	}
}

func TestWindowKeysAreIndependent(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Now: clock.Now})

	for i := 0; i < 3; i++ {
		require.NoError(t, w.CheckAndRecord("u1"))
	}
	require.ErrorIs(t, w.CheckAndRecord("u1"), ErrLimitExceeded)
	require.NoError(t, w.CheckAndRecord("u2"))
}

func TestWindowRetryAfter(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Now: clock.Now})

	assert.Zero(t, w.RetryAfter("u1"))
	require.NoError(t, w.CheckAndRecord("u1"))
	clock.Advance(15 * time.Second)
	require.NoError(t, w.CheckAndRecord("u1"))
	require.NoError(t, w.CheckAndRecord("u1"))

	assert.Equal(t, 45*time.Second, w.RetryAfter("u1"))
}

func TestWindowConcurrentCallsAdmitExactlyLimit(t *testing.T) {
	w := NewWindow(Options{})

	var (
		wg       sync.WaitGroup
		admitted atomic.Int32
		start    = make(chan struct{})
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if w.CheckAndRecord("same-user") == nil {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(3), admitted.Load())
}

func TestWindowPruneDropsIdleKeys(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Now: clock.Now})

	require.NoError(t, w.CheckAndRecord("old"))
	clock.Advance(45 * time.Second)
	require.NoError(t, w.CheckAndRecord("fresh"))
	clock.Advance(20 * time.Second)

	assert.Equal(t, 1, w.Prune())
	assert.Equal(t, 1, w.Len())
}

func TestWindowBoundsTrackedKeys(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{MaxKeys: 3, Now: clock.Now})

	for i := 0; i < 5; i++ {
		require.NoError(t, w.CheckAndRecord(fmt.Sprintf("user-%d", i)))
		clock.Advance(time.Second)
	}
	assert.Equal(t, 3, w.Len())

	// The most recently seen keys survive.
	for i := 2; i < 5; i++ {
		require.NoError(t, w.CheckAndRecord(fmt.Sprintf("user-%d", i)))
	}
	assert.Equal(t, 3, w.Len())
}

func TestWindowFullTablePrefersExpiredKeys(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Limit: 2, MaxKeys: 2, Now: clock.Now})

	require.NoError(t, w.CheckAndRecord("idle"))
	clock.Advance(2 * time.Minute)
	require.NoError(t, w.CheckAndRecord("busy"))
	require.NoError(t, w.CheckAndRecord("busy"))

	require.NoError(t, w.CheckAndRecord("new"))
	assert.Equal(t, 2, w.Len())
	assert.ErrorIs(t, w.CheckAndRecord("busy"), ErrLimitExceeded)
}

func TestWindowFullTableEvictsLeastRecentLiveKey(t *testing.T) {
	clock := newFakeClock()
	w := NewWindow(Options{Limit: 2, MaxKeys: 2, Now: clock.Now})

	require.NoError(t, w.CheckAndRecord("a"))
	require.NoError(t, w.CheckAndRecord("a"))
	clock.Advance(time.Second)
	require.NoError(t, w.CheckAndRecord("b"))
	clock.Advance(time.Second)
	require.NoError(t, w.CheckAndRecord("c"))

	// a was full but least recently seen, so it was dropped and starts over.
	assert.Equal(t, 2, w.Len())
	assert.NoError(t, w.CheckAndRecord("a"))
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(Options{})
	for i := 0; i < 3; i++ {
		require.NoError(t, w.CheckAndRecord("u1"))
	}
	w.Reset()
	assert.Zero(t, w.Len())
	assert.NoError(t, w.CheckAndRecord("u1"))
}

func TestWindowJanitorStopsOnCancel(t *testing.T) {
	w := NewWindow(Options{Period: 10 * time.Millisecond})
	require.NoError(t, w.CheckAndRecord("u1"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Janitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return w.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop after cancel")
	}
}
