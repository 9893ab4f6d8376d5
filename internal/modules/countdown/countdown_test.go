// README: Countdown tracker tests with a manual clock.
package countdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"boda/internal/types"
)

// manualClock advances only when told to, so ticks are deterministic.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(expire ExpireFunc) (*Tracker, *manualClock) {
	clock := &manualClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	tr := New(expire)
	tr.clock = clock.Now
	return tr, clock
}

func TestRemaining(t *testing.T) {
	tr, clock := newTestTracker(nil)

	_, ok := tr.Remaining("o1")
	require.False(t, ok)

	tr.Track("o1", clock.Now().Add(3*time.Minute))
	rem, ok := tr.Remaining("o1")
	require.True(t, ok)
	require.Equal(t, 3*time.Minute, rem)

	clock.Advance(time.Minute)
	rem, ok = tr.Remaining("o1")
	require.True(t, ok)
	require.Equal(t, 2*time.Minute, rem)

	// Past the deadline the value clamps at zero until a tick removes it.
	clock.Advance(5 * time.Minute)
	rem, ok = tr.Remaining("o1")
	require.True(t, ok)
	require.Zero(t, rem)
}

func TestTickFiresExpireAtZero(t *testing.T) {
	var mu sync.Mutex
	var fired []types.ID
	tr, clock := newTestTracker(func(_ context.Context, id types.ID) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, id)
	})
	ctx := context.Background()

	tr.Track("o1", clock.Now().Add(2*time.Second))

	tr.Tick(ctx)
	mu.Lock()
	require.Empty(t, fired)
	mu.Unlock()

	clock.Advance(time.Second)
	tr.Tick(ctx)
	mu.Lock()
	require.Empty(t, fired)
	mu.Unlock()

	clock.Advance(time.Second)
	tr.Tick(ctx)
	mu.Lock()
	require.Equal(t, []types.ID{"o1"}, fired)
	mu.Unlock()

	// The countdown is gone; further ticks fire nothing.
	clock.Advance(time.Second)
	tr.Tick(ctx)
	mu.Lock()
	require.Len(t, fired, 1)
	mu.Unlock()

	_, ok := tr.Remaining("o1")
	require.False(t, ok)
}

func TestStopPreventsExpire(t *testing.T) {
	var fired int
	tr, clock := newTestTracker(func(context.Context, types.ID) { fired++ })
	ctx := context.Background()

	tr.Track("o1", clock.Now().Add(time.Second))
	tr.Stop("o1")

	clock.Advance(2 * time.Second)
	tr.Tick(ctx)
	require.Zero(t, fired)

	// Stop for an unknown id is fine.
	tr.Stop("o_unknown")
}

func TestTrackRearmsDeadline(t *testing.T) {
	tr, clock := newTestTracker(nil)

	tr.Track("o1", clock.Now().Add(time.Minute))
	tr.Track("o1", clock.Now().Add(10*time.Minute))

	rem, ok := tr.Remaining("o1")
	require.True(t, ok)
	require.Equal(t, 10*time.Minute, rem)
}

func TestSubscribeReceivesTicksThenCloses(t *testing.T) {
	tr, clock := newTestTracker(nil)
	ctx := context.Background()

	tr.Track("o1", clock.Now().Add(3*time.Second))
	ch, cancel := tr.Subscribe("o1")
	defer cancel()

	tr.Tick(ctx)
	require.Equal(t, 3*time.Second, <-ch)

	clock.Advance(time.Second)
	tr.Tick(ctx)
	require.Equal(t, 2*time.Second, <-ch)

	// Two ticks without a read: only the freshest value is kept.
	clock.Advance(time.Second)
	tr.Tick(ctx)
	clock.Advance(time.Second)
	tr.Tick(ctx)
	require.Equal(t, time.Duration(0), <-ch)

	// Hitting zero removed the countdown and closed the channel.
	_, open := <-ch
	require.False(t, open)
}

func TestSubscribeUntrackedOrder(t *testing.T) {
	tr, _ := newTestTracker(nil)

	ch, cancel := tr.Subscribe("o_missing")
	defer cancel()

	_, open := <-ch
	require.False(t, open)
}

func TestSubscribeCancel(t *testing.T) {
	tr, clock := newTestTracker(nil)
	ctx := context.Background()

	tr.Track("o1", clock.Now().Add(time.Minute))
	ch, cancel := tr.Subscribe("o1")
	cancel()

	_, open := <-ch
	require.False(t, open)

	// Cancel twice is safe, and the tracker keeps ticking for others.
	cancel()
	tr.Tick(ctx)
	rem, ok := tr.Remaining("o1")
	require.True(t, ok)
	require.Equal(t, time.Minute, rem)
}

func TestIndependentCountdowns(t *testing.T) {
	var mu sync.Mutex
	var fired []types.ID
	tr, clock := newTestTracker(func(_ context.Context, id types.ID) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, id)
	})
	ctx := context.Background()

	// Bulk fan-out: several offers live at once, each on its own deadline.
	tr.Track("o1", clock.Now().Add(time.Second))
	tr.Track("o2", clock.Now().Add(3*time.Second))
	tr.Track("o3", clock.Now().Add(5*time.Second))

	clock.Advance(time.Second)
	tr.Tick(ctx)
	mu.Lock()
	require.Equal(t, []types.ID{"o1"}, fired)
	mu.Unlock()

	rem, ok := tr.Remaining("o2")
	require.True(t, ok)
	require.Equal(t, 2*time.Second, rem)

	clock.Advance(2 * time.Second)
	tr.Tick(ctx)
	mu.Lock()
	require.ElementsMatch(t, []types.ID{"o1", "o2"}, fired)
	mu.Unlock()

	_, ok = tr.Remaining("o3")
	require.True(t, ok)
}

func TestExpireHookMayCallStop(t *testing.T) {
	// The dispatcher's expiry path calls Stop on the tracker; the hook runs
	// outside the lock so this must not deadlock.
	var tr *Tracker
	done := make(chan struct{})
	tr, clock := newTestTracker(func(_ context.Context, id types.ID) {
		tr.Stop(id)
		close(done)
	})

	tr.Track("o1", clock.Now().Add(time.Second))
	clock.Advance(2 * time.Second)
	tr.Tick(context.Background())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expire hook did not complete; likely deadlocked")
	}
}
