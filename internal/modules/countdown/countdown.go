// README: Per-assignment countdown tracker; one authoritative timer per in-flight offer.
package countdown

import (
	"context"
	"sync"
	"time"

	"boda/internal/types"
)

// ExpireFunc asks the dispatcher to check/trigger expiry when a countdown
// reaches zero. The server-side sweep stays the authority; this call is
// speculative.
type ExpireFunc func(ctx context.Context, orderID types.ID)

type entry struct {
	deadline time.Time
	subs     map[chan time.Duration]struct{}
}

// Tracker keys one countdown per order id, so simultaneous offers to the
// same rider (bulk fan-outs) each tick independently. Remaining time is
// derived from the absolute deadline on every tick; there is no local
// decrement that could drift.
type Tracker struct {
	mu      sync.Mutex
	entries map[types.ID]*entry
	expire  ExpireFunc
	tick    time.Duration
	clock   func() time.Time
}

func New(expire ExpireFunc) *Tracker {
	return &Tracker{
		entries: make(map[types.ID]*entry),
		expire:  expire,
		tick:    time.Second,
		clock:   time.Now,
	}
}

// Track registers (or re-arms) the countdown for an order.
func (t *Tracker) Track(orderID types.ID, deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[orderID]
	if !ok {
		e = &entry{subs: make(map[chan time.Duration]struct{})}
		t.entries[orderID] = e
	}
	e.deadline = deadline
}

// Stop drops the countdown without firing expiry (offer resolved).
func (t *Tracker) Stop(orderID types.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(orderID)
}

// Remaining reports time left on the order's offer; ok=false when no offer
// is being tracked.
func (t *Tracker) Remaining(orderID types.ID) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[orderID]
	if !ok {
		return 0, false
	}
	return remaining(e.deadline, t.clock()), true
}

// Subscribe delivers the remaining time on every tick until the countdown
// ends; the channel is closed when the offer resolves or expires. For an
// untracked order the returned channel is already closed.
func (t *Tracker) Subscribe(orderID types.ID) (<-chan time.Duration, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[orderID]
	if !ok {
		ch := make(chan time.Duration)
		close(ch)
		return ch, func() {}
	}
	ch := make(chan time.Duration, 1)
	e.subs[ch] = struct{}{}
	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if e, ok := t.entries[orderID]; ok {
			if _, present := e.subs[ch]; present {
				delete(e.subs, ch)
				close(ch)
			}
		}
	}
	return ch, cancel
}

// Run drives the tracker at a fixed tick until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick publishes remaining time to subscribers and fires the expire hook
// for countdowns that reached zero.
func (t *Tracker) Tick(ctx context.Context) {
	now := t.clock()

	t.mu.Lock()
	var expired []types.ID
	for id, e := range t.entries {
		rem := remaining(e.deadline, now)
		for ch := range e.subs {
			// Keep only the freshest value; a slow reader never blocks the tick.
			select {
			case <-ch:
			default:
			}
			ch <- rem
		}
		if rem == 0 {
			expired = append(expired, id)
			t.remove(id)
		}
	}
	t.mu.Unlock()

	// Expiry hooks run outside the lock: the dispatcher calls Stop on the
	// way back in.
	if t.expire != nil {
		for _, id := range expired {
			t.expire(ctx, id)
		}
	}
}

// remove must be called with the lock held.
func (t *Tracker) remove(orderID types.ID) {
	e, ok := t.entries[orderID]
	if !ok {
		return
	}
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
	delete(t.entries, orderID)
}

func remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
