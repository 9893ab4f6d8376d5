// README: Dispatcher collaborator interfaces and outcome errors.
package dispatch

import (
	"context"
	"errors"
	"time"

	"boda/internal/modules/order"
	"boda/internal/modules/rider"
	"boda/internal/types"
)

var (
	// ErrAlreadyTaken is the expected outcome of losing an accept race or
	// acting on a stale/expired offer.
	ErrAlreadyTaken = errors.New("order no longer available")
	// ErrNoCandidate never leaves the dispatcher; it is recovered by
	// parking the order and surfaces only as queue-depth telemetry.
	ErrNoCandidate = errors.New("no online rider available")
)

// Orders is the slice of the order store the dispatcher needs: reads plus
// the guarded assignment writes.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
	Offer(ctx context.Context, id, riderID types.ID, deadline time.Time) (bool, error)
	Accept(ctx context.Context, id, riderID types.ID) (bool, error)
	Release(ctx context.Context, id, riderID types.ID) (bool, error)
	ReleaseExpired(ctx context.Context, id types.ID, now time.Time) (types.ID, bool, error)
	DueForExpiry(ctx context.Context, now time.Time, limit int) ([]types.ID, error)
	CountActiveByRider(ctx context.Context, riderID types.ID) (int, error)
	AppendEvent(ctx context.Context, e *order.Event) error
}

// Riders is the directory boundary; the dispatcher only reads presence and
// bumps the delivery counter on acceptance.
type Riders interface {
	ListOnline(ctx context.Context, zone string) ([]rider.Rider, error)
	IncrementDeliveries(ctx context.Context, id types.ID) error
}

// Book keeps the dispatcher's side state: per-order rider exclusions and
// the unassigned pool the sweep retries.
type Book interface {
	Exclude(ctx context.Context, orderID, riderID types.ID) error
	Excluded(ctx context.Context, orderID types.ID) (map[types.ID]bool, error)
	Park(ctx context.Context, orderID types.ID) error
	Unpark(ctx context.Context, orderID types.ID) error
	Parked(ctx context.Context, limit int) ([]types.ID, error)
	QueueDepth(ctx context.Context) (int64, error)
}

// Tracker mirrors offers into the countdown service. Implementations must
// tolerate Stop for unknown ids.
type Tracker interface {
	Track(orderID types.ID, deadline time.Time)
	Stop(orderID types.ID)
}

// sweepBatch bounds how many due offers and parked orders one sweep pass
// touches.
const sweepBatch = 50
