// README: Order aggregate, status definitions, and the lifecycle transition table.
package order

import (
	"strconv"
	"strings"
	"time"

	"boda/internal/types"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

type AssignmentStatus string

const (
	AssignmentNone     AssignmentStatus = "none"
	AssignmentAssigned AssignmentStatus = "assigned"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Order struct {
	ID            types.ID
	Number        string
	CustomerID    types.ID
	Status        Status
	StatusVersion int

	Subtotal      types.Money
	DeliveryFee   types.Money
	PaymentMethod string
	PaymentStatus PaymentStatus

	PickupAddress   string
	PickupZone      string
	DeliveryAddress string
	ScheduledAt     *time.Time

	AssignmentStatus    AssignmentStatus
	AssignedRiderID     *types.ID
	RiderID             *types.ID
	AssignmentTimeoutAt *time.Time

	BulkOrderID *types.ID

	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeliveredAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// Event is one row of the order audit log; every status or assignment
// change appends one.
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string // customer | rider | admin | system
	ActorID    *types.ID
	Reason     *string
	CreatedAt  time.Time
}

// AllowedTransitions represents the order lifecycle flow as code.
// Terminal states (delivered, cancelled) have no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusReadyForPickup, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal targets from a status, for error messages.
func NextStatuses(from Status) []Status {
	return AllowedTransitions[from]
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Active reports whether the order still occupies a rider or the dispatch
// pipeline.
func (s Status) Active() bool {
	switch s {
	case StatusConfirmed, StatusPreparing, StatusReadyForPickup, StatusOutForDelivery:
		return true
	}
	return false
}

// OfferLive reports whether the order carries an unexpired offer at the
// given instant.
func (o *Order) OfferLive(now time.Time) bool {
	return o.AssignmentStatus == AssignmentAssigned &&
		o.AssignmentTimeoutAt != nil &&
		o.AssignmentTimeoutAt.After(now)
}

// NewNumber builds a human-readable order number, unique and sortable by
// creation time (base36 unix nanos).
func NewNumber(now time.Time) string {
	return "BD-" + strings.ToUpper(strconv.FormatInt(now.UnixNano(), 36))
}
