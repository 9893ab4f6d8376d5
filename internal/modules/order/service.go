// README: Order service implements lifecycle transitions and persistence.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"boda/internal/types"
)

// Pricing is the oracle boundary: the service stores whatever fee it
// returns and never recomputes it.
type Pricing interface {
	Estimate(ctx context.Context, distanceKm, weightKg float64) (types.Money, error)
}

type Service struct {
	store   *Store
	pricing Pricing
}

func NewService(store *Store, pricing Pricing) *Service {
	return &Service{store: store, pricing: pricing}
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
)

// StatusNone is the from-status recorded on the creation audit event.
const StatusNone Status = "none"

type CreateCommand struct {
	CustomerID      types.ID
	Subtotal        types.Money
	DeliveryFee     types.Money // zero → quote via the pricing oracle
	DistanceKm      float64
	WeightKg        float64
	PaymentMethod   string
	PickupAddress   string
	PickupZone      string
	DeliveryAddress string
	ScheduledAt     *time.Time
	BulkOrderID     *types.ID
}

type AdvanceCommand struct {
	OrderID   types.ID
	To        Status
	ActorType string
	ActorID   *types.ID
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string
	ActorID   *types.ID
	Reason    string
}

type ForceCommand struct {
	OrderID types.ID
	To      Status
	AdminID types.ID
	Note    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	o, err := s.Build(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := s.store.Create(ctx, o); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorType:  "customer",
		ActorID:    &cmd.CustomerID,
		CreatedAt:  o.CreatedAt,
	})
	log.Info().Str("order_id", string(o.ID)).Str("number", o.Number).Msg("order created")
	return o.ID, nil
}

// Build validates a create command and assembles the Order without
// persisting it; bulk creation reuses it inside a batch transaction.
func (s *Service) Build(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.CustomerID == "" || cmd.PickupAddress == "" || cmd.DeliveryAddress == "" {
		return nil, ErrBadRequest
	}
	now := time.Now()
	if cmd.ScheduledAt != nil && !cmd.ScheduledAt.After(now) {
		return nil, ErrBadRequest
	}

	fee := cmd.DeliveryFee
	if fee.Amount == 0 && s.pricing != nil {
		m, err := s.pricing.Estimate(ctx, cmd.DistanceKm, cmd.WeightKg)
		if err != nil {
			return nil, err
		}
		fee = m
	}
	if cmd.Subtotal.Currency == "" {
		cmd.Subtotal.Currency = fee.Currency
	}

	return &Order{
		ID:               types.NewID(),
		Number:           NewNumber(now),
		CustomerID:       cmd.CustomerID,
		Status:           StatusPending,
		StatusVersion:    0,
		Subtotal:         cmd.Subtotal,
		DeliveryFee:      fee,
		PaymentMethod:    cmd.PaymentMethod,
		PaymentStatus:    PaymentPending,
		PickupAddress:    cmd.PickupAddress,
		PickupZone:       cmd.PickupZone,
		DeliveryAddress:  cmd.DeliveryAddress,
		ScheduledAt:      cmd.ScheduledAt,
		AssignmentStatus: AssignmentNone,
		BulkOrderID:      cmd.BulkOrderID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// AdvanceStatus applies an explicit rider/admin transition. pending →
// confirmed is refused here: it only happens as the side effect of a
// dispatch acceptance.
func (s *Service) AdvanceStatus(ctx context.Context, cmd AdvanceCommand) error {
	if cmd.To == StatusConfirmed {
		return ErrInvalidTransition
	}
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() || !CanTransition(o.Status, cmd.To) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.To, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   cmd.To,
		ActorType:  cmd.ActorType,
		ActorID:    cmd.ActorID,
		CreatedAt:  time.Now(),
	})
	return nil
}

// Cancel is terminal and leaves assignment fields untouched for audit.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return ErrInvalidTransition
	}
	reason := cmd.Reason
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, StatusCancelled, o.StatusVersion, &reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   StatusCancelled,
		ActorType:  cmd.ActorType,
		ActorID:    cmd.ActorID,
		Reason:     &reason,
		CreatedAt:  time.Now(),
	})
	return nil
}

// ForceStatus is the admin override path. It bypasses the transition table
// but not terminal immutability, never touches assignment fields, and is
// flagged as an override in the audit log.
func (s *Service) ForceStatus(ctx context.Context, cmd ForceCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.Status.Terminal() {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.To, o.StatusVersion, nil)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	reason := "admin_override"
	if cmd.Note != "" {
		reason = "admin_override: " + cmd.Note
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   cmd.To,
		ActorType:  "admin",
		ActorID:    &cmd.AdminID,
		Reason:     &reason,
		CreatedAt:  time.Now(),
	})
	log.Warn().
		Str("order_id", string(o.ID)).
		Str("from", string(o.Status)).
		Str("to", string(cmd.To)).
		Msg("administrative status override")
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.store.GetByNumber(ctx, number)
}
