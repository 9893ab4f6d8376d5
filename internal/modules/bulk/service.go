// README: Bulk aggregation service; tiered discounting, atomic creation, independent child dispatch.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"boda/internal/modules/order"
	"boda/internal/types"
)

var (
	ErrNotFound = errors.New("bulk order not found")
	// ErrPartialBulkCreate wraps any persistence failure during batch
	// creation; the transaction guarantees nothing was left behind.
	ErrPartialBulkCreate = errors.New("bulk order creation failed, batch rolled back")
	ErrBadRequest        = errors.New("bad request")
)

// Dispatcher fans each committed child into the normal offer flow.
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID types.ID, cycleExclude ...types.ID) (bool, error)
}

// Builder assembles and validates child orders; the order service provides it.
type Builder interface {
	Build(ctx context.Context, cmd order.CreateCommand) (*order.Order, error)
}

type Service struct {
	store      *Store
	orders     Builder
	dispatcher Dispatcher
}

func NewService(store *Store, orders Builder, dispatcher Dispatcher) *Service {
	return &Service{store: store, orders: orders, dispatcher: dispatcher}
}

// Delivery is one individually priced drop within a bulk batch.
type Delivery struct {
	Subtotal        types.Money
	DeliveryFee     types.Money
	DistanceKm      float64
	WeightKg        float64
	PaymentMethod   string
	PickupAddress   string
	PickupZone      string
	DeliveryAddress string
	ScheduledAt     *time.Time
}

type CreateCommand struct {
	CustomerID types.ID
	Deliveries []Delivery
	Promo      *Promo
	Notes      string
}

// Create persists one BulkOrder plus all child orders atomically, then
// dispatches each child independently. A rejection or delay on one child
// never blocks its siblings.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*BulkOrder, []types.ID, error) {
	if cmd.CustomerID == "" || len(cmd.Deliveries) == 0 {
		return nil, nil, ErrBadRequest
	}

	now := time.Now()
	bulkID := types.NewID()

	children := make([]*order.Order, 0, len(cmd.Deliveries))
	var total int64
	currency := ""
	for _, d := range cmd.Deliveries {
		o, err := s.orders.Build(ctx, order.CreateCommand{
			CustomerID:      cmd.CustomerID,
			Subtotal:        d.Subtotal,
			DeliveryFee:     d.DeliveryFee,
			DistanceKm:      d.DistanceKm,
			WeightKg:        d.WeightKg,
			PaymentMethod:   d.PaymentMethod,
			PickupAddress:   d.PickupAddress,
			PickupZone:      d.PickupZone,
			DeliveryAddress: d.DeliveryAddress,
			ScheduledAt:     d.ScheduledAt,
			BulkOrderID:     &bulkID,
		})
		if err != nil {
			return nil, nil, err
		}
		total += o.DeliveryFee.Amount
		if currency == "" {
			currency = o.DeliveryFee.Currency
		}
		children = append(children, o)
	}

	pct, promoDiscount, final := ComputeFees(total, len(children), cmd.Promo)
	b := &BulkOrder{
		ID:            bulkID,
		Number:        newNumber(now),
		CustomerID:    cmd.CustomerID,
		TotalOrders:   len(children),
		TotalFee:      types.Money{Amount: total, Currency: currency},
		DiscountPct:   pct,
		PromoDiscount: promoDiscount,
		FinalFee:      types.Money{Amount: final, Currency: currency},
		Status:        StatusOpen,
		Notes:         cmd.Notes,
		CreatedAt:     now,
	}
	if cmd.Promo != nil {
		code := cmd.Promo.Code
		b.PromoCode = &code
	}

	if err := s.store.CreateBatch(ctx, b, children); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrPartialBulkCreate, err)
	}
	log.Info().
		Str("bulk_order_id", string(b.ID)).
		Int("total_orders", b.TotalOrders).
		Int64("final_fee", b.FinalFee.Amount).
		Msg("bulk order created")

	ids := make([]types.ID, len(children))
	for i, o := range children {
		ids[i] = o.ID
	}

	// Fan out initial dispatch; each child runs its own offer cycle and a
	// failure here leaves the child parked for the sweep, not the batch
	// broken.
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.dispatcher.Dispatch(gctx, id); err != nil {
				log.Error().Err(err).Str("order_id", string(id)).Msg("child dispatch failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return b, ids, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*BulkOrder, []types.ID, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ids, err := s.store.ChildIDs(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return b, ids, nil
}

func newNumber(now time.Time) string {
	return "BLK-" + strings.ToUpper(strconv.FormatInt(now.UnixNano(), 36))
}
