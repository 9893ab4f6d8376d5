// README: Dispatcher; offers pending orders to one rider at a time and reassigns on reject/timeout.
package dispatch

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"boda/internal/config"
	"boda/internal/modules/order"
	"boda/internal/modules/rider"
	"boda/internal/types"
)

type Service struct {
	orders  Orders
	riders  Riders
	book    Book
	tracker Tracker // optional
	cfg     config.DispatchConfig
	clock   func() time.Time
}

func NewService(orders Orders, riders Riders, book Book, tracker Tracker, cfg config.DispatchConfig) *Service {
	return &Service{
		orders:  orders,
		riders:  riders,
		book:    book,
		tracker: tracker,
		cfg:     cfg,
		clock:   time.Now,
	}
}

// Dispatch makes at most one offer for a pending, unoffered order. Every
// exit is benign: an offer already in flight, a lost write race, or an
// empty candidate pool (the order is parked for the sweep) all return
// offered=false with no error.
func (s *Service) Dispatch(ctx context.Context, orderID types.ID, cycleExclude ...types.ID) (bool, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status != order.StatusPending {
		// Cancelled or already confirmed; drop it from the retry pool.
		_ = s.book.Unpark(ctx, orderID)
		return false, nil
	}
	if o.AssignmentStatus == order.AssignmentAssigned || o.AssignmentStatus == order.AssignmentAccepted {
		return false, nil
	}

	excluded, err := s.book.Excluded(ctx, orderID)
	if err != nil {
		return false, err
	}
	if excluded == nil {
		excluded = map[types.ID]bool{}
	}
	for _, id := range cycleExclude {
		excluded[id] = true
	}

	cand, err := s.selectCandidate(ctx, o.PickupZone, excluded)
	if err != nil {
		return false, err
	}
	if cand == nil {
		if err := s.book.Park(ctx, orderID); err != nil {
			return false, err
		}
		depth, _ := s.book.QueueDepth(ctx)
		log.Warn().
			Str("order_id", string(orderID)).
			Int64("unassigned_depth", depth).
			Msg("no candidate rider; order parked")
		return false, nil
	}

	deadline := s.clock().Add(s.cfg.OfferWindow)
	ok, err := s.orders.Offer(ctx, orderID, cand.ID, deadline)
	if err != nil {
		return false, err
	}
	if !ok {
		// Another invocation won the offer race; theirs stands.
		return false, nil
	}
	_ = s.book.Unpark(ctx, orderID)
	if s.tracker != nil {
		s.tracker.Track(orderID, deadline)
	}
	log.Info().
		Str("order_id", string(orderID)).
		Str("rider_id", string(cand.ID)).
		Time("timeout_at", deadline).
		Msg("offer created")
	return true, nil
}

// selectCandidate picks the first eligible online rider: zone match
// preferred with fallback to any online rider, exclusions and the
// concurrent-assignment limit applied, ties broken by active load then the
// store's (deliveries, updated_at, id) order.
func (s *Service) selectCandidate(ctx context.Context, zone string, excluded map[types.ID]bool) (*rider.Rider, error) {
	pool, err := s.riders.ListOnline(ctx, zone)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 && zone != "" {
		pool, err = s.riders.ListOnline(ctx, "")
		if err != nil {
			return nil, err
		}
	}

	type scored struct {
		r      rider.Rider
		active int
	}
	eligible := make([]scored, 0, len(pool))
	for _, r := range pool {
		if excluded[r.ID] {
			continue
		}
		active, err := s.orders.CountActiveByRider(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if s.cfg.MaxActiveAssignments > 0 && active >= s.cfg.MaxActiveAssignments {
			continue
		}
		eligible = append(eligible, scored{r: r, active: active})
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].active < eligible[j].active
	})
	return &eligible[0].r, nil
}

// Accept resolves an offer in the rider's favor. Exactly one of any set of
// concurrent accepts succeeds; the rest observe ErrAlreadyTaken.
func (s *Service) Accept(ctx context.Context, orderID, riderID types.ID) error {
	ok, err := s.orders.Accept(ctx, orderID, riderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyTaken
	}
	if s.tracker != nil {
		s.tracker.Stop(orderID)
	}
	if err := s.riders.IncrementDeliveries(ctx, riderID); err != nil {
		log.Error().Err(err).Str("rider_id", string(riderID)).Msg("delivery counter increment failed")
	}
	_ = s.orders.AppendEvent(ctx, &order.Event{
		OrderID:    orderID,
		FromStatus: order.StatusPending,
		ToStatus:   order.StatusConfirmed,
		ActorType:  "rider",
		ActorID:    &riderID,
		CreatedAt:  s.clock(),
	})
	log.Info().Str("order_id", string(orderID)).Str("rider_id", string(riderID)).Msg("offer accepted")
	return nil
}

// Reject clears the rider's offer and immediately re-runs selection. A
// stale reject (offer already resolved elsewhere) is a no-op.
func (s *Service) Reject(ctx context.Context, orderID, riderID types.ID, reason string) (bool, error) {
	ok, err := s.orders.Release(ctx, orderID, riderID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if s.tracker != nil {
		s.tracker.Stop(orderID)
	}
	if s.cfg.ExclusionPolicy == config.ExcludeForOrder {
		if err := s.book.Exclude(ctx, orderID, riderID); err != nil {
			return false, err
		}
	}
	r := "reject: " + reason
	_ = s.orders.AppendEvent(ctx, &order.Event{
		OrderID:    orderID,
		FromStatus: order.StatusPending,
		ToStatus:   order.StatusPending,
		ActorType:  "rider",
		ActorID:    &riderID,
		Reason:     &r,
		CreatedAt:  s.clock(),
	})
	log.Info().Str("order_id", string(orderID)).Str("rider_id", string(riderID)).Str("reason", reason).Msg("offer rejected")
	// The rejecting rider is always skipped for the immediate re-run, even
	// under the cycle policy.
	return s.Dispatch(ctx, orderID, riderID)
}

// Expire resolves a past-deadline offer and re-dispatches. Safe to call
// speculatively: once the offer is resolved any further call is a no-op,
// so clients whose countdown hit zero may fire it without coordination.
func (s *Service) Expire(ctx context.Context, orderID types.ID) (bool, error) {
	released, ok, err := s.orders.ReleaseExpired(ctx, orderID, s.clock())
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if s.tracker != nil {
		s.tracker.Stop(orderID)
	}
	r := "timeout"
	_ = s.orders.AppendEvent(ctx, &order.Event{
		OrderID:    orderID,
		FromStatus: order.StatusPending,
		ToStatus:   order.StatusPending,
		ActorType:  "system",
		Reason:     &r,
		CreatedAt:  s.clock(),
	})
	log.Info().Str("order_id", string(orderID)).Str("rider_id", string(released)).Msg("offer expired")
	// A rider who merely missed the window stays eligible on later cycles.
	return s.Dispatch(ctx, orderID, released)
}

// RunExpirySweep is the server-side authority for offer expiry: it fires
// even when no client is connected to notice a countdown reaching zero,
// and it retries parked orders.
func (s *Service) RunExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires every due offer and re-dispatches parked orders.
func (s *Service) SweepOnce(ctx context.Context) {
	due, err := s.orders.DueForExpiry(ctx, s.clock(), sweepBatch)
	if err != nil {
		log.Error().Err(err).Msg("expiry scan failed")
	}
	for _, id := range due {
		if _, err := s.Expire(ctx, id); err != nil {
			log.Error().Err(err).Str("order_id", string(id)).Msg("expire failed")
		}
	}

	parked, err := s.book.Parked(ctx, sweepBatch)
	if err != nil {
		log.Error().Err(err).Msg("parked scan failed")
		return
	}
	for _, id := range parked {
		if _, err := s.Dispatch(ctx, id); err != nil {
			log.Error().Err(err).Str("order_id", string(id)).Msg("parked re-dispatch failed")
		}
	}
}
