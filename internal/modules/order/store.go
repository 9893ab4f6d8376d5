// README: Order store backed by PostgreSQL; all assignment writes are guarded conditional updates.
package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"boda/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const orderColumns = `
	id, number, customer_id, status, status_version,
	subtotal, delivery_fee, currency, payment_method, payment_status,
	pickup_address, pickup_zone, delivery_address, scheduled_at,
	assignment_status, assigned_rider_id, rider_id, assignment_timeout_at,
	bulk_order_id, created_at, updated_at, delivered_at, cancelled_at, cancellation_reason`

func (s *Store) Create(ctx context.Context, o *Order) error {
	return insertOrder(ctx, s.db, o)
}

// InsertTx writes an order row inside the caller's transaction; bulk
// creation uses it so the batch commits or rolls back as one.
func InsertTx(ctx context.Context, tx pgx.Tx, o *Order) error {
	return insertOrder(ctx, tx, o)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertOrder(ctx context.Context, db execer, o *Order) error {
	_, err := db.Exec(ctx, `
		INSERT INTO orders (
			id, number, customer_id, status, status_version,
			subtotal, delivery_fee, currency, payment_method, payment_status,
			pickup_address, pickup_zone, delivery_address, scheduled_at,
			assignment_status, bulk_order_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18
		)`,
		string(o.ID), o.Number, string(o.CustomerID), string(o.Status), o.StatusVersion,
		o.Subtotal.Amount, o.DeliveryFee.Amount, o.DeliveryFee.Currency, o.PaymentMethod, string(o.PaymentStatus),
		o.PickupAddress, o.PickupZone, o.DeliveryAddress, o.ScheduledAt,
		string(o.AssignmentStatus), toStringPtr(o.BulkOrderID), o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return scanOrder(row)
}

func (s *Store) GetByNumber(ctx context.Context, number string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE number = $1`, number)
	return scanOrder(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var zone, paymentMethod sql.NullString
	var scheduledAt, timeoutAt, deliveredAt, cancelledAt sql.NullTime
	var assignedRider, riderID, bulkID, cancelReason sql.NullString

	err := row.Scan(
		&o.ID, &o.Number, &o.CustomerID, &o.Status, &o.StatusVersion,
		&o.Subtotal.Amount, &o.DeliveryFee.Amount, &o.DeliveryFee.Currency, &paymentMethod, &o.PaymentStatus,
		&o.PickupAddress, &zone, &o.DeliveryAddress, &scheduledAt,
		&o.AssignmentStatus, &assignedRider, &riderID, &timeoutAt,
		&bulkID, &o.CreatedAt, &o.UpdatedAt, &deliveredAt, &cancelledAt, &cancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.Subtotal.Currency = o.DeliveryFee.Currency
	o.PickupZone = zone.String
	o.PaymentMethod = paymentMethod.String
	o.ScheduledAt = toTimePtr(scheduledAt)
	o.AssignmentTimeoutAt = toTimePtr(timeoutAt)
	o.DeliveredAt = toTimePtr(deliveredAt)
	o.CancelledAt = toTimePtr(cancelledAt)
	o.AssignedRiderID = toIDPtr(assignedRider)
	o.RiderID = toIDPtr(riderID)
	o.BulkOrderID = toIDPtr(bulkID)
	if cancelReason.Valid {
		o.CancelReason = &cancelReason.String
	}
	return &o, nil
}

// UpdateStatus moves the order between lifecycle states, guarded on the
// previously-read status and version so concurrent writers lose cleanly.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = NOW(),
		    delivered_at = CASE WHEN $1 = 'delivered' THEN NOW() ELSE delivered_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    cancellation_reason = COALESCE($2, cancellation_reason)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), reason, string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Offer stamps a rider and a deadline onto a pending, unoffered order.
// The WHERE clause is the at-most-one-active-offer guard: it only fires
// while no other offer is in flight.
func (s *Store) Offer(ctx context.Context, id, riderID types.ID, deadline time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET assignment_status = 'assigned',
		    assigned_rider_id = $1,
		    assignment_timeout_at = $2,
		    updated_at = NOW()
		WHERE id = $3
		  AND status = 'pending'
		  AND assignment_status IN ('none', 'rejected')`,
		string(riderID), deadline, string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Accept fixes the assignment and confirms the order in one guarded write.
// The guard fails for stale offers: a different rider, an expired deadline,
// or an order that already left pending.
func (s *Store) Accept(ctx context.Context, id, riderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET assignment_status = 'accepted',
		    rider_id = assigned_rider_id,
		    assignment_timeout_at = NULL,
		    status = 'confirmed',
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND assignment_status = 'assigned'
		  AND assigned_rider_id = $2
		  AND assignment_timeout_at > NOW()`,
		string(id), string(riderID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release clears the current offer after a rejection, guarded on the
// rejecting rider still holding it and the order still pending. On a
// terminal order the assignment fields stay frozen for audit.
func (s *Store) Release(ctx context.Context, id, riderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE orders
		SET assignment_status = 'rejected',
		    assigned_rider_id = NULL,
		    assignment_timeout_at = NULL,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = 'pending'
		  AND assignment_status = 'assigned'
		  AND assigned_rider_id = $2`,
		string(id), string(riderID),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseExpired clears an offer whose deadline has passed and returns the
// rider who missed it. ok=false means the offer was already resolved or
// the order left pending in the meantime.
func (s *Store) ReleaseExpired(ctx context.Context, id types.ID, now time.Time) (types.ID, bool, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE orders o
		SET assignment_status = 'rejected',
		    assigned_rider_id = NULL,
		    assignment_timeout_at = NULL,
		    updated_at = NOW()
		FROM (SELECT id, assigned_rider_id FROM orders WHERE id = $1) prev
		WHERE o.id = prev.id
		  AND o.status = 'pending'
		  AND o.assignment_status = 'assigned'
		  AND o.assignment_timeout_at <= $2
		RETURNING prev.assigned_rider_id`,
		string(id), now,
	)
	var released sql.NullString
	err := row.Scan(&released)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return types.ID(released.String), true, nil
}

// DueForExpiry lists orders whose offer deadline has passed; the sweep
// walks this.
func (s *Store) DueForExpiry(ctx context.Context, now time.Time, limit int) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM orders
		WHERE status = 'pending' AND assignment_status = 'assigned' AND assignment_timeout_at <= $1
		ORDER BY assignment_timeout_at
		LIMIT $2`, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

// CountActiveByRider counts live offers plus undelivered accepted orders
// held by one rider; candidate selection uses it for the concurrency limit
// and the deterministic tie-break.
func (s *Store) CountActiveByRider(ctx context.Context, riderID types.ID) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM orders
		WHERE (assignment_status = 'assigned' AND assigned_rider_id = $1)
		   OR (rider_id = $1 AND status IN ('confirmed','preparing','ready_for_pickup','out_for_delivery'))`,
		string(riderID),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	return appendEvent(ctx, s.db, e)
}

// AppendEventTx writes an audit row inside the caller's transaction; bulk
// creation stamps each child's creation event with it.
func AppendEventTx(ctx context.Context, tx pgx.Tx, e *Event) error {
	return appendEvent(ctx, tx, e)
}

func appendEvent(ctx context.Context, db execer, e *Event) error {
	_, err := db.Exec(ctx, `
		INSERT INTO order_state_events (
			order_id, from_status, to_status, actor_type, actor_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.OrderID), string(e.FromStatus), string(e.ToStatus),
		e.ActorType, toStringPtr(e.ActorID), e.Reason, e.CreatedAt,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
