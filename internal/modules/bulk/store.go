// README: Bulk order store; the batch insert is one transaction, all children or none.
package bulk

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"boda/internal/modules/order"
	"boda/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateBatch persists the bulk order and all its children atomically,
// stamping each child's creation audit row in the same transaction; a
// failure on any row rolls back the whole batch, so a BulkOrder can never
// reference fewer children than TotalOrders declares.
func (s *Store) CreateBatch(ctx context.Context, b *BulkOrder, children []*order.Order) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO bulk_orders (
			id, number, customer_id, total_orders, total_fee, currency,
			discount_pct, promo_code, promo_discount, final_fee, status, notes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(b.ID), b.Number, string(b.CustomerID), b.TotalOrders, b.TotalFee.Amount, b.TotalFee.Currency,
		b.DiscountPct, b.PromoCode, b.PromoDiscount, b.FinalFee.Amount, string(b.Status), b.Notes, b.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, o := range children {
		if err = order.InsertTx(ctx, tx, o); err != nil {
			return err
		}
		customerID := o.CustomerID
		if err = order.AppendEventTx(ctx, tx, &order.Event{
			OrderID:    o.ID,
			FromStatus: order.StatusNone,
			ToStatus:   order.StatusPending,
			ActorType:  "customer",
			ActorID:    &customerID,
			CreatedAt:  o.CreatedAt,
		}); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) Get(ctx context.Context, id types.ID) (*BulkOrder, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, number, customer_id, total_orders, total_fee, currency,
		       discount_pct, promo_code, promo_discount, final_fee, status, notes, created_at
		FROM bulk_orders WHERE id = $1`, string(id),
	)
	var b BulkOrder
	var promoCode sql.NullString
	err := row.Scan(
		&b.ID, &b.Number, &b.CustomerID, &b.TotalOrders, &b.TotalFee.Amount, &b.TotalFee.Currency,
		&b.DiscountPct, &promoCode, &b.PromoDiscount, &b.FinalFee.Amount, &b.Status, &b.Notes, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	b.FinalFee.Currency = b.TotalFee.Currency
	if promoCode.Valid {
		b.PromoCode = &promoCode.String
	}
	return &b, nil
}

// ChildIDs lists the child orders of a bulk order in creation order.
func (s *Store) ChildIDs(ctx context.Context, id types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM orders WHERE bulk_order_id = $1 ORDER BY number`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(v))
	}
	return ids, rows.Err()
}
