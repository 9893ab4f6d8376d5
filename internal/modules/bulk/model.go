// README: Bulk order aggregate, volume discount tiers, and promo arithmetic.
package bulk

import (
	"time"

	"boda/internal/types"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type BulkOrder struct {
	ID            types.ID
	Number        string
	CustomerID    types.ID
	TotalOrders   int
	TotalFee      types.Money // sum of child fees before any discount
	DiscountPct   int64
	PromoCode     *string
	PromoDiscount int64
	FinalFee      types.Money
	Status        Status
	Notes         string
	CreatedAt     time.Time
}

type PromoType string

const (
	PromoPercentage PromoType = "percentage"
	PromoFixed      PromoType = "fixed"
)

// Promo is the already-validated promo code the caller supplies; validation
// itself lives outside this subsystem.
type Promo struct {
	Code  string
	Type  PromoType
	Value int64 // percent for percentage promos, amount for fixed
}

// Volume tiers by child count; the highest met tier applies, tiers never
// combine.
var tiers = []struct {
	minCount int
	pct      int64
}{
	{11, 15},
	{6, 10},
	{3, 5},
}

func DiscountPct(count int) int64 {
	for _, t := range tiers {
		if count >= t.minCount {
			return t.pct
		}
	}
	return 0
}

// ComputeFees applies the volume tier then the promo:
// final = max(0, total×(1−tier%) − promo).
func ComputeFees(total int64, count int, promo *Promo) (pct, promoDiscount, final int64) {
	pct = DiscountPct(count)
	afterBulk := total * (100 - pct) / 100
	if promo != nil {
		switch promo.Type {
		case PromoPercentage:
			promoDiscount = afterBulk * promo.Value / 100
		case PromoFixed:
			promoDiscount = promo.Value
		}
	}
	final = afterBulk - promoDiscount
	if final < 0 {
		final = 0
	}
	return pct, promoDiscount, final
}
