// README: Pricing oracle boundary types.
package pricing

import "boda/internal/types"

// QuoteRequest mirrors the oracle's consumed interface; the core never
// recomputes a fee from these inputs, it only persists the result.
type QuoteRequest struct {
	DistanceKm float64
	OrderTypes []string
	WeightKg   float64
	SizeClass  string
}

type Quote struct {
	Fee       types.Money
	Breakdown map[string]int64
}
