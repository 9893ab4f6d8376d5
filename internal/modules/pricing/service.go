// README: Rate-card pricing oracle; stands in for the external fee calculator.
package pricing

import (
	"context"
	"errors"
	"math"

	"boda/internal/config"
	"boda/internal/types"
)

var ErrBadRequest = errors.New("bad request")

// Weight surcharge bands, flat amounts per band.
const (
	heavyKg        = 10.0
	bulkyKg        = 25.0
	heavySurcharge = 200
	bulkySurcharge = 500
)

// Flat surcharges per declared size class and per special handling type.
// Unknown handling types are ignored; an unknown size class is a caller
// error.
var (
	sizeSurcharges = map[string]int64{
		"":       0,
		"small":  0,
		"medium": 150,
		"large":  400,
	}
	handlingSurcharges = map[string]int64{
		"express": 250,
		"fragile": 150,
	}
)

type Service struct {
	cfg config.PricingConfig
}

func NewService(cfg config.PricingConfig) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.DistanceKm < 0 || req.WeightKg < 0 {
		return Quote{}, ErrBadRequest
	}
	size, ok := sizeSurcharges[req.SizeClass]
	if !ok {
		return Quote{}, ErrBadRequest
	}
	distance := int64(math.Ceil(req.DistanceKm)) * s.cfg.PerKm
	var weight int64
	switch {
	case req.WeightKg >= bulkyKg:
		weight = bulkySurcharge
	case req.WeightKg >= heavyKg:
		weight = heavySurcharge
	}
	var handling int64
	for _, ot := range req.OrderTypes {
		handling += handlingSurcharges[ot]
	}
	total := s.cfg.BaseFare + distance + weight + size + handling
	return Quote{
		Fee: types.Money{Amount: total, Currency: s.cfg.Currency},
		Breakdown: map[string]int64{
			"base":     s.cfg.BaseFare,
			"distance": distance,
			"weight":   weight,
			"size":     size,
			"handling": handling,
		},
	}, nil
}

// Estimate is the narrow form the order service consumes.
func (s *Service) Estimate(ctx context.Context, distanceKm, weightKg float64) (types.Money, error) {
	q, err := s.Quote(ctx, QuoteRequest{DistanceKm: distanceKm, WeightKg: weightKg})
	if err != nil {
		return types.Money{}, err
	}
	return q.Fee, nil
}
