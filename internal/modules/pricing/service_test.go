// README: Pricing oracle tests.
package pricing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"boda/internal/config"
)

func testService() *Service {
	return NewService(config.PricingConfig{BaseFare: 500, PerKm: 120, Currency: "NGN"})
}

func TestQuote(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	q, err := svc.Quote(ctx, QuoteRequest{DistanceKm: 4, WeightKg: 2})
	require.NoError(t, err)
	require.Equal(t, int64(500+4*120), q.Fee.Amount)
	require.Equal(t, "NGN", q.Fee.Currency)
	require.Equal(t, int64(480), q.Breakdown["distance"])
	require.Zero(t, q.Breakdown["weight"])

	// Fractional distance rounds up to the next km.
	q, err = svc.Quote(ctx, QuoteRequest{DistanceKm: 4.2})
	require.NoError(t, err)
	require.Equal(t, int64(500+5*120), q.Fee.Amount)
}

func TestQuoteWeightBands(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	q, err := svc.Quote(ctx, QuoteRequest{DistanceKm: 1, WeightKg: 9.9})
	require.NoError(t, err)
	require.Zero(t, q.Breakdown["weight"])

	q, err = svc.Quote(ctx, QuoteRequest{DistanceKm: 1, WeightKg: 10})
	require.NoError(t, err)
	require.Equal(t, int64(heavySurcharge), q.Breakdown["weight"])

	q, err = svc.Quote(ctx, QuoteRequest{DistanceKm: 1, WeightKg: 30})
	require.NoError(t, err)
	require.Equal(t, int64(bulkySurcharge), q.Breakdown["weight"])
}

func TestQuoteSizeAndHandling(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	q, err := svc.Quote(ctx, QuoteRequest{DistanceKm: 1, SizeClass: "large"})
	require.NoError(t, err)
	require.Equal(t, int64(400), q.Breakdown["size"])
	require.Equal(t, int64(500+120+400), q.Fee.Amount)

	q, err = svc.Quote(ctx, QuoteRequest{DistanceKm: 1, OrderTypes: []string{"express", "fragile"}})
	require.NoError(t, err)
	require.Equal(t, int64(250+150), q.Breakdown["handling"])

	// Unrecognized handling types are not charged.
	q, err = svc.Quote(ctx, QuoteRequest{DistanceKm: 1, OrderTypes: []string{"document"}})
	require.NoError(t, err)
	require.Zero(t, q.Breakdown["handling"])

	_, err = svc.Quote(ctx, QuoteRequest{DistanceKm: 1, SizeClass: "oversized"})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestQuoteRejectsNegativeInputs(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	_, err := svc.Quote(ctx, QuoteRequest{DistanceKm: -1})
	require.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Quote(ctx, QuoteRequest{WeightKg: -0.5})
	require.ErrorIs(t, err, ErrBadRequest)
}

func TestEstimate(t *testing.T) {
	svc := testService()

	m, err := svc.Estimate(context.Background(), 2, 12)
	require.NoError(t, err)
	require.Equal(t, int64(500+2*120+heavySurcharge), m.Amount)
	require.Equal(t, "NGN", m.Currency)
}
