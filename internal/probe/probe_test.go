package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoeman22/billionaire-bot-sub000/internal/breaker"
	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap/stub"
)

var (
	gala  = domain.Token{Symbol: "GALA", Key: "GALA|Unit|none|none", Decimals: 8}
	gusdc = domain.Token{Symbol: "GUSDC", Key: "GUSDC|Unit|none|none", Decimals: 6}
)

func testBreaker() *breaker.Breaker {
	return breaker.New("quotes", breaker.Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
		MonitoringWindow: time.Minute,
	})
}

func TestQuote_NoPoolDoesNotTripBreaker(t *testing.T) {
	venue := stub.NewVenue()
	br := testBreaker()
	p := New(venue, br, DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := p.Quote(ctx, gala, gusdc, decimal.NewFromInt(10))
		require.ErrorIs(t, err, gswap.ErrNoPool)
	}

	assert.Equal(t, breaker.StateClosed, br.Status().State,
		"no-pool answers must not count as breaker failures")
	assert.Zero(t, br.Status().FailureCount)
}

func TestQuote_DependencyFailureTripsBreaker(t *testing.T) {
	venue := stub.NewVenue()
	venue.QuoteErr = errors.New("venue down")
	br := testBreaker()
	p := New(venue, br, DefaultConfig(), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.Quote(ctx, gala, gusdc, decimal.NewFromInt(10))
		require.Error(t, err)
	}
	assert.Equal(t, breaker.StateOpen, br.Status().State)

	// Once open, the quoter is no longer invoked.
	before := venue.QuoteCalls()
	_, err := p.Quote(ctx, gala, gusdc, decimal.NewFromInt(10))
	require.ErrorIs(t, err, breaker.ErrBreakerOpen)
	assert.Equal(t, before, venue.QuoteCalls())
}

func TestQuote_ValidationBeforeIO(t *testing.T) {
	venue := stub.NewVenue()
	p := New(venue, testBreaker(), DefaultConfig(), nil)
	ctx := context.Background()

	_, err := p.Quote(ctx, gala, gala, decimal.NewFromInt(10))
	require.Error(t, err, "identical in/out asset must be rejected")

	_, err = p.Quote(ctx, gala, gusdc, decimal.Zero)
	require.Error(t, err, "non-positive amount must be rejected")

	assert.Zero(t, venue.QuoteCalls(), "validation failures must not reach the venue")
}

func TestQuoteBestTier_PicksHighestOutput(t *testing.T) {
	venue := stub.NewVenue()
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierLowest, Rate: decimal.NewFromFloat(0.015)})
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierMedium, Rate: decimal.NewFromFloat(0.017)})
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierHigh, Rate: decimal.NewFromFloat(0.012)})

	p := New(venue, testBreaker(), DefaultConfig(), nil)

	q, err := p.QuoteBestTier(context.Background(), gala, gusdc, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.FeeTierMedium, q.FeeTier)
	assert.True(t, q.OutputAmount.Equal(decimal.NewFromFloat(1.7)), "got %s", q.OutputAmount)
}

func TestQuoteBestTier_ToleratesPartialTierFailure(t *testing.T) {
	venue := stub.NewVenue()
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierLowest, Rate: decimal.NewFromFloat(0.015), Err: errors.New("tier unavailable")})
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierMedium, Rate: decimal.NewFromFloat(0.016)})
	// FeeTierHigh has no pool at all.

	p := New(venue, testBreaker(), DefaultConfig(), nil)

	q, err := p.QuoteBestTier(context.Background(), gala, gusdc, decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.Equal(t, domain.FeeTierMedium, q.FeeTier)
}

func TestQuoteBestTier_AllTiersFailIsNoPool(t *testing.T) {
	venue := stub.NewVenue()
	p := New(venue, testBreaker(), DefaultConfig(), nil)

	_, err := p.QuoteBestTier(context.Background(), gala, gusdc, decimal.NewFromInt(100))
	require.ErrorIs(t, err, gswap.ErrNoPool)
}

func TestEstimateOptimalSize_DeepPoolGetsMaxSize(t *testing.T) {
	venue := stub.NewVenue()
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierMedium, Rate: decimal.NewFromFloat(0.016)})

	cfg := DefaultConfig()
	p := New(venue, testBreaker(), cfg, nil)

	size, err := p.EstimateOptimalSize(context.Background(), gala, gusdc)
	require.NoError(t, err)
	assert.True(t, size.Equal(cfg.MaxSize), "zero slippage should map to max size, got %s", size)
}

func TestEstimateOptimalSize_ShallowPoolGetsMinSize(t *testing.T) {
	venue := stub.NewVenue()
	venue.AddPool(stub.Pool{
		TokenIn:         "GALA",
		TokenOut:        "GUSDC",
		FeeTier:         domain.FeeTierMedium,
		Rate:            decimal.NewFromFloat(0.016),
		SlippagePercent: decimal.NewFromFloat(0.5), // heavy price impact
	})

	cfg := DefaultConfig()
	p := New(venue, testBreaker(), cfg, nil)

	size, err := p.EstimateOptimalSize(context.Background(), gala, gusdc)
	require.NoError(t, err)
	assert.True(t, size.Equal(cfg.MinSize), "heavy slippage should map to min size, got %s", size)
}

func TestSizeForSlippage_MonotoneDecreasing(t *testing.T) {
	p := New(stub.NewVenue(), testBreaker(), DefaultConfig(), nil)

	prev := p.sizeForSlippage(decimal.Zero)
	for _, pct := range []float64{0.5, 1, 2, 3, 4, 5, 6} {
		size := p.sizeForSlippage(decimal.NewFromFloat(pct))
		assert.True(t, size.LessThanOrEqual(prev),
			"size must not increase with slippage: %s at %.1f%% after %s", size, pct, prev)
		prev = size
	}
}
