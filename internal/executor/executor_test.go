package executor

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoeman22/billionaire-bot-sub000/internal/breaker"
	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap/stub"
)

func token(symbol string) domain.Token {
	return domain.Token{Symbol: symbol, Key: symbol + "|Unit|none|none", Decimals: 8}
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// triangularRoute is GALA -> GUSDC -> GALA sized at 100.
func triangularRoute() *domain.Route {
	return &domain.Route{
		Path:        []domain.Token{token("GALA"), token("GUSDC"), token("GALA")},
		FeeTiers:    []domain.FeeTier{domain.FeeTierMedium, domain.FeeTierMedium},
		InputAmount: decimal.NewFromInt(100),
	}
}

// profitableVenue quotes GALA->GUSDC at 2 and GUSDC->GALA at 0.55 (+10%
// round trip) with a funded GALA balance.
func profitableVenue() *stub.Venue {
	venue := stub.NewVenue()
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierMedium, Rate: dec(2)})
	venue.AddPool(stub.Pool{TokenIn: "GUSDC", TokenOut: "GALA", FeeTier: domain.FeeTierMedium, Rate: dec(0.55)})
	venue.SetBalance("GALA", decimal.NewFromInt(1000))
	return venue
}

func testRegistry() *breaker.Registry {
	return breaker.NewRegistry(breaker.Config{
		FailureThreshold: 100,
		SuccessThreshold: 1,
		OpenTimeout:      time.Minute,
		MonitoringWindow: time.Minute,
	}, nil)
}

func newPipeline(venue *stub.Venue, cfg Config) *Pipeline {
	return New(venue, testRegistry(), nil, cfg, nil)
}

func TestExecuteRoute_Success(t *testing.T) {
	venue := profitableVenue()
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	require.Equal(t, domain.ExecutionSuccess, result.Status)
	require.Len(t, result.Hops, 2)
	assert.Empty(t, result.Error)
	assert.Equal(t, 2, result.CompletedHops())

	// Hop 1: 100 -> 200, confirmed, buffered by 0.5% -> hop 2 input 199.
	assert.True(t, result.Hops[0].QuotedOutput.Equal(dec(200)))
	assert.Equal(t, domain.ConfirmationConfirmed, result.Hops[0].Confirmation)
	assert.True(t, result.Hops[1].AmountIn.Equal(dec(199)),
		"next hop must use the buffered output, got %s", result.Hops[1].AmountIn)

	// Hop 2: 199 * 0.55 = 109.45 -> +9.45%.
	assert.True(t, result.RealizedOutput.Equal(dec(109.45)), "got %s", result.RealizedOutput)
	assert.True(t, result.RealizedProfitPercent.Equal(dec(9.45)), "got %s", result.RealizedProfitPercent)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestExecuteRoute_MinOutputBelowFreshQuote(t *testing.T) {
	venue := profitableVenue()
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())
	require.Equal(t, domain.ExecutionSuccess, result.Status)

	for _, hop := range result.Hops {
		want := hop.QuotedOutput.Mul(dec(0.98))
		assert.True(t, hop.MinAmountOut.Equal(want),
			"hop %d min out %s, want %s", hop.Index, hop.MinAmountOut, want)
	}
}

func TestExecuteRoute_PreflightRejectsUnderfundedRoute(t *testing.T) {
	venue := profitableVenue()
	venue.SetBalance("GALA", decimal.NewFromInt(50))
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	assert.Equal(t, domain.ExecutionFailed, result.Status)
	assert.Contains(t, result.Error, "insufficient")
	assert.Zero(t, venue.SwapCalls(), "an underfunded route must never reach the venue")
	assert.Empty(t, result.Hops)
}

func TestExecuteRoute_SubmissionFailureIsFailedWithNoHops(t *testing.T) {
	venue := profitableVenue()
	venue.SubmitErr = assert.AnError
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	assert.Equal(t, domain.ExecutionFailed, result.Status)
	assert.Contains(t, result.Error, "submit")
	require.Len(t, result.Hops, 1, "the attempted hop stays in the result")
	assert.Empty(t, result.Hops[0].TxID)
	assert.Zero(t, result.CompletedHops())
}

func TestExecuteRoute_FailedConfirmationAbortsPartially(t *testing.T) {
	venue := profitableVenue()
	venue.Confirmations["stub-tx-1"] = domain.ConfirmationFailed
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	assert.Equal(t, domain.ExecutionPartial, result.Status,
		"a submitted first hop leaves capital parked in GUSDC")
	assert.Equal(t, 1, result.CompletedHops())
	assert.Equal(t, 1, venue.SwapCalls(), "remaining hops must not be submitted")
	assert.Contains(t, result.Error, "FAILED")
	assert.True(t, result.RealizedProfit.IsZero())
}

func TestExecuteRoute_UnknownConfirmationAborts(t *testing.T) {
	venue := profitableVenue()
	venue.Confirmations["stub-tx-1"] = domain.ConfirmationUnknown
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	assert.Equal(t, domain.ExecutionPartial, result.Status)
	assert.Equal(t, 1, venue.SwapCalls())
}

func TestExecuteRoute_TimeoutProceedsAfterExtraDelay(t *testing.T) {
	venue := profitableVenue()
	venue.Confirmations["stub-tx-1"] = domain.ConfirmationTimeout

	cfg := DefaultConfig()
	cfg.TimeoutExtraDelay = 42 * time.Millisecond
	p := newPipeline(venue, cfg)

	var slept []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	require.Equal(t, domain.ExecutionSuccess, result.Status,
		"timeout means proceed cautiously, not abort")
	assert.Equal(t, domain.ConfirmationTimeout, result.Hops[0].Confirmation)
	assert.Equal(t, []time.Duration{42 * time.Millisecond}, slept)
	// The buffered amount is still used after a timeout.
	assert.True(t, result.Hops[1].AmountIn.Equal(dec(199)))
}

func TestExecuteRoute_QuoteFailureIsStructuredResult(t *testing.T) {
	venue := profitableVenue()
	venue.QuoteErr = assert.AnError
	p := newPipeline(venue, DefaultConfig())

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	assert.Equal(t, domain.ExecutionFailed, result.Status)
	assert.Contains(t, result.Error, "quote")
	assert.Zero(t, venue.SwapCalls())
}

func TestExecuteRoute_DryRunSubmitsNothing(t *testing.T) {
	venue := profitableVenue()
	cfg := DefaultConfig()
	cfg.DryRun = true
	p := newPipeline(venue, cfg)

	result := p.ExecuteRoute(context.Background(), triangularRoute())

	require.Equal(t, domain.ExecutionSuccess, result.Status)
	assert.Zero(t, venue.SwapCalls())
	for _, hop := range result.Hops {
		assert.Contains(t, hop.TxID, "dryrun-")
	}
}

func TestExecuteBatches_SequentialAcrossBatches(t *testing.T) {
	venue := profitableVenue()
	venue.AddPool(stub.Pool{TokenIn: "GALA", TokenOut: "GWETH", FeeTier: domain.FeeTierMedium, Rate: dec(2)})
	venue.AddPool(stub.Pool{TokenIn: "GWETH", TokenOut: "GALA", FeeTier: domain.FeeTierMedium, Rate: dec(0.55)})

	second := &domain.Route{
		Path:        []domain.Token{token("GALA"), token("GWETH"), token("GALA")},
		FeeTiers:    []domain.FeeTier{domain.FeeTierMedium, domain.FeeTierMedium},
		InputAmount: decimal.NewFromInt(100),
	}

	p := newPipeline(venue, DefaultConfig())
	batches := [][]*domain.Route{{triangularRoute()}, {second}}

	results := p.ExecuteBatches(context.Background(), batches)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, domain.ExecutionSuccess, r.Status)
	}
	// Batch 2 starts only after batch 1 finished.
	assert.False(t, results[1].StartedAt.Before(results[0].FinishedAt))
}

func TestExecuteBatches_CancelledContextSkipsLaterBatches(t *testing.T) {
	venue := profitableVenue()
	p := newPipeline(venue, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.ExecuteBatches(ctx, [][]*domain.Route{{triangularRoute()}})
	assert.Empty(t, results)
	assert.Zero(t, venue.SwapCalls())
}
