// Package executor runs discovered routes against the venue: sequential hops
// within a route, concurrent routes within a conflict-free batch, sequential
// batches. A route's outcome is always a structured result, never an error,
// so one failed route cannot take down the rest of a batch.
package executor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/breaker"
	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
	"github.com/shoeman22/billionaire-bot-sub000/internal/idhash"
)

// Breaker names used by the pipeline. One breaker per venue dependency.
const (
	BreakerQuotes = "swap-quotes"
	BreakerSwaps  = "swap-submit"
	BreakerStatus = "tx-status"
)

// Config holds execution parameters.
type Config struct {
	// SafetyMarginPercent sets each hop's minimum output below the fresh
	// quote, bounding fill slippage.
	SafetyMarginPercent decimal.Decimal

	// InterHopSlippageBufferPercent discounts a confirmed hop's quoted
	// output before it becomes the next hop's input. The raw optimistic
	// quote is never forwarded.
	InterHopSlippageBufferPercent decimal.Decimal

	// ConfirmationTimeout bounds the wait for finality after a non-final hop.
	ConfirmationTimeout time.Duration

	// TimeoutExtraDelay is the single extra wait applied when confirmation
	// times out before proceeding optimistically.
	TimeoutExtraDelay time.Duration

	// BalancePreflight rejects a route before its first hop when the base
	// asset balance cannot cover the input amount.
	BalancePreflight bool

	// DryRun quotes every hop but submits nothing.
	DryRun bool
}

// DefaultConfig returns the standard execution parameters.
func DefaultConfig() Config {
	return Config{
		SafetyMarginPercent:           decimal.NewFromInt(2),
		InterHopSlippageBufferPercent: decimal.NewFromFloat(0.5),
		ConfirmationTimeout:           10 * time.Second,
		TimeoutExtraDelay:             2 * time.Second,
		BalancePreflight:              true,
	}
}

// Pipeline executes routes.
type Pipeline struct {
	client   gswap.Client
	breakers *breaker.Registry
	gas      gswap.GasStrategy
	cfg      Config
	logger   *log.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
}

// New creates a pipeline. A nil gas strategy bids zero; a nil logger falls
// back to the standard logger.
func New(client gswap.Client, breakers *breaker.Registry, gas gswap.GasStrategy, cfg Config, logger *log.Logger) *Pipeline {
	if gas == nil {
		gas = gswap.StaticGasStrategy{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		client:   client,
		breakers: breakers,
		gas:      gas,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// ExecuteBatches runs each batch's routes concurrently and batches strictly
// in sequence: batch n+1 may reuse assets released by batch n, so it cannot
// start until every route in batch n reaches a terminal state. Context
// cancellation stops between hops and between batches, never mid-submission.
func (p *Pipeline) ExecuteBatches(ctx context.Context, batches [][]*domain.Route) []*domain.ExecutionResult {
	var results []*domain.ExecutionResult

	for i, batch := range batches {
		if ctx.Err() != nil {
			p.logger.Printf("[executor] shutdown before batch %d/%d, %d routes skipped",
				i+1, len(batches), remainingRoutes(batches[i:]))
			break
		}

		batchResults := make([]*domain.ExecutionResult, len(batch))
		var wg sync.WaitGroup
		for j, route := range batch {
			wg.Add(1)
			go func(j int, route *domain.Route) {
				defer wg.Done()
				batchResults[j] = p.ExecuteRoute(ctx, route)
			}(j, route)
		}
		wg.Wait()

		results = append(results, batchResults...)
	}
	return results
}

func remainingRoutes(batches [][]*domain.Route) int {
	n := 0
	for _, b := range batches {
		n += len(b)
	}
	return n
}

// ExecuteRoute runs one route hop by hop and always returns a structured
// result. Each hop gets a fresh breaker-gated quote; its minimum output sits
// SafetyMarginPercent below that quote. Submission failure or a
// FAILED/UNKNOWN confirmation aborts the route, keeping completed hops in
// the result; a confirmation TIMEOUT adds one extra delay and proceeds.
func (p *Pipeline) ExecuteRoute(ctx context.Context, route *domain.Route) *domain.ExecutionResult {
	result := &domain.ExecutionResult{
		Signature: idhash.ComputeRouteSignature(route.Symbols()),
		Route:     route,
		StartedAt: p.now(),
	}

	if err := p.preflight(ctx, route); err != nil {
		return p.fail(result, fmt.Errorf("preflight: %w", err))
	}

	amount := route.InputAmount
	for i := 0; i < route.Hops(); i++ {
		if i > 0 && ctx.Err() != nil {
			return p.fail(result, fmt.Errorf("shutdown after hop %d: %w", i, ctx.Err()))
		}

		tokenIn, tokenOut := route.Path[i], route.Path[i+1]
		tier := route.FeeTiers[i]

		quote, err := breaker.ExecuteValue(ctx, p.breakers.Get(BreakerQuotes), func(ctx context.Context) (*domain.Quote, error) {
			return p.client.QuoteExactInput(ctx, tokenIn, tokenOut, amount, tier)
		})
		if err != nil {
			return p.fail(result, fmt.Errorf("hop %d quote %s/%s: %w", i, tokenIn.Symbol, tokenOut.Symbol, err))
		}

		hop := domain.HopResult{
			Index:        i,
			TokenIn:      tokenIn.Symbol,
			TokenOut:     tokenOut.Symbol,
			FeeTier:      quote.FeeTier,
			AmountIn:     amount,
			QuotedOutput: quote.OutputAmount,
			MinAmountOut: applyDiscount(quote.OutputAmount, p.cfg.SafetyMarginPercent),
		}

		if p.cfg.DryRun {
			hop.TxID = fmt.Sprintf("dryrun-%d", i)
			hop.Confirmation = domain.ConfirmationConfirmed
			result.Hops = append(result.Hops, hop)
			amount = applyDiscount(quote.OutputAmount, p.cfg.InterHopSlippageBufferPercent)
			continue
		}

		handle, err := breaker.ExecuteValue(ctx, p.breakers.Get(BreakerSwaps), func(ctx context.Context) (*gswap.TxHandle, error) {
			return p.client.SubmitSwap(ctx, gswap.SwapRequest{
				TokenIn:      tokenIn,
				TokenOut:     tokenOut,
				FeeTier:      hop.FeeTier,
				AmountIn:     amount,
				MinAmountOut: hop.MinAmountOut,
				GasBid:       p.gas.Bid(route, i),
			})
		})
		if err != nil {
			result.Hops = append(result.Hops, hop)
			return p.fail(result, fmt.Errorf("hop %d submit %s/%s: %w", i, tokenIn.Symbol, tokenOut.Symbol, err))
		}
		hop.TxID = handle.ID

		final := i == route.Hops()-1
		if final {
			result.Hops = append(result.Hops, hop)
			amount = quote.OutputAmount
			break
		}

		conf, err := breaker.ExecuteValue(ctx, p.breakers.Get(BreakerStatus), func(ctx context.Context) (*domain.Confirmation, error) {
			return p.client.AwaitConfirmation(ctx, handle, p.cfg.ConfirmationTimeout)
		})
		if err != nil {
			hop.Confirmation = domain.ConfirmationUnknown
			result.Hops = append(result.Hops, hop)
			return p.fail(result, fmt.Errorf("hop %d confirmation %s: %w", i, handle.ID, err))
		}
		hop.Confirmation = conf.Status
		result.Hops = append(result.Hops, hop)

		switch conf.Status {
		case domain.ConfirmationConfirmed:
			amount = applyDiscount(quote.OutputAmount, p.cfg.InterHopSlippageBufferPercent)
		case domain.ConfirmationTimeout:
			// Finality may simply be slow. Wait once more, then proceed
			// with the buffered amount.
			p.logger.Printf("[executor] hop %d tx %s confirmation timed out, proceeding after %s",
				i, handle.ID, p.cfg.TimeoutExtraDelay)
			p.sleep(ctx, p.cfg.TimeoutExtraDelay)
			amount = applyDiscount(quote.OutputAmount, p.cfg.InterHopSlippageBufferPercent)
		default:
			return p.fail(result, fmt.Errorf("hop %d tx %s: confirmation %s: %s",
				i, handle.ID, conf.Status, conf.ErrorMessage))
		}
	}

	result.Status = domain.ExecutionSuccess
	result.RealizedOutput = amount
	result.RealizedProfit = amount.Sub(route.InputAmount)
	result.RealizedProfitPercent = result.RealizedProfit.
		Div(route.InputAmount).Mul(decimal.NewFromInt(100))
	result.FinishedAt = p.now()

	p.logger.Printf("[executor] route %s completed: realized %s%% (%s)",
		route.PathString(), result.RealizedProfitPercent.StringFixed(4), result.RealizedProfit)
	return result
}

// preflight checks the base asset balance covers the route input.
func (p *Pipeline) preflight(ctx context.Context, route *domain.Route) error {
	if !p.cfg.BalancePreflight || p.cfg.DryRun {
		return nil
	}

	base := route.Path[0]
	balance, err := p.client.GetBalance(ctx, base)
	if err != nil {
		return fmt.Errorf("balance %s: %w", base.Symbol, err)
	}
	if balance.LessThan(route.InputAmount) {
		return fmt.Errorf("insufficient %s balance: have %s, need %s",
			base.Symbol, balance, route.InputAmount)
	}
	return nil
}

// fail finalizes an aborted result. A route with at least one submitted hop
// is partially executed: capital is parked in an intermediate asset.
func (p *Pipeline) fail(result *domain.ExecutionResult, err error) *domain.ExecutionResult {
	result.Error = err.Error()
	result.FinishedAt = p.now()
	if result.CompletedHops() > 0 {
		result.Status = domain.ExecutionPartial
	} else {
		result.Status = domain.ExecutionFailed
	}
	result.RealizedProfit = decimal.Zero
	result.RealizedProfitPercent = decimal.Zero

	p.logger.Printf("[executor] route %s aborted after %d/%d hops: %v",
		result.Route.PathString(), result.CompletedHops(), result.Route.Hops(), err)
	return result
}

func applyDiscount(amount, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percent.Div(decimal.NewFromInt(100)))
	return amount.Mul(factor)
}
