// Package probe measures pair liquidity on the venue: single quotes,
// best-of-N-tier quoting, and trade sizing from observed price impact.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/breaker"
	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
)

// Config controls probing behavior.
type Config struct {
	// FeeTiers are the tiers tried concurrently in best-of mode.
	FeeTiers []domain.FeeTier
	// TrialAmount is the probe size for EstimateOptimalSize.
	TrialAmount decimal.Decimal
	// MinSize and MaxSize clamp the estimated position size.
	MinSize decimal.Decimal
	MaxSize decimal.Decimal
	// SlippageFloorPercent and below maps to MaxSize.
	SlippageFloorPercent decimal.Decimal
	// SlippageCeilingPercent and above maps to MinSize.
	SlippageCeilingPercent decimal.Decimal
}

// DefaultConfig returns the sizing defaults.
func DefaultConfig() Config {
	return Config{
		FeeTiers:               domain.DefaultFeeTiers(),
		TrialAmount:            decimal.NewFromInt(10),
		MinSize:                decimal.NewFromInt(10),
		MaxSize:                decimal.NewFromInt(250),
		SlippageFloorPercent:   decimal.NewFromFloat(0.1),
		SlippageCeilingPercent: decimal.NewFromInt(5),
	}
}

// Probe issues breaker-gated quotes against the venue.
type Probe struct {
	quoter  gswap.Quoter
	breaker *breaker.Breaker
	cfg     Config
	logger  *log.Logger
}

// New creates a probe. All quote traffic runs through br.
func New(quoter gswap.Quoter, br *breaker.Breaker, cfg Config, logger *log.Logger) *Probe {
	if logger == nil {
		logger = log.Default()
	}
	return &Probe{quoter: quoter, breaker: br, cfg: cfg, logger: logger}
}

// Quote fetches one quote for the pair. A venue "no pool" answer surfaces as
// gswap.ErrNoPool and is never recorded as a breaker failure.
func (p *Probe) Quote(ctx context.Context, tokenIn, tokenOut domain.Token, amount decimal.Decimal) (*domain.Quote, error) {
	return p.quoteTier(ctx, tokenIn, tokenOut, amount, 0)
}

// quoteTier quotes one specific tier (0 lets the venue choose).
func (p *Probe) quoteTier(ctx context.Context, tokenIn, tokenOut domain.Token, amount decimal.Decimal, tier domain.FeeTier) (*domain.Quote, error) {
	if tokenIn.Symbol == tokenOut.Symbol {
		return nil, fmt.Errorf("identical input and output asset %s", tokenIn.Symbol)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive quote amount %s", amount)
	}

	var quote *domain.Quote
	var noPool error
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		q, err := p.quoter.QuoteExactInput(ctx, tokenIn, tokenOut, amount, tier)
		if errors.Is(err, gswap.ErrNoPool) {
			// An unlisted pair is an answer, not an outage.
			noPool = err
			return nil
		}
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	if noPool != nil {
		return nil, noPool
	}
	return quote, nil
}

// QuoteBestTier quotes every configured fee tier concurrently and returns
// the tier with the highest output. Individual tier failures are tolerated;
// only if every tier fails does the pair count as having no pool.
func (p *Probe) QuoteBestTier(ctx context.Context, tokenIn, tokenOut domain.Token, amount decimal.Decimal) (*domain.Quote, error) {
	tiers := p.cfg.FeeTiers
	if len(tiers) == 0 {
		return p.Quote(ctx, tokenIn, tokenOut, amount)
	}

	results := make([]*domain.Quote, len(tiers))
	var wg sync.WaitGroup
	for i, tier := range tiers {
		wg.Add(1)
		go func(i int, tier domain.FeeTier) {
			defer wg.Done()
			q, err := p.quoteTier(ctx, tokenIn, tokenOut, amount, tier)
			if err != nil {
				if !errors.Is(err, gswap.ErrNoPool) {
					p.logger.Printf("tier %d quote %s/%s failed: %v", tier, tokenIn.Symbol, tokenOut.Symbol, err)
				}
				return
			}
			results[i] = q
		}(i, tier)
	}
	wg.Wait()

	var best *domain.Quote
	for _, q := range results {
		if q == nil {
			continue
		}
		if best == nil || q.OutputAmount.GreaterThan(best.OutputAmount) {
			best = q
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s/%s on all tiers: %w", tokenIn.Symbol, tokenOut.Symbol, gswap.ErrNoPool)
	}
	return best, nil
}

// EstimateOptimalSize sizes a position to the pair's observed depth. Two
// trial quotes (x and 2x) give the implied slippage: with infinite depth the
// 2x quote returns exactly double; the shortfall from double is the price
// impact. The slippage maps through a monotone decreasing line onto
// [MinSize, MaxSize].
func (p *Probe) EstimateOptimalSize(ctx context.Context, tokenIn, tokenOut domain.Token) (decimal.Decimal, error) {
	trial := p.cfg.TrialAmount
	two := decimal.NewFromInt(2)

	small, err := p.QuoteBestTier(ctx, tokenIn, tokenOut, trial)
	if err != nil {
		return decimal.Zero, err
	}
	large, err := p.QuoteBestTier(ctx, tokenIn, tokenOut, trial.Mul(two))
	if err != nil {
		return decimal.Zero, err
	}

	expected := small.OutputAmount.Mul(two)
	if expected.Sign() <= 0 {
		return p.cfg.MinSize, nil
	}
	shortfall := expected.Sub(large.OutputAmount)
	if shortfall.Sign() < 0 {
		shortfall = decimal.Zero
	}
	slippagePct := shortfall.Div(expected).Mul(decimal.NewFromInt(100))

	return p.sizeForSlippage(slippagePct), nil
}

// sizeForSlippage maps a slippage percent onto [MinSize, MaxSize],
// decreasing monotonically.
func (p *Probe) sizeForSlippage(slippagePct decimal.Decimal) decimal.Decimal {
	floor := p.cfg.SlippageFloorPercent
	ceiling := p.cfg.SlippageCeilingPercent

	if slippagePct.LessThanOrEqual(floor) {
		return p.cfg.MaxSize
	}
	if slippagePct.GreaterThanOrEqual(ceiling) {
		return p.cfg.MinSize
	}

	span := ceiling.Sub(floor)
	if span.Sign() <= 0 {
		return p.cfg.MinSize
	}
	frac := slippagePct.Sub(floor).Div(span)
	sizeRange := p.cfg.MaxSize.Sub(p.cfg.MinSize)
	return p.cfg.MaxSize.Sub(frac.Mul(sizeRange))
}
