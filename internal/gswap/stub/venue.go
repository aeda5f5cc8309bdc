// Package stub provides a scripted in-process venue for tests. Pools,
// balances and transaction outcomes are configured up front; every call is
// counted so tests can assert how many quotes a search issued.
package stub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
)

// Pool is one scripted pool: a directional pair on one fee tier with a
// constant exchange rate.
type Pool struct {
	TokenIn  string
	TokenOut string
	FeeTier  domain.FeeTier
	// Rate is outputAmount per unit of input.
	Rate decimal.Decimal
	// SlippagePercent degrades the rate per unit of input, simulating depth.
	// Zero means infinite depth.
	SlippagePercent decimal.Decimal
	// Err, when set, makes every quote against this pool fail with it.
	Err error
}

// Venue is a scripted gswap.Client.
type Venue struct {
	mu       sync.Mutex
	pools    map[string]*Pool
	balances map[string]decimal.Decimal

	quoteCalls  int
	swapCalls   int
	statusCalls int

	// QuoteErr, when set, fails every quote (dependency outage).
	QuoteErr error
	// SubmitErr, when set, fails every submission.
	SubmitErr error
	// Confirmations scripts AwaitConfirmation per transaction ID; missing
	// entries confirm immediately.
	Confirmations map[string]domain.ConfirmationStatus

	nextTxID int
}

// NewVenue creates an empty scripted venue.
func NewVenue() *Venue {
	return &Venue{
		pools:         make(map[string]*Pool),
		balances:      make(map[string]decimal.Decimal),
		Confirmations: make(map[string]domain.ConfirmationStatus),
	}
}

var _ gswap.Client = (*Venue)(nil)

func poolKey(in, out string, tier domain.FeeTier) string {
	return fmt.Sprintf("%s/%s@%d", in, out, tier)
}

// AddPool registers a directional pool.
func (v *Venue) AddPool(p Pool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	cp := p
	v.pools[poolKey(p.TokenIn, p.TokenOut, p.FeeTier)] = &cp
}

// AddPair registers the same rate both ways on one tier, with the reverse
// rate inverted.
func (v *Venue) AddPair(a, b string, tier domain.FeeTier, rate decimal.Decimal) {
	v.AddPool(Pool{TokenIn: a, TokenOut: b, FeeTier: tier, Rate: rate})
	v.AddPool(Pool{TokenIn: b, TokenOut: a, FeeTier: tier, Rate: decimal.NewFromInt(1).Div(rate)})
}

// SetBalance scripts the spendable balance for a token symbol.
func (v *Venue) SetBalance(symbol string, amount decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[symbol] = amount
}

// QuoteCalls returns how many quotes were issued.
func (v *Venue) QuoteCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.quoteCalls
}

// SwapCalls returns how many swaps were submitted.
func (v *Venue) SwapCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.swapCalls
}

// QuoteExactInput implements gswap.Quoter.
func (v *Venue) QuoteExactInput(_ context.Context, tokenIn, tokenOut domain.Token, amountIn decimal.Decimal, tier domain.FeeTier) (*domain.Quote, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.quoteCalls++

	if v.QuoteErr != nil {
		return nil, v.QuoteErr
	}
	if amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive amount")
	}

	pool, err := v.lookupPool(tokenIn.Symbol, tokenOut.Symbol, tier)
	if err != nil {
		return nil, err
	}
	if pool.Err != nil {
		return nil, pool.Err
	}

	out := amountIn.Mul(pool.Rate)
	if pool.SlippagePercent.Sign() > 0 {
		// Linear price impact: lose SlippagePercent of output per unit in.
		impact := pool.SlippagePercent.Div(decimal.NewFromInt(100)).Mul(amountIn)
		factor := decimal.NewFromInt(1).Sub(impact)
		if factor.Sign() <= 0 {
			factor = decimal.New(1, -6)
		}
		out = out.Mul(factor)
	}
	return &domain.Quote{OutputAmount: out, FeeTier: pool.FeeTier}, nil
}

// lookupPool finds the pool for the pair. Tier 0 returns the best tier by
// rate, mirroring the venue's auto-select behavior. Caller holds v.mu.
func (v *Venue) lookupPool(in, out string, tier domain.FeeTier) (*Pool, error) {
	if tier != 0 {
		pool, ok := v.pools[poolKey(in, out, tier)]
		if !ok {
			return nil, fmt.Errorf("%s/%s tier %d: %w", in, out, tier, gswap.ErrNoPool)
		}
		return pool, nil
	}

	var best *Pool
	for _, p := range v.pools {
		if p.TokenIn != in || p.TokenOut != out {
			continue
		}
		if best == nil || p.Rate.GreaterThan(best.Rate) {
			best = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s/%s: %w", in, out, gswap.ErrNoPool)
	}
	return best, nil
}

// SubmitSwap implements gswap.Swapper, debiting and crediting balances as if
// the swap filled at the quoted rate.
func (v *Venue) SubmitSwap(ctx context.Context, req gswap.SwapRequest) (*gswap.TxHandle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.swapCalls++

	if v.SubmitErr != nil {
		return nil, v.SubmitErr
	}

	pool, err := v.lookupPool(req.TokenIn.Symbol, req.TokenOut.Symbol, req.FeeTier)
	if err != nil {
		return nil, err
	}
	if pool.Err != nil {
		return nil, pool.Err
	}

	out := req.AmountIn.Mul(pool.Rate)
	if out.LessThan(req.MinAmountOut) {
		return nil, fmt.Errorf("slippage exceeded: %s < %s", out, req.MinAmountOut)
	}

	bal := v.balances[req.TokenIn.Symbol]
	if bal.LessThan(req.AmountIn) {
		return nil, fmt.Errorf("insufficient %s balance: have %s, need %s", req.TokenIn.Symbol, bal, req.AmountIn)
	}
	v.balances[req.TokenIn.Symbol] = bal.Sub(req.AmountIn)
	v.balances[req.TokenOut.Symbol] = v.balances[req.TokenOut.Symbol].Add(out)

	v.nextTxID++
	return &gswap.TxHandle{
		ID:          fmt.Sprintf("stub-tx-%d", v.nextTxID),
		SubmittedAt: time.Now(),
	}, nil
}

// AwaitConfirmation implements gswap.Confirmer from the scripted outcomes.
func (v *Venue) AwaitConfirmation(_ context.Context, handle *gswap.TxHandle, _ time.Duration) (*domain.Confirmation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statusCalls++

	status, ok := v.Confirmations[handle.ID]
	if !ok {
		status = domain.ConfirmationConfirmed
	}
	return &domain.Confirmation{Status: status}, nil
}

// GetBalance implements gswap.BalanceReader.
func (v *Venue) GetBalance(_ context.Context, token domain.Token) (decimal.Decimal, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[token.Symbol], nil
}
