// Package discovery explores multi-hop routes that start and end at the
// base asset, quoting each hop against the venue and keeping candidates
// whose net profit clears the threshold. Fixed 3- and 4-hop motifs are
// enumerated exhaustively; deeper routes come from a pruned, budget-bounded
// depth-first search.
package discovery

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/gswap"
	"github.com/shoeman22/billionaire-bot-sub000/internal/idhash"
	"github.com/shoeman22/billionaire-bot-sub000/internal/probe"
)

// DepthRange bounds route length in hops, inclusive.
type DepthRange struct {
	Min int
	Max int
}

// Config controls the discovery engine.
type Config struct {
	// Candidates are the non-base assets eligible as intermediates.
	Candidates []domain.Token
	// HighLiquidityCore restricts the candidate universe for depth >= 5 to
	// bound branching; symbols not listed are skipped at those depths.
	HighLiquidityCore []string
	// InputAmount is the default position size routes are quoted at.
	InputAmount decimal.Decimal
	// PerHopGas is the estimated network cost per hop, in base asset units.
	PerHopGas decimal.Decimal
	// LossFloorPercent prunes a DFS branch whose single-hop return falls
	// below it, e.g. -5.
	LossFloorPercent decimal.Decimal
	// MaxRoutesExplored is the work budget: complete cycles the variable
	// depth search may evaluate before stopping. Partial results are valid.
	MaxRoutesExplored int64
	// Verbose logs per-candidate rejections.
	Verbose bool
}

// DefaultConfig returns the discovery defaults.
func DefaultConfig() Config {
	return Config{
		InputAmount:       decimal.NewFromInt(100),
		PerHopGas:         decimal.NewFromFloat(0.25),
		LossFloorPercent:  decimal.NewFromInt(-5),
		MaxRoutesExplored: 500,
	}
}

// Engine discovers profitable routes through a liquidity probe.
type Engine struct {
	probe  *probe.Probe
	cfg    Config
	logger *log.Logger
}

// New creates a discovery engine.
func New(p *probe.Probe, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{probe: p, cfg: cfg, logger: logger}
}

// searchBudget is the explored-leaf-route counter threaded through the
// recursive search. An atomic rather than a closed-over int so the search
// stays pure and unit-testable.
type searchBudget struct {
	remaining atomic.Int64
}

func newSearchBudget(n int64) *searchBudget {
	b := &searchBudget{}
	b.remaining.Store(n)
	return b
}

// spend consumes one leaf evaluation; false once the budget is exhausted.
func (b *searchBudget) spend() bool {
	return b.remaining.Add(-1) >= 0
}

func (b *searchBudget) exhausted() bool {
	return b.remaining.Load() <= 0
}

// Discover explores routes of depth.Min..depth.Max hops from base and
// returns profitable candidates sorted by net profit percent descending.
// Per-candidate quote failures are swallowed: one bad pair never aborts the
// scan.
func (e *Engine) Discover(ctx context.Context, base domain.Token, depth DepthRange, minProfitPercent decimal.Decimal) ([]*domain.Route, error) {
	if depth.Min < 2 {
		depth.Min = 2
	}
	if depth.Max < depth.Min {
		depth.Max = depth.Min
	}

	var routes []*domain.Route
	seen := make(map[string]struct{})

	keep := func(r *domain.Route) {
		key := strings.Join(r.Symbols(), "|")
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		routes = append(routes, r)
	}

	if depth.Min <= 3 && depth.Max >= 3 {
		e.scanTriangular(ctx, base, minProfitPercent, keep)
	}
	if depth.Min <= 4 && depth.Max >= 4 {
		e.scanFourHop(ctx, base, minProfitPercent, keep)
	}
	if depth.Max >= 5 {
		prices, err := e.buildPriceIndex(ctx, base)
		if err != nil {
			e.logger.Printf("price index unavailable, skipping deep search: %v", err)
		} else {
			budget := newSearchBudget(e.cfg.MaxRoutesExplored)
			start := 4
			if depth.Min > start {
				start = depth.Min
			}
			e.deepSearch(ctx, base, start, depth.Max, minProfitPercent, prices, budget, keep)
			if budget.exhausted() {
				e.logger.Printf("deep search stopped at route budget (%d evaluated)", e.cfg.MaxRoutesExplored)
			}
		}
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].NetProfitPercent.GreaterThan(routes[j].NetProfitPercent)
	})
	return routes, ctx.Err()
}

// scanTriangular enumerates base -> A -> B -> base for all ordered candidate
// pairs, quoting hops sequentially and rejecting early on missing pools.
func (e *Engine) scanTriangular(ctx context.Context, base domain.Token, minProfit decimal.Decimal, keep func(*domain.Route)) {
	for _, a := range e.cfg.Candidates {
		if ctx.Err() != nil {
			return
		}
		if a.Symbol == base.Symbol {
			continue
		}
		q1, ok := e.quoteHop(ctx, base, a, e.cfg.InputAmount)
		if !ok {
			continue
		}
		for _, b := range e.cfg.Candidates {
			if ctx.Err() != nil {
				return
			}
			if b.Symbol == base.Symbol || b.Symbol == a.Symbol {
				continue
			}
			q2, ok := e.quoteHop(ctx, a, b, q1.OutputAmount)
			if !ok {
				continue
			}
			q3, ok := e.quoteHop(ctx, b, base, q2.OutputAmount)
			if !ok {
				continue
			}
			route := e.buildRoute(
				[]domain.Token{base, a, b, base},
				[]domain.FeeTier{q1.FeeTier, q2.FeeTier, q3.FeeTier},
				q3.OutputAmount, minProfit,
			)
			if route != nil {
				keep(route)
			}
		}
	}
}

// scanFourHop enumerates base -> A -> B -> C -> base. The A->B quotes from
// the triangular pass are not reused: liquidity moves between scans and a
// stale quote would poison the whole chain.
func (e *Engine) scanFourHop(ctx context.Context, base domain.Token, minProfit decimal.Decimal, keep func(*domain.Route)) {
	for _, a := range e.cfg.Candidates {
		if ctx.Err() != nil {
			return
		}
		if a.Symbol == base.Symbol {
			continue
		}
		q1, ok := e.quoteHop(ctx, base, a, e.cfg.InputAmount)
		if !ok {
			continue
		}
		for _, b := range e.cfg.Candidates {
			if b.Symbol == base.Symbol || b.Symbol == a.Symbol {
				continue
			}
			q2, ok := e.quoteHop(ctx, a, b, q1.OutputAmount)
			if !ok {
				continue
			}
			for _, c := range e.cfg.Candidates {
				if ctx.Err() != nil {
					return
				}
				if c.Symbol == base.Symbol || c.Symbol == a.Symbol || c.Symbol == b.Symbol {
					continue
				}
				q3, ok := e.quoteHop(ctx, b, c, q2.OutputAmount)
				if !ok {
					continue
				}
				q4, ok := e.quoteHop(ctx, c, base, q3.OutputAmount)
				if !ok {
					continue
				}
				route := e.buildRoute(
					[]domain.Token{base, a, b, c, base},
					[]domain.FeeTier{q1.FeeTier, q2.FeeTier, q3.FeeTier, q4.FeeTier},
					q4.OutputAmount, minProfit,
				)
				if route != nil {
					keep(route)
				}
			}
		}
	}
}

// priceIndex values every asset in base units so the deep search can price
// a hop without issuing extra quotes.
type priceIndex map[string]decimal.Decimal

// buildPriceIndex quotes base -> candidate once per candidate at the trial
// size. Candidates with no direct pool against base are left out and the
// deep search skips them.
func (e *Engine) buildPriceIndex(ctx context.Context, base domain.Token) (priceIndex, error) {
	prices := priceIndex{base.Symbol: decimal.NewFromInt(1)}
	probeAmount := e.cfg.InputAmount
	for _, c := range e.cfg.Candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.Symbol == base.Symbol {
			continue
		}
		q, ok := e.quoteHop(ctx, base, c, probeAmount)
		if !ok {
			continue
		}
		if q.OutputAmount.Sign() <= 0 {
			continue
		}
		// base units per one unit of c.
		prices[c.Symbol] = probeAmount.Div(q.OutputAmount)
	}
	if len(prices) < 3 {
		return nil, errors.New("too few priceable candidates")
	}
	return prices, nil
}

// deepSearch runs the variable-depth DFS for routes of minHops..maxHops.
func (e *Engine) deepSearch(ctx context.Context, base domain.Token, minHops, maxHops int, minProfit decimal.Decimal, prices priceIndex, budget *searchBudget, keep func(*domain.Route)) {
	st := &searchState{
		base:      base,
		minHops:   minHops,
		maxHops:   maxHops,
		minProfit: minProfit,
		prices:    prices,
		budget:    budget,
		keep:      keep,
	}
	st.visited = map[string]struct{}{base.Symbol: {}}
	e.dfs(ctx, st, base, e.cfg.InputAmount, []domain.Token{base}, nil)
}

// searchState carries the immutable parameters of one deep search.
type searchState struct {
	base      domain.Token
	minHops   int
	maxHops   int
	minProfit decimal.Decimal
	prices    priceIndex
	budget    *searchBudget
	keep      func(*domain.Route)
	visited   map[string]struct{}
}

// dfs extends the path from current holding amount of current's asset.
// path holds the assets visited so far (starting with base); tiers holds one
// entry per completed hop.
func (e *Engine) dfs(ctx context.Context, st *searchState, current domain.Token, amount decimal.Decimal, path []domain.Token, tiers []domain.FeeTier) {
	if ctx.Err() != nil || st.budget.exhausted() {
		return
	}
	hops := len(path) - 1

	// Closing the cycle is allowed anywhere in [minHops-1, maxHops-1] hops
	// out, since the return hop adds one.
	if hops+1 >= st.minHops {
		e.tryClose(ctx, st, current, amount, path, tiers)
	}
	if hops+1 >= st.maxHops {
		return
	}

	for _, next := range e.cfg.Candidates {
		if ctx.Err() != nil || st.budget.exhausted() {
			return
		}
		if next.Symbol == st.base.Symbol {
			continue
		}
		if _, used := st.visited[next.Symbol]; used {
			continue
		}
		// Paths already four assets long can only finish as 5+ hop routes;
		// those only walk the high-liquidity core.
		if len(path) >= 4 && !e.inCore(next.Symbol) {
			continue
		}
		price, priced := st.prices[next.Symbol]
		if !priced {
			continue
		}

		q, ok := e.quoteHop(ctx, current, next, amount)
		if !ok {
			continue
		}

		// Prune on the hop's own return, valued in base units, before any
		// quote beyond this hop is issued.
		valueIn := amount.Mul(st.prices[current.Symbol])
		valueOut := q.OutputAmount.Mul(price)
		if valueIn.Sign() > 0 {
			hopReturnPct := valueOut.Sub(valueIn).Div(valueIn).Mul(decimal.NewFromInt(100))
			if hopReturnPct.LessThan(e.cfg.LossFloorPercent) {
				if e.cfg.Verbose {
					e.logger.Printf("pruned %s -> %s at %s%% hop return", current.Symbol, next.Symbol, hopReturnPct.StringFixed(2))
				}
				continue
			}
		}

		st.visited[next.Symbol] = struct{}{}
		nextPath := append(append([]domain.Token{}, path...), next)
		nextTiers := append(append([]domain.FeeTier{}, tiers...), q.FeeTier)
		e.dfs(ctx, st, next, q.OutputAmount, nextPath, nextTiers)
		delete(st.visited, next.Symbol)
	}
}

// tryClose quotes the return hop to base and evaluates the complete cycle.
func (e *Engine) tryClose(ctx context.Context, st *searchState, current domain.Token, amount decimal.Decimal, path []domain.Token, tiers []domain.FeeTier) {
	if current.Symbol == st.base.Symbol {
		return
	}
	if !st.budget.spend() {
		return
	}
	q, ok := e.quoteHop(ctx, current, st.base, amount)
	if !ok {
		return
	}
	route := e.buildRoute(
		append(append([]domain.Token{}, path...), st.base),
		append(append([]domain.FeeTier{}, tiers...), q.FeeTier),
		q.OutputAmount, st.minProfit,
	)
	if route != nil {
		st.keep(route)
	}
}

// inCore reports whether the symbol is in the restricted deep-search
// universe. An empty core list admits every candidate.
func (e *Engine) inCore(symbol string) bool {
	if len(e.cfg.HighLiquidityCore) == 0 {
		return true
	}
	for _, s := range e.cfg.HighLiquidityCore {
		if s == symbol {
			return true
		}
	}
	return false
}

// quoteHop issues one best-tier quote, swallowing failures: a no-pool answer
// or a dependency error both just exclude the candidate.
func (e *Engine) quoteHop(ctx context.Context, in, out domain.Token, amount decimal.Decimal) (*domain.Quote, bool) {
	q, err := e.probe.QuoteBestTier(ctx, in, out, amount)
	if err != nil {
		if e.cfg.Verbose && !errors.Is(err, gswap.ErrNoPool) {
			e.logger.Printf("quote %s -> %s failed: %v", in.Symbol, out.Symbol, err)
		}
		return nil, false
	}
	return q, true
}

// buildRoute computes profit figures for a completed cycle and returns a
// Route if the net profit percent clears minProfit, nil otherwise. All
// comparisons are decimal; floats never touch thresholds.
func (e *Engine) buildRoute(path []domain.Token, tiers []domain.FeeTier, finalOutput decimal.Decimal, minProfit decimal.Decimal) *domain.Route {
	input := e.cfg.InputAmount
	hops := len(path) - 1

	gas := e.cfg.PerHopGas.Mul(decimal.NewFromInt(int64(hops)))
	gross := finalOutput.Sub(input)
	net := gross.Sub(gas)
	if input.Sign() <= 0 {
		return nil
	}
	netPct := net.Div(input).Mul(decimal.NewFromInt(100))
	if netPct.LessThan(minProfit) {
		return nil
	}

	return &domain.Route{
		Path:             path,
		FeeTiers:         tiers,
		InputAmount:      input,
		ExpectedOutput:   finalOutput,
		GrossProfit:      gross,
		NetProfit:        net,
		NetProfitPercent: netPct,
		EstimatedGas:     gas,
		Confidence:       confidenceFor(netPct, minProfit),
		DiscoveredAt:     time.Now(),
	}
}

// confidenceFor grades how far the route clears the discovery threshold:
// high above ~2x, medium above ~1.5x, low otherwise.
func confidenceFor(netPct, minProfit decimal.Decimal) domain.Confidence {
	if minProfit.Sign() <= 0 {
		return domain.ConfidenceLow
	}
	ratio := netPct.Div(minProfit)
	switch {
	case ratio.GreaterThanOrEqual(decimal.NewFromInt(2)):
		return domain.ConfidenceHigh
	case ratio.GreaterThanOrEqual(decimal.NewFromFloat(1.5)):
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// Signature returns the learning-store key for a route.
func Signature(r *domain.Route) string {
	return idhash.ComputeRouteSignature(r.Symbols())
}
