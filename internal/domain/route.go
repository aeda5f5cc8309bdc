// Package domain defines the core types shared across the arbitrage engine:
// tokens, routes, quotes, execution results and per-route performance records.
// All monetary amounts use shopspring/decimal; float64 appears only at
// display boundaries.
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Confidence classifies how far a discovered route clears the profit
// threshold.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Route is a discovered multi-hop arbitrage candidate. The path starts and
// ends at the base asset and is immutable once discovered.
type Route struct {
	// Path is the ordered asset sequence, len >= 3, first == last == base.
	Path []Token `json:"path"`
	// FeeTiers holds the selected tier per hop, len == len(Path)-1.
	FeeTiers []FeeTier `json:"fee_tiers"`

	InputAmount    decimal.Decimal `json:"input_amount"`
	ExpectedOutput decimal.Decimal `json:"expected_output"`

	GrossProfit      decimal.Decimal `json:"gross_profit"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	NetProfitPercent decimal.Decimal `json:"net_profit_percent"`
	EstimatedGas     decimal.Decimal `json:"estimated_gas"`

	Confidence   Confidence `json:"confidence"`
	DiscoveredAt time.Time  `json:"discovered_at"`
}

// Hops returns the number of swaps in the route.
func (r *Route) Hops() int {
	if len(r.Path) < 2 {
		return 0
	}
	return len(r.Path) - 1
}

// Symbols returns the symbol sequence parallel to Path.
func (r *Route) Symbols() []string {
	symbols := make([]string, len(r.Path))
	for i, t := range r.Path {
		symbols[i] = t.Symbol
	}
	return symbols
}

// PathString renders the route as "GALA -> GUSDC -> GWETH -> GALA".
func (r *Route) PathString() string {
	return strings.Join(r.Symbols(), " -> ")
}

// AssetSet returns every asset the route touches, base included. Two routes
// whose asset sets intersect cannot run concurrently against one balance
// snapshot.
func (r *Route) AssetSet() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Path))
	for _, t := range r.Path {
		set[t.Symbol] = struct{}{}
	}
	return set
}

// Quote is the venue's answer to "how much of assetOut for this much
// assetIn", together with the fee tier that produced it.
type Quote struct {
	OutputAmount decimal.Decimal `json:"output_amount"`
	FeeTier      FeeTier         `json:"fee_tier"`
}
