package domain

import "fmt"

// Token represents a tradable asset on the swap venue.
type Token struct {
	Symbol   string `json:"symbol"`
	Key      string `json:"key"` // venue composite key, e.g. "GALA|Unit|none|none"
	Decimals int    `json:"decimals"`
}

// String returns the token symbol for display.
func (t Token) String() string {
	return t.Symbol
}

// Validate checks that the token carries the fields the venue requires.
func (t Token) Validate() error {
	if t.Symbol == "" {
		return fmt.Errorf("token symbol is empty")
	}
	if t.Key == "" {
		return fmt.Errorf("token %s has no venue key", t.Symbol)
	}
	if t.Decimals <= 0 {
		return fmt.Errorf("token %s has invalid decimals %d", t.Symbol, t.Decimals)
	}
	return nil
}

// FeeTier is a discrete pool fee level in basis points.
// Different tiers may carry different liquidity for the same pair.
type FeeTier int

// Fee tiers offered by the venue.
const (
	FeeTierLowest FeeTier = 500
	FeeTierMedium FeeTier = 3000
	FeeTierHigh   FeeTier = 10000
)

// DefaultFeeTiers lists the tiers the probe tries in best-of mode.
func DefaultFeeTiers() []FeeTier {
	return []FeeTier{FeeTierLowest, FeeTierMedium, FeeTierHigh}
}
