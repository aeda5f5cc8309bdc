package gswap

import (
	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
)

// GasStrategy prices the fee bid attached to each hop submission. Invoked
// immediately before SubmitSwap so the bid can reflect the hop's position in
// the route.
type GasStrategy interface {
	// Bid returns the gas bid for the given hop of a route with hops total hops.
	Bid(route *domain.Route, hopIndex int) decimal.Decimal
}

// StaticGasStrategy bids the same amount for every hop.
type StaticGasStrategy struct {
	Amount decimal.Decimal
}

// Bid implements GasStrategy.
func (s StaticGasStrategy) Bid(*domain.Route, int) decimal.Decimal {
	return s.Amount
}

// EscalatingGasStrategy raises the bid for later hops. A stalled tail hop
// strands capital mid-route, so later hops are worth paying more for.
type EscalatingGasStrategy struct {
	Base decimal.Decimal
	// StepPercent raises the bid by this percent per completed hop, e.g. 25
	// bids 1x, 1.25x, 1.5x across a three-hop route.
	StepPercent decimal.Decimal
}

// Bid implements GasStrategy.
func (s EscalatingGasStrategy) Bid(_ *domain.Route, hopIndex int) decimal.Decimal {
	if hopIndex <= 0 {
		return s.Base
	}
	step := s.StepPercent.Div(decimal.NewFromInt(100))
	mult := decimal.NewFromInt(1).Add(step.Mul(decimal.NewFromInt(int64(hopIndex))))
	return s.Base.Mul(mult)
}

var (
	_ GasStrategy = StaticGasStrategy{}
	_ GasStrategy = EscalatingGasStrategy{}
)
