package learning

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/idhash"
)

// Volatility bands and adjustment steps for the adaptive threshold, in
// percent points.
var (
	volatilityHighBand = decimal.NewFromInt(3)
	volatilityMidBand  = decimal.NewFromInt(2)
	volatilityLowBand  = decimal.NewFromInt(1)

	thresholdStepLarge = decimal.NewFromFloat(0.3)
	thresholdStepSmall = decimal.NewFromFloat(0.2)

	confidenceGate     = decimal.NewFromFloat(0.7)
	confidenceGateSpan = decimal.NewFromFloat(0.3)
	confidenceMaxCut   = decimal.NewFromFloat(0.5)

	thresholdFloor = decimal.NewFromFloat(0.1)

	profitDeadBand = decimal.NewFromFloat(0.5)
)

// AdaptiveThreshold derives the live minimum-profit threshold from base.
// High recent volatility loosens the threshold (volatile markets open more
// real opportunities), low volatility tightens it, and a well-proven route
// earns a further cut scaled by its confidence above 0.7. The result never
// drops below 0.1.
func (s *Store) AdaptiveThreshold(base decimal.Decimal, route *domain.Route) decimal.Decimal {
	s.mu.RLock()
	samples := recent(s.volatilityHistory, s.cfg.RecentWindow)
	vol := mean(samples)
	haveVol := len(samples) > 0

	var conf decimal.Decimal
	if route != nil {
		if p, ok := s.perf[idhash.ComputeRouteSignature(route.Symbols())]; ok {
			conf = p.Confidence
		}
	}
	s.mu.RUnlock()

	threshold := base
	if haveVol {
		switch {
		case vol.GreaterThan(volatilityHighBand):
			threshold = threshold.Sub(thresholdStepLarge)
		case vol.GreaterThan(volatilityMidBand):
			threshold = threshold.Sub(thresholdStepSmall)
		case vol.LessThan(volatilityLowBand):
			threshold = threshold.Add(thresholdStepLarge)
		}
	}

	if conf.GreaterThan(confidenceGate) {
		// confidence in (0.7, 1.0] maps linearly to a cut in (0, 0.5].
		cut := conf.Sub(confidenceGate).Div(confidenceGateSpan).Mul(confidenceMaxCut)
		threshold = threshold.Sub(cut)
	}

	if threshold.LessThan(thresholdFloor) {
		return thresholdFloor
	}
	return threshold
}

// Prioritize orders candidate routes for execution. Net profit percent is
// the primary key, but differences inside a 0.5-point dead band are treated
// as noise: there, historical confidence decides, then success rate.
func (s *Store) Prioritize(routes []*domain.Route) []*domain.Route {
	type ranked struct {
		route *domain.Route
		conf  decimal.Decimal
		rate  decimal.Decimal
	}

	s.mu.RLock()
	items := make([]ranked, len(routes))
	for i, r := range routes {
		items[i] = ranked{route: r}
		if p, ok := s.perf[idhash.ComputeRouteSignature(r.Symbols())]; ok {
			items[i].conf = p.Confidence
			items[i].rate = p.SuccessRate
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		diff := items[i].route.NetProfitPercent.Sub(items[j].route.NetProfitPercent)
		if diff.Abs().GreaterThan(profitDeadBand) {
			return diff.IsPositive()
		}
		if !items[i].conf.Equal(items[j].conf) {
			return items[i].conf.GreaterThan(items[j].conf)
		}
		return items[i].rate.GreaterThan(items[j].rate)
	})

	out := make([]*domain.Route, len(items))
	for i, it := range items {
		out[i] = it.route
	}
	return out
}
