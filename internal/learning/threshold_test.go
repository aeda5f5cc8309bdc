package learning

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/idhash"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage/memory"
)

func thresholdStore(t *testing.T, volatility ...float64) *Store {
	t.Helper()
	s := New(memory.NewSnapshotStore(), DefaultConfig(), nil)
	for _, v := range volatility {
		s.RecordVolatility(decimal.NewFromFloat(v))
	}
	return s
}

// setConfidence plants a performance record so threshold tests can probe
// exact confidence values without replaying dozens of outcomes.
func setConfidence(s *Store, r *domain.Route, conf float64) {
	sig := idhash.ComputeRouteSignature(r.Symbols())
	s.mu.Lock()
	s.perf[sig] = &domain.RoutePerformance{
		Signature:  sig,
		Symbols:    r.Symbols(),
		Confidence: decimal.NewFromFloat(conf),
	}
	s.mu.Unlock()
}

func TestAdaptiveThreshold_VolatilityBands(t *testing.T) {
	base := decimal.NewFromInt(1)

	cases := []struct {
		name       string
		volatility []float64
		want       float64
	}{
		{"no samples keeps base", nil, 1.0},
		{"high volatility loosens by 0.3", []float64{3.5, 3.5}, 0.7},
		{"mid volatility loosens by 0.2", []float64{2.5, 2.5}, 0.8},
		{"calm market tightens by 0.3", []float64{0.5, 0.5}, 1.3},
		{"neutral band keeps base", []float64{1.5, 1.5}, 1.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := thresholdStore(t, tc.volatility...)
			got := s.AdaptiveThreshold(base, nil)
			assert.True(t, got.Equal(decimal.NewFromFloat(tc.want)), "got %s, want %v", got, tc.want)
		})
	}
}

func TestAdaptiveThreshold_ConfidenceCut(t *testing.T) {
	base := decimal.NewFromInt(1)
	r := route(1.5, "GALA", "GUSDC", "GALA")

	// At the gate there is no cut yet.
	s := thresholdStore(t, 1.5)
	setConfidence(s, r, 0.7)
	assert.True(t, s.AdaptiveThreshold(base, r).Equal(base))

	// Full confidence earns the maximum 0.5 cut.
	setConfidence(s, r, 1.0)
	assert.True(t, s.AdaptiveThreshold(base, r).Equal(decimal.NewFromFloat(0.5)))

	// Midpoint of the gate span maps to half the cut.
	setConfidence(s, r, 0.85)
	got := s.AdaptiveThreshold(base, r)
	assert.True(t, got.Equal(decimal.NewFromFloat(0.75)), "got %s", got)
}

func TestAdaptiveThreshold_MonotoneInConfidence(t *testing.T) {
	base := decimal.NewFromInt(1)
	r := route(1.5, "GALA", "GUSDC", "GALA")
	s := thresholdStore(t, 1.5)

	prev := s.AdaptiveThreshold(base, r)
	for _, conf := range []float64{0.2, 0.5, 0.7, 0.75, 0.8, 0.9, 1.0} {
		setConfidence(s, r, conf)
		got := s.AdaptiveThreshold(base, r)
		assert.True(t, got.LessThanOrEqual(prev),
			"threshold must not increase with confidence: %s at %.2f after %s", got, conf, prev)
		prev = got
	}
}

func TestAdaptiveThreshold_Floor(t *testing.T) {
	r := route(1.5, "GALA", "GUSDC", "GALA")
	s := thresholdStore(t, 5) // -0.3
	setConfidence(s, r, 1.0)  // -0.5

	got := s.AdaptiveThreshold(decimal.NewFromFloat(0.2), r)
	assert.True(t, got.Equal(decimal.NewFromFloat(0.1)), "threshold must floor at 0.1, got %s", got)
}

func TestPrioritize_ProfitDominatesOutsideDeadBand(t *testing.T) {
	s := newTestStore(t)

	low := route(1.0, "GALA", "GUSDC", "GALA")
	high := route(2.0, "GALA", "GWETH", "GALA")

	got := s.Prioritize([]*domain.Route{low, high})
	require.Len(t, got, 2)
	assert.Same(t, high, got[0])
	assert.Same(t, low, got[1])
}

func TestPrioritize_DeadBandFallsBackToConfidence(t *testing.T) {
	s := newTestStore(t)

	// 0.4 apart: inside the dead band, so history decides.
	slightlyBetter := route(1.4, "GALA", "GUSDC", "GALA")
	proven := route(1.0, "GALA", "GWETH", "GALA")
	setConfidence(s, proven, 0.9)

	got := s.Prioritize([]*domain.Route{slightlyBetter, proven})
	require.Len(t, got, 2)
	assert.Same(t, proven, got[0], "inside the dead band the proven route wins")
}

func TestPrioritize_SuccessRateBreaksConfidenceTies(t *testing.T) {
	s := newTestStore(t)

	a := route(1.0, "GALA", "GUSDC", "GALA")
	b := route(1.0, "GALA", "GWETH", "GALA")
	setConfidence(s, a, 0.5)
	setConfidence(s, b, 0.5)

	sigB := idhash.ComputeRouteSignature(b.Symbols())
	s.mu.Lock()
	s.perf[sigB].SuccessRate = decimal.NewFromFloat(0.9)
	s.mu.Unlock()

	got := s.Prioritize([]*domain.Route{a, b})
	assert.Same(t, b, got[0])
}
