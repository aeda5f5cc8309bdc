// Package learning tracks per-route execution history and derives the live
// minimum-profit threshold from measured volatility and route confidence.
package learning

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/idhash"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// Config holds learning store parameters.
type Config struct {
	// HistoryCap bounds the rolling profit and volatility histories.
	HistoryCap int

	// RecentWindow is the sample count used for "recent" aggregates.
	RecentWindow int

	// PersistFailureLimit disables persistence after this many consecutive
	// save failures. Reads and outcome recording keep working in memory.
	PersistFailureLimit int

	// SaveRetries and SaveRetryDelay bound one persistence attempt.
	SaveRetries    int
	SaveRetryDelay time.Duration
}

// DefaultConfig returns the standard learning parameters.
func DefaultConfig() Config {
	return Config{
		HistoryCap:          100,
		RecentWindow:        10,
		PersistFailureLimit: 5,
		SaveRetries:         3,
		SaveRetryDelay:      100 * time.Millisecond,
	}
}

// Store owns all adaptive state: the per-signature performance map and the
// rolling histories. All mutation goes through RecordOutcome/RecordVolatility
// so the snapshot on disk is always append-then-persist consistent.
type Store struct {
	cfg       Config
	snapshots storage.SnapshotStore
	logger    *log.Logger
	now       func() time.Time

	mu                sync.RWMutex
	perf              map[string]*domain.RoutePerformance
	profitHistory     []decimal.Decimal
	volatilityHistory []decimal.Decimal
	persistFailures   int
	persistDisabled   bool
}

// New creates a learning store persisting through snapshots. A nil logger
// falls back to the standard logger.
func New(snapshots storage.SnapshotStore, cfg Config, logger *log.Logger) *Store {
	if cfg.HistoryCap <= 0 {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		cfg:       cfg,
		snapshots: snapshots,
		logger:    logger,
		now:       time.Now,
		perf:      make(map[string]*domain.RoutePerformance),
	}
}

// Load hydrates the store from the persisted snapshot. A missing snapshot is
// a clean start, not an error.
func (s *Store) Load(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.perf = make(map[string]*domain.RoutePerformance, len(snap.Performance))
	for sig, p := range snap.Performance {
		copy := *p
		s.perf[sig] = &copy
	}
	s.profitHistory = append([]decimal.Decimal{}, snap.ProfitHistory...)
	s.volatilityHistory = append([]decimal.Decimal{}, snap.VolatilityHistory...)

	s.logger.Printf("[learning] loaded snapshot: %d routes, %d profit samples",
		len(s.perf), len(s.profitHistory))
	return nil
}

// RecordOutcome updates the route's performance record, appends to the
// rolling profit history and persists the snapshot. Persistence failures are
// absorbed: after PersistFailureLimit consecutive failures writes are
// disabled until restart, but in-memory learning continues.
func (s *Store) RecordOutcome(ctx context.Context, route *domain.Route, success bool, realizedProfitPercent decimal.Decimal) {
	sig := idhash.ComputeRouteSignature(route.Symbols())

	s.mu.Lock()

	p, ok := s.perf[sig]
	if !ok {
		p = &domain.RoutePerformance{
			Signature: sig,
			Symbols:   route.Symbols(),
		}
		s.perf[sig] = p
	}

	p.Attempts++
	if success {
		p.Successes++
		p.TotalProfit = p.TotalProfit.Add(route.InputAmount.Mul(realizedProfitPercent).Div(decimal.NewFromInt(100)))
	}
	p.SuccessRate = decimal.NewFromInt(int64(p.Successes)).Div(decimal.NewFromInt(int64(p.Attempts)))
	p.AvgProfitPercent = p.AvgProfitPercent.Mul(decimal.NewFromInt(int64(p.Attempts - 1))).
		Add(realizedProfitPercent).Div(decimal.NewFromInt(int64(p.Attempts)))
	p.Confidence = confidence(p.SuccessRate, p.Attempts)
	p.LastExecutedAt = s.now()

	s.profitHistory = appendCapped(s.profitHistory, realizedProfitPercent, s.cfg.HistoryCap)

	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.persist(ctx, snap)
}

// RecordVolatility appends one observed volatility sample (percent).
func (s *Store) RecordVolatility(sample decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volatilityHistory = appendCapped(s.volatilityHistory, sample, s.cfg.HistoryCap)
}

// Performance returns the record for a route signature, if tracked.
func (s *Store) Performance(signature string) (*domain.RoutePerformance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.perf[signature]
	if !ok {
		return nil, false
	}
	copy := *p
	return &copy, true
}

// Statistics aggregates the store for the read API.
func (s *Store) Statistics() domain.LearningStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.LearningStatistics{
		TrackedRoutes:   len(s.perf),
		PersistDisabled: s.persistDisabled,
	}
	for _, p := range s.perf {
		stats.TotalAttempts += p.Attempts
		stats.TotalSuccesses += p.Successes
		stats.TotalProfit = stats.TotalProfit.Add(p.TotalProfit)
	}
	stats.AvgVolatility = mean(recent(s.volatilityHistory, s.cfg.RecentWindow))
	stats.RecentProfitability = mean(recent(s.profitHistory, s.cfg.RecentWindow))
	return stats
}

// TopPerformingRoutes returns up to limit records ordered by confidence,
// ties broken by average profit percent.
func (s *Store) TopPerformingRoutes(limit int) []*domain.RoutePerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RoutePerformance, 0, len(s.perf))
	for _, p := range s.perf {
		copy := *p
		out = append(out, &copy)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Confidence.Equal(out[j].Confidence) {
			return out[i].Confidence.GreaterThan(out[j].Confidence)
		}
		return out[i].AvgProfitPercent.GreaterThan(out[j].AvgProfitPercent)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// snapshotLocked builds the persisted document. Caller holds mu.
func (s *Store) snapshotLocked() *domain.LearningSnapshot {
	snap := &domain.LearningSnapshot{
		Performance:       make(map[string]*domain.RoutePerformance, len(s.perf)),
		ProfitHistory:     append([]decimal.Decimal{}, s.profitHistory...),
		VolatilityHistory: append([]decimal.Decimal{}, s.volatilityHistory...),
		SavedAt:           s.now(),
	}
	for sig, p := range s.perf {
		copy := *p
		snap.Performance[sig] = &copy
	}
	return snap
}

// persist writes the snapshot with bounded retry, tracking the consecutive
// failure count that drives the fail-open disable.
func (s *Store) persist(ctx context.Context, snap *domain.LearningSnapshot) {
	if s.snapshots == nil {
		return
	}

	s.mu.Lock()
	disabled := s.persistDisabled
	s.mu.Unlock()
	if disabled {
		return
	}

	var err error
	for attempt := 0; attempt <= s.cfg.SaveRetries; attempt++ {
		if err = s.snapshots.Save(ctx, snap); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-time.After(s.cfg.SaveRetryDelay):
			continue
		}
		break
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.persistFailures = 0
		return
	}

	s.persistFailures++
	s.logger.Printf("[learning] snapshot save failed (%d/%d consecutive): %v",
		s.persistFailures, s.cfg.PersistFailureLimit, err)
	if s.persistFailures >= s.cfg.PersistFailureLimit {
		s.persistDisabled = true
		s.logger.Printf("[learning] persistence disabled until restart after %d consecutive failures", s.persistFailures)
	}
}

// confidence is the saturating score successRate * (1 - e^(-attempts/20)).
// Around 50 attempts the attempt factor reaches ~0.92. The transcendental is
// the one place floats are used; the result converts back to decimal before
// any comparison.
func confidence(successRate decimal.Decimal, attempts int) decimal.Decimal {
	factor := 1 - math.Exp(-float64(attempts)/20)
	return successRate.Mul(decimal.NewFromFloat(factor))
}

func appendCapped(history []decimal.Decimal, sample decimal.Decimal, limit int) []decimal.Decimal {
	history = append(history, sample)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func recent(history []decimal.Decimal, window int) []decimal.Decimal {
	if window > 0 && len(history) > window {
		return history[len(history)-window:]
	}
	return history
}

func mean(samples []decimal.Decimal) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range samples {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(samples))))
}
