// Package engine coordinates one trading loop:
// discovery → prioritization → batching → execution → learning.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/breaker"
	"github.com/shoeman22/billionaire-bot-sub000/internal/discovery"
	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/executor"
	"github.com/shoeman22/billionaire-bot-sub000/internal/learning"
	"github.com/shoeman22/billionaire-bot-sub000/internal/observability"
	"github.com/shoeman22/billionaire-bot-sub000/internal/scheduler"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// Options for creating Engine.
type Options struct {
	// Required collaborators
	Discovery *discovery.Engine
	Learning  *learning.Store
	Scheduler *scheduler.Scheduler
	Executor  *executor.Pipeline
	Breakers  *breaker.Registry

	// Outcomes is the optional append-only execution history sink. Sink
	// failures are logged and never abort a cycle.
	Outcomes storage.OutcomeStore

	// Metrics defaults to observability.DefaultMetrics.
	Metrics *observability.Metrics

	// Trading parameters
	BaseToken            domain.Token
	DepthRange           discovery.DepthRange
	BaseThresholdPercent decimal.Decimal
	ScanInterval         time.Duration
	// MaxRoutesPerCycle caps how many prioritized routes one cycle executes.
	// Zero means no cap.
	MaxRoutesPerCycle int

	Verbose bool
}

// Engine runs the trading loop.
type Engine struct {
	discovery *discovery.Engine
	learning  *learning.Store
	scheduler *scheduler.Scheduler
	executor  *executor.Pipeline
	breakers  *breaker.Registry
	outcomes  storage.OutcomeStore
	metrics   *observability.Metrics

	base         domain.Token
	depth        discovery.DepthRange
	baseThresh   decimal.Decimal
	scanInterval time.Duration
	maxRoutes    int

	verbose bool
	logger  *log.Logger
}

// New creates a new Engine.
func New(opts Options, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	return &Engine{
		discovery:    opts.Discovery,
		learning:     opts.Learning,
		scheduler:    opts.Scheduler,
		executor:     opts.Executor,
		breakers:     opts.Breakers,
		outcomes:     opts.Outcomes,
		metrics:      metrics,
		base:         opts.BaseToken,
		depth:        opts.DepthRange,
		baseThresh:   opts.BaseThresholdPercent,
		scanInterval: opts.ScanInterval,
		maxRoutes:    opts.MaxRoutesPerCycle,
		verbose:      opts.Verbose,
		logger:       logger,
	}
}

// RunResult summarizes one trading cycle.
type RunResult struct {
	Threshold        decimal.Decimal
	RoutesDiscovered int
	RoutesExecuted   int
	Batches          int
	Succeeded        int
	Failed           int
	RealizedProfit   decimal.Decimal
}

// Run loops trading cycles every ScanInterval until the context is
// cancelled. Cycle errors are logged, not fatal: the venue being briefly
// unreachable must not kill the bot.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.scanInterval)
	defer ticker.Stop()

	for {
		if _, err := e.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			e.logger.Printf("[engine] cycle failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full cycle.
// Phases:
//  1. Derive the adaptive threshold from learning history
//  2. Discover profitable routes
//  3. Prioritize by profit/confidence, cap to the per-cycle limit
//  4. Pack into conflict-free batches
//  5. Execute and feed every outcome back into the learning store
func (e *Engine) RunCycle(ctx context.Context) (*RunResult, error) {
	started := time.Now()
	result := &RunResult{}

	threshold := e.learning.AdaptiveThreshold(e.baseThresh, nil)
	result.Threshold = threshold
	e.metrics.AdaptiveThreshold.Set(threshold.InexactFloat64())
	e.metrics.ScanCycles.Inc()

	routes, err := e.discovery.Discover(ctx, e.base, e.depth, threshold)
	if err != nil {
		return nil, fmt.Errorf("discover routes: %w", err)
	}
	result.RoutesDiscovered = len(routes)
	e.metrics.ScanDuration.Observe(time.Since(started).Seconds())
	e.metrics.LastSuccessfulScan.SetToCurrentTime()

	if len(routes) == 0 {
		e.log("no routes above %s%% this cycle", threshold)
		return result, nil
	}

	for _, r := range routes {
		e.metrics.RoutesDiscovered.WithLabelValues(string(r.Confidence)).Inc()
	}
	e.metrics.BestNetProfitPct.Set(routes[0].NetProfitPercent.InexactFloat64())
	e.learning.RecordVolatility(profitSpread(routes))

	prioritized := e.learning.Prioritize(routes)
	if e.maxRoutes > 0 && len(prioritized) > e.maxRoutes {
		prioritized = prioritized[:e.maxRoutes]
	}

	batches := e.scheduler.IdentifyBatches(prioritized)
	result.Batches = len(batches)

	outcomes := e.executor.ExecuteBatches(ctx, batches)
	result.RoutesExecuted = len(outcomes)
	e.metrics.BatchesExecuted.Add(float64(len(batches)))
	e.metrics.LastExecutionTime.SetToCurrentTime()

	for _, outcome := range outcomes {
		e.record(ctx, outcome, result)
	}

	stats := e.learning.Statistics()
	e.metrics.TrackedRoutes.Set(float64(stats.TrackedRoutes))
	e.metrics.RecentProfitPct.Set(stats.RecentProfitability.InexactFloat64())
	e.metrics.RecentVolatilityPct.Set(stats.AvgVolatility.InexactFloat64())
	if stats.PersistDisabled {
		e.metrics.PersistDisabled.Set(1)
	}

	e.logger.Printf("[engine] cycle done: %d discovered, %d executed in %d batches, %d ok, %d failed, realized %s",
		result.RoutesDiscovered, result.RoutesExecuted, result.Batches,
		result.Succeeded, result.Failed, result.RealizedProfit)
	return result, nil
}

// record feeds one execution outcome into the learning store, the metrics
// and the optional history sink.
func (e *Engine) record(ctx context.Context, outcome *domain.ExecutionResult, result *RunResult) {
	e.learning.RecordOutcome(ctx, outcome.Route, outcome.Succeeded(), outcome.RealizedProfitPercent)
	e.metrics.RoutesExecuted.WithLabelValues(string(outcome.Status)).Inc()
	e.metrics.RouteDuration.Observe(outcome.FinishedAt.Sub(outcome.StartedAt).Seconds())

	if outcome.Succeeded() {
		result.Succeeded++
		result.RealizedProfit = result.RealizedProfit.Add(outcome.RealizedProfit)
		if outcome.RealizedProfit.IsPositive() {
			e.metrics.RealizedProfit.Add(outcome.RealizedProfit.InexactFloat64())
		} else {
			e.metrics.RealizedLoss.Add(outcome.RealizedProfit.Neg().InexactFloat64())
		}
	} else {
		result.Failed++
	}

	if e.outcomes != nil {
		if err := e.outcomes.Append(ctx, outcome); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			e.logger.Printf("[engine] outcome sink append failed for %s: %v", outcome.Signature, err)
		}
	}
}

// profitSpread is the per-cycle volatility sample: the spread between the
// best and worst discovered net profit percent. A wide spread means prices
// across the asset graph disagree strongly, the same condition that makes
// realized outcomes noisy.
func profitSpread(routes []*domain.Route) decimal.Decimal {
	if len(routes) == 0 {
		return decimal.Zero
	}
	min, max := routes[0].NetProfitPercent, routes[0].NetProfitPercent
	for _, r := range routes[1:] {
		if r.NetProfitPercent.LessThan(min) {
			min = r.NetProfitPercent
		}
		if r.NetProfitPercent.GreaterThan(max) {
			max = r.NetProfitPercent
		}
	}
	return max.Sub(min)
}

func (e *Engine) log(format string, args ...any) {
	if e.verbose {
		e.logger.Printf("[engine] "+format, args...)
	}
}
