// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Quote metrics
	QuotesIssued prometheus.Counter
	QuoteErrors  *prometheus.CounterVec
	NoPoolTotal  prometheus.Counter
	QuoteLatency prometheus.Histogram

	// Discovery metrics
	ScanCycles        prometheus.Counter
	RoutesDiscovered  *prometheus.CounterVec
	RoutesExplored    prometheus.Counter
	BudgetExhaustions prometheus.Counter
	BestNetProfitPct  prometheus.Gauge
	ScanDuration      prometheus.Histogram
	AdaptiveThreshold prometheus.Gauge

	// Execution metrics
	RoutesExecuted    *prometheus.CounterVec
	HopsSubmitted     prometheus.Counter
	ConfirmationTotal *prometheus.CounterVec
	RealizedProfit    prometheus.Counter
	RealizedLoss      prometheus.Counter
	RouteDuration     prometheus.Histogram
	BatchesExecuted   prometheus.Counter

	// Breaker metrics
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	BreakerRejections  *prometheus.CounterVec

	// Learning metrics
	TrackedRoutes       prometheus.Gauge
	PersistFailures     prometheus.Counter
	PersistDisabled     prometheus.Gauge
	RecentProfitPct     prometheus.Gauge
	RecentVolatilityPct prometheus.Gauge

	// Health metrics
	LastSuccessfulScan prometheus.Gauge
	LastExecutionTime  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "arb_bot"
	}

	return &Metrics{
		// Quote metrics
		QuotesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "issued_total",
			Help:      "Total number of quotes issued to the venue",
		}),
		QuoteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "errors_total",
			Help:      "Total number of quote errors by kind",
		}, []string{"kind"}),
		NoPoolTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "no_pool_total",
			Help:      "Total number of quotes answered with no pool",
		}),
		QuoteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "latency_seconds",
			Help:      "Quote round-trip latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Discovery metrics
		ScanCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scan_cycles_total",
			Help:      "Total number of discovery scan cycles",
		}),
		RoutesDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "routes_total",
			Help:      "Total number of profitable routes discovered by confidence",
		}, []string{"confidence"}),
		RoutesExplored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "routes_explored_total",
			Help:      "Total number of candidate routes evaluated by the search",
		}),
		BudgetExhaustions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "budget_exhaustions_total",
			Help:      "Total number of scans stopped by the route exploration budget",
		}),
		BestNetProfitPct: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "best_net_profit_percent",
			Help:      "Best net profit percent seen in the last scan cycle",
		}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scan_duration_seconds",
			Help:      "Scan cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		AdaptiveThreshold: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "adaptive_threshold_percent",
			Help:      "Current adaptive minimum-profit threshold in percent",
		}),

		// Execution metrics
		RoutesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "routes_total",
			Help:      "Total number of routes executed by terminal status",
		}, []string{"status"}),
		HopsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "hops_submitted_total",
			Help:      "Total number of swap hops submitted",
		}),
		ConfirmationTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "confirmations_total",
			Help:      "Total number of hop confirmations by status",
		}, []string{"status"}),
		RealizedProfit: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_profit_total",
			Help:      "Cumulative realized profit in base asset units",
		}),
		RealizedLoss: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "realized_loss_total",
			Help:      "Cumulative realized loss in base asset units",
		}),
		RouteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "route_duration_seconds",
			Help:      "Route execution duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		BatchesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "batches_total",
			Help:      "Total number of conflict-free batches executed",
		}),

		// Breaker metrics
		BreakerState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Total number of breaker state transitions",
		}, []string{"name", "to"}),
		BreakerRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breaker",
			Name:      "rejections_total",
			Help:      "Total number of calls rejected while a breaker was open",
		}, []string{"name"}),

		// Learning metrics
		TrackedRoutes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "tracked_routes",
			Help:      "Number of route signatures with recorded history",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "persist_failures_total",
			Help:      "Total number of snapshot persistence failures",
		}),
		PersistDisabled: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "persist_disabled",
			Help:      "1 when snapshot persistence is disabled after repeated failures",
		}),
		RecentProfitPct: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "recent_profitability_percent",
			Help:      "Mean realized profit percent over the recent window",
		}),
		RecentVolatilityPct: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "learning",
			Name:      "recent_volatility_percent",
			Help:      "Mean observed volatility percent over the recent window",
		}),

		// Health metrics
		LastSuccessfulScan: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_scan_timestamp",
			Help:      "Unix timestamp of the last completed scan cycle",
		}),
		LastExecutionTime: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_execution_timestamp",
			Help:      "Unix timestamp of the last route execution",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordQuote increments the quotes issued counter.
func RecordQuote() {
	DefaultMetrics.QuotesIssued.Inc()
}

// RecordNoPool counts a no-pool answer.
func RecordNoPool() {
	DefaultMetrics.NoPoolTotal.Inc()
}

// RecordRouteDiscovered counts one kept route by confidence.
func RecordRouteDiscovered(confidence string) {
	DefaultMetrics.RoutesDiscovered.WithLabelValues(confidence).Inc()
}

// RecordRouteExecuted counts one terminal route execution by status.
func RecordRouteExecuted(status string) {
	DefaultMetrics.RoutesExecuted.WithLabelValues(status).Inc()
}
