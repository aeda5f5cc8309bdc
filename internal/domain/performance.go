package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoutePerformance is the learning store's record for one route signature
// (the symbol sequence). Updated after every execution attempt and persisted
// across restarts.
type RoutePerformance struct {
	Signature        string          `json:"signature"`
	Symbols          []string        `json:"symbols"`
	Attempts         int             `json:"attempts"`
	Successes        int             `json:"successes"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	AvgProfitPercent decimal.Decimal `json:"avg_profit_percent"`
	SuccessRate      decimal.Decimal `json:"success_rate"`
	// Confidence saturates with attempts: successRate * (1 - e^(-attempts/20)).
	Confidence     decimal.Decimal `json:"confidence"`
	LastExecutedAt time.Time       `json:"last_executed_at"`
}

// LearningStatistics is the aggregate view exposed by the learning read API.
type LearningStatistics struct {
	TrackedRoutes       int             `json:"tracked_routes"`
	TotalAttempts       int             `json:"total_attempts"`
	TotalSuccesses      int             `json:"total_successes"`
	TotalProfit         decimal.Decimal `json:"total_profit"`
	AvgVolatility       decimal.Decimal `json:"avg_volatility"`
	RecentProfitability decimal.Decimal `json:"recent_profitability"`
	PersistDisabled     bool            `json:"persist_disabled"`
}

// LearningSnapshot is the single persisted document: the performance map plus
// the rolling histories the adaptive threshold derives from.
type LearningSnapshot struct {
	Performance map[string]*RoutePerformance `json:"performance"`
	// ProfitHistory holds realized profit percents, newest last, capped at 100.
	ProfitHistory []decimal.Decimal `json:"profit_history"`
	// VolatilityHistory holds observed per-cycle volatility samples, capped at 100.
	VolatilityHistory []decimal.Decimal `json:"volatility_history"`
	SavedAt           time.Time         `json:"saved_at"`
}
