package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionStatus is the terminal status of a route execution.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionFailed  ExecutionStatus = "failed"
	// ExecutionPartial means at least one hop completed before the route
	// aborted, leaving capital parked in an intermediate asset.
	ExecutionPartial ExecutionStatus = "partially-executed"
)

// ConfirmationStatus reports the venue's view of a submitted transaction.
type ConfirmationStatus string

const (
	ConfirmationConfirmed ConfirmationStatus = "CONFIRMED"
	ConfirmationFailed    ConfirmationStatus = "FAILED"
	ConfirmationTimeout   ConfirmationStatus = "TIMEOUT"
	ConfirmationUnknown   ConfirmationStatus = "UNKNOWN"
)

// Confirmation is the result of awaiting finality on one transaction.
type Confirmation struct {
	Status       ConfirmationStatus `json:"status"`
	BlockInfo    string             `json:"block_info,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}

// HopResult records one executed (or attempted) swap within a route.
type HopResult struct {
	Index        int                `json:"index"`
	TokenIn      string             `json:"token_in"`
	TokenOut     string             `json:"token_out"`
	FeeTier      FeeTier            `json:"fee_tier"`
	AmountIn     decimal.Decimal    `json:"amount_in"`
	QuotedOutput decimal.Decimal    `json:"quoted_output"`
	MinAmountOut decimal.Decimal    `json:"min_amount_out"`
	TxID         string             `json:"tx_id,omitempty"`
	Confirmation ConfirmationStatus `json:"confirmation,omitempty"`
}

// ExecutionResult is the structured outcome of running one route. The
// executor always returns one of these, never an error: a failed route is a
// result, not an exception, so the scheduler can continue with the rest of
// the batch.
type ExecutionResult struct {
	Signature string `json:"signature"`
	Route     *Route `json:"route"`

	Status ExecutionStatus `json:"status"`
	Hops   []HopResult     `json:"hops"`

	RealizedOutput        decimal.Decimal `json:"realized_output"`
	RealizedProfit        decimal.Decimal `json:"realized_profit"`
	RealizedProfitPercent decimal.Decimal `json:"realized_profit_percent"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Succeeded reports whether every hop completed and the route returned to
// the base asset.
func (r *ExecutionResult) Succeeded() bool {
	return r.Status == ExecutionSuccess
}

// CompletedHops counts hops that were actually submitted.
func (r *ExecutionResult) CompletedHops() int {
	n := 0
	for _, h := range r.Hops {
		if h.TxID != "" {
			n++
		}
	}
	return n
}
