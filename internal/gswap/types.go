// Package gswap is the typed adapter for the swap venue: quoting, swap
// submission, transaction status and payload signing. The rest of the engine
// never sees raw venue payloads; everything is parsed and validated at this
// boundary.
package gswap

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
)

// ErrNoPool indicates the venue has no pool for the requested pair/tier.
// This is not a dependency failure: callers exclude the candidate and move
// on, and the circuit breaker never sees it.
var ErrNoPool = errors.New("no pool for pair")

// TxHandle identifies a submitted swap transaction.
type TxHandle struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SwapRequest is one signed swap submission.
type SwapRequest struct {
	TokenIn      domain.Token
	TokenOut     domain.Token
	FeeTier      domain.FeeTier
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
	// GasBid is the fee bid chosen by the gas strategy for this hop.
	GasBid decimal.Decimal
}

// Quoter issues price quotes. Quotes are idempotent and side-effect-free.
type Quoter interface {
	// QuoteExactInput quotes amountIn of tokenIn against tokenOut on the
	// given fee tier. Tier 0 lets the venue choose. Returns ErrNoPool when
	// the pair has no pool on that tier.
	QuoteExactInput(ctx context.Context, tokenIn, tokenOut domain.Token, amountIn decimal.Decimal, tier domain.FeeTier) (*domain.Quote, error)
}

// Swapper submits signed swaps.
type Swapper interface {
	SubmitSwap(ctx context.Context, req SwapRequest) (*TxHandle, error)
}

// Confirmer reports transaction finality.
type Confirmer interface {
	// AwaitConfirmation blocks until the transaction reaches a terminal
	// status or the timeout elapses, in which case it returns a TIMEOUT
	// confirmation rather than an error.
	AwaitConfirmation(ctx context.Context, handle *TxHandle, timeout time.Duration) (*domain.Confirmation, error)
}

// BalanceReader reports spendable balances.
type BalanceReader interface {
	GetBalance(ctx context.Context, token domain.Token) (decimal.Decimal, error)
}

// Client is the full venue collaborator surface the engine consumes.
type Client interface {
	Quoter
	Swapper
	Confirmer
	BalanceReader
}
