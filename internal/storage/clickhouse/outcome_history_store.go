package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// OutcomeHistoryStore implements storage.OutcomeStore against the
// outcome_history table. Amounts are flattened to Float64: ClickHouse holds
// analytical copies only, never balances the engine trades against.
type OutcomeHistoryStore struct {
	conn *Conn
}

// NewOutcomeHistoryStore creates a new OutcomeHistoryStore.
func NewOutcomeHistoryStore(conn *Conn) *OutcomeHistoryStore {
	return &OutcomeHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeHistoryStore)(nil)

// Append inserts one flattened execution result. MergeTree does not enforce
// uniqueness, so retried writes surface as duplicate rows and are deduped at
// query time.
func (s *OutcomeHistoryStore) Append(ctx context.Context, result *domain.ExecutionResult) error {
	if result == nil || result.Signature == "" {
		return storage.ErrInvalidInput
	}

	path := ""
	if result.Route != nil {
		path = result.Route.PathString()
	}

	query := `
		INSERT INTO outcome_history (
			signature, path, hop_count, status,
			realized_output, realized_profit, realized_profit_percent,
			started_at_ms, finished_at_ms, duration_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := s.conn.Exec(ctx, query,
		result.Signature, path, uint8(len(result.Hops)), string(result.Status),
		result.RealizedOutput.InexactFloat64(),
		result.RealizedProfit.InexactFloat64(),
		result.RealizedProfitPercent.InexactFloat64(),
		uint64(result.StartedAt.UnixMilli()),
		uint64(result.FinishedAt.UnixMilli()),
		uint64(result.FinishedAt.Sub(result.StartedAt).Milliseconds()),
		result.Error,
	)
	if err != nil {
		return fmt.Errorf("insert outcome history: %w", err)
	}
	return nil
}

// GetBySignature retrieves flattened results for a route signature, newest
// first, deduplicated by started_at_ms. Only the fields the table carries
// are populated; hops and the full route are not stored here.
func (s *OutcomeHistoryStore) GetBySignature(ctx context.Context, signature string, limit int) ([]*domain.ExecutionResult, error) {
	query := `
		SELECT
			signature, status,
			realized_output, realized_profit, realized_profit_percent,
			started_at_ms, finished_at_ms, error
		FROM outcome_history
		WHERE signature = ?
		GROUP BY signature, status, realized_output, realized_profit,
			realized_profit_percent, started_at_ms, finished_at_ms, error
		ORDER BY started_at_ms DESC
	`
	args := []any{signature}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, strings.TrimSpace(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query outcome history: %w", err)
	}
	defer rows.Close()

	var results []*domain.ExecutionResult
	for rows.Next() {
		var (
			sig, status, errMsg       string
			output, profit, profitPct float64
			startedMs, finishedMs     uint64
		)
		if err := rows.Scan(&sig, &status, &output, &profit, &profitPct, &startedMs, &finishedMs, &errMsg); err != nil {
			return nil, fmt.Errorf("scan outcome history row: %w", err)
		}
		results = append(results, flattenedResult(sig, status, output, profit, profitPct, startedMs, finishedMs, errMsg))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome history rows: %w", err)
	}
	return results, nil
}

func flattenedResult(sig, status string, output, profit, profitPct float64, startedMs, finishedMs uint64, errMsg string) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Signature:             sig,
		Status:                domain.ExecutionStatus(status),
		RealizedOutput:        decimal.NewFromFloat(output),
		RealizedProfit:        decimal.NewFromFloat(profit),
		RealizedProfitPercent: decimal.NewFromFloat(profitPct),
		StartedAt:             time.UnixMilli(int64(startedMs)).UTC(),
		FinishedAt:            time.UnixMilli(int64(finishedMs)).UTC(),
		Error:                 errMsg,
	}
}
