package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

// Append adds a new execution result. Returns ErrDuplicateKey when the
// (signature, started_at) pair was already recorded.
func (s *OutcomeStore) Append(ctx context.Context, result *domain.ExecutionResult) error {
	if result == nil || result.Signature == "" {
		return storage.ErrInvalidInput
	}

	hops, err := json.Marshal(result.Hops)
	if err != nil {
		return fmt.Errorf("marshal hops: %w", err)
	}
	var route []byte
	if result.Route != nil {
		if route, err = json.Marshal(result.Route); err != nil {
			return fmt.Errorf("marshal route: %w", err)
		}
	}

	query := `
		INSERT INTO execution_outcomes (
			signature, route, status, hops,
			realized_output, realized_profit, realized_profit_percent,
			started_at, finished_at, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.pool.Exec(ctx, query,
		result.Signature, route, string(result.Status), hops,
		result.RealizedOutput, result.RealizedProfit, result.RealizedProfitPercent,
		result.StartedAt, result.FinishedAt, result.Error,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution outcome: %w", err)
	}
	return nil
}

// GetBySignature retrieves results for a route signature, newest first.
// limit <= 0 returns everything.
func (s *OutcomeStore) GetBySignature(ctx context.Context, signature string, limit int) ([]*domain.ExecutionResult, error) {
	query := `
		SELECT
			signature, route, status, hops,
			realized_output, realized_profit, realized_profit_percent,
			started_at, finished_at, error
		FROM execution_outcomes
		WHERE signature = $1
		ORDER BY started_at DESC
	`
	args := []any{signature}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get execution outcomes by signature: %w", err)
	}
	defer rows.Close()

	return scanOutcomes(rows)
}

// scanOutcomes scans multiple rows into a slice of ExecutionResult.
func scanOutcomes(rows pgx.Rows) ([]*domain.ExecutionResult, error) {
	var results []*domain.ExecutionResult

	for rows.Next() {
		var (
			r           domain.ExecutionResult
			status      string
			route, hops []byte
		)
		err := rows.Scan(
			&r.Signature, &route, &status, &hops,
			&r.RealizedOutput, &r.RealizedProfit, &r.RealizedProfitPercent,
			&r.StartedAt, &r.FinishedAt, &r.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution outcome row: %w", err)
		}

		r.Status = domain.ExecutionStatus(status)
		if len(hops) > 0 {
			if err := json.Unmarshal(hops, &r.Hops); err != nil {
				return nil, fmt.Errorf("decode hops for %s: %w", r.Signature, err)
			}
		}
		if len(route) > 0 {
			if err := json.Unmarshal(route, &r.Route); err != nil {
				return nil, fmt.Errorf("decode route for %s: %w", r.Signature, err)
			}
		}

		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution outcome rows: %w", err)
	}
	return results, nil
}
