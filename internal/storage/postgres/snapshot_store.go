package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL. The
// snapshot is a single-row document; the per-signature performance records
// are additionally broken out into route_performance rows so they can be
// queried with SQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Save replaces the snapshot document and upserts the per-signature rows in
// one transaction. Postgres row locking stands in for the advisory file
// lock: concurrent savers serialize on the document row.
func (s *SnapshotStore) Save(ctx context.Context, snap *domain.LearningSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO learning_snapshots (id, document, saved_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET document = $1, saved_at = $2
	`
	if _, err := tx.Exec(ctx, query, doc, snap.SavedAt); err != nil {
		return fmt.Errorf("upsert snapshot document: %w", err)
	}

	upsert := `
		INSERT INTO route_performance (
			signature, symbols, attempts, successes,
			total_profit, avg_profit_percent, success_rate, confidence,
			last_executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (signature) DO UPDATE SET
			symbols = $2, attempts = $3, successes = $4,
			total_profit = $5, avg_profit_percent = $6,
			success_rate = $7, confidence = $8, last_executed_at = $9
	`
	for _, p := range snap.Performance {
		_, err := tx.Exec(ctx, upsert,
			p.Signature, p.Symbols, p.Attempts, p.Successes,
			p.TotalProfit, p.AvgProfitPercent, p.SuccessRate, p.Confidence,
			p.LastExecutedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert route performance %s: %w", p.Signature, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Load retrieves the snapshot document. Returns ErrNotFound before the first
// Save.
func (s *SnapshotStore) Load(ctx context.Context) (*domain.LearningSnapshot, error) {
	var doc []byte
	row := s.pool.QueryRow(ctx, `SELECT document FROM learning_snapshots WHERE id = 1`)
	if err := row.Scan(&doc); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot document: %w", err)
	}

	var snap domain.LearningSnapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot document: %w", err)
	}
	if snap.Performance == nil {
		snap.Performance = make(map[string]*domain.RoutePerformance)
	}
	return &snap, nil
}
