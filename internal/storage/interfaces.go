// Package storage defines the persistence ports of the engine. The learning
// store persists one snapshot document; execution outcomes append to a
// history used for offline analysis. Implementations: file (advisory-locked
// JSON document), postgres, clickhouse (outcomes only) and memory.
package storage

import (
	"context"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
)

// SnapshotStore persists the learning store's single snapshot document.
type SnapshotStore interface {
	// Save atomically replaces the stored snapshot.
	Save(ctx context.Context, snap *domain.LearningSnapshot) error

	// Load retrieves the stored snapshot. Returns ErrNotFound when nothing
	// has been persisted yet.
	Load(ctx context.Context) (*domain.LearningSnapshot, error)
}

// OutcomeStore records execution results, append-only.
type OutcomeStore interface {
	// Append adds one execution result. Returns ErrDuplicateKey when the
	// (signature, started_at) pair was already recorded.
	Append(ctx context.Context, result *domain.ExecutionResult) error

	// GetBySignature retrieves up to limit results for a route signature,
	// newest first. limit <= 0 means no limit.
	GetBySignature(ctx context.Context, signature string, limit int) ([]*domain.ExecutionResult, error)
}
