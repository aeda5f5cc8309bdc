package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Used in tests and when the bot runs without persistence configured.
type SnapshotStore struct {
	mu   sync.RWMutex
	snap *domain.LearningSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

// Save atomically replaces the stored snapshot.
func (s *SnapshotStore) Save(_ context.Context, snap *domain.LearningSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = copySnapshot(snap)
	return nil
}

// Load retrieves the stored snapshot. Returns ErrNotFound before the first Save.
func (s *SnapshotStore) Load(_ context.Context) (*domain.LearningSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(s.snap), nil
}

// copySnapshot deep-copies so callers cannot mutate stored state.
func copySnapshot(snap *domain.LearningSnapshot) *domain.LearningSnapshot {
	out := &domain.LearningSnapshot{
		Performance:       make(map[string]*domain.RoutePerformance, len(snap.Performance)),
		ProfitHistory:     append([]decimal.Decimal{}, snap.ProfitHistory...),
		VolatilityHistory: append([]decimal.Decimal{}, snap.VolatilityHistory...),
		SavedAt:           snap.SavedAt,
	}
	for sig, perf := range snap.Performance {
		copy := *perf
		copy.Symbols = append([]string{}, perf.Symbols...)
		out.Performance[sig] = &copy
	}
	return out
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
