package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionResult // keyed by signature|startedAt
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.ExecutionResult),
	}
}

// outcomeKey generates a unique key for an execution result.
func outcomeKey(signature string, startedAtUnixNano int64) string {
	return fmt.Sprintf("%s|%d", signature, startedAtUnixNano)
}

// Append adds a new execution result. Returns ErrDuplicateKey if exists.
func (s *OutcomeStore) Append(_ context.Context, result *domain.ExecutionResult) error {
	if result == nil || result.Signature == "" {
		return storage.ErrInvalidInput
	}

	key := outcomeKey(result.Signature, result.StartedAt.UnixNano())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[key] = copyResult(result)
	return nil
}

// GetBySignature retrieves results for a route signature, newest first.
// limit <= 0 returns everything.
func (s *OutcomeStore) GetBySignature(_ context.Context, signature string, limit int) ([]*domain.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionResult
	for _, r := range s.data {
		if r.Signature == signature {
			result = append(result, copyResult(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func copyResult(r *domain.ExecutionResult) *domain.ExecutionResult {
	copy := *r
	copy.Hops = append([]domain.HopResult{}, r.Hops...)
	if r.Route != nil {
		route := *r.Route
		copy.Route = &route
	}
	return &copy
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
