// Package scheduler groups discovered routes into conflict-free batches.
// Every route draws on the shared base-asset balance plus its intermediate
// assets, so two routes sharing any asset cannot safely run concurrently
// against one balance snapshot.
package scheduler

import (
	"log"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
)

// Scheduler implements greedy set-packing over route asset sets.
type Scheduler struct {
	logger *log.Logger
}

// New creates a scheduler. A nil logger falls back to the standard logger.
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{logger: logger}
}

// IdentifyBatches partitions routes into batches whose asset sets are
// pairwise disjoint. Greedy: scan the remaining routes in order, admit a
// route when none of its assets is claimed by the current batch, close the
// batch once a full pass admits nothing. Every input route lands in exactly
// one batch; routes within a batch keep their input order.
func (s *Scheduler) IdentifyBatches(routes []*domain.Route) [][]*domain.Route {
	if len(routes) == 0 {
		return nil
	}

	remaining := append([]*domain.Route{}, routes...)
	var batches [][]*domain.Route

	for len(remaining) > 0 {
		var batch []*domain.Route
		claimed := make(map[string]struct{})
		var next []*domain.Route

		for _, r := range remaining {
			if conflicts(r, claimed) {
				next = append(next, r)
				continue
			}
			batch = append(batch, r)
			for asset := range r.AssetSet() {
				claimed[asset] = struct{}{}
			}
		}

		// Each pass admits at least the first remaining route, so the
		// loop always terminates.
		batches = append(batches, batch)
		remaining = next
	}

	s.logger.Printf("[scheduler] packed %d routes into %d batches", len(routes), len(batches))
	return batches
}

func conflicts(r *domain.Route, claimed map[string]struct{}) bool {
	for asset := range r.AssetSet() {
		if _, taken := claimed[asset]; taken {
			return true
		}
	}
	return false
}
