package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

func testSnapshot() *domain.LearningSnapshot {
	return &domain.LearningSnapshot{
		Performance: map[string]*domain.RoutePerformance{
			"sig1": {
				Signature:        "sig1",
				Symbols:          []string{"GALA", "GUSDC", "GALA"},
				Attempts:         4,
				Successes:        3,
				TotalProfit:      decimal.NewFromFloat(12.5),
				AvgProfitPercent: decimal.NewFromFloat(1.2),
				SuccessRate:      decimal.NewFromFloat(0.75),
			},
		},
		ProfitHistory:     []decimal.Decimal{decimal.NewFromFloat(1.2), decimal.NewFromFloat(-0.4)},
		VolatilityHistory: []decimal.Decimal{decimal.NewFromFloat(2.1)},
		SavedAt:           time.Now(),
	}
}

func TestSnapshotStore_LoadBeforeSave(t *testing.T) {
	store := NewSnapshotStore()

	_, err := store.Load(context.Background())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded.Performance) != 1 {
		t.Fatalf("Expected 1 tracked route, got %d", len(loaded.Performance))
	}
	perf := loaded.Performance["sig1"]
	if perf == nil || perf.Attempts != 4 {
		t.Errorf("Performance record mismatch: %+v", perf)
	}
	if len(loaded.ProfitHistory) != 2 {
		t.Errorf("Expected 2 profit samples, got %d", len(loaded.ProfitHistory))
	}
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	second := testSnapshot()
	second.Performance["sig2"] = &domain.RoutePerformance{Signature: "sig2", Attempts: 1}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, _ := store.Load(ctx)
	if len(loaded.Performance) != 2 {
		t.Errorf("Expected replaced snapshot with 2 routes, got %d", len(loaded.Performance))
	}
}

func TestSnapshotStore_CopySemantics(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snap := testSnapshot()
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Mutating the saved-in value must not affect stored state.
	snap.Performance["sig1"].Attempts = 99

	loaded, _ := store.Load(ctx)
	if loaded.Performance["sig1"].Attempts != 4 {
		t.Errorf("Store leaked a reference: attempts = %d", loaded.Performance["sig1"].Attempts)
	}

	// Mutating the loaded value must not affect stored state either.
	loaded.Performance["sig1"].Attempts = 77
	again, _ := store.Load(ctx)
	if again.Performance["sig1"].Attempts != 4 {
		t.Errorf("Load leaked a reference: attempts = %d", again.Performance["sig1"].Attempts)
	}
}

func TestSnapshotStore_NilInput(t *testing.T) {
	store := NewSnapshotStore()

	err := store.Save(context.Background(), nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
