package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoeman22/billionaire-bot-sub000/internal/domain"
	"github.com/shoeman22/billionaire-bot-sub000/internal/storage"
)

func testSnapshot(savedAt time.Time) *domain.LearningSnapshot {
	return &domain.LearningSnapshot{
		Performance: map[string]*domain.RoutePerformance{
			"sig1": {
				Signature:        "sig1",
				Symbols:          []string{"GALA", "GUSDC", "GALA"},
				Attempts:         12,
				Successes:        9,
				TotalProfit:      decimal.NewFromFloat(42.5),
				AvgProfitPercent: decimal.NewFromFloat(1.31),
				SuccessRate:      decimal.NewFromFloat(0.75),
				Confidence:       decimal.NewFromFloat(0.338),
				LastExecutedAt:   savedAt.Add(-time.Minute),
			},
			"sig2": {
				Signature: "sig2",
				Symbols:   []string{"GALA", "GWETH", "GWBTC", "GALA"},
				Attempts:  3,
				Successes: 1,
			},
		},
		ProfitHistory:     []decimal.Decimal{decimal.NewFromFloat(1.2), decimal.NewFromFloat(-0.4)},
		VolatilityHistory: []decimal.Decimal{decimal.NewFromFloat(2.1)},
		SavedAt:           savedAt,
	}
}

func TestSnapshotStore_LoadBeforeSave(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	_, err := store.Load(context.Background())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	want := testSnapshot(time.Now().UTC().Truncate(time.Millisecond))

	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got.Performance, 2)

	for sig, wantPerf := range want.Performance {
		gotPerf := got.Performance[sig]
		require.NotNil(t, gotPerf, "signature %s missing after reload", sig)
		assert.Equal(t, wantPerf.Attempts, gotPerf.Attempts)
		assert.Equal(t, wantPerf.Successes, gotPerf.Successes)
		assert.Equal(t, wantPerf.Symbols, gotPerf.Symbols)
		assert.True(t, wantPerf.TotalProfit.Equal(gotPerf.TotalProfit))
		assert.True(t, wantPerf.SuccessRate.Equal(gotPerf.SuccessRate))
		assert.True(t, wantPerf.Confidence.Equal(gotPerf.Confidence))
	}
	require.Len(t, got.ProfitHistory, 2)
	assert.True(t, got.ProfitHistory[1].Equal(decimal.NewFromFloat(-0.4)))
	assert.True(t, got.SavedAt.Equal(want.SavedAt))
}

func TestSnapshotStore_SaveReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSnapshot(time.Now().UTC())))

	second := testSnapshot(time.Now().UTC())
	second.Performance["sig1"].Attempts = 13
	delete(second.Performance, "sig2")
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, got.Performance["sig1"].Attempts)
	_, stillThere := got.Performance["sig2"]
	assert.False(t, stillThere, "the document is replaced wholesale")
}

func TestSnapshotStore_PerformanceRowsQueryable(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, testSnapshot(time.Now().UTC())))

	var attempts int
	row := pool.QueryRow(ctx, `SELECT attempts FROM route_performance WHERE signature = $1`, "sig1")
	require.NoError(t, row.Scan(&attempts))
	assert.Equal(t, 12, attempts)
}

func TestSnapshotStore_NilInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	err := NewSnapshotStore(pool).Save(context.Background(), nil)
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
