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

func testResult(signature string, startedAt time.Time) *domain.ExecutionResult {
	return &domain.ExecutionResult{
		Signature: signature,
		Route: &domain.Route{
			Path: []domain.Token{
				{Symbol: "GALA", Key: "GALA|Unit|none|none", Decimals: 8},
				{Symbol: "GUSDC", Key: "GUSDC|Unit|none|none", Decimals: 6},
				{Symbol: "GALA", Key: "GALA|Unit|none|none", Decimals: 8},
			},
			FeeTiers:    []domain.FeeTier{domain.FeeTierMedium, domain.FeeTierMedium},
			InputAmount: decimal.NewFromInt(100),
		},
		Status: domain.ExecutionSuccess,
		Hops: []domain.HopResult{
			{Index: 0, TokenIn: "GALA", TokenOut: "GUSDC", FeeTier: domain.FeeTierMedium,
				AmountIn: decimal.NewFromInt(100), TxID: "tx1", Confirmation: domain.ConfirmationConfirmed},
			{Index: 1, TokenIn: "GUSDC", TokenOut: "GALA", FeeTier: domain.FeeTierMedium,
				AmountIn: decimal.NewFromInt(199), TxID: "tx2"},
		},
		RealizedOutput:        decimal.NewFromFloat(109.45),
		RealizedProfit:        decimal.NewFromFloat(9.45),
		RealizedProfitPercent: decimal.NewFromFloat(9.45),
		StartedAt:             startedAt,
		FinishedAt:            startedAt.Add(4 * time.Second),
	}
}

func TestOutcomeStore_AppendAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOutcomeStore(pool)
	ctx := context.Background()
	startedAt := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, store.Append(ctx, testResult("sig1", startedAt)))

	results, err := store.GetBySignature(ctx, "sig1", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, domain.ExecutionSuccess, got.Status)
	assert.True(t, got.RealizedProfitPercent.Equal(decimal.NewFromFloat(9.45)))
	assert.True(t, got.StartedAt.Equal(startedAt))
	require.Len(t, got.Hops, 2)
	assert.Equal(t, "tx2", got.Hops[1].TxID)
	require.NotNil(t, got.Route)
	assert.Equal(t, []string{"GALA", "GUSDC", "GALA"}, got.Route.Symbols())
}

func TestOutcomeStore_DuplicateKey(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOutcomeStore(pool)
	ctx := context.Background()
	r := testResult("sig1", time.Now().UTC().Truncate(time.Millisecond))

	require.NoError(t, store.Append(ctx, r))
	err := store.Append(ctx, r)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestOutcomeStore_NewestFirstAndLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOutcomeStore(pool)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for _, offset := range []time.Duration{0, 2 * time.Hour, time.Hour} {
		require.NoError(t, store.Append(ctx, testResult("sig1", base.Add(offset))))
	}
	require.NoError(t, store.Append(ctx, testResult("sig2", base)))

	results, err := store.GetBySignature(ctx, "sig1", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.False(t, results[i].StartedAt.After(results[i-1].StartedAt),
			"results must be newest first")
	}

	limited, err := store.GetBySignature(ctx, "sig1", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.True(t, limited[0].StartedAt.Equal(base.Add(2*time.Hour)))
}

func TestOutcomeStore_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewOutcomeStore(pool)
	ctx := context.Background()

	require.ErrorIs(t, store.Append(ctx, nil), storage.ErrInvalidInput)
	require.ErrorIs(t, store.Append(ctx, &domain.ExecutionResult{}), storage.ErrInvalidInput)
}
