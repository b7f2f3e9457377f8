package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

func TestSolPriceStore_InsertAndLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSolPriceStore(pool)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	require.NoError(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: now - 60_000, PriceUSD: 198.5}))
	require.NoError(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: now, PriceUSD: 200.0}))

	sample, err := store.Latest(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 200.0, sample.PriceUSD)
}

func TestSolPriceStore_LatestIgnoresStaleSamples(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSolPriceStore(pool)
	ctx := context.Background()

	stale := time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: stale, PriceUSD: 150.0}))

	_, err := store.Latest(ctx, 5*time.Minute)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A generous window still finds it.
	sample, err := store.Latest(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 150.0, sample.PriceUSD)
}

func TestSolPriceStore_LatestEmpty(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSolPriceStore(pool)

	_, err := store.Latest(context.Background(), time.Minute)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSolPriceStore_DeleteOlderThan(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSolPriceStore(pool)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: now.Add(-3 * time.Hour).UnixMilli(), PriceUSD: 180.0}))
	require.NoError(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: now.Add(-2 * time.Hour).UnixMilli(), PriceUSD: 185.0}))
	require.NoError(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: now.UnixMilli(), PriceUSD: 190.0}))

	pruned, err := store.DeleteOlderThan(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), pruned)

	sample, err := store.Latest(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 190.0, sample.PriceUSD)
}

func TestSolPriceStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSolPriceStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.SolPriceSample{Timestamp: time.Now().UnixMilli()}), storage.ErrInvalidInput)
}
