package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

func testSnapshot(mint string, slot uint64) *domain.PoolSnapshot {
	return &domain.PoolSnapshot{
		Mint:                 mint,
		Pool:                 "Pool" + mint,
		VirtualSolReserves:   90_000_000_000,
		VirtualTokenReserves: 250_000_000_000,
		Slot:                 slot,
		CapturedAt:           1700000000000 + int64(slot),
	}
}

func TestPoolSnapshotStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(pool)
	ctx := context.Background()

	mint := "SnapMint111"
	require.NoError(t, store.Insert(ctx, testSnapshot(mint, 100)))
	require.NoError(t, store.Insert(ctx, testSnapshot(mint, 105)))
	require.NoError(t, store.Insert(ctx, testSnapshot("OtherMint", 101)))

	snaps, err := store.GetByMint(ctx, mint, 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)

	// Newest first.
	assert.Equal(t, uint64(105), snaps[0].Slot)
	assert.Equal(t, uint64(100), snaps[1].Slot)

	got := snaps[1]
	assert.Equal(t, mint, got.Mint)
	assert.Equal(t, "Pool"+mint, got.Pool)
	assert.Equal(t, uint64(90_000_000_000), got.VirtualSolReserves)
	assert.Equal(t, uint64(250_000_000_000), got.VirtualTokenReserves)
	assert.Equal(t, int64(1700000000100), got.CapturedAt)
}

func TestPoolSnapshotStore_AppendOnlyKeepsReplays(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(pool)
	ctx := context.Background()

	// Same slot observed twice is two history rows; snapshots carry no
	// unique key and are never reconciled.
	snap := testSnapshot("ReplayMint1", 100)
	require.NoError(t, store.Insert(ctx, snap))
	require.NoError(t, store.Insert(ctx, snap))

	snaps, err := store.GetByMint(ctx, "ReplayMint1", 0)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestPoolSnapshotStore_GetByMintLimit(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(pool)
	ctx := context.Background()

	mint := "LimitSnap111"
	for slot := uint64(1); slot <= 5; slot++ {
		require.NoError(t, store.Insert(ctx, testSnapshot(mint, slot)))
	}

	snaps, err := store.GetByMint(ctx, mint, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, uint64(5), snaps[0].Slot)
	assert.Equal(t, uint64(4), snaps[1].Slot)
}

func TestPoolSnapshotStore_InsertInvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.PoolSnapshot{Mint: "m"}), storage.ErrInvalidInput)
}
