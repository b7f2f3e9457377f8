package clickhouse

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

func TestPoolSnapshotStore_InsertBulkAndGetByMint(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(conn)
	ctx := context.Background()

	mint := "ChSnapMint11"
	err := store.InsertBulk(ctx, []*domain.PoolSnapshot{
		testSnapshot(mint, 100),
		testSnapshot(mint, 105),
		testSnapshot("OtherMint", 101),
	})
	require.NoError(t, err)

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
	assert.Equal(t, int64(1700000000100), got.CapturedAt)
}

func TestPoolSnapshotStore_InsertBulkEmpty(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(conn)

	require.NoError(t, store.InsertBulk(context.Background(), nil))
}

func TestPoolSnapshotStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(conn)
	ctx := context.Background()

	mint := "ChRangeMint1"
	var snaps []*domain.PoolSnapshot
	for slot := uint64(1); slot <= 5; slot++ {
		snaps = append(snaps, testSnapshot(mint, slot))
	}
	require.NoError(t, store.InsertBulk(ctx, snaps))

	// captured_at_ms = 1700000000000 + slot
	got, err := store.GetByTimeRange(ctx, mint, 1700000000002, 1700000000004)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Oldest first.
	assert.Equal(t, uint64(2), got[0].Slot)
	assert.Equal(t, uint64(4), got[2].Slot)
}

func TestPoolSnapshotStore_InsertInvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPoolSnapshotStore(conn)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.PoolSnapshot{Mint: "m"}), storage.ErrInvalidInput)
}
