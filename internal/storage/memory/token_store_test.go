package memory

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchstream/internal/domain"
	"launchstream/internal/storage"
)

func ptr(v float64) *float64 { return &v }

func curveUpdate(mint string, slot uint64) *domain.TokenUpdate {
	return &domain.TokenUpdate{
		Mint:                 mint,
		Decimals:             6,
		TotalSupply:          1_000_000_000_000_000,
		Program:              domain.ProgramBondingCurve,
		Progress:             float64(slot % 100),
		PriceSOL:             ptr(0.00003),
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_000_000_000_000,
		Slot:                 slot,
	}
}

func TestTokenStore_CreateAndRefresh(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	res, err := store.Upsert(ctx, curveUpdate("mint-1", 100))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.Created)
	assert.False(t, res.Graduated)

	res, err = store.Upsert(ctx, curveUpdate("mint-1", 101))
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.Created)

	tok, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(101), tok.LatestSlot)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTokenStore_StaleSlotDiscarded(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, curveUpdate("mint-1", 100))
	require.NoError(t, err)

	// Same slot: replay from reconnect, must be a no-op.
	res, err := store.Upsert(ctx, curveUpdate("mint-1", 100))
	require.NoError(t, err)
	assert.False(t, res.Applied)

	// Older slot: out-of-order delivery, must be a no-op.
	res, err = store.Upsert(ctx, curveUpdate("mint-1", 99))
	require.NoError(t, err)
	assert.False(t, res.Applied)

	tok, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), tok.LatestSlot)
}

func TestTokenStore_SlotMonotonicityUnderInterleaving(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	slots := make([]uint64, 0, 200)
	var maxSlot uint64
	for i := 0; i < 200; i++ {
		slot := uint64(rand.Intn(1000) + 1)
		slots = append(slots, slot)
		if slot > maxSlot {
			maxSlot = slot
		}
	}

	var wg sync.WaitGroup
	for _, slot := range slots {
		wg.Add(1)
		go func(slot uint64) {
			defer wg.Done()
			u := curveUpdate("mint-1", slot)
			u.VirtualSolReserves = slot // marker tied to the slot
			_, err := store.Upsert(ctx, u)
			assert.NoError(t, err)
		}(slot)
	}
	wg.Wait()

	tok, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, maxSlot, tok.LatestSlot)
	// Derived fields must correspond to the maximum-slot update.
	assert.Equal(t, maxSlot, tok.LatestVirtualSolReserves)
}

func TestTokenStore_GraduationIrreversible(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, curveUpdate("mint-1", 100))
	require.NoError(t, err)

	grad := curveUpdate("mint-1", 101)
	grad.Program = domain.ProgramAMMPool
	grad.Graduated = true

	res, err := store.Upsert(ctx, grad)
	require.NoError(t, err)
	assert.True(t, res.Graduated)

	// A later update claiming not-graduated must not revert the flag.
	late := curveUpdate("mint-1", 102)
	late.Graduated = false

	res, err = store.Upsert(ctx, late)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.Graduated)

	tok, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.True(t, tok.GraduatedToAMM)
	assert.Equal(t, domain.ProgramAMMPool, tok.CurrentProgram)
}

func TestTokenStore_GraduatedFlagReportedOnce(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	_, err := store.Upsert(ctx, curveUpdate("mint-1", 100))
	require.NoError(t, err)

	grad := curveUpdate("mint-1", 101)
	grad.Graduated = true
	grad.Program = domain.ProgramAMMPool
	res, err := store.Upsert(ctx, grad)
	require.NoError(t, err)
	assert.True(t, res.Graduated)

	again := curveUpdate("mint-1", 102)
	again.Graduated = true
	again.Program = domain.ProgramAMMPool
	res, err = store.Upsert(ctx, again)
	require.NoError(t, err)
	assert.False(t, res.Graduated, "graduation transition must be reported exactly once")
}

func TestTokenStore_ProgressMonotone(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	first := curveUpdate("mint-1", 100)
	first.Progress = 40
	_, err := store.Upsert(ctx, first)
	require.NoError(t, err)

	// A newer slot with lower computed progress must not regress the stored value.
	second := curveUpdate("mint-1", 101)
	second.Progress = 25
	_, err = store.Upsert(ctx, second)
	require.NoError(t, err)

	tok, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, tok.Progress)
}

func TestTokenStore_GetMissing(t *testing.T) {
	store := NewTokenStore()
	_, err := store.GetByMint(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_InvalidInput(t *testing.T) {
	store := NewTokenStore()
	_, err := store.Upsert(context.Background(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Upsert(context.Background(), &domain.TokenUpdate{})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
