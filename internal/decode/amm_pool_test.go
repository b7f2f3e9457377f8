package decode

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenMint = "8VfUQdY8S5DFnCPXUbP8hTxdEM1wWYbYoU9p1aoPpump"

// buildPoolAccount lays out a pool account with base mint at offset 43 and
// quote mint at offset 75 (adjacent 32-byte fields), reserves per offsets.
func buildPoolAccount(t *testing.T, baseMint, quoteMint string, reserves map[int]uint64) []byte {
	t.Helper()

	buf := make([]byte, 300)
	copy(buf, discAmmPoolAccount[:])

	baseRaw, err := base58.Decode(baseMint)
	require.NoError(t, err)
	quoteRaw, err := base58.Decode(quoteMint)
	require.NoError(t, err)
	copy(buf[43:75], baseRaw)
	copy(buf[75:107], quoteRaw)

	for offset, v := range reserves {
		putU64(buf, offset, v)
	}
	return buf
}

func TestRecoverPoolLayout_QuoteIsSOL(t *testing.T) {
	// token reserves huge, SOL reserves small: 5 SOL vs 1e15 base units
	data := buildPoolAccount(t, testTokenMint, WSOLMint, map[int]uint64{
		200: 5_000_000_000,
		208: 1_000_000_000_000_000,
	})

	res := DecodeAccount(data)
	require.Equal(t, KindDecoded, res.Kind)

	pool, ok := res.Value.(*AmmPoolAccount)
	require.True(t, ok)
	assert.Equal(t, testTokenMint, pool.BaseMint)
	assert.Equal(t, WSOLMint, pool.QuoteMint)
	assert.Equal(t, uint64(5_000_000_000), pool.QuoteReserves)
	assert.Equal(t, uint64(1_000_000_000_000_000), pool.BaseReserves)
	assert.Equal(t, 2, pool.LayoutVersion)
}

func TestRecoverPoolLayout_ReserveOrderDoesNotMatter(t *testing.T) {
	// Same values, swapped byte positions: the smaller (plausible) value must
	// still be classified as the SOL reserve.
	data := buildPoolAccount(t, testTokenMint, WSOLMint, map[int]uint64{
		200: 1_000_000_000_000_000,
		208: 5_000_000_000,
	})

	res := DecodeAccount(data)
	require.Equal(t, KindDecoded, res.Kind)

	pool := res.Value.(*AmmPoolAccount)
	assert.Equal(t, uint64(5_000_000_000), pool.QuoteReserves)
	assert.Equal(t, uint64(1_000_000_000_000_000), pool.BaseReserves)
}

func TestRecoverPoolLayout_SOLAsBaseLeg(t *testing.T) {
	// Sentinel in the first mint window: counterpart is found on the other side.
	data := buildPoolAccount(t, WSOLMint, testTokenMint, map[int]uint64{
		200: 7_000_000_000,
		208: 4_000_000_000_000,
	})

	res := DecodeAccount(data)
	require.Equal(t, KindDecoded, res.Kind)

	pool := res.Value.(*AmmPoolAccount)
	assert.Equal(t, testTokenMint, pool.BaseMint)
	assert.Equal(t, WSOLMint, pool.QuoteMint)
}

func TestRecoverPoolLayout_NoSentinel(t *testing.T) {
	data := buildPoolAccount(t, testTokenMint, testTokenMint, map[int]uint64{
		200: 5_000_000_000,
		208: 1_000_000_000_000_000,
	})
	// overwrite the quote window so no WSOL appears anywhere
	for i := 75; i < 107; i++ {
		data[i] = 0xAB
	}

	_, err := recoverPoolLayout(data, DefaultSolReserveCeiling)
	require.ErrorIs(t, err, ErrNoSentinelMint)

	res := DecodeAccount(data)
	assert.Equal(t, KindMalformed, res.Kind)
}

func TestRecoverPoolLayout_NoPlausibleReserves(t *testing.T) {
	huge := DefaultSolReserveCeiling + 1
	data := buildPoolAccount(t, testTokenMint, WSOLMint, map[int]uint64{
		168: huge, 176: huge,
		200: huge, 208: huge,
	})

	_, err := recoverPoolLayout(data, DefaultSolReserveCeiling)
	assert.ErrorIs(t, err, ErrNoPlausibleReserves)
}

func TestRecoverPoolLayout_FallsBackToOlderHypothesis(t *testing.T) {
	huge := DefaultSolReserveCeiling + 1
	data := buildPoolAccount(t, testTokenMint, WSOLMint, map[int]uint64{
		200: huge, 208: huge,
		168: 9_000_000_000, 176: 2_000_000_000_000,
	})

	pool, err := recoverPoolLayout(data, DefaultSolReserveCeiling)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.LayoutVersion)
	assert.Equal(t, uint64(9_000_000_000), pool.QuoteReserves)
}

func TestClassifyReserves(t *testing.T) {
	ceiling := uint64(1000)

	tests := []struct {
		name      string
		a, b      uint64
		wantQuote uint64
		wantBase  uint64
		wantErr   bool
	}{
		{"a plausible", 500, 2000, 500, 2000, false},
		{"b plausible", 2000, 500, 500, 2000, false},
		{"both plausible picks smaller", 800, 300, 300, 800, false},
		{"neither plausible", 2000, 3000, 0, 0, true},
		{"equal plausible", 400, 400, 400, 400, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote, base, err := classifyReserves(tt.a, tt.b, ceiling)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoPlausibleReserves)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuote, quote)
			assert.Equal(t, tt.wantBase, base)
		})
	}
}
