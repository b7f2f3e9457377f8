package decode

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putU64(buf []byte, offset int, v uint64) {
	binary.LittleEndian.PutUint64(buf[offset:offset+8], v)
}

func buildBondingCurveAccount(virtualToken, virtualSol, realToken, realSol, supply uint64, complete bool) []byte {
	buf := make([]byte, bondingCurveAccountLen)
	copy(buf, discBondingCurveAccount[:])
	putU64(buf, 8, virtualToken)
	putU64(buf, 16, virtualSol)
	putU64(buf, 24, realToken)
	putU64(buf, 32, realSol)
	putU64(buf, 40, supply)
	if complete {
		buf[48] = 1
	}
	return buf
}

func TestDecodeAccount_BondingCurve(t *testing.T) {
	data := buildBondingCurveAccount(1_000_000_000_000, 30_000_000_000, 800_000_000_000, 12_000_000_000, 1_000_000_000_000_000, false)

	res := DecodeAccount(data)
	require.Equal(t, KindDecoded, res.Kind)

	acct, ok := res.Value.(*BondingCurveAccount)
	require.True(t, ok)
	assert.Equal(t, uint64(1_000_000_000_000), acct.VirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000_000), acct.VirtualSolReserves)
	assert.Equal(t, uint64(800_000_000_000), acct.RealTokenReserves)
	assert.Equal(t, uint64(12_000_000_000), acct.RealSolReserves)
	assert.Equal(t, uint64(1_000_000_000_000_000), acct.TokenTotalSupply)
	assert.False(t, acct.Complete)
}

func TestDecodeAccount_BondingCurveComplete(t *testing.T) {
	data := buildBondingCurveAccount(0, 0, 0, 85_000_000_000, 1_000_000_000_000_000, true)

	res := DecodeAccount(data)
	require.Equal(t, KindDecoded, res.Kind)
	assert.True(t, res.Value.(*BondingCurveAccount).Complete)
}

func TestDecodeAccount_UnknownDiscriminatorSkips(t *testing.T) {
	data := make([]byte, 128)
	copy(data, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	res := DecodeAccount(data)
	assert.Equal(t, KindSkip, res.Kind)
}

func TestDecodeAccount_TruncatedIsMalformed(t *testing.T) {
	data := buildBondingCurveAccount(1, 2, 3, 4, 5, false)

	res := DecodeAccount(data[:20])
	assert.Equal(t, KindMalformed, res.Kind)
	assert.NotEmpty(t, res.Reason)
}

// DecodeAccount must return a tagged result for every input length, never panic.
func TestDecodeAccount_NeverPanics(t *testing.T) {
	for size := 0; size < 256; size++ {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 7)
		}
		assert.NotPanics(t, func() {
			res := DecodeAccount(data)
			assert.Contains(t, []Kind{KindDecoded, KindSkip, KindMalformed}, res.Kind)
		})
	}
}
