package decode

import "encoding/binary"

// Known program IDs.
const (
	// CurveProgram is the bonding-curve launch program ID.
	CurveProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	// AMMProgram is the graduated-pool AMM program ID.
	AMMProgram = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	// WSOLMint is the wrapped-native-asset mint, used as the sentinel value
	// when recovering pool layouts and as the quote asset for direction
	// resolution.
	WSOLMint = "So11111111111111111111111111111111111111112"
)

const (
	discriminatorLen = 8
	pubkeyLen        = 32
)

// Account discriminators (8-byte little-endian prefixes).
var (
	discBondingCurveAccount = u64Discriminator(6966180631402821399)
	discAmmPoolAccount      = [8]byte{241, 154, 109, 4, 17, 177, 109, 188}
)

// Event discriminators.
var (
	discCurveTradeEvent    = [8]byte{189, 219, 127, 211, 78, 230, 97, 238}
	discCurveCompleteEvent = [8]byte{95, 114, 97, 156, 212, 46, 152, 8}
	discAmmBuyEvent        = [8]byte{103, 244, 82, 31, 44, 245, 119, 119}
	discAmmSellEvent       = [8]byte{62, 47, 55, 10, 165, 3, 220, 42}
)

func u64Discriminator(value uint64) [8]byte {
	var d [8]byte
	binary.LittleEndian.PutUint64(d[:], value)
	return d
}

func readU64(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

func readI64(data []byte, offset int) int64 {
	return int64(binary.LittleEndian.Uint64(data[offset : offset+8]))
}
