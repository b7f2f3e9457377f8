package decode

import "bytes"

// BondingCurveAccount is the decoded bonding-curve state account.
// Layout after the discriminator: five u64 fields and a one-byte flag.
type BondingCurveAccount struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool // set on-chain when the curve graduates
}

const bondingCurveAccountLen = discriminatorLen + 5*8 + 1

// DecodeAccount routes raw account bytes by their 8-byte discriminator.
// Unknown discriminators yield Skip: the protocol emits account types
// outside the tracked set and that is expected.
func DecodeAccount(data []byte) Result {
	if len(data) < discriminatorLen {
		return Malformed("account data shorter than discriminator")
	}

	disc := data[:discriminatorLen]
	switch {
	case bytes.Equal(disc, discBondingCurveAccount[:]):
		return decodeBondingCurveAccount(data)
	case bytes.Equal(disc, discAmmPoolAccount[:]):
		return decodeAmmPoolAccount(data)
	default:
		return Skip()
	}
}

func decodeBondingCurveAccount(data []byte) Result {
	if len(data) < bondingCurveAccountLen {
		return Malformed("bonding curve account truncated")
	}

	offset := discriminatorLen
	return Decoded(&BondingCurveAccount{
		VirtualTokenReserves: readU64(data, offset),
		VirtualSolReserves:   readU64(data, offset+8),
		RealTokenReserves:    readU64(data, offset+16),
		RealSolReserves:      readU64(data, offset+24),
		TokenTotalSupply:     readU64(data, offset+32),
		Complete:             data[offset+40] != 0,
	})
}
