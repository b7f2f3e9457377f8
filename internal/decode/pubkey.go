package decode

import (
	"crypto/sha256"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// readPubkey encodes a 32-byte window as a base58 address.
func readPubkey(data []byte, offset int) string {
	return base58.Encode(data[offset : offset+pubkeyLen])
}

// decodePubkey decodes a base58 address into its 32 raw bytes.
func decodePubkey(address string) ([]byte, error) {
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("decode pubkey %q: %w", address, err)
	}
	if len(raw) != pubkeyLen {
		return nil, fmt.Errorf("pubkey %q: got %d bytes, want %d", address, len(raw), pubkeyLen)
	}
	return raw, nil
}

// isOnCurve reports whether a 32-byte point lies on the ed25519 curve.
// Program-derived addresses must be off-curve.
func isOnCurve(point []byte) bool {
	if len(point) != pubkeyLen {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// DeriveBondingCurveAddress derives the bonding-curve PDA for a mint using
// the "bonding-curve" seed, matching the on-chain derivation.
func DeriveBondingCurveAddress(mint string) (string, error) {
	mintBytes, err := decodePubkey(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := decodePubkey(CurveProgram)
	if err != nil {
		return "", err
	}

	for bump := byte(255); bump > 0; bump-- {
		data := make([]byte, 0, 13+pubkeyLen+1+pubkeyLen+21)
		data = append(data, []byte("bonding-curve")...)
		data = append(data, mintBytes...)
		data = append(data, bump)
		data = append(data, programBytes...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:]), nil
		}
	}

	return "", fmt.Errorf("no off-curve address for mint %s", mint)
}
