package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// AmmPoolAccount is the decoded AMM pool state. Mint and reserve fields are
// recovered heuristically; LayoutVersion records which hypothesis validated
// so future on-chain layout changes are added as new hypotheses instead of
// patched in place.
type AmmPoolAccount struct {
	BaseMint      string // the traded (non-SOL) mint
	QuoteMint     string // always WSOLMint on success
	BaseReserves  uint64 // base units
	QuoteReserves uint64 // lamports
	LayoutVersion int
}

// DefaultSolReserveCeiling bounds a plausible quote-asset reserve:
// 100,000 SOL in lamports. A reserve above this cannot be the SOL side.
const DefaultSolReserveCeiling = uint64(100_000) * 1_000_000_000

// Typed heuristic failures. Callers map these to Malformed results; the
// decoder never guesses silently.
var (
	// ErrNoSentinelMint means no 32-byte window held the wrapped-native mint.
	ErrNoSentinelMint = errors.New("pool layout: sentinel mint not found")
	// ErrNoAdjacentMint means the window next to the sentinel held no
	// plausible counterpart mint.
	ErrNoAdjacentMint = errors.New("pool layout: no mint adjacent to sentinel")
	// ErrNoPlausibleReserves means neither reserve candidate was under the
	// configured SOL ceiling.
	ErrNoPlausibleReserves = errors.New("pool layout: no reserve candidate under SOL ceiling")
)

// poolLayoutHypothesis fixes the byte offsets of the two reserve fields for
// one known on-chain layout revision. Hypotheses are tried in priority order
// and selected by validation.
type poolLayoutHypothesis struct {
	version        int
	reserveOffsetA int
	reserveOffsetB int
}

var poolLayoutHypotheses = []poolLayoutHypothesis{
	{version: 2, reserveOffsetA: 200, reserveOffsetB: 208},
	{version: 1, reserveOffsetA: 168, reserveOffsetB: 176},
}

func decodeAmmPoolAccount(data []byte) Result {
	pool, err := recoverPoolLayout(data, DefaultSolReserveCeiling)
	if err != nil {
		return Malformed(err.Error())
	}
	return Decoded(pool)
}

// recoverPoolLayout locates the mint and reserve fields of an AMM pool
// account. Mints are found by scanning 32-byte windows for the
// wrapped-native sentinel; reserves sit at fixed per-hypothesis offsets and
// are classified by magnitude against ceiling. Returns a typed error when
// no hypothesis validates.
func recoverPoolLayout(data []byte, ceiling uint64) (*AmmPoolAccount, error) {
	if len(data) < discriminatorLen+2*pubkeyLen {
		return nil, fmt.Errorf("pool layout: account too short (%d bytes)", len(data))
	}

	sentinel, err := decodePubkey(WSOLMint)
	if err != nil {
		return nil, err
	}

	solOffset := scanForWindow(data, sentinel)
	if solOffset < 0 {
		return nil, ErrNoSentinelMint
	}

	tokenMint, err := adjacentMint(data, solOffset, sentinel)
	if err != nil {
		return nil, err
	}

	for _, h := range poolLayoutHypotheses {
		if len(data) < h.reserveOffsetB+8 {
			continue
		}
		a := readU64(data, h.reserveOffsetA)
		b := readU64(data, h.reserveOffsetB)

		quote, base, err := classifyReserves(a, b, ceiling)
		if err != nil {
			continue
		}
		return &AmmPoolAccount{
			BaseMint:      tokenMint,
			QuoteMint:     WSOLMint,
			BaseReserves:  base,
			QuoteReserves: quote,
			LayoutVersion: h.version,
		}, nil
	}

	return nil, ErrNoPlausibleReserves
}

// scanForWindow returns the first offset past the discriminator where a
// 32-byte window equals needle, or -1.
func scanForWindow(data, needle []byte) int {
	for offset := discriminatorLen; offset+pubkeyLen <= len(data); offset++ {
		if bytes.Equal(data[offset:offset+pubkeyLen], needle) {
			return offset
		}
	}
	return -1
}

// adjacentMint reads the counterpart mint from the 32-byte window next to
// the sentinel. Base and quote mint fields are adjacent in every known
// layout; the counterpart must be non-zero and distinct from the sentinel.
func adjacentMint(data []byte, solOffset int, sentinel []byte) (string, error) {
	for _, offset := range []int{solOffset + pubkeyLen, solOffset - pubkeyLen} {
		if offset < discriminatorLen || offset+pubkeyLen > len(data) {
			continue
		}
		window := data[offset : offset+pubkeyLen]
		if isZeroWindow(window) || bytes.Equal(window, sentinel) {
			continue
		}
		return base58.Encode(window), nil
	}
	return "", ErrNoAdjacentMint
}

func isZeroWindow(window []byte) bool {
	for _, b := range window {
		if b != 0 {
			return false
		}
	}
	return true
}

// classifyReserves assigns the two reserve candidates to quote (SOL) and
// base legs. A value under ceiling is a plausible SOL reserve; when both
// qualify the smaller one is the SOL side, when neither does the layout
// hypothesis is rejected.
func classifyReserves(a, b, ceiling uint64) (quote, base uint64, err error) {
	aPlausible := a <= ceiling
	bPlausible := b <= ceiling

	switch {
	case aPlausible && bPlausible:
		if a <= b {
			return a, b, nil
		}
		return b, a, nil
	case aPlausible:
		return a, b, nil
	case bPlausible:
		return b, a, nil
	default:
		return 0, 0, ErrNoPlausibleReserves
	}
}
