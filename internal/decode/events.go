package decode

import (
	"bytes"
	"encoding/base64"
	"strings"
)

// eventDataPrefix marks log lines carrying a base64 program event payload.
const eventDataPrefix = "Program data: "

// CurveTradeEvent is a decoded bonding-curve trade emission.
type CurveTradeEvent struct {
	Mint                 string
	SolAmount            uint64 // lamports
	TokenAmount          uint64 // base units
	IsBuy                bool
	User                 string
	Timestamp            int64 // unix seconds as emitted on-chain
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64 // zero on legacy layouts
	RealTokenReserves    uint64 // zero on legacy layouts
}

// CurveCompleteEvent is the explicit graduation emission.
type CurveCompleteEvent struct {
	User      string
	Mint      string
	Curve     string
	Timestamp int64
}

// RawSwapKind is the direction as named by the emitting instruction, before
// base/quote inversion is applied.
type RawSwapKind string

const (
	RawSwapBuy  RawSwapKind = "buy"
	RawSwapSell RawSwapKind = "sell"
)

// AmmTradeEvent is a decoded AMM swap emission carrying the declared
// base/quote legs. Direction semantics relative to the traded token are
// resolved separately by ResolveSwapDirection.
type AmmTradeEvent struct {
	Pool              string
	User              string
	BaseMint          string
	QuoteMint         string
	BaseAmount        uint64
	QuoteAmount       uint64
	PoolBaseReserves  uint64
	PoolQuoteReserves uint64
	Kind              RawSwapKind
	Timestamp         int64
}

const (
	curveTradeEventLen    = discriminatorLen + pubkeyLen + 8 + 8 + 1 + pubkeyLen + 8 + 8 + 8
	curveTradeEventLenV2  = curveTradeEventLen + 16 // adds real reserves
	curveCompleteEventLen = discriminatorLen + 3*pubkeyLen + 8
	ammTradeEventLen      = discriminatorLen + 4*pubkeyLen + 4*8 + 8
)

// ExtractEventData pulls base64 program event payloads out of transaction
// logs. Lines that do not carry event data or do not decode are ignored.
func ExtractEventData(logs []string) [][]byte {
	var payloads [][]byte
	for _, line := range logs {
		if !strings.HasPrefix(line, eventDataPrefix) {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, eventDataPrefix))
		if err != nil {
			continue
		}
		payloads = append(payloads, raw)
	}
	return payloads
}

// DecodeEvent routes a program event payload by its 8-byte discriminator.
func DecodeEvent(data []byte) Result {
	if len(data) < discriminatorLen {
		return Malformed("event data shorter than discriminator")
	}

	disc := data[:discriminatorLen]
	switch {
	case bytes.Equal(disc, discCurveTradeEvent[:]):
		return decodeCurveTradeEvent(data)
	case bytes.Equal(disc, discCurveCompleteEvent[:]):
		return decodeCurveCompleteEvent(data)
	case bytes.Equal(disc, discAmmBuyEvent[:]):
		return decodeAmmTradeEvent(data, RawSwapBuy)
	case bytes.Equal(disc, discAmmSellEvent[:]):
		return decodeAmmTradeEvent(data, RawSwapSell)
	default:
		return Skip()
	}
}

func decodeCurveTradeEvent(data []byte) Result {
	if len(data) < curveTradeEventLen {
		return Malformed("curve trade event truncated")
	}

	offset := discriminatorLen
	ev := &CurveTradeEvent{
		Mint:        readPubkey(data, offset),
		SolAmount:   readU64(data, offset+32),
		TokenAmount: readU64(data, offset+40),
		IsBuy:       data[offset+48] != 0,
		User:        readPubkey(data, offset+49),
		Timestamp:   readI64(data, offset+81),
	}
	ev.VirtualSolReserves = readU64(data, offset+89)
	ev.VirtualTokenReserves = readU64(data, offset+97)

	// Newer emissions append real reserves after the virtual pair.
	if len(data) >= curveTradeEventLenV2 {
		ev.RealSolReserves = readU64(data, offset+105)
		ev.RealTokenReserves = readU64(data, offset+113)
	}

	return Decoded(ev)
}

func decodeCurveCompleteEvent(data []byte) Result {
	if len(data) < curveCompleteEventLen {
		return Malformed("curve complete event truncated")
	}

	offset := discriminatorLen
	return Decoded(&CurveCompleteEvent{
		User:      readPubkey(data, offset),
		Mint:      readPubkey(data, offset+32),
		Curve:     readPubkey(data, offset+64),
		Timestamp: readI64(data, offset+96),
	})
}

func decodeAmmTradeEvent(data []byte, kind RawSwapKind) Result {
	if len(data) < ammTradeEventLen {
		return Malformed("amm trade event truncated")
	}

	offset := discriminatorLen
	return Decoded(&AmmTradeEvent{
		Pool:              readPubkey(data, offset),
		User:              readPubkey(data, offset+32),
		BaseMint:          readPubkey(data, offset+64),
		QuoteMint:         readPubkey(data, offset+96),
		BaseAmount:        readU64(data, offset+128),
		QuoteAmount:       readU64(data, offset+136),
		PoolBaseReserves:  readU64(data, offset+144),
		PoolQuoteReserves: readU64(data, offset+152),
		Timestamp:         readI64(data, offset+160),
		Kind:              kind,
	})
}
