package decode

import (
	"encoding/base64"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"

func buildCurveTradeEvent(t *testing.T, mint string, solAmount, tokenAmount uint64, isBuy bool, virtualSol, virtualToken uint64) []byte {
	t.Helper()

	buf := make([]byte, curveTradeEventLen)
	copy(buf, discCurveTradeEvent[:])

	mintRaw, err := base58.Decode(mint)
	require.NoError(t, err)
	userRaw, err := base58.Decode(testUser)
	require.NoError(t, err)

	copy(buf[8:40], mintRaw)
	putU64(buf, 40, solAmount)
	putU64(buf, 48, tokenAmount)
	if isBuy {
		buf[56] = 1
	}
	copy(buf[57:89], userRaw)
	putU64(buf, 89, uint64(1_700_000_000)) // timestamp
	putU64(buf, 97, virtualSol)
	putU64(buf, 105, virtualToken)
	return buf
}

func TestDecodeEvent_CurveTrade(t *testing.T) {
	data := buildCurveTradeEvent(t, testTokenMint, 500_000_000, 12_000_000_000, true, 30_500_000_000, 988_000_000_000)

	res := DecodeEvent(data)
	require.Equal(t, KindDecoded, res.Kind)

	ev, ok := res.Value.(*CurveTradeEvent)
	require.True(t, ok)
	assert.Equal(t, testTokenMint, ev.Mint)
	assert.Equal(t, testUser, ev.User)
	assert.Equal(t, uint64(500_000_000), ev.SolAmount)
	assert.Equal(t, uint64(12_000_000_000), ev.TokenAmount)
	assert.True(t, ev.IsBuy)
	assert.Equal(t, int64(1_700_000_000), ev.Timestamp)
	assert.Equal(t, uint64(30_500_000_000), ev.VirtualSolReserves)
	assert.Equal(t, uint64(988_000_000_000), ev.VirtualTokenReserves)
	assert.Zero(t, ev.RealSolReserves)
}

func TestDecodeEvent_CurveTradeWithRealReserves(t *testing.T) {
	data := buildCurveTradeEvent(t, testTokenMint, 1, 2, false, 3, 4)
	extra := make([]byte, 16)
	putU64(extra, 0, 55)
	putU64(extra, 8, 66)
	data = append(data, extra...)

	res := DecodeEvent(data)
	require.Equal(t, KindDecoded, res.Kind)

	ev := res.Value.(*CurveTradeEvent)
	assert.Equal(t, uint64(55), ev.RealSolReserves)
	assert.Equal(t, uint64(66), ev.RealTokenReserves)
}

func TestDecodeEvent_CurveComplete(t *testing.T) {
	buf := make([]byte, curveCompleteEventLen)
	copy(buf, discCurveCompleteEvent[:])

	userRaw, _ := base58.Decode(testUser)
	mintRaw, _ := base58.Decode(testTokenMint)
	copy(buf[8:40], userRaw)
	copy(buf[40:72], mintRaw)
	copy(buf[72:104], userRaw)
	putU64(buf, 104, uint64(1_700_000_123))

	res := DecodeEvent(buf)
	require.Equal(t, KindDecoded, res.Kind)

	ev := res.Value.(*CurveCompleteEvent)
	assert.Equal(t, testTokenMint, ev.Mint)
	assert.Equal(t, int64(1_700_000_123), ev.Timestamp)
}

func buildAmmTradeEvent(t *testing.T, kind RawSwapKind, baseMint, quoteMint string, baseAmount, quoteAmount uint64) []byte {
	t.Helper()

	buf := make([]byte, ammTradeEventLen)
	switch kind {
	case RawSwapBuy:
		copy(buf, discAmmBuyEvent[:])
	case RawSwapSell:
		copy(buf, discAmmSellEvent[:])
	}

	poolRaw, _ := base58.Decode(testUser) // any 32-byte key works as the pool
	baseRaw, err := base58.Decode(baseMint)
	require.NoError(t, err)
	quoteRaw, err := base58.Decode(quoteMint)
	require.NoError(t, err)

	copy(buf[8:40], poolRaw)
	copy(buf[40:72], poolRaw)
	copy(buf[72:104], baseRaw)
	copy(buf[104:136], quoteRaw)
	putU64(buf, 136, baseAmount)
	putU64(buf, 144, quoteAmount)
	putU64(buf, 152, 3_000_000_000_000)
	putU64(buf, 160, 40_000_000_000)
	putU64(buf, 168, uint64(1_700_000_456))
	return buf
}

func TestDecodeEvent_AmmBuyAndSell(t *testing.T) {
	buy := DecodeEvent(buildAmmTradeEvent(t, RawSwapBuy, testTokenMint, WSOLMint, 100, 200))
	require.Equal(t, KindDecoded, buy.Kind)
	assert.Equal(t, RawSwapBuy, buy.Value.(*AmmTradeEvent).Kind)

	sell := DecodeEvent(buildAmmTradeEvent(t, RawSwapSell, testTokenMint, WSOLMint, 100, 200))
	require.Equal(t, KindDecoded, sell.Kind)

	ev := sell.Value.(*AmmTradeEvent)
	assert.Equal(t, RawSwapSell, ev.Kind)
	assert.Equal(t, testTokenMint, ev.BaseMint)
	assert.Equal(t, WSOLMint, ev.QuoteMint)
	assert.Equal(t, uint64(100), ev.BaseAmount)
	assert.Equal(t, uint64(200), ev.QuoteAmount)
	assert.Equal(t, uint64(3_000_000_000_000), ev.PoolBaseReserves)
	assert.Equal(t, uint64(40_000_000_000), ev.PoolQuoteReserves)
}

func TestDecodeEvent_UnknownAndShort(t *testing.T) {
	res := DecodeEvent([]byte{9, 9, 9, 9, 9, 9, 9, 9, 1, 2, 3})
	assert.Equal(t, KindSkip, res.Kind)

	res = DecodeEvent([]byte{1, 2, 3})
	assert.Equal(t, KindMalformed, res.Kind)

	truncated := buildCurveTradeEvent(t, testTokenMint, 1, 2, true, 3, 4)[:50]
	res = DecodeEvent(truncated)
	assert.Equal(t, KindMalformed, res.Kind)
}

func TestExtractEventData(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	logs := []string{
		"Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]",
		"Program data: " + base64.StdEncoding.EncodeToString(payload),
		"Program data: !!!not-base64!!!",
		"Program log: Instruction: Buy",
	}

	extracted := ExtractEventData(logs)
	require.Len(t, extracted, 1)
	assert.Equal(t, payload, extracted[0])
}

func TestDecodeEvent_NeverPanics(t *testing.T) {
	for size := 0; size < 200; size++ {
		data := make([]byte, size)
		for i := range data {
			data[i] = byte(i * 13)
		}
		assert.NotPanics(t, func() { DecodeEvent(data) })
	}
}
