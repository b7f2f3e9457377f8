package domain

// TradeSide is the direction of a swap from the token's perspective.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// Trade is one observed swap, append-only, keyed by transaction signature.
// Duplicate signatures are a no-op at the store (at-least-once delivery).
type Trade struct {
	Signature string // unique key
	Mint      string
	Program   Program
	Side      TradeSide

	SolAmount   uint64 // lamports
	TokenAmount uint64 // base units

	PriceSOL     *float64 // price at trade time, nil when undefined
	PriceUSD     *float64
	MarketCapUSD *float64

	Slot      uint64
	BlockTime int64 // unix ms
}
