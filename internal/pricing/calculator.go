// Package pricing maps decoded on-chain reserves and amounts into
// human-denominated price, market cap and graduation state. Everything here
// is pure apart from reading the latest SOL/USD sample; undefined values are
// explicit nils, never NaN or Inf.
package pricing

import (
	"context"
	"math"
	"time"

	"launchstream/internal/domain"
)

// LamportsPerSOL is the number of native base units per SOL.
const LamportsPerSOL = 1_000_000_000

// Config bounds the calculator's sanity checks.
type Config struct {
	// RateStaleness is how old a SOL/USD sample may be and still convert
	// SOL-denominated values.
	RateStaleness time.Duration
	// MaxPriceUSD and MaxMarketCapUSD are suspect ceilings: values above
	// them are flagged, not dropped.
	MaxPriceUSD     float64
	MaxMarketCapUSD float64
	// GraduationSolReserves is the real-reserve target a curve fills on its
	// way to graduation, in lamports.
	GraduationSolReserves uint64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		RateStaleness:         5 * time.Minute,
		MaxPriceUSD:           1_000_000,
		MaxMarketCapUSD:       1_000_000_000_000, // 1T USD, nothing real on a launchpad gets here
		GraduationSolReserves: 85 * LamportsPerSOL,
	}
}

// RateSource yields the most recent SOL/USD sample no older than the given
// bound. Implemented by the SolPriceSample store.
type RateSource interface {
	Latest(ctx context.Context, notOlderThan time.Duration) (*domain.SolPriceSample, error)
}

// Calculator derives quotes from reserves. Safe for concurrent use.
type Calculator struct {
	cfg   Config
	rates RateSource
}

// NewCalculator creates a calculator. rates may be nil; USD conversion is
// then always undefined.
func NewCalculator(cfg Config, rates RateSource) *Calculator {
	return &Calculator{cfg: cfg, rates: rates}
}

// Quote is a derived price snapshot. Nil pointers mean undefined, which is a
// recorded state, not an error.
type Quote struct {
	PriceSOL     *float64
	PriceUSD     *float64
	MarketCapUSD *float64
	Suspect      bool
}

// PriceSOL computes the SOL-denominated token price from virtual reserves.
// Returns ok=false when either reserve is empty; never NaN or Inf.
func PriceSOL(virtualSolReserves, virtualTokenReserves uint64, decimals uint8) (float64, bool) {
	if virtualSolReserves == 0 || virtualTokenReserves == 0 {
		return 0, false
	}

	sol := float64(virtualSolReserves) / LamportsPerSOL
	tokens := float64(virtualTokenReserves) / math.Pow10(int(decimals))
	if tokens == 0 {
		return 0, false
	}
	return sol / tokens, true
}

// Quote derives price and market cap from virtual reserves. USD values are
// undefined when no fresh SOL/USD sample exists. Market cap uses 100% of
// total supply for both bonding-curve and graduated tokens (corrected from
// the legacy 10%-of-supply convention).
func (c *Calculator) Quote(ctx context.Context, virtualSolReserves, virtualTokenReserves uint64, decimals uint8, totalSupply uint64) Quote {
	var q Quote

	priceSOL, ok := PriceSOL(virtualSolReserves, virtualTokenReserves, decimals)
	if !ok {
		return q
	}
	q.PriceSOL = &priceSOL

	rate, ok := c.latestRate(ctx)
	if !ok {
		return q
	}

	priceUSD := priceSOL * rate
	q.PriceUSD = &priceUSD

	circulating := float64(totalSupply) / math.Pow10(int(decimals))
	marketCap := priceUSD * circulating
	q.MarketCapUSD = &marketCap

	if priceUSD > c.cfg.MaxPriceUSD || marketCap > c.cfg.MaxMarketCapUSD {
		q.Suspect = true
	}
	return q
}

func (c *Calculator) latestRate(ctx context.Context) (float64, bool) {
	if c.rates == nil {
		return 0, false
	}
	sample, err := c.rates.Latest(ctx, c.cfg.RateStaleness)
	if err != nil || sample == nil || sample.PriceUSD <= 0 {
		return 0, false
	}
	return sample.PriceUSD, true
}

// Progress maps real SOL reserves onto the [0,100] bonding-curve progress
// scale, clamped at the graduation threshold.
func (c *Calculator) Progress(realSolReserves uint64) float64 {
	return Progress(realSolReserves, c.cfg.GraduationSolReserves)
}

// Progress is the pure form of Calculator.Progress.
func Progress(realSolReserves, graduationThreshold uint64) float64 {
	if graduationThreshold == 0 {
		return 0
	}
	pct := float64(realSolReserves) / float64(graduationThreshold) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// DetectGraduation reports whether a token tracked under the bonding curve
// should transition to the AMM: either the explicit on-chain completion flag
// was decoded, or trading for the mint was observed on the AMM program.
// The second rule exists because completion events are not always reliably
// delivered.
func DetectGraduation(completeFlag bool, tradeProgram domain.Program) bool {
	return completeFlag || tradeProgram == domain.ProgramAMMPool
}
