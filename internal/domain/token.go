package domain

// Program identifies which on-chain program currently hosts trading for a token.
type Program string

const (
	// ProgramBondingCurve marks tokens still trading on the launch bonding curve.
	ProgramBondingCurve Program = "bonding_curve"
	// ProgramAMMPool marks tokens that graduated to an AMM pool.
	ProgramAMMPool Program = "amm_pool"
)

// Token is the canonical per-mint derived state. One row per mint address.
// The reconciler is the sole writer; all updates are guarded by LatestSlot.
type Token struct {
	Mint   string  // mint address, unique key
	Symbol *string // filled by out-of-band enrichment (nullable)
	Name   *string // filled by out-of-band enrichment (nullable)

	Decimals    uint8
	TotalSupply uint64 // base units

	CurrentProgram Program
	GraduatedToAMM bool    // transitions false->true at most once, never reverts
	Progress       float64 // bonding curve progress, [0,100], monotone while not graduated

	LatestPriceSOL     *float64 // nil when undefined (empty reserves)
	LatestPriceUSD     *float64 // nil when no fresh SOL/USD rate
	LatestMarketCapUSD *float64

	LatestVirtualSolReserves   uint64 // lamports
	LatestVirtualTokenReserves uint64 // base units

	LatestSlot uint64 // last slot applied; updates with slot <= this are stale
	Suspect    bool   // derived values exceeded sanity ceilings at last update

	FirstSeenAt   int64 // unix ms
	LastUpdatedAt int64 // unix ms
}

// TokenUpdate is a single decoded+derived observation for a mint, as produced
// by the pipeline and applied by the reconciler. Slot ordering and graduation
// irreversibility are enforced by the store, not by the caller.
type TokenUpdate struct {
	Mint        string
	Decimals    uint8
	TotalSupply uint64

	Program   Program
	Graduated bool
	Progress  float64

	PriceSOL     *float64
	PriceUSD     *float64
	MarketCapUSD *float64

	VirtualSolReserves   uint64
	VirtualTokenReserves uint64

	Slot       uint64
	Suspect    bool
	ObservedAt int64 // unix ms
}
