package domain

// SolPriceSample is a periodic external SOL/USD exchange-rate observation.
// The calculator treats the latest sample within a staleness window as
// authoritative; older samples are pruned by the sampler.
type SolPriceSample struct {
	Timestamp int64   // unix ms
	PriceUSD  float64 // USD per SOL
}
