package domain

// PoolSnapshot is an append-only historical record of an AMM pool's reserves
// at a given slot. Used for auditability and back-fill, never mutated.
type PoolSnapshot struct {
	Mint                 string
	Pool                 string // pool account address
	VirtualSolReserves   uint64 // lamports
	VirtualTokenReserves uint64 // base units
	Slot                 uint64
	CapturedAt           int64 // unix ms
}
