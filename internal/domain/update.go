package domain

// FeedKind identifies a logical subscription feed.
type FeedKind string

const (
	// FeedCurveTrades carries bonding-curve trade transactions.
	FeedCurveTrades FeedKind = "curve_trades"
	// FeedAMMPools carries AMM pool account updates.
	FeedAMMPools FeedKind = "amm_pools"
	// FeedAMMTrades carries AMM swap transactions.
	FeedAMMTrades FeedKind = "amm_trades"
)

// AccountUpdate is a slot-tagged account snapshot delivered by the feed.
type AccountUpdate struct {
	Account string // account address
	Owner   string // owning program
	Slot    uint64
	Data    []byte // raw account bytes
}

// InstructionCall is one decoded instruction from a transaction update, with
// named accounts and fixed-width integer arguments as declared on-chain.
type InstructionCall struct {
	Name     string
	Accounts map[string]string
	Args     map[string]uint64
}

// TransactionUpdate is a slot-tagged transaction notification. Program event
// payloads travel base64-encoded inside Logs; transports that parse
// instructions populate Instructions as well.
type TransactionUpdate struct {
	Signature    string
	Slot         uint64
	BlockTime    int64 // unix ms, 0 when unknown
	Logs         []string
	Instructions []InstructionCall
	Failed       bool
}
