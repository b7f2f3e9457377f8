package domain

import "encoding/json"

// EventKind identifies the type of a broadcast event.
type EventKind string

const (
	EventKindTrade      EventKind = "trade"
	EventKindGraduation EventKind = "graduation"
	EventKindNewToken   EventKind = "new_token"
	EventKindStats      EventKind = "stats"
	EventKindError      EventKind = "error"
)

// AllEventKinds lists every kind a subscriber receives by default.
var AllEventKinds = []EventKind{
	EventKindTrade,
	EventKindGraduation,
	EventKindNewToken,
	EventKindStats,
	EventKindError,
}

// Event is the outbound envelope pushed to live subscribers.
type Event struct {
	Type      EventKind   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // unix ms
}

// Marshal encodes the event envelope as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// TradeEventPayload is the data field of a "trade" event.
type TradeEventPayload struct {
	Signature    string    `json:"signature"`
	Mint         string    `json:"mint"`
	Program      Program   `json:"program"`
	Side         TradeSide `json:"side"`
	SolAmount    uint64    `json:"sol_amount"`
	TokenAmount  uint64    `json:"token_amount"`
	PriceSOL     *float64  `json:"price_sol"`
	PriceUSD     *float64  `json:"price_usd"`
	MarketCapUSD *float64  `json:"market_cap_usd"`
	Slot         uint64    `json:"slot"`
}

// GraduationEventPayload is the data field of a "graduation" event.
type GraduationEventPayload struct {
	Mint string `json:"mint"`
	Slot uint64 `json:"slot"`
}

// NewTokenEventPayload is the data field of a "new_token" event. Curve is
// the derived bonding-curve address, empty when derivation fails.
type NewTokenEventPayload struct {
	Mint    string  `json:"mint"`
	Curve   string  `json:"curve,omitempty"`
	Program Program `json:"program"`
	Slot    uint64  `json:"slot"`
}

// StatsEventPayload is the data field of a periodic "stats" event.
type StatsEventPayload struct {
	TrackedTokens    int64  `json:"tracked_tokens"`
	ConnectedClients int    `json:"connected_clients"`
	HighestSlot      uint64 `json:"highest_slot"`
}

// ErrorEventPayload is the data field of an "error" event. It carries an
// operator-readable condition, never internal exception detail.
type ErrorEventPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
