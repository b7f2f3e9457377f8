// Package decode converts raw account bytes and program event payloads into
// typed records. Decoders are pure, never panic on malformed input, and
// return a tagged result instead of errors for non-fatal conditions.
package decode

// Kind tags the outcome of a decode attempt.
type Kind int

const (
	// KindDecoded means Value holds a typed record.
	KindDecoded Kind = iota
	// KindSkip means the input is valid but outside the tracked set
	// (unrecognized discriminator). Not an error.
	KindSkip
	// KindMalformed means the input matched a known discriminator but the
	// payload could not be decoded. Counted by the caller, never fatal.
	KindMalformed
)

// Result is the tagged outcome of decoding an opaque buffer.
type Result struct {
	Kind   Kind
	Value  interface{} // *BondingCurveAccount, *AmmPoolAccount, *CurveTradeEvent, ...
	Reason string      // populated for KindMalformed
}

// Decoded wraps a successfully decoded record.
func Decoded(v interface{}) Result {
	return Result{Kind: KindDecoded, Value: v}
}

// Skip marks an input outside the tracked set.
func Skip() Result {
	return Result{Kind: KindSkip}
}

// Malformed marks a recognized but undecodable input.
func Malformed(reason string) Result {
	return Result{Kind: KindMalformed, Reason: reason}
}
