package decode

import (
	"errors"
	"fmt"
	"strings"

	"launchstream/internal/domain"
)

// ErrNoSolLeg means neither declared leg of the swap is the wrapped-native
// mint, so the trade is not SOL-quoted and cannot be priced here.
var ErrNoSolLeg = errors.New("swap has no wrapped-native leg")

// ResolvedSwap is an AMM swap normalized to the traded token's perspective.
type ResolvedSwap struct {
	Mint        string // the non-SOL mint
	Side        domain.TradeSide
	Inverted    bool   // true when the instruction name's semantics were flipped
	SolAmount   uint64 // lamports
	TokenAmount uint64 // base units
}

// ResolveSwapDirection maps an instruction's declared name and base/quote
// mints to the traded token's buy/sell label. When the base leg is the
// wrapped-native mint, the pool is inverted and a "buy" of the base asset is
// a sell of the token (and vice versa).
func ResolveSwapDirection(instructionName, baseMint, quoteMint string) (domain.TradeSide, string, bool, error) {
	var named domain.TradeSide
	switch strings.ToLower(instructionName) {
	case "buy":
		named = domain.TradeSideBuy
	case "sell":
		named = domain.TradeSideSell
	default:
		return "", "", false, fmt.Errorf("unknown swap instruction %q", instructionName)
	}

	switch {
	case baseMint == WSOLMint && quoteMint != WSOLMint:
		return oppositeSide(named), quoteMint, true, nil
	case quoteMint == WSOLMint && baseMint != WSOLMint:
		return named, baseMint, false, nil
	default:
		return "", "", false, ErrNoSolLeg
	}
}

func oppositeSide(side domain.TradeSide) domain.TradeSide {
	if side == domain.TradeSideBuy {
		return domain.TradeSideSell
	}
	return domain.TradeSideBuy
}

// ResolveAmmTrade normalizes a decoded AMM trade event to the traded token's
// perspective, assigning SOL and token amounts to the correct legs.
func ResolveAmmTrade(ev *AmmTradeEvent) (*ResolvedSwap, error) {
	side, mint, inverted, err := ResolveSwapDirection(string(ev.Kind), ev.BaseMint, ev.QuoteMint)
	if err != nil {
		return nil, err
	}

	solAmount, tokenAmount := ev.QuoteAmount, ev.BaseAmount
	if inverted {
		solAmount, tokenAmount = ev.BaseAmount, ev.QuoteAmount
	}

	return &ResolvedSwap{
		Mint:        mint,
		Side:        side,
		Inverted:    inverted,
		SolAmount:   solAmount,
		TokenAmount: tokenAmount,
	}, nil
}

// ResolveSwapInstruction normalizes a structured instruction call (the
// transaction path) using its named accounts and fixed-width arguments.
func ResolveSwapInstruction(call domain.InstructionCall) (*ResolvedSwap, error) {
	baseMint := call.Accounts["base_mint"]
	quoteMint := call.Accounts["quote_mint"]

	side, mint, inverted, err := ResolveSwapDirection(call.Name, baseMint, quoteMint)
	if err != nil {
		return nil, err
	}

	solAmount, tokenAmount := call.Args["quote_amount"], call.Args["base_amount"]
	if inverted {
		solAmount, tokenAmount = call.Args["base_amount"], call.Args["quote_amount"]
	}

	return &ResolvedSwap{
		Mint:        mint,
		Side:        side,
		Inverted:    inverted,
		SolAmount:   solAmount,
		TokenAmount: tokenAmount,
	}, nil
}
