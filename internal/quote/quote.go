// Package quote models flip orders and per-cycle quote parameters.
//
// A flip order is a resting order that, on full fill, atomically re-posts on
// the opposite side at a pre-declared destination tick, funded from the
// maker's internal exchange balance. The exchange enforces the flip
// constraint on-chain too, but checking client-side at construction time
// avoids burning a transaction and a budget slot on a doomed call.
package quote

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/nuxxor/tempo-market-maker/internal/tick"
)

// Side identifies which side of the book an order rests on.
type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

// FlipConstraintError reports a (tick, flipTick) pair that violates the flip
// invariant: a bid must flip strictly above itself, an ask strictly below.
type FlipConstraintError struct {
	Side     Side
	Tick     int64
	FlipTick int64
}

func (e *FlipConstraintError) Error() string {
	return fmt.Sprintf("flip constraint violated: %s at tick %d cannot flip to %d", e.Side, e.Tick, e.FlipTick)
}

// FlipOrder is a validated flip order ready for submission.
type FlipOrder struct {
	Base     common.Address
	Quote    common.Address
	Amount   *big.Int
	Side     Side
	Tick     int64
	FlipTick int64
}

// NewFlipOrder validates the tick pair against the grid and the flip
// invariant before any chain call is attempted.
func NewFlipOrder(g tick.Grid, base, quoteToken common.Address, amount *big.Int, side Side, t, flipTick int64) (FlipOrder, error) {
	if amount == nil || amount.Sign() <= 0 {
		return FlipOrder{}, fmt.Errorf("order amount must be positive")
	}
	if !g.IsValid(t) {
		return FlipOrder{}, &tick.InvalidTickError{Tick: t, Reason: "order tick off-grid or out of bounds"}
	}
	if !g.IsValid(flipTick) {
		return FlipOrder{}, &tick.InvalidTickError{Tick: flipTick, Reason: "flip tick off-grid or out of bounds"}
	}
	switch side {
	case SideBid:
		if flipTick <= t {
			return FlipOrder{}, &FlipConstraintError{Side: side, Tick: t, FlipTick: flipTick}
		}
	case SideAsk:
		if flipTick >= t {
			return FlipOrder{}, &FlipConstraintError{Side: side, Tick: t, FlipTick: flipTick}
		}
	default:
		return FlipOrder{}, fmt.Errorf("unknown order side %q", side)
	}
	return FlipOrder{
		Base:     base,
		Quote:    quoteToken,
		Amount:   new(big.Int).Set(amount),
		Side:     side,
		Tick:     t,
		FlipTick: flipTick,
	}, nil
}

// Params holds the quote levels and order sizes for one pair for one cycle.
// Recomputed every cycle from configuration and a live decimals lookup,
// never persisted. A bid is funded by the quote token and an ask by the base
// token, so the order size is scaled per side.
type Params struct {
	BidTick     int64
	AskTick     int64
	BidFlipTick int64
	AskFlipTick int64

	BidAmount *big.Int // quote token base units
	AskAmount *big.Int // base token base units

	BaseDecimals  uint8
	QuoteDecimals uint8
}

// BuildParams derives symmetric, self-referential quote levels: a filled bid
// relocates its liquidity to the ask tick of the same spread and vice versa.
func BuildParams(g tick.Grid, totalSpreadBps int64, orderSize string, baseDecimals, quoteDecimals uint8) (Params, error) {
	bid, ask, err := g.QuoteTicks(totalSpreadBps)
	if err != nil {
		return Params{}, err
	}
	askAmount, err := ParseAmount(orderSize, baseDecimals)
	if err != nil {
		return Params{}, err
	}
	bidAmount, err := ParseAmount(orderSize, quoteDecimals)
	if err != nil {
		return Params{}, err
	}
	return Params{
		BidTick:       bid,
		AskTick:       ask,
		BidFlipTick:   ask,
		AskFlipTick:   bid,
		BidAmount:     bidAmount,
		AskAmount:     askAmount,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}, nil
}

// ParseAmount converts a human-unit decimal string into base units scaled by
// the token's decimals.
func ParseAmount(size string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(size)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", size, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be positive", size)
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", size, decimals)
	}
	return scaled.BigInt(), nil
}
