// Package tick implements the exchange's discrete price grid.
//
// A tick is a signed integer on a fixed grid: it must be a multiple of the
// grid spacing and stay within [Min, Max]. The implied price multiplier of a
// tick t is 1 + t/PriceScale, so for pegged stablecoin pairs quoting happens
// in a narrow band around tick 0.
package tick

import "fmt"

const (
	// PriceScale converts a tick into a price multiplier: 1 + tick/PriceScale.
	PriceScale = 100_000

	// TicksPerBps is the number of ticks in one basis point
	// (1 bp = 1e-4, 1 tick = 1/PriceScale = 1e-5).
	TicksPerBps = PriceScale / 10_000
)

// Grid describes the spacing and bounds of the exchange tick grid.
type Grid struct {
	Spacing int64
	Min     int64
	Max     int64
}

// Default matches the stablecoin exchange deployment.
var Default = Grid{Spacing: 10, Min: -2000, Max: 2000}

// InvalidTickError reports a tick that violates the grid invariants. It is
// surfaced instead of silently coercing: a corrupted quote level is worse
// than refusing to quote.
type InvalidTickError struct {
	Tick   int64
	Reason string
}

func (e *InvalidTickError) Error() string {
	return fmt.Sprintf("invalid tick %d: %s", e.Tick, e.Reason)
}

// BasisPointsToTicks converts basis points to ticks.
func BasisPointsToTicks(bps int64) int64 {
	return bps * TicksPerBps
}

// TicksToBasisPoints is the inverse of BasisPointsToTicks for on-ratio ticks.
func TicksToBasisPoints(t int64) int64 {
	return t / TicksPerBps
}

// Validate checks that the grid itself is usable: positive spacing and
// bounds that land on the grid. A grid failing this check cannot produce a
// single valid tick and must be rejected at startup.
func (g Grid) Validate() error {
	if g.Spacing <= 0 {
		return fmt.Errorf("tick spacing must be positive, got %d", g.Spacing)
	}
	if g.Min > g.Max {
		return fmt.Errorf("tick bounds inverted: min %d > max %d", g.Min, g.Max)
	}
	if g.Min%g.Spacing != 0 {
		return &InvalidTickError{Tick: g.Min, Reason: fmt.Sprintf("min bound not a multiple of spacing %d", g.Spacing)}
	}
	if g.Max%g.Spacing != 0 {
		return &InvalidTickError{Tick: g.Max, Reason: fmt.Sprintf("max bound not a multiple of spacing %d", g.Spacing)}
	}
	return nil
}

// RoundToSpacing rounds t to the nearest multiple of the grid spacing,
// breaking ties toward the even multiple for determinism.
func (g Grid) RoundToSpacing(t int64) int64 {
	q := t / g.Spacing
	r := t % g.Spacing
	if r == 0 {
		return t
	}
	if r < 0 {
		q--
		r += g.Spacing
	}
	switch {
	case 2*r < g.Spacing:
		// round down
	case 2*r > g.Spacing:
		q++
	default:
		// exactly halfway: round to the even multiple
		if q%2 != 0 {
			q++
		}
	}
	return q * g.Spacing
}

// Clamp saturates t to [Min, Max].
func (g Grid) Clamp(t int64) int64 {
	if t < g.Min {
		return g.Min
	}
	if t > g.Max {
		return g.Max
	}
	return t
}

// IsValid reports whether t sits on the grid and within bounds.
func (g Grid) IsValid(t int64) bool {
	return t%g.Spacing == 0 && t >= g.Min && t <= g.Max
}

// QuoteTicks derives symmetric bid/ask levels for a total spread, assuming a
// pegged mid price of tick 0. The half-spread is rounded to the grid and
// both sides are clamped to bounds; if the clamped result still violates the
// grid invariant (spacing-incompatible bounds) an InvalidTickError is
// returned rather than a coerced level.
func (g Grid) QuoteTicks(totalSpreadBps int64) (bidTick, askTick int64, err error) {
	if totalSpreadBps <= 0 {
		return 0, 0, fmt.Errorf("total spread must be positive, got %d bps", totalSpreadBps)
	}
	half := g.RoundToSpacing(BasisPointsToTicks(totalSpreadBps) / 2)
	bidTick = g.Clamp(-half)
	askTick = g.Clamp(half)
	if !g.IsValid(bidTick) {
		return 0, 0, &InvalidTickError{Tick: bidTick, Reason: "bid tick off-grid after clamping (bounds incompatible with spacing)"}
	}
	if !g.IsValid(askTick) {
		return 0, 0, &InvalidTickError{Tick: askTick, Reason: "ask tick off-grid after clamping (bounds incompatible with spacing)"}
	}
	return bidTick, askTick, nil
}
