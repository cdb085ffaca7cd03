// Package state is the durable record of the engine: which orders it
// believes are live, their last known levels, and the transaction budget
// counters. The file is exclusively owned by a single maker process for its
// lifetime; a non-null order id means "believed live on-chain" and must be
// reconciled against the chain, never trusted indefinitely.
package state

import (
	"strings"
	"time"
)

// SchemaVersion is checked on every load. A mismatch triggers a fresh-state
// reset, not a migration: an old-version file is treated as belonging to a
// different logical bot instance.
const SchemaVersion = 1

// TxCounters tracks the sliding transaction budget windows. Counts are
// monotonically non-decreasing within a window and reset exactly once when
// the window boundary is crossed.
type TxCounters struct {
	DailyTxCount      int       `json:"daily_tx_count"`
	DailyResetAt      time.Time `json:"daily_reset_at"`
	HourlyCancelCount int       `json:"hourly_cancel_count"`
	HourlyResetAt     time.Time `json:"hourly_reset_at"`
}

// PairState is the per-pair order identity record. Order ids are opaque
// decimal strings assigned by the exchange; an empty string means no order.
// Last tick fields are kept after a fill so a flip's destination can be
// recognized; they are nil until the first quote.
type PairState struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`

	BidOrderID string `json:"bid_order_id,omitempty"`
	AskOrderID string `json:"ask_order_id,omitempty"`

	LastBidTick     *int64 `json:"last_bid_tick,omitempty"`
	LastAskTick     *int64 `json:"last_ask_tick,omitempty"`
	LastBidFlipTick *int64 `json:"last_bid_flip_tick,omitempty"`
	LastAskFlipTick *int64 `json:"last_ask_flip_tick,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// EngineState is the process-wide durable record, keyed by maker identity.
type EngineState struct {
	SchemaVersion int          `json:"schema_version"`
	Maker         string       `json:"maker"`
	Pairs         []*PairState `json:"pairs"`
	LastBlock     uint64       `json:"last_block"`
	Counters      TxCounters   `json:"counters"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewEngineState returns a fresh empty state for the given maker.
func NewEngineState(maker string) *EngineState {
	now := time.Now().UTC()
	return &EngineState{
		SchemaVersion: SchemaVersion,
		Maker:         maker,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Pair returns the state record for (base, quote), creating it lazily.
// Pair records are never deleted, only cleared.
func (s *EngineState) Pair(base, quoteToken string) *PairState {
	for _, p := range s.Pairs {
		if strings.EqualFold(p.Base, base) && strings.EqualFold(p.Quote, quoteToken) {
			return p
		}
	}
	p := &PairState{Base: base, Quote: quoteToken, UpdatedAt: time.Now().UTC()}
	s.Pairs = append(s.Pairs, p)
	return p
}

// OrderID returns the stored order id for the given side ("" if none).
func (p *PairState) OrderID(bid bool) string {
	if bid {
		return p.BidOrderID
	}
	return p.AskOrderID
}

// SetOrder records a freshly placed order's id and levels for one side.
func (p *PairState) SetOrder(bid bool, orderID string, tickLevel, flipTick int64) {
	t, f := tickLevel, flipTick
	if bid {
		p.BidOrderID = orderID
		p.LastBidTick = &t
		p.LastBidFlipTick = &f
	} else {
		p.AskOrderID = orderID
		p.LastAskTick = &t
		p.LastAskFlipTick = &f
	}
	p.UpdatedAt = time.Now().UTC()
}

// ClearOrder forgets the order id for one side. Last tick fields are kept so
// the flip destination of a filled order stays recognizable.
func (p *PairState) ClearOrder(bid bool) {
	if bid {
		p.BidOrderID = ""
	} else {
		p.AskOrderID = ""
	}
	p.UpdatedAt = time.Now().UTC()
}

// Reset clears all order identity and level fields (manual intervention).
func (p *PairState) Reset() {
	p.BidOrderID = ""
	p.AskOrderID = ""
	p.LastBidTick = nil
	p.LastAskTick = nil
	p.LastBidFlipTick = nil
	p.LastAskFlipTick = nil
	p.UpdatedAt = time.Now().UTC()
}
