package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/nuxxor/tempo-market-maker/internal/exchange"
	"github.com/nuxxor/tempo-market-maker/internal/state"
)

// OrderReader is the narrow collaborator reconciliation needs: an
// authoritative order lookup that distinguishes "does not exist" from
// transport failure.
type OrderReader interface {
	ReadOrder(ctx context.Context, orderID *big.Int) (exchange.OrderRecord, bool, error)
}

// StaleOrder identifies a stored order id the chain no longer knows about.
// Malformed marks ids that could not be parsed and were cleared without a
// chain lookup; those must not be interpreted as fills.
type StaleOrder struct {
	Base      string
	Quote     string
	Bid       bool
	OrderID   string
	Malformed bool
}

// ReconcileResult reports which sides of a pair survived verification.
type ReconcileResult struct {
	BidValid bool
	AskValid bool
	Stale    []StaleOrder
}

func parseOrderID(id string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(id, 10)
	if !ok {
		return nil, fmt.Errorf("malformed stored order id %q", id)
	}
	return n, nil
}

// ReconcileOrders cross-checks the pair's stored order ids against the
// chain. Ids the chain reports gone or fully filled are cleared from the
// pair state and listed as stale; transport errors abort the reconcile and
// leave the state untouched. The stored belief "this order is live" is
// verified here, never trusted indefinitely.
func ReconcileOrders(ctx context.Context, r OrderReader, ps *state.PairState) (ReconcileResult, error) {
	var res ReconcileResult
	for _, bid := range []bool{true, false} {
		id := ps.OrderID(bid)
		if id == "" {
			continue
		}
		orderID, err := parseOrderID(id)
		if err != nil {
			// unparseable id can never be verified; treat as stale
			ps.ClearOrder(bid)
			res.Stale = append(res.Stale, StaleOrder{Base: ps.Base, Quote: ps.Quote, Bid: bid, OrderID: id, Malformed: true})
			continue
		}
		rec, found, err := r.ReadOrder(ctx, orderID)
		if err != nil {
			return res, fmt.Errorf("reconcile %s/%s: %w", ps.Base, ps.Quote, err)
		}
		if !found || rec.Remaining.Sign() == 0 {
			ps.ClearOrder(bid)
			res.Stale = append(res.Stale, StaleOrder{Base: ps.Base, Quote: ps.Quote, Bid: bid, OrderID: id})
			continue
		}
		if bid {
			res.BidValid = true
		} else {
			res.AskValid = true
		}
	}
	return res, nil
}

// FullReconcile runs the per-order check for every pair and additionally
// refreshes the last known tick levels from the authoritative record, so a
// restarted process re-derives its believed quote levels from the chain
// instead of trusting stale local values.
func FullReconcile(ctx context.Context, r OrderReader, st *state.EngineState) ([]StaleOrder, error) {
	var stale []StaleOrder
	for _, ps := range st.Pairs {
		for _, bid := range []bool{true, false} {
			id := ps.OrderID(bid)
			if id == "" {
				continue
			}
			orderID, err := parseOrderID(id)
			if err != nil {
				ps.ClearOrder(bid)
				stale = append(stale, StaleOrder{Base: ps.Base, Quote: ps.Quote, Bid: bid, OrderID: id, Malformed: true})
				continue
			}
			rec, found, err := r.ReadOrder(ctx, orderID)
			if err != nil {
				return stale, fmt.Errorf("full reconcile %s/%s: %w", ps.Base, ps.Quote, err)
			}
			if !found || rec.Remaining.Sign() == 0 {
				ps.ClearOrder(bid)
				stale = append(stale, StaleOrder{Base: ps.Base, Quote: ps.Quote, Bid: bid, OrderID: id})
				continue
			}
			t, f := rec.Tick, rec.FlipTick
			if bid {
				ps.LastBidTick = &t
				ps.LastBidFlipTick = &f
			} else {
				ps.LastAskTick = &t
				ps.LastAskFlipTick = &f
			}
		}
	}
	return stale, nil
}
