package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nuxxor/tempo-market-maker/internal/exchange"
	"github.com/nuxxor/tempo-market-maker/internal/state"
)

// fakeReader maps order ids to records; ids absent from the map are
// not-found. A non-nil err is returned for every lookup (transport failure).
type fakeReader struct {
	orders map[string]exchange.OrderRecord
	err    error
	calls  int
}

func (f *fakeReader) ReadOrder(_ context.Context, id *big.Int) (exchange.OrderRecord, bool, error) {
	f.calls++
	if f.err != nil {
		return exchange.OrderRecord{}, false, f.err
	}
	rec, ok := f.orders[id.String()]
	if !ok {
		return exchange.OrderRecord{}, false, nil
	}
	return rec, true, nil
}

func openOrder(tickLevel, flipTick, remaining int64) exchange.OrderRecord {
	return exchange.OrderRecord{
		Maker:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Amount:    big.NewInt(1_000_000),
		Remaining: big.NewInt(remaining),
		Tick:      tickLevel,
		FlipTick:  flipTick,
		IsBid:     true,
		IsFlip:    true,
	}
}

func TestReconcileOrdersClearsNotFound(t *testing.T) {
	ps := &state.PairState{Base: "0xbase", Quote: "0xquote"}
	ps.SetOrder(true, "7", -50, 50)
	ps.SetOrder(false, "8", 50, -50)

	r := &fakeReader{orders: map[string]exchange.OrderRecord{
		"8": openOrder(50, -50, 500),
	}}
	res, err := ReconcileOrders(context.Background(), r, ps)
	if err != nil {
		t.Fatalf("ReconcileOrders: %v", err)
	}
	if ps.BidOrderID != "" {
		t.Fatalf("not-found bid id should be cleared, got %q", ps.BidOrderID)
	}
	if ps.AskOrderID != "8" {
		t.Fatalf("open ask id should remain, got %q", ps.AskOrderID)
	}
	if res.BidValid || !res.AskValid {
		t.Fatalf("validity flags wrong: %+v", res)
	}
	if len(res.Stale) != 1 || res.Stale[0].OrderID != "7" || !res.Stale[0].Bid {
		t.Fatalf("stale list wrong: %+v", res.Stale)
	}
}

func TestReconcileOrdersClearsZeroRemaining(t *testing.T) {
	ps := &state.PairState{Base: "0xbase", Quote: "0xquote"}
	ps.SetOrder(false, "9", 50, -50)

	r := &fakeReader{orders: map[string]exchange.OrderRecord{
		"9": openOrder(50, -50, 0),
	}}
	res, err := ReconcileOrders(context.Background(), r, ps)
	if err != nil {
		t.Fatalf("ReconcileOrders: %v", err)
	}
	if ps.AskOrderID != "" {
		t.Fatalf("fully-filled ask should be cleared")
	}
	if len(res.Stale) != 1 {
		t.Fatalf("stale list wrong: %+v", res.Stale)
	}
}

func TestReconcileOrdersPropagatesTransportErrors(t *testing.T) {
	ps := &state.PairState{Base: "0xbase", Quote: "0xquote"}
	ps.SetOrder(true, "7", -50, 50)

	boom := errors.New("rpc timeout")
	r := &fakeReader{err: boom}
	_, err := ReconcileOrders(context.Background(), r, ps)
	if err == nil || !errors.Is(err, boom) {
		t.Fatalf("transport error must propagate, got %v", err)
	}
	if ps.BidOrderID != "7" {
		t.Fatalf("transport error must not clear the stored id")
	}
}

func TestFullReconcileRefreshesTicks(t *testing.T) {
	st := state.NewEngineState("0x1111111111111111111111111111111111111111")
	ps := st.Pair("0xbase", "0xquote")
	// local belief is stale: ticks recorded at -50/50, chain says -30/30
	ps.SetOrder(true, "7", -50, 50)

	r := &fakeReader{orders: map[string]exchange.OrderRecord{
		"7": openOrder(-30, 30, 100),
	}}
	stale, err := FullReconcile(context.Background(), r, st)
	if err != nil {
		t.Fatalf("FullReconcile: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("open order reported stale: %+v", stale)
	}
	if ps.LastBidTick == nil || *ps.LastBidTick != -30 {
		t.Fatalf("bid tick not refreshed from chain: %+v", ps.LastBidTick)
	}
	if ps.LastBidFlipTick == nil || *ps.LastBidFlipTick != 30 {
		t.Fatalf("bid flip tick not refreshed from chain: %+v", ps.LastBidFlipTick)
	}
}

func TestFullReconcileDropsStaleAcrossPairs(t *testing.T) {
	st := state.NewEngineState("0x1111111111111111111111111111111111111111")
	a := st.Pair("0xaaa", "0xqqq")
	a.SetOrder(true, "1", -50, 50)
	b := st.Pair("0xbbb", "0xqqq")
	b.SetOrder(false, "2", 50, -50)

	r := &fakeReader{orders: map[string]exchange.OrderRecord{}}
	stale, err := FullReconcile(context.Background(), r, st)
	if err != nil {
		t.Fatalf("FullReconcile: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("want 2 stale orders, got %+v", stale)
	}
	if a.BidOrderID != "" || b.AskOrderID != "" {
		t.Fatalf("stale ids not cleared")
	}
}

func TestReconcileMalformedIDTreatedAsStale(t *testing.T) {
	ps := &state.PairState{Base: "0xbase", Quote: "0xquote"}
	ps.BidOrderID = "not-a-number"
	r := &fakeReader{orders: map[string]exchange.OrderRecord{}}
	res, err := ReconcileOrders(context.Background(), r, ps)
	if err != nil {
		t.Fatalf("ReconcileOrders: %v", err)
	}
	if ps.BidOrderID != "" || len(res.Stale) != 1 {
		t.Fatalf("malformed id should clear as stale: %+v", res)
	}
	if !res.Stale[0].Malformed {
		t.Fatalf("stale entry should be flagged malformed: %+v", res.Stale[0])
	}
	if r.calls != 0 {
		t.Fatalf("malformed id should not hit the chain")
	}
}
