// Package engine is the quote lifecycle and reconciliation core: it
// sequences bootstrap, fill detection, re-quoting, and cooldown for every
// enabled pair, persisting order identity through the state store and
// reserving transaction budget before every chain-mutating call.
//
// Pairs are processed sequentially by a single logical worker; no two
// chain-mutating calls for the same pair are ever in flight concurrently and
// the stop signal is only observed between pairs and between passes, never
// mid-call. The exchange does not expose "list all my open orders", so the
// engine can only verify ids it already holds: orders whose id was lost
// between submission and the local write-back are left to fill or be
// cancelled out of band.
package engine

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nuxxor/tempo-market-maker/internal/budget"
	"github.com/nuxxor/tempo-market-maker/internal/eventlog"
	"github.com/nuxxor/tempo-market-maker/internal/exchange"
	"github.com/nuxxor/tempo-market-maker/internal/quote"
	"github.com/nuxxor/tempo-market-maker/internal/state"
	"github.com/nuxxor/tempo-market-maker/internal/tick"
)

// Exchange is everything the engine needs from the on-chain collaborator.
// *exchange.Client satisfies it; tests substitute fakes.
type Exchange interface {
	ReadOrder(ctx context.Context, orderID *big.Int) (exchange.OrderRecord, bool, error)
	PlaceFlip(ctx context.Context, base, quoteToken common.Address, amount *big.Int, isBid bool, tickLevel, flipTick int64) (*big.Int, common.Hash, error)
	Cancel(ctx context.Context, orderID *big.Int) (common.Hash, error)
	InternalBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	WalletBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (common.Hash, error)
	TokenDecimals(ctx context.Context, token common.Address) (uint8, error)
	PairExists(ctx context.Context, base, quoteToken common.Address) (bool, error)
	CreatePair(ctx context.Context, base, quoteToken common.Address) (common.Hash, error)
	Address() common.Address
}

// Pair is an enabled (base, quote) trading pair.
type Pair struct {
	Base  common.Address
	Quote common.Address
}

func (p Pair) key() string {
	return strings.ToLower(p.Base.Hex() + "-" + p.Quote.Hex())
}

func (p Pair) label() string {
	return p.Base.Hex() + "/" + p.Quote.Hex()
}

// Phase is the orchestrator state machine position.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseBootstrap
	PhaseRunning
	PhaseCooldown
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseBootstrap:
		return "bootstrap"
	case PhaseRunning:
		return "running"
	case PhaseCooldown:
		return "cooldown"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// Config is the engine's quoting surface.
type Config struct {
	Grid       tick.Grid
	SpreadBps  int64
	OrderSize  string // human units per side
	FlipBuffer string // human units of internal balance headroom for flips

	PairCooldown    time.Duration // min interval between (re)quote attempts per pair
	JitterMax       time.Duration // bound on the randomized pre-submission delay
	PollInterval    time.Duration // outer loop tick
	BudgetCooldown  time.Duration // extended sleep when the daily budget is gone
	FlipFailTimeout time.Duration // settle time before diagnosing a silent flip failure

	Pairs  []Pair
	DryRun bool
}

// flipCheck is a deferred silent-flip-failure diagnostic: after a flip order
// fills, the successor is funded from internal exchange balance the client
// cannot top up; if that balance is short the flip silently never happened.
type flipCheck struct {
	pair         Pair
	filledSide   quote.Side
	fundingToken common.Address
	amount       *big.Int
	due          time.Time
}

// Engine drives the whole quoting lifecycle for one maker identity.
type Engine struct {
	cfg    Config
	ex     Exchange
	maker  common.Address
	store  *state.Store
	st     *state.EngineState
	budget *budget.Enforcer
	events *eventlog.Writer
	heads  <-chan uint64

	phase     Phase
	startedAt time.Time

	// overridable for tests
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) bool
	jitter func() time.Duration

	decimals    map[common.Address]uint8
	lastQuoteAt map[string]time.Time
	flipChecks  []flipCheck
}

// New assembles an engine. heads may be nil when no websocket endpoint is
// configured.
func New(cfg Config, ex Exchange, maker common.Address, store *state.Store, st *state.EngineState, enforcer *budget.Enforcer, events *eventlog.Writer, heads <-chan uint64) *Engine {
	e := &Engine{
		cfg:         cfg,
		ex:          ex,
		maker:       maker,
		store:       store,
		st:          st,
		budget:      enforcer,
		events:      events,
		heads:       heads,
		phase:       PhaseIdle,
		now:         time.Now,
		decimals:    make(map[common.Address]uint8),
		lastQuoteAt: make(map[string]time.Time),
	}
	e.sleep = func(ctx context.Context, d time.Duration) bool {
		if d <= 0 {
			return ctx.Err() == nil
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		}
	}
	e.jitter = func() time.Duration {
		if cfg.JitterMax <= 0 {
			return 0
		}
		return time.Duration(rand.Int64N(int64(cfg.JitterMax)))
	}
	return e
}

// Phase returns the current state machine position.
func (e *Engine) Phase() Phase { return e.phase }

func (e *Engine) setPhase(p Phase) {
	if e.phase == p {
		return
	}
	e.phase = p
	e.events.Emit(eventlog.Event{Event: "phase", Mode: e.mode(), Phase: p.String(), UptimeMs: e.uptimeMs()})
}

func (e *Engine) mode() string {
	if e.cfg.DryRun {
		return "dry"
	}
	return "live"
}

func (e *Engine) uptimeMs() int64 {
	if e.startedAt.IsZero() {
		return 0
	}
	return e.now().Sub(e.startedAt).Milliseconds()
}

// Run executes bootstrap and then the quoting loop until ctx is cancelled.
// Bootstrap failure is fatal and returned; recoverable per-pair errors are
// logged and retried on the next pass.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = e.now()
	e.setPhase(PhaseBootstrap)
	if err := e.bootstrap(ctx); err != nil {
		e.setPhase(PhaseStopped)
		return fmt.Errorf("bootstrap: %w", err)
	}

	e.setPhase(PhaseRunning)
	for ctx.Err() == nil {
		e.drainHeads()

		for _, p := range e.cfg.Pairs {
			if ctx.Err() != nil {
				break
			}
			if err := e.runPair(ctx, p); err != nil {
				// transport-level failure: abandon this pair for the pass,
				// the next loop iteration retries naturally
				log.Printf("[warn] pair %s: %v", p.label(), err)
				e.events.Emit(eventlog.Event{Event: "pair_error", Mode: e.mode(), Pair: p.label(), Err: err.Error()})
			}
		}
		if err := e.store.Save(e.st); err != nil {
			log.Printf("[warn] state save: %v", err)
		}
		if ctx.Err() != nil {
			break
		}

		if e.budget.DailyExhausted(e.st.Counters) {
			e.setPhase(PhaseCooldown)
			log.Printf("[info] daily tx budget exhausted (%d); cooling down %s", e.st.Counters.DailyTxCount, e.cfg.BudgetCooldown)
			e.events.Emit(eventlog.Event{
				Event:        "budget_cooldown",
				Mode:         e.mode(),
				DailyTxCount: e.st.Counters.DailyTxCount,
				UptimeMs:     e.uptimeMs(),
			})
			if !e.sleep(ctx, e.cfg.BudgetCooldown) {
				break
			}
			e.setPhase(PhaseRunning)
			continue
		}

		if !e.sleep(ctx, e.cfg.PollInterval) {
			break
		}
	}

	e.setPhase(PhaseStopped)
	if err := e.store.Save(e.st); err != nil {
		return fmt.Errorf("final state save: %w", err)
	}
	return nil
}

// drainHeads consumes any buffered block heads; only the latest matters.
func (e *Engine) drainHeads() {
	for {
		select {
		case n, ok := <-e.heads:
			if !ok {
				e.heads = nil
				return
			}
			if n > e.st.LastBlock {
				e.st.LastBlock = n
			}
		default:
			return
		}
	}
}

// bootstrap runs once: pair existence, approvals, inventory snapshot,
// quotability check, and a full reconcile. Pair creation or approval
// failure aborts the engine; an unquotable pair is a warning and the other
// pairs proceed.
func (e *Engine) bootstrap(ctx context.Context) error {
	for _, p := range e.cfg.Pairs {
		if err := e.ensurePair(ctx, p); err != nil {
			return err
		}
		if err := e.ensureApproval(ctx, p.Base); err != nil {
			return err
		}
		if err := e.ensureApproval(ctx, p.Quote); err != nil {
			return err
		}
		if err := e.snapshotInventory(ctx, p); err != nil {
			log.Printf("[warn] inventory snapshot %s: %v", p.label(), err)
		}
	}

	stale, err := FullReconcile(ctx, e.ex, e.st)
	for _, s := range stale {
		log.Printf("[info] reconcile: dropped stale %s order %s on %s/%s", sideName(s.Bid), s.OrderID, s.Base, s.Quote)
		e.events.Emit(eventlog.Event{Event: "stale_order", Mode: e.mode(), Pair: s.Base + "/" + s.Quote, Side: sideName(s.Bid), OrderID: s.OrderID})
	}
	if err != nil {
		// transport failure mid-reconcile is recoverable: the per-cycle
		// reconcile repeats the check every pass
		log.Printf("[warn] full reconcile incomplete: %v", err)
	}
	return e.store.Save(e.st)
}

func (e *Engine) ensurePair(ctx context.Context, p Pair) error {
	exists, err := e.ex.PairExists(ctx, p.Base, p.Quote)
	if err != nil {
		return fmt.Errorf("pair lookup %s: %w", p.label(), err)
	}
	if exists {
		return nil
	}
	if e.cfg.DryRun {
		log.Printf("[info] dry-run: would create pair %s", p.label())
		return nil
	}
	if !e.budget.Reserve(&e.st.Counters, false) {
		return fmt.Errorf("create pair %s: tx budget exhausted", p.label())
	}
	if err := e.store.Save(e.st); err != nil {
		return err
	}
	txHash, err := e.ex.CreatePair(ctx, p.Base, p.Quote)
	if err != nil {
		return fmt.Errorf("create pair %s: %w", p.label(), err)
	}
	log.Printf("[info] created pair %s tx=%s", p.label(), txHash.Hex())
	e.events.Emit(eventlog.Event{Event: "pair_created", Mode: e.mode(), Pair: p.label(), TxHash: txHash.Hex()})
	return nil
}

func (e *Engine) ensureApproval(ctx context.Context, token common.Address) error {
	spender := e.ex.Address()
	allowance, err := e.ex.Allowance(ctx, token, e.maker, spender)
	if err != nil {
		return fmt.Errorf("allowance on %s: %w", token.Hex(), err)
	}
	// treat anything above half of max as effectively unlimited
	threshold := new(big.Int).Rsh(exchange.MaxApproval, 1)
	if allowance.Cmp(threshold) >= 0 {
		return nil
	}
	if e.cfg.DryRun {
		log.Printf("[info] dry-run: would approve %s for %s", token.Hex(), spender.Hex())
		return nil
	}
	if !e.budget.Reserve(&e.st.Counters, false) {
		return fmt.Errorf("approve %s: tx budget exhausted", token.Hex())
	}
	if err := e.store.Save(e.st); err != nil {
		return err
	}
	txHash, err := e.ex.Approve(ctx, token, spender, exchange.MaxApproval)
	if err != nil {
		return fmt.Errorf("approve %s: %w", token.Hex(), err)
	}
	log.Printf("[info] approved %s tx=%s", token.Hex(), txHash.Hex())
	return nil
}

func (e *Engine) snapshotInventory(ctx context.Context, p Pair) error {
	params, err := e.quoteParams(ctx, p)
	if err != nil {
		return err
	}
	for _, side := range []quote.Side{quote.SideAsk, quote.SideBid} {
		token := p.Base
		need := params.AskAmount
		if side == quote.SideBid {
			token = p.Quote
			need = params.BidAmount
		}
		wallet, err := e.ex.WalletBalance(ctx, token, e.maker)
		if err != nil {
			return err
		}
		internal, err := e.ex.InternalBalance(ctx, token, e.maker)
		if err != nil {
			return err
		}
		combined := new(big.Int).Add(wallet, internal)
		e.events.Emit(eventlog.Event{
			Event:           "inventory",
			Mode:            e.mode(),
			Pair:            p.label(),
			Side:            string(side),
			Amount:          wallet.String(),
			InternalBalance: internal.String(),
		})
		if combined.Cmp(need) < 0 {
			log.Printf("[warn] pair %s %s unquotable: combined balance %s < order size %s",
				p.label(), side, combined, need)
		}
	}
	return nil
}

// runPair is one pass for one pair: per-cycle reconcile with fill
// detection, deferred flip diagnostics, then re-quoting of empty sides.
func (e *Engine) runPair(ctx context.Context, p Pair) error {
	ps := e.st.Pair(p.Base.Hex(), p.Quote.Hex())

	if err := e.detectFills(ctx, p, ps); err != nil {
		return err
	}
	e.runFlipChecks(ctx, p)
	return e.requote(ctx, p, ps)
}

func sideName(bid bool) string {
	if bid {
		return string(quote.SideBid)
	}
	return string(quote.SideAsk)
}

// detectFills runs the shared per-cycle reconcile and interprets its stale
// list. An id the chain reports gone or fully filled is treated as filled
// (the id is cleared with last ticks kept, so the flip destination stays
// recognizable): a successor notice is emitted at the recorded flip tick and
// a deferred internal-balance check is queued to diagnose a silent flip
// failure. Malformed ids are cleared without a fill interpretation.
func (e *Engine) detectFills(ctx context.Context, p Pair, ps *state.PairState) error {
	res, err := ReconcileOrders(ctx, e.ex, ps)
	if err != nil {
		return err
	}
	for _, s := range res.Stale {
		if s.Malformed {
			log.Printf("[warn] pair %s: malformed stored %s order id %q cleared", p.label(), sideName(s.Bid), s.OrderID)
			continue
		}
		side := quote.SideAsk
		flipTick := ps.LastAskFlipTick
		if s.Bid {
			side = quote.SideBid
			flipTick = ps.LastBidFlipTick
		}
		log.Printf("[info] pair %s: %s order %s filled", p.label(), side, s.OrderID)
		e.events.Emit(eventlog.Event{Event: "order_filled", Mode: e.mode(), Pair: p.label(), Side: string(side), OrderID: s.OrderID})

		if flipTick != nil {
			// the successor's id is not discoverable: the exchange has no
			// "list my orders" lookup, so we can only note where it should be
			ft := *flipTick
			log.Printf("[info] pair %s: flip successor expected at tick %d (id unknown)", p.label(), ft)
			e.events.Emit(eventlog.Event{Event: "flip_expected", Mode: e.mode(), Pair: p.label(), Side: string(side.Opposite()), Tick: &ft})
			e.queueFlipCheck(ctx, p, side)
		}
	}
	if len(res.Stale) > 0 {
		if err := e.store.Save(e.st); err != nil {
			log.Printf("[warn] state save after fill: %v", err)
		}
	}
	return nil
}

// queueFlipCheck schedules the post-fill internal balance comparison. A
// filled bid bought base, so its successor ask is funded from internal base
// balance; a filled ask's successor bid is funded from internal quote.
func (e *Engine) queueFlipCheck(ctx context.Context, p Pair, filled quote.Side) {
	token := p.Base
	if filled == quote.SideAsk {
		token = p.Quote
	}
	dec, err := e.decimalsOf(ctx, token)
	if err != nil {
		log.Printf("[warn] flip check for %s skipped: %v", p.label(), err)
		return
	}
	amount, err := quote.ParseAmount(e.cfg.OrderSize, dec)
	if err != nil {
		log.Printf("[warn] flip check for %s skipped: %v", p.label(), err)
		return
	}
	e.flipChecks = append(e.flipChecks, flipCheck{
		pair:         p,
		filledSide:   filled,
		fundingToken: token,
		amount:       amount,
		due:          e.now().Add(e.cfg.FlipFailTimeout),
	})
}

// runFlipChecks performs due diagnostics for the pair. The client cannot
// remediate a failed flip (no deposit primitive); it only reports the
// shortfall and lets fresh quoting recover next cycle.
func (e *Engine) runFlipChecks(ctx context.Context, p Pair) {
	now := e.now()
	kept := e.flipChecks[:0]
	for _, fc := range e.flipChecks {
		if fc.pair != p || now.Before(fc.due) {
			kept = append(kept, fc)
			continue
		}
		internal, err := e.ex.InternalBalance(ctx, fc.fundingToken, e.maker)
		if err != nil {
			log.Printf("[warn] flip check %s: %v (retrying next pass)", p.label(), err)
			kept = append(kept, fc)
			continue
		}
		dec := e.decimals[fc.fundingToken]
		buffer, err := quote.ParseAmount(e.cfg.FlipBuffer, dec)
		if err != nil {
			log.Printf("[warn] flip buffer %q unusable for %s: %v; checking without headroom", e.cfg.FlipBuffer, fc.fundingToken.Hex(), err)
			buffer = big.NewInt(0)
		}
		required := new(big.Int).Add(fc.amount, buffer)
		if internal.Cmp(required) < 0 {
			missing := new(big.Int).Sub(required, internal)
			log.Printf("[warn] pair %s: flip after %s fill likely failed silently: internal balance %s short by %s",
				p.label(), fc.filledSide, internal, missing)
			e.events.Emit(eventlog.Event{
				Event:           "flip_fail_suspected",
				Mode:            e.mode(),
				Pair:            p.label(),
				Side:            string(fc.filledSide.Opposite()),
				InternalBalance: internal.String(),
				MissingAmount:   missing.String(),
			})
		}
	}
	e.flipChecks = kept
}

// requote places fresh flip orders on sides lacking a stored id, subject to
// the per-pair cooldown, budget reservation, and a bounded random jitter.
func (e *Engine) requote(ctx context.Context, p Pair, ps *state.PairState) error {
	needBid := ps.BidOrderID == ""
	needAsk := ps.AskOrderID == ""
	if !needBid && !needAsk {
		return nil
	}

	if last, ok := e.lastQuoteAt[p.key()]; ok && e.now().Sub(last) < e.cfg.PairCooldown {
		return nil
	}
	if !e.budget.Check(e.st.Counters, false) {
		// not an error: the outer loop observes exhaustion and cools down
		return nil
	}

	params, err := e.quoteParams(ctx, p)
	if err != nil {
		return err
	}

	// one bounded jitter per pair pass, to avoid bursts of simultaneous
	// submissions across pairs
	if !e.sleep(ctx, e.jitter()) {
		return nil
	}
	e.lastQuoteAt[p.key()] = e.now()

	if needBid {
		if err := e.placeSide(ctx, p, ps, quote.SideBid, params); err != nil {
			return err
		}
	}
	if needAsk {
		if err := e.placeSide(ctx, p, ps, quote.SideAsk, params); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) placeSide(ctx context.Context, p Pair, ps *state.PairState, side quote.Side, params quote.Params) error {
	var amount *big.Int
	var tickLevel, flipTick int64
	if side == quote.SideBid {
		amount, tickLevel, flipTick = params.BidAmount, params.BidTick, params.BidFlipTick
	} else {
		amount, tickLevel, flipTick = params.AskAmount, params.AskTick, params.AskFlipTick
	}

	ord, err := quote.NewFlipOrder(e.cfg.Grid, p.Base, p.Quote, amount, side, tickLevel, flipTick)
	if err != nil {
		// invariant violation: never sent to chain, skip the side this cycle
		log.Printf("[warn] pair %s %s: %v", p.label(), side, err)
		e.events.Emit(eventlog.Event{Event: "quote_invalid", Mode: e.mode(), Pair: p.label(), Side: string(side), Err: err.Error()})
		return nil
	}

	if e.cfg.DryRun {
		log.Printf("[info] dry-run: would place %s %s amount=%s tick=%d flip=%d", side, p.label(), ord.Amount, ord.Tick, ord.FlipTick)
		e.events.Emit(eventlog.Event{
			Event: "quote_dry", Mode: e.mode(), Pair: p.label(), Side: string(side),
			Amount: ord.Amount.String(), Tick: &ord.Tick, FlipTick: &ord.FlipTick,
		})
		return nil
	}

	if !e.budget.Reserve(&e.st.Counters, false) {
		return nil
	}
	// persist the reservation before the call so a crash cannot double-spend
	// the budget slot
	if err := e.store.Save(e.st); err != nil {
		return fmt.Errorf("state save before placement: %w", err)
	}

	orderID, txHash, err := e.ex.PlaceFlip(ctx, ord.Base, ord.Quote, ord.Amount, side == quote.SideBid, ord.Tick, ord.FlipTick)
	if err != nil {
		log.Printf("[warn] place %s %s: %v", side, p.label(), err)
		e.events.Emit(eventlog.Event{Event: "place_failed", Mode: e.mode(), Pair: p.label(), Side: string(side), Err: err.Error()})
		return nil
	}

	ps.SetOrder(side == quote.SideBid, orderID.String(), ord.Tick, ord.FlipTick)
	if err := e.store.Save(e.st); err != nil {
		return fmt.Errorf("state save after placement: %w", err)
	}
	log.Printf("[info] placed %s %s id=%s tick=%d flip=%d tx=%s", side, p.label(), orderID, ord.Tick, ord.FlipTick, txHash.Hex())
	e.events.Emit(eventlog.Event{
		Event: "order_placed", Mode: e.mode(), Pair: p.label(), Side: string(side),
		OrderID: orderID.String(), Amount: ord.Amount.String(), Tick: &ord.Tick, FlipTick: &ord.FlipTick,
		TxHash: txHash.Hex(), DailyTxCount: e.st.Counters.DailyTxCount,
	})
	return nil
}

func (e *Engine) quoteParams(ctx context.Context, p Pair) (quote.Params, error) {
	baseDec, err := e.decimalsOf(ctx, p.Base)
	if err != nil {
		return quote.Params{}, err
	}
	quoteDec, err := e.decimalsOf(ctx, p.Quote)
	if err != nil {
		return quote.Params{}, err
	}
	return quote.BuildParams(e.cfg.Grid, e.cfg.SpreadBps, e.cfg.OrderSize, baseDec, quoteDec)
}

func (e *Engine) decimalsOf(ctx context.Context, token common.Address) (uint8, error) {
	if d, ok := e.decimals[token]; ok {
		return d, nil
	}
	d, err := e.ex.TokenDecimals(ctx, token)
	if err != nil {
		return 0, err
	}
	e.decimals[token] = d
	return d, nil
}

// CancelAll cancels every stored order across all pairs, clearing the ids.
// Intended for manual intervention (e.g. retiring a maker identity); each
// cancel consumes budget from both windows.
func (e *Engine) CancelAll(ctx context.Context) error {
	for _, ps := range e.st.Pairs {
		for _, bid := range []bool{true, false} {
			id := ps.OrderID(bid)
			if id == "" {
				continue
			}
			orderID, err := parseOrderID(id)
			if err != nil {
				ps.ClearOrder(bid)
				continue
			}
			if e.cfg.DryRun {
				log.Printf("[info] dry-run: would cancel %s order %s on %s/%s", sideName(bid), id, ps.Base, ps.Quote)
				continue
			}
			if !e.budget.Reserve(&e.st.Counters, true) {
				return fmt.Errorf("cancel budget exhausted; %s order %s on %s/%s left open", sideName(bid), id, ps.Base, ps.Quote)
			}
			if err := e.store.Save(e.st); err != nil {
				return err
			}
			txHash, err := e.ex.Cancel(ctx, orderID)
			if err != nil {
				log.Printf("[warn] cancel %s on %s/%s: %v", id, ps.Base, ps.Quote, err)
				continue
			}
			ps.ClearOrder(bid)
			log.Printf("[info] cancelled %s order %s tx=%s", sideName(bid), id, txHash.Hex())
			e.events.Emit(eventlog.Event{Event: "order_cancelled", Mode: e.mode(), Pair: ps.Base + "/" + ps.Quote, Side: sideName(bid), OrderID: id, TxHash: txHash.Hex()})
		}
	}
	return e.store.Save(e.st)
}
