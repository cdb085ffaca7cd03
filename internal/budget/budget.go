// Package budget gates chain-mutating calls behind two independent windows:
// a calendar-day transaction count and a rolling one-hour cancel count.
// Both operate on the persisted counters so no mutating call is ever issued
// without first reserving budget that survives a restart.
package budget

import (
	"time"

	"github.com/nuxxor/tempo-market-maker/internal/state"
)

// Enforcer applies the window limits. Now is overridable for tests and
// defaults to time.Now; all window arithmetic is in UTC.
type Enforcer struct {
	MaxTxPerDay       int
	MaxCancelsPerHour int
	Now               func() time.Time
}

func (e *Enforcer) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// applyResets rolls the windows forward if their boundary has been crossed.
// Each window resets at most once per call and never retroactively.
func (e *Enforcer) applyResets(c *state.TxCounters, now time.Time) {
	if c.DailyResetAt.IsZero() || !sameUTCDate(c.DailyResetAt, now) {
		c.DailyTxCount = 0
		c.DailyResetAt = now
	}
	if c.HourlyResetAt.IsZero() || now.Sub(c.HourlyResetAt) > time.Hour {
		c.HourlyCancelCount = 0
		c.HourlyResetAt = now
	}
}

// Check is a non-mutating preview of whether a call would be allowed right
// now. The counters argument is taken by value; resets are applied to the
// copy only.
func (e *Enforcer) Check(c state.TxCounters, isCancel bool) bool {
	now := e.now()
	e.applyResets(&c, now)
	if c.DailyTxCount >= e.MaxTxPerDay {
		return false
	}
	if isCancel && c.HourlyCancelCount >= e.MaxCancelsPerHour {
		return false
	}
	return true
}

// Reserve re-derives the current windows, checks remaining allowance, and,
// only if allowed, increments the counters. Check-and-increment is a single
// logical step per call site; the caller persists the state before issuing
// the chain call. Returns false (counters unchanged except window resets)
// when the budget is exhausted.
func (e *Enforcer) Reserve(c *state.TxCounters, isCancel bool) bool {
	now := e.now()
	e.applyResets(c, now)
	if c.DailyTxCount >= e.MaxTxPerDay {
		return false
	}
	if isCancel && c.HourlyCancelCount >= e.MaxCancelsPerHour {
		return false
	}
	c.DailyTxCount++
	if isCancel {
		c.HourlyCancelCount++
	}
	return true
}

// DailyExhausted reports whether the daily window has no remaining
// allowance. Used by the orchestrator to enter cooldown instead of
// busy-polling.
func (e *Enforcer) DailyExhausted(c state.TxCounters) bool {
	return !e.Check(c, false)
}
