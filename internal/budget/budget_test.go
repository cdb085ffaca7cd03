package budget

import (
	"testing"
	"time"

	"github.com/nuxxor/tempo-market-maker/internal/state"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDailyLimitRejectsAndDoesNotMutate(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	e := &Enforcer{MaxTxPerDay: 100, MaxCancelsPerHour: 10, Now: fixedClock(now)}

	c := state.TxCounters{}
	for i := 0; i < 100; i++ {
		if !e.Reserve(&c, false) {
			t.Fatalf("reserve %d rejected unexpectedly", i+1)
		}
	}
	if c.DailyTxCount != 100 {
		t.Fatalf("daily count = %d want 100", c.DailyTxCount)
	}
	if e.Reserve(&c, false) {
		t.Fatalf("101st reserve must be rejected")
	}
	if c.DailyTxCount != 100 {
		t.Fatalf("rejected reserve mutated counter: %d", c.DailyTxCount)
	}
	if !e.DailyExhausted(c) {
		t.Fatalf("DailyExhausted should report true at 100/100")
	}
}

func TestDailyResetOnCalendarBoundary(t *testing.T) {
	day1 := time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)
	e := &Enforcer{MaxTxPerDay: 100, MaxCancelsPerHour: 10, Now: fixedClock(day1)}

	c := state.TxCounters{}
	for i := 0; i < 100; i++ {
		e.Reserve(&c, false)
	}
	if e.Check(c, false) {
		t.Fatalf("budget should be exhausted on day 1")
	}

	// two minutes later, new UTC calendar date
	e.Now = fixedClock(time.Date(2026, 9, 1, 0, 1, 0, 0, time.UTC))
	if !e.Check(c, false) {
		t.Fatalf("new calendar day should allow again")
	}
	if !e.Reserve(&c, false) {
		t.Fatalf("reserve after day boundary rejected")
	}
	if c.DailyTxCount != 1 {
		t.Fatalf("daily count after reset = %d want 1", c.DailyTxCount)
	}
}

func TestHourlyCancelWindow(t *testing.T) {
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	e := &Enforcer{MaxTxPerDay: 1000, MaxCancelsPerHour: 3, Now: fixedClock(start)}

	c := state.TxCounters{}
	for i := 0; i < 3; i++ {
		if !e.Reserve(&c, true) {
			t.Fatalf("cancel %d rejected", i+1)
		}
	}
	if e.Reserve(&c, true) {
		t.Fatalf("4th cancel within the hour must be rejected")
	}
	// cancels are still counted against the daily window
	if c.DailyTxCount != 3 {
		t.Fatalf("daily count = %d want 3", c.DailyTxCount)
	}
	// non-cancel calls are unaffected by the hourly window
	if !e.Reserve(&c, false) {
		t.Fatalf("placement should not be blocked by cancel window")
	}

	// exactly 60 minutes is still inside the window
	e.Now = fixedClock(start.Add(time.Hour))
	if e.Reserve(&c, true) {
		t.Fatalf("cancel at exactly 60m should still be rejected")
	}
	e.Now = fixedClock(start.Add(time.Hour + time.Minute))
	if !e.Reserve(&c, true) {
		t.Fatalf("cancel after the hour elapsed should be allowed")
	}
	if c.HourlyCancelCount != 1 {
		t.Fatalf("hourly count after reset = %d want 1", c.HourlyCancelCount)
	}
}

func TestCheckIsNonMutating(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	e := &Enforcer{MaxTxPerDay: 5, MaxCancelsPerHour: 5, Now: fixedClock(now)}
	c := state.TxCounters{DailyTxCount: 2, DailyResetAt: now, HourlyResetAt: now}
	before := c
	if !e.Check(c, false) {
		t.Fatalf("Check should allow at 2/5")
	}
	if c != before {
		t.Fatalf("Check mutated counters: %+v", c)
	}
}
