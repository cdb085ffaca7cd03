package tick

import (
	"errors"
	"testing"
)

func TestRoundToSpacing(t *testing.T) {
	g := Grid{Spacing: 10, Min: -2000, Max: 2000}
	cases := []struct {
		in   int64
		want int64
	}{
		{0, 0},
		{10, 10},
		{-10, -10},
		{4, 0},
		{6, 10},
		{-4, 0},
		{-6, -10},
		// ties round to the even multiple
		{5, 0},
		{15, 20},
		{25, 20},
		{-5, 0},
		{-15, -20},
		{-25, -20},
		{1234, 1230},
		{1235, 1240},
	}
	for _, tc := range cases {
		if got := g.RoundToSpacing(tc.in); got != tc.want {
			t.Errorf("RoundToSpacing(%d)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestClampAndIsValid(t *testing.T) {
	g := Grid{Spacing: 10, Min: -100, Max: 100}
	if got := g.Clamp(150); got != 100 {
		t.Fatalf("Clamp(150)=%d want 100", got)
	}
	if got := g.Clamp(-150); got != -100 {
		t.Fatalf("Clamp(-150)=%d want -100", got)
	}
	if got := g.Clamp(50); got != 50 {
		t.Fatalf("Clamp(50)=%d want 50", got)
	}
	if !g.IsValid(-100) || !g.IsValid(0) || !g.IsValid(100) {
		t.Fatalf("bounds and zero should be valid")
	}
	if g.IsValid(5) {
		t.Fatalf("off-grid tick 5 should be invalid")
	}
	if g.IsValid(110) {
		t.Fatalf("out-of-bounds tick 110 should be invalid")
	}
}

func TestBasisPointsRoundTrip(t *testing.T) {
	for n := int64(-500); n <= 500; n += TicksPerBps {
		if got := BasisPointsToTicks(TicksToBasisPoints(n)); got != n {
			t.Fatalf("round trip of %d gave %d", n, got)
		}
	}
}

func TestQuoteTicksSpec(t *testing.T) {
	// total spread 10 bps, spacing 10 -> half-spread 50 ticks.
	bid, ask, err := Default.QuoteTicks(10)
	if err != nil {
		t.Fatalf("QuoteTicks: %v", err)
	}
	if bid != -50 || ask != 50 {
		t.Fatalf("QuoteTicks(10) = (%d, %d) want (-50, 50)", bid, ask)
	}
}

func TestQuoteTicksProperties(t *testing.T) {
	g := Default
	for bps := int64(1); bps <= 300; bps++ {
		bid, ask, err := g.QuoteTicks(bps)
		if err != nil {
			t.Fatalf("QuoteTicks(%d): %v", bps, err)
		}
		if !g.IsValid(bid) || !g.IsValid(ask) {
			t.Fatalf("QuoteTicks(%d) returned off-grid levels (%d, %d)", bps, bid, ask)
		}
		if bid > 0 || ask < 0 {
			t.Fatalf("QuoteTicks(%d) sides inverted: bid=%d ask=%d", bps, bid, ask)
		}
		half := g.RoundToSpacing(BasisPointsToTicks(bps) / 2)
		wantWidth := 2 * half
		if c := g.Clamp(half); c != half {
			// clamped regime: both sides pinned to bounds
			if bid != g.Min && ask != g.Max {
				t.Fatalf("QuoteTicks(%d) expected clamping, got bid=%d ask=%d", bps, bid, ask)
			}
			continue
		}
		if ask-bid != wantWidth {
			t.Fatalf("QuoteTicks(%d) width=%d want %d", bps, ask-bid, wantWidth)
		}
	}
}

func TestQuoteTicksClampedBounds(t *testing.T) {
	g := Grid{Spacing: 10, Min: -100, Max: 100}
	bid, ask, err := g.QuoteTicks(1000)
	if err != nil {
		t.Fatalf("QuoteTicks: %v", err)
	}
	if bid != -100 || ask != 100 {
		t.Fatalf("expected clamp to bounds, got (%d, %d)", bid, ask)
	}
}

func TestQuoteTicksIncompatibleGrid(t *testing.T) {
	// max bound off-grid: clamping a wide spread must surface the violation.
	g := Grid{Spacing: 10, Min: -105, Max: 105}
	_, _, err := g.QuoteTicks(1000)
	if err == nil {
		t.Fatalf("expected InvalidTickError for off-grid bounds")
	}
	var ite *InvalidTickError
	if !errors.As(err, &ite) {
		t.Fatalf("expected *InvalidTickError, got %T: %v", err, err)
	}
}

func TestValidate(t *testing.T) {
	if err := Default.Validate(); err != nil {
		t.Fatalf("default grid should validate: %v", err)
	}
	bad := []Grid{
		{Spacing: 0, Min: -10, Max: 10},
		{Spacing: 10, Min: 10, Max: -10},
		{Spacing: 10, Min: -15, Max: 100},
		{Spacing: 10, Min: -100, Max: 15},
	}
	for i, g := range bad {
		if err := g.Validate(); err == nil {
			t.Errorf("grid %d (%+v) should fail validation", i, g)
		}
	}
}

func TestQuoteTicksZeroSpread(t *testing.T) {
	if _, _, err := Default.QuoteTicks(0); err == nil {
		t.Fatalf("zero spread must be rejected")
	}
}
