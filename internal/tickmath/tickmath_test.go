package tickmath

import (
	"testing"

	"pgregory.net/rapid"
)

func TestLowerBoundary(t *testing.T) {
	cases := []struct {
		tick    int32
		spacing int32
		want    int32
	}{
		{tick: 0, spacing: 60, want: 0},
		{tick: 59, spacing: 60, want: 0},
		{tick: 60, spacing: 60, want: 60},
		{tick: 100, spacing: 60, want: 60},
		{tick: -1, spacing: 60, want: -60},
		{tick: -60, spacing: 60, want: -60},
		{tick: -61, spacing: 60, want: -120},
		{tick: -120, spacing: 60, want: -120},
		{tick: 7, spacing: 1, want: 7},
		{tick: -7, spacing: 1, want: -7},
		{tick: -887272, spacing: 200, want: -887400},
	}

	for _, tc := range cases {
		if got := LowerBoundary(tc.tick, tc.spacing); got != tc.want {
			t.Fatalf("LowerBoundary(%d, %d) = %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}

func TestLowerBoundaryProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tick := rapid.Int32Range(MinTick, MaxTick).Draw(t, "tick")
		spacing := rapid.Int32Range(1, 16384).Draw(t, "spacing")

		lower := LowerBoundary(tick, spacing)
		if lower > tick || tick >= lower+spacing {
			t.Fatalf("tick %d not in [%d, %d)", tick, lower, lower+spacing)
		}
		if !IsBoundary(lower, spacing) {
			t.Fatalf("lower %d is not a multiple of %d", lower, spacing)
		}
		if again := LowerBoundary(lower, spacing); again != lower {
			t.Fatalf("not idempotent: %d -> %d", lower, again)
		}
	})
}

func TestPriceLimit(t *testing.T) {
	if PriceLimit(true).Cmp(MinSqrtRatio) <= 0 {
		t.Fatalf("zeroForOne limit must be above MinSqrtRatio")
	}
	if PriceLimit(false).Cmp(MaxSqrtRatio) >= 0 {
		t.Fatalf("oneForZero limit must be below MaxSqrtRatio")
	}
}
