package tickmath

import (
	"math/big"
)

const (
	// MinTick is the lowest tick representable by a V3/V4 pool.
	MinTick int32 = -887272
	// MaxTick is the highest tick representable by a V3/V4 pool.
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is sqrt(1.0001^MinTick) in Q64.96.
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is sqrt(1.0001^MaxTick) in Q64.96.
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)
)

// LowerBoundary returns the largest multiple of spacing that is <= tick.
// Division rounds toward negative infinity, so -1 with spacing 60 maps to -60.
func LowerBoundary(tick, spacing int32) int32 {
	if spacing <= 0 {
		return tick
	}
	q := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		q--
	}
	return q * spacing
}

// IsBoundary reports whether tick is already a multiple of spacing.
func IsBoundary(tick, spacing int32) bool {
	return spacing > 0 && tick%spacing == 0
}

// ValidSpacing reports whether spacing can key a bucket table.
func ValidSpacing(spacing int32) bool {
	return spacing > 0 && spacing <= MaxTick
}

// InRange reports whether tick lies within [MinTick, MaxTick].
func InRange(tick int32) bool {
	return tick >= MinTick && tick <= MaxTick
}

// PriceLimit returns the extreme sqrt price limit for a swap direction:
// just above MinSqrtRatio when selling currency0, just below MaxSqrtRatio otherwise.
func PriceLimit(zeroForOne bool) *big.Int {
	if zeroForOne {
		return new(big.Int).Add(MinSqrtRatio, big.NewInt(1))
	}
	return new(big.Int).Sub(MaxSqrtRatio, big.NewInt(1))
}
