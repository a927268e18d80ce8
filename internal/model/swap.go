package model

import "math/big"

// SwapParams describes a swap request against a pool.
type SwapParams struct {
	ZeroForOne bool
	// AmountSpecified is positive for exact input, negative for exact output.
	AmountSpecified   *big.Int
	SqrtPriceLimitX96 *big.Int
}

// BalanceDelta is the per-currency result of a swap from the caller's side.
// Positive amounts are owed to the pool, negative amounts are owed by the pool.
type BalanceDelta struct {
	Amount0 *big.Int
	Amount1 *big.Int
}

// NewBalanceDelta copies the two amounts into a delta.
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

// Split returns the input and output legs of a swap in the given direction.
func (d BalanceDelta) Split(zeroForOne bool) (in, out *big.Int) {
	if zeroForOne {
		return d.Amount0, d.Amount1
	}
	return d.Amount1, d.Amount0
}
