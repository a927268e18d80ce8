package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/claims"
	"limitScope/internal/ledger"
	"limitScope/internal/model"
	"limitScope/internal/tickmath"
)

// ClaimID returns the claim token id of the bucket containing tick.
func ClaimID(key model.PoolKey, tick int32, zeroForOne bool) common.Hash {
	return claims.DeriveID(key, tickmath.LowerBoundary(tick, key.TickSpacing), zeroForOne)
}

// BalanceOf returns holder's claim units of id, resting and executed.
func (e *Engine) BalanceOf(id common.Hash, holder common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claims.BalanceOf(id, holder)
}

// TotalSupply returns the outstanding claim units of id.
func (e *Engine) TotalSupply(id common.Hash) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claims.TotalSupply(id)
}

// Redeemable is what holder would receive from Redeem right now.
func (e *Engine) Redeemable(id common.Hash, holder common.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claims.Redeemable(id, holder)
}

// Claim returns the aggregate state of a claim id.
func (e *Engine) Claim(id common.Hash) (claims.Claim, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.claims.Claim(id)
}

// RestingAmount returns the unexecuted amount in the bucket containing tick.
func (e *Engine) RestingAmount(key model.PoolKey, tick int32, zeroForOne bool) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Amount(ledger.Key{
		Pool:       key.ID(),
		Tick:       tickmath.LowerBoundary(tick, key.TickSpacing),
		ZeroForOne: zeroForOne,
	})
}

// LastTick returns the recorded spot tick of key.
func (e *Engine) LastTick(key model.PoolKey) (int32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.pools[key.ID()]
	if !ok {
		return 0, false
	}
	return state.lastTick, true
}
