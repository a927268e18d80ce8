package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/model"
)

// AMM is the pool manager the engine swaps against. Deltas follow flash accounting:
// after Swap the sender owes the positive leg, which it pays with Settle, and collects
// the negative leg with Take.
type AMM interface {
	Swap(ctx context.Context, sender common.Address, key model.PoolKey, params model.SwapParams) (model.BalanceDelta, error)
	Settle(ctx context.Context, payer common.Address, currency common.Address, amount *big.Int) error
	Take(ctx context.Context, currency common.Address, to common.Address, amount *big.Int) error
}

// Transferrer moves an underlying asset between a caller and the engine's custody.
// Each call either fully succeeds or returns an error with nothing moved.
type Transferrer interface {
	Deposit(ctx context.Context, from common.Address, currency common.Address, amount *uint256.Int) error
	Withdraw(ctx context.Context, to common.Address, currency common.Address, amount *uint256.Int) error
}

// EventSink receives the events of each committed operation.
type EventSink interface {
	PutEvents(events []model.EngineEvent) error
}
