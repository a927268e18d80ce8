package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"limitScope/internal/model"
)

// AfterInitialize is the pool lifecycle callback.
func (e *Engine) AfterInitialize(ctx context.Context, key model.PoolKey, tick int32) error {
	return e.OnPoolInitialized(ctx, key, tick)
}

// AfterSwap is the post-swap callback. Swaps the engine issues itself while executing
// buckets are ignored; the check happens before locking because those callbacks arrive
// while the engine already holds its lock.
func (e *Engine) AfterSwap(ctx context.Context, sender common.Address, key model.PoolKey, tick int32) error {
	if sender == e.hook {
		return nil
	}
	return e.OnPriceMoved(ctx, key, tick)
}
