package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"limitScope/internal/claims"
	"limitScope/internal/ledger"
	"limitScope/internal/model"
	"limitScope/internal/tickmath"
)

// OnPriceMoved executes every resting bucket the move from the recorded tick to newTick
// crossed, then records newTick. Buckets already drained are skipped, so repeating a
// move never executes a bucket twice.
func (e *Engine) OnPriceMoved(ctx context.Context, key model.PoolKey, newTick int32) error {
	if !tickmath.InRange(newTick) {
		return fmt.Errorf("%w: %d", ErrInvalidTick, newTick)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atomic(func() error {
		id, err := e.pool(key)
		if err != nil {
			return err
		}
		state := e.pools[id]
		oldTick := state.lastTick

		for _, bucket := range crossedBuckets(e.ledger, id, oldTick, newTick) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.executeBucket(ctx, state.key, bucket); err != nil {
				return err
			}
		}

		if oldTick != newTick {
			e.journal.Append(func() { state.lastTick = oldTick })
			state.lastTick = newTick
		}
		return nil
	})
}

// executeBucket swaps the full resting amount of bucket as exact input at the extreme
// price limit and credits the proceeds to the bucket's claim. There is no slippage bound.
func (e *Engine) executeBucket(ctx context.Context, key model.PoolKey, bucket ledger.Key) error {
	resting := e.ledger.Drain(bucket)
	if resting.IsZero() {
		return nil
	}

	delta, err := e.amm.Swap(ctx, e.hook, key, model.SwapParams{
		ZeroForOne:        bucket.ZeroForOne,
		AmountSpecified:   resting.ToBig(),
		SqrtPriceLimitX96: tickmath.PriceLimit(bucket.ZeroForOne),
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSwapFailed, bucket, err)
	}

	owed, due := delta.Split(bucket.ZeroForOne)
	if owed == nil || due == nil {
		return fmt.Errorf("%w: %s: incomplete delta", ErrSwapFailed, bucket)
	}
	if owed.Cmp(resting.ToBig()) != 0 {
		return fmt.Errorf("%w: %s: filled %s of %s", ErrSwapFailed, bucket, owed, resting.Dec())
	}
	if due.Sign() > 0 {
		return fmt.Errorf("%w: %s: output leg owed to pool %s", ErrSwapFailed, bucket, due)
	}
	proceeds, overflow := uint256.FromBig(new(big.Int).Neg(due))
	if overflow {
		return fmt.Errorf("%w: %s: proceeds overflow", ErrSwapFailed, bucket)
	}

	if err := e.amm.Settle(ctx, e.hook, key.Currency(bucket.ZeroForOne), owed); err != nil {
		return fmt.Errorf("%w: settle %s: %w", ErrSwapFailed, bucket, err)
	}
	if !proceeds.IsZero() {
		if err := e.amm.Take(ctx, key.OutputCurrency(bucket.ZeroForOne), e.hook, proceeds.ToBig()); err != nil {
			return fmt.Errorf("%w: take %s: %w", ErrSwapFailed, bucket, err)
		}
	}

	id := claims.DeriveID(key, bucket.Tick, bucket.ZeroForOne)
	if open := e.claims.OpenSupply(id); !open.Eq(resting) {
		return fmt.Errorf("%w: %s: resting %s, open units %s", ErrInvariantViolation, bucket, resting.Dec(), open.Dec())
	}
	if err := e.claims.AccumulateClaimable(id, proceeds); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}
	if err := e.claims.MarkExecuted(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
	}

	e.emit(model.EngineEvent{
		Kind:       model.EventBucketExecuted,
		PoolID:     bucket.Pool.Hex(),
		ClaimID:    id.Hex(),
		Tick:       bucket.Tick,
		ZeroForOne: bucket.ZeroForOne,
		AmountIn:   resting.Dec(),
		AmountOut:  proceeds.Dec(),
	})
	e.logger.Info("bucket executed",
		zap.String("bucket", bucket.String()),
		zap.String("amount_in", resting.Dec()),
		zap.String("amount_out", proceeds.Dec()),
	)
	return nil
}
