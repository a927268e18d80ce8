// Package engine runs the limit-order book of hooked AMM pools: placement and
// cancellation of resting orders, execution of crossed buckets, and redemption of
// proceeds against pooled claims.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"limitScope/internal/claims"
	"limitScope/internal/journal"
	"limitScope/internal/ledger"
	"limitScope/internal/model"
	"limitScope/internal/tickmath"
)

// Config holds the engine's identity and optional shared state.
type Config struct {
	// Hook is the address the engine swaps from and holds custody under.
	Hook common.Address
	// Journal, when set, is shared with collaborators whose mutations must roll back
	// together with engine state. A fresh journal is used otherwise.
	Journal *journal.Journal
	// Events receives the events of every committed operation.
	Events EventSink
}

type poolState struct {
	key      model.PoolKey
	lastTick int32
}

// Engine is safe for concurrent use. Every public operation runs under one lock and
// either commits all of its effects or none.
type Engine struct {
	mu        sync.Mutex
	hook      common.Address
	amm       AMM
	transfers Transferrer
	events    EventSink
	logger    *zap.Logger

	journal *journal.Journal
	ledger  *ledger.Ledger
	claims  *claims.Registry
	pools   map[common.Hash]*poolState
	pending []model.EngineEvent
	depth   int
}

// NewEngine builds an Engine with its collaborators.
func NewEngine(cfg Config, amm AMM, transfers Transferrer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := cfg.Journal
	if j == nil {
		j = journal.New()
	}
	return &Engine{
		hook:      cfg.Hook,
		amm:       amm,
		transfers: transfers,
		events:    cfg.Events,
		logger:    logger,
		journal:   j,
		ledger:    ledger.New(j),
		claims:    claims.New(j),
		pools:     make(map[common.Hash]*poolState),
	}
}

// Hook returns the engine's hook address.
func (e *Engine) Hook() common.Address {
	return e.hook
}

// OnPoolInitialized records the normalized spot tick as the crossing baseline of key.
func (e *Engine) OnPoolInitialized(ctx context.Context, key model.PoolKey, spotTick int32) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("pool key: %w", err)
	}
	if !tickmath.InRange(spotTick) {
		return fmt.Errorf("%w: %d", ErrInvalidTick, spotTick)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.atomic(func() error {
		tick := tickmath.LowerBoundary(spotTick, key.TickSpacing)
		id := key.ID()
		prev, existed := e.pools[id]
		e.pools[id] = &poolState{key: key, lastTick: tick}
		e.journal.Append(func() {
			if existed {
				e.pools[id] = prev
			} else {
				delete(e.pools, id)
			}
		})
		e.emit(model.EngineEvent{Kind: model.EventPoolInitialized, PoolID: id.Hex(), Tick: tick})
		e.logger.Info("pool initialized", zap.String("pool", id.Hex()), zap.Int32("tick", tick))
		return nil
	})
}

// PlaceOrder rests amount at the lower boundary of rawTick and mints the caller the
// same number of claim units. The input currency is pulled from the caller last.
func (e *Engine) PlaceOrder(ctx context.Context, caller common.Address, key model.PoolKey, rawTick int32, amount *uint256.Int, zeroForOne bool) (int32, error) {
	if amount == nil || amount.IsZero() {
		return 0, ErrInvalidAmount
	}
	if !tickmath.InRange(rawTick) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTick, rawTick)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var tick int32
	err := e.atomic(func() error {
		pool, err := e.pool(key)
		if err != nil {
			return err
		}
		tick = tickmath.LowerBoundary(rawTick, key.TickSpacing)
		bucket := ledger.Key{Pool: pool, Tick: tick, ZeroForOne: zeroForOne}
		id := claims.DeriveID(key, tick, zeroForOne)

		if err := e.ledger.Add(bucket, amount); err != nil {
			return err
		}
		if err := e.claims.EnsureCreated(id, key, tick, zeroForOne); err != nil {
			return err
		}
		if err := e.claims.Mint(id, caller, amount); err != nil {
			return err
		}
		if err := e.transfers.Deposit(ctx, caller, key.Currency(zeroForOne), amount); err != nil {
			return fmt.Errorf("%w: %w", ErrDepositFailed, err)
		}

		e.emit(model.EngineEvent{
			Kind:       model.EventOrderPlaced,
			PoolID:     pool.Hex(),
			ClaimID:    id.Hex(),
			Account:    caller.Hex(),
			Tick:       tick,
			ZeroForOne: zeroForOne,
			AmountIn:   amount.Dec(),
		})
		e.logger.Debug("order placed",
			zap.String("bucket", bucket.String()),
			zap.String("caller", caller.Hex()),
			zap.String("amount", amount.Dec()),
		)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return tick, nil
}

// CancelOrder withdraws the caller's entire unexecuted position at the bucket of rawTick.
func (e *Engine) CancelOrder(ctx context.Context, caller common.Address, key model.PoolKey, rawTick int32, zeroForOne bool) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var withdrawn *uint256.Int
	err := e.atomic(func() error {
		pool, err := e.pool(key)
		if err != nil {
			return err
		}
		tick := tickmath.LowerBoundary(rawTick, key.TickSpacing)
		bucket := ledger.Key{Pool: pool, Tick: tick, ZeroForOne: zeroForOne}
		id := claims.DeriveID(key, tick, zeroForOne)

		balance := e.claims.OpenBalance(id, caller)
		if balance.IsZero() {
			return fmt.Errorf("%w: %s at %s", ErrNoPositionsToCancel, caller.Hex(), bucket)
		}
		if err := e.ledger.Remove(bucket, balance); err != nil {
			return fmt.Errorf("%w: %w", ErrInvariantViolation, err)
		}
		if err := e.claims.Burn(id, caller, balance); err != nil {
			return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
		}
		if err := e.transfers.Withdraw(ctx, caller, key.Currency(zeroForOne), balance); err != nil {
			return fmt.Errorf("%w: %w", ErrWithdrawalFailed, err)
		}

		withdrawn = balance
		e.emit(model.EngineEvent{
			Kind:       model.EventOrderCancelled,
			PoolID:     pool.Hex(),
			ClaimID:    id.Hex(),
			Account:    caller.Hex(),
			Tick:       tick,
			ZeroForOne: zeroForOne,
			AmountOut:  balance.Dec(),
		})
		e.logger.Debug("order cancelled",
			zap.String("bucket", bucket.String()),
			zap.String("caller", caller.Hex()),
			zap.String("amount", balance.Dec()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// Redeem burns the caller's executed claim units at the bucket of rawTick and pays out
// their share of the proceeds in the output currency. A share that rounds down to zero
// still burns the units, leaving the dust to the round's remaining holders.
func (e *Engine) Redeem(ctx context.Context, caller common.Address, key model.PoolKey, rawTick int32, zeroForOne bool) (*uint256.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var paid *uint256.Int
	err := e.atomic(func() error {
		pool, err := e.pool(key)
		if err != nil {
			return err
		}
		tick := tickmath.LowerBoundary(rawTick, key.TickSpacing)
		id := claims.DeriveID(key, tick, zeroForOne)

		if e.claims.ExecutedBalance(id, caller).IsZero() {
			return fmt.Errorf("%w: %s at %s", ErrNothingToRedeem, caller.Hex(), ledger.Key{Pool: pool, Tick: tick, ZeroForOne: zeroForOne})
		}
		units, amount, err := e.claims.Redeem(id, caller)
		if err != nil {
			if errors.Is(err, claims.ErrInsufficientBalance) {
				return fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
			}
			return err
		}
		if !amount.IsZero() {
			if err := e.transfers.Withdraw(ctx, caller, key.OutputCurrency(zeroForOne), amount); err != nil {
				return fmt.Errorf("%w: %w", ErrWithdrawalFailed, err)
			}
		}

		paid = amount
		e.emit(model.EngineEvent{
			Kind:       model.EventRedeemed,
			PoolID:     pool.Hex(),
			ClaimID:    id.Hex(),
			Account:    caller.Hex(),
			Tick:       tick,
			ZeroForOne: zeroForOne,
			AmountIn:   units.Dec(),
			AmountOut:  amount.Dec(),
		})
		e.logger.Debug("redeemed",
			zap.String("claim", id.Hex()),
			zap.String("caller", caller.Hex()),
			zap.String("units", units.Dec()),
			zap.String("amount", amount.Dec()),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paid, nil
}

// atomic runs fn as one unit. On error every journaled mutation since the start of
// fn is undone and its events are dropped. Events of the outermost unit are flushed
// to the sink after it commits. Callers hold e.mu.
func (e *Engine) atomic(fn func() error) error {
	snap := e.journal.Snapshot()
	pending := len(e.pending)
	e.depth++
	err := fn()
	e.depth--
	if err != nil {
		e.journal.RevertToSnapshot(snap)
		e.pending = e.pending[:pending]
		return err
	}
	if e.depth == 0 {
		e.journal.Reset()
		e.flush()
	}
	return nil
}

func (e *Engine) emit(ev model.EngineEvent) {
	e.pending = append(e.pending, ev)
}

func (e *Engine) flush() {
	events := e.pending
	e.pending = nil
	if e.events == nil || len(events) == 0 {
		return
	}
	if err := e.events.PutEvents(events); err != nil {
		e.logger.Warn("event sink failed", zap.Error(err), zap.Int("events", len(events)))
	}
}

func (e *Engine) pool(key model.PoolKey) (common.Hash, error) {
	id := key.ID()
	if _, ok := e.pools[id]; !ok {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrPoolNotInitialized, id.Hex())
	}
	return id, nil
}
