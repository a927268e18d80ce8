// Package amm is an in-memory pool manager that quotes swaps at the spot tick and
// drives pool hooks. It does not model a liquidity curve: swaps never move the price,
// only MoveTick does.
package amm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"limitScope/internal/custody"
	"limitScope/internal/journal"
	"limitScope/internal/model"
	"limitScope/internal/tickmath"
)

var (
	ErrPoolNotInitialized      = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized  = errors.New("pool already initialized")
	ErrExactOutputUnsupported  = errors.New("exact output swaps are not supported")
	ErrInvalidPriceLimit       = errors.New("invalid price limit")
	ErrInsufficientLiquidity   = errors.New("insufficient liquidity")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrSettlementExceedsAmount = errors.New("settlement exceeds amount owed")
)

const feeDenominator = 1_000_000

// Hooks are the callbacks a pool's hook address receives.
type Hooks interface {
	AfterInitialize(ctx context.Context, key model.PoolKey, tick int32) error
	AfterSwap(ctx context.Context, sender common.Address, key model.PoolKey, tick int32) error
}

type pool struct {
	key  model.PoolKey
	tick int32
}

// Simulator holds pool reserves under its own vault account.
type Simulator struct {
	mu      sync.Mutex
	account common.Address
	vault   *custody.Vault
	journal *journal.Journal
	logger  *zap.Logger
	hooks   map[common.Address]Hooks
	pools   map[common.Hash]*pool
	deltas  map[common.Address]map[common.Address]*big.Int
}

// NewSimulator builds a Simulator whose reserves live at account in vault. Swap deltas
// are journaled into j (which may be nil) so they revert together with the vault.
func NewSimulator(vault *custody.Vault, account common.Address, j *journal.Journal, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		account: account,
		vault:   vault,
		journal: j,
		logger:  logger,
		hooks:   make(map[common.Address]Hooks),
		pools:   make(map[common.Hash]*pool),
		deltas:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

// Account returns the reserve account.
func (s *Simulator) Account() common.Address {
	return s.account
}

// RegisterHooks routes callbacks of pools whose key names addr to h.
func (s *Simulator) RegisterHooks(addr common.Address, h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[addr] = h
}

// Initialize creates a pool at tick and calls its AfterInitialize hook.
func (s *Simulator) Initialize(ctx context.Context, key model.PoolKey, tick int32) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("pool key: %w", err)
	}
	if !tickmath.InRange(tick) {
		return fmt.Errorf("tick out of range: %d", tick)
	}
	s.mu.Lock()
	id := key.ID()
	if _, ok := s.pools[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, id.Hex())
	}
	s.pools[id] = &pool{key: key, tick: tick}
	h := s.hooks[key.Hooks]
	s.mu.Unlock()

	s.logger.Info("pool created", zap.String("pool", id.Hex()), zap.Int32("tick", tick))
	if h == nil {
		return nil
	}
	if err := h.AfterInitialize(ctx, key, tick); err != nil {
		s.mu.Lock()
		delete(s.pools, id)
		s.mu.Unlock()
		return fmt.Errorf("after initialize hook: %w", err)
	}
	return nil
}

// Tick returns the pool's spot tick.
func (s *Simulator) Tick(key model.PoolKey) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key.ID()]
	if !ok {
		return 0, false
	}
	return p.tick, true
}

// MoveTick sets the spot tick as if sender's swap had moved it there, then calls the
// pool's AfterSwap hook. The tick is restored if the hook fails.
func (s *Simulator) MoveTick(ctx context.Context, sender common.Address, key model.PoolKey, tick int32) error {
	if !tickmath.InRange(tick) {
		return fmt.Errorf("tick out of range: %d", tick)
	}
	s.mu.Lock()
	p, ok := s.pools[key.ID()]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPoolNotInitialized, key.ID().Hex())
	}
	prev := p.tick
	p.tick = tick
	h := s.hooks[key.Hooks]
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	if err := h.AfterSwap(ctx, sender, key, tick); err != nil {
		s.mu.Lock()
		p.tick = prev
		s.mu.Unlock()
		return fmt.Errorf("after swap hook: %w", err)
	}
	return nil
}

// Swap quotes an exact-input swap at the spot price less the fee tier and records the
// resulting delta against sender. Tokens move on Settle and Take. The delta is undone
// if the AfterSwap hook fails.
func (s *Simulator) Swap(ctx context.Context, sender common.Address, key model.PoolKey, params model.SwapParams) (model.BalanceDelta, error) {
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return model.BalanceDelta{}, ErrInvalidAmount
	}
	if params.AmountSpecified.Sign() < 0 {
		return model.BalanceDelta{}, ErrExactOutputUnsupported
	}
	if params.SqrtPriceLimitX96 == nil ||
		params.SqrtPriceLimitX96.Cmp(tickmath.MinSqrtRatio) <= 0 ||
		params.SqrtPriceLimitX96.Cmp(tickmath.MaxSqrtRatio) >= 0 {
		return model.BalanceDelta{}, fmt.Errorf("%w: %v", ErrInvalidPriceLimit, params.SqrtPriceLimitX96)
	}

	snap := s.journal.Snapshot()
	s.mu.Lock()
	p, ok := s.pools[key.ID()]
	if !ok {
		s.mu.Unlock()
		return model.BalanceDelta{}, fmt.Errorf("%w: %s", ErrPoolNotInitialized, key.ID().Hex())
	}
	amountIn := new(big.Int).Set(params.AmountSpecified)
	amountOut := Quote(amountIn, p.tick, key.Fee, params.ZeroForOne)
	outCurrency := key.OutputCurrency(params.ZeroForOne)
	inCurrency := key.Currency(params.ZeroForOne)
	if reserve := s.vault.BalanceOf(s.account, outCurrency).ToBig(); reserve.Cmp(amountOut) < 0 {
		s.mu.Unlock()
		return model.BalanceDelta{}, fmt.Errorf("%w: need %s of %s, reserve %s", ErrInsufficientLiquidity, amountOut, outCurrency.Hex(), reserve)
	}
	s.addDelta(sender, inCurrency, amountIn)
	s.addDelta(sender, outCurrency, new(big.Int).Neg(amountOut))
	tick := p.tick
	h := s.hooks[key.Hooks]
	s.mu.Unlock()

	var delta model.BalanceDelta
	if params.ZeroForOne {
		delta = model.NewBalanceDelta(amountIn, new(big.Int).Neg(amountOut))
	} else {
		delta = model.NewBalanceDelta(new(big.Int).Neg(amountOut), amountIn)
	}
	s.logger.Debug("swap",
		zap.String("pool", key.ID().Hex()),
		zap.String("sender", sender.Hex()),
		zap.Bool("zero_for_one", params.ZeroForOne),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
	)
	if h != nil {
		if err := h.AfterSwap(ctx, sender, key, tick); err != nil {
			s.undoSwap(snap, sender, inCurrency, outCurrency, amountIn, amountOut)
			return model.BalanceDelta{}, fmt.Errorf("after swap hook: %w", err)
		}
	}
	return delta, nil
}

func (s *Simulator) undoSwap(snap int, sender, inCurrency, outCurrency common.Address, amountIn, amountOut *big.Int) {
	if s.journal != nil {
		s.journal.RevertToSnapshot(snap)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addDelta(sender, inCurrency, new(big.Int).Neg(amountIn))
	s.addDelta(sender, outCurrency, amountOut)
}

// Settle pays amount of currency from payer into the reserves.
func (s *Simulator) Settle(ctx context.Context, payer common.Address, currency common.Address, amount *big.Int) error {
	value, err := toUint(amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if owed := s.outstanding(payer, currency); owed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: owes %s, settling %s", ErrSettlementExceedsAmount, owed, amount)
	}
	if err := s.vault.Transfer(payer, s.account, currency, value); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	s.addDelta(payer, currency, new(big.Int).Neg(amount))
	return nil
}

// Take pays amount of currency out of the reserves to to.
func (s *Simulator) Take(ctx context.Context, currency common.Address, to common.Address, amount *big.Int) error {
	value, err := toUint(amount)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if due := new(big.Int).Neg(s.outstanding(to, currency)); due.Cmp(amount) < 0 {
		return fmt.Errorf("%w: due %s, taking %s", ErrSettlementExceedsAmount, due, amount)
	}
	if err := s.vault.Transfer(s.account, to, currency, value); err != nil {
		return fmt.Errorf("take: %w", err)
	}
	s.addDelta(to, currency, amount)
	return nil
}

// Outstanding returns what account owes the pool manager in currency; negative when
// the pool manager owes account.
func (s *Simulator) Outstanding(account, currency common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding(account, currency)
}

func (s *Simulator) outstanding(account, currency common.Address) *big.Int {
	if v := s.deltas[account][currency]; v != nil {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

// addDelta is called with s.mu held. Its undo step takes the lock itself because the
// journal is reverted by callers outside the simulator.
func (s *Simulator) addDelta(account, currency common.Address, amount *big.Int) {
	prev := s.outstanding(account, currency)
	s.setDelta(account, currency, new(big.Int).Add(prev, amount))
	s.journal.Append(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.setDelta(account, currency, prev)
	})
}

func (s *Simulator) setDelta(account, currency common.Address, value *big.Int) {
	byCurrency := s.deltas[account]
	if value.Sign() == 0 {
		if byCurrency != nil {
			delete(byCurrency, currency)
			if len(byCurrency) == 0 {
				delete(s.deltas, account)
			}
		}
		return
	}
	if byCurrency == nil {
		byCurrency = make(map[common.Address]*big.Int)
		s.deltas[account] = byCurrency
	}
	byCurrency[currency] = value
}

func toUint(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, amount)
	}
	return value, nil
}
