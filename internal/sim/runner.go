package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"limitScope/internal/model"
)

var (
	ErrNoPool          = errors.New("no pool initialized")
	ErrUnknownAddress  = errors.New("unknown address")
	ErrUnexpectedError = errors.New("unexpected error")
	ErrMissingError    = errors.New("expected error did not occur")
)

// Result is the outcome of one applied action.
type Result struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	Pool   string `json:"pool,omitempty"`
	Tick   int32  `json:"tick"`
	Amount string `json:"amount,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Runner applies actions to an Environment.
type Runner struct {
	env    *Environment
	logger *zap.Logger
	pool   *model.PoolKey
}

// NewRunner returns a Runner over env.
func NewRunner(env *Environment, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{env: env, logger: logger}
}

// UsePool makes key the pool of actions that omit one.
func (r *Runner) UsePool(key model.PoolKey) {
	r.pool = &key
}

// Run applies actions in order. An action with ExpectError must fail with an error
// containing that text; any other failure stops the run.
func (r *Runner) Run(ctx context.Context, actions []Action) ([]Result, error) {
	results := make([]Result, 0, len(actions))
	for i, action := range actions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := r.Apply(ctx, action)
		result.Index = i + 1
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)

		switch {
		case action.ExpectError == "" && err != nil:
			return results, fmt.Errorf("action %d (%s): %w: %w", i+1, action.Op, ErrUnexpectedError, err)
		case action.ExpectError != "" && err == nil:
			return results, fmt.Errorf("action %d (%s): %w: %q", i+1, action.Op, ErrMissingError, action.ExpectError)
		case action.ExpectError != "" && !strings.Contains(err.Error(), action.ExpectError):
			return results, fmt.Errorf("action %d (%s): want error %q: %w", i+1, action.Op, action.ExpectError, err)
		}
		r.logger.Debug("action applied", zap.Int("index", i+1), zap.String("op", action.Op), zap.String("error", result.Error))
	}
	return results, nil
}

// Apply runs a single action.
func (r *Runner) Apply(ctx context.Context, action Action) (Result, error) {
	result := Result{Op: action.Op, Tick: action.Tick}

	if action.Op == OpInit {
		key, err := r.poolKey(action.Pool)
		if err != nil {
			return result, err
		}
		result.Pool = key.ID().Hex()
		if err := r.env.AMM.Initialize(ctx, key, action.Tick); err != nil {
			return result, err
		}
		r.pool = &key
		return result, nil
	}

	key, err := r.currentPool(action.Pool)
	havePool := err == nil
	if !havePool && action.Op != OpFund {
		return result, err
	}
	if havePool {
		result.Pool = key.ID().Hex()
	}

	switch action.Op {
	case OpFund:
		account, err := r.address(action.Account, key, havePool)
		if err != nil {
			return result, err
		}
		currency, err := r.address(action.Currency, key, havePool)
		if err != nil {
			return result, err
		}
		amount, err := parseAmount(action.Amount)
		if err != nil {
			return result, err
		}
		result.Amount = amount.Dec()
		return result, r.env.Vault.Credit(account, currency, amount)

	case OpPlace:
		account, err := r.address(action.Account, key, true)
		if err != nil {
			return result, err
		}
		amount, err := parseAmount(action.Amount)
		if err != nil {
			return result, err
		}
		tick, err := r.env.Engine.PlaceOrder(ctx, account, key, action.Tick, amount, action.ZeroForOne)
		if err != nil {
			return result, err
		}
		result.Tick = tick
		result.Amount = amount.Dec()
		return result, nil

	case OpCancel:
		account, err := r.address(action.Account, key, true)
		if err != nil {
			return result, err
		}
		refund, err := r.env.Engine.CancelOrder(ctx, account, key, action.Tick, action.ZeroForOne)
		if err != nil {
			return result, err
		}
		result.Amount = refund.Dec()
		return result, nil

	case OpRedeem:
		account, err := r.address(action.Account, key, true)
		if err != nil {
			return result, err
		}
		paid, err := r.env.Engine.Redeem(ctx, account, key, action.Tick, action.ZeroForOne)
		if err != nil {
			return result, err
		}
		result.Amount = paid.Dec()
		return result, nil

	case OpMove:
		var sender common.Address
		if action.Account != "" {
			if sender, err = r.address(action.Account, key, true); err != nil {
				return result, err
			}
		}
		return result, r.env.AMM.MoveTick(ctx, sender, key, action.Tick)
	}
	return result, fmt.Errorf("unknown op %q", action.Op)
}

func (r *Runner) currentPool(ref *PoolSpec) (model.PoolKey, error) {
	if ref != nil {
		return r.poolKey(ref)
	}
	if r.pool == nil {
		return model.PoolKey{}, ErrNoPool
	}
	return *r.pool, nil
}

func (r *Runner) poolKey(ref *PoolSpec) (model.PoolKey, error) {
	if ref == nil {
		return model.PoolKey{}, ErrNoPool
	}
	if !common.IsHexAddress(ref.Token0) || !common.IsHexAddress(ref.Token1) {
		return model.PoolKey{}, fmt.Errorf("%w: pool tokens %q, %q", ErrUnknownAddress, ref.Token0, ref.Token1)
	}
	key := model.NewPoolKey(
		common.HexToAddress(ref.Token0),
		common.HexToAddress(ref.Token1),
		ref.Fee,
		ref.TickSpacing,
		r.env.Engine.Hook(),
	)
	if err := key.Validate(); err != nil {
		return model.PoolKey{}, fmt.Errorf("pool key: %w", err)
	}
	return key, nil
}

// address resolves a hex address or alias. Currency aliases need a pool.
func (r *Runner) address(value string, key model.PoolKey, havePool bool) (common.Address, error) {
	switch value {
	case "hook":
		return r.env.Engine.Hook(), nil
	case "amm":
		return r.env.AMM.Account(), nil
	case "currency0", "currency1":
		if !havePool {
			return common.Address{}, fmt.Errorf("%w: %s", ErrNoPool, value)
		}
		return key.Currency(value == "currency0"), nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrUnknownAddress, value)
	}
	return common.HexToAddress(value), nil
}

func parseAmount(value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", value, err)
	}
	return amount, nil
}
