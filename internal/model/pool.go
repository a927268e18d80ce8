package model

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PoolKey is the immutable configuration identifying a pool.
// Currency0 must sort below Currency1.
type PoolKey struct {
	Currency0   common.Address `json:"currency0"`
	Currency1   common.Address `json:"currency1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tick_spacing"`
	Hooks       common.Address `json:"hooks"`
}

var (
	poolKeyArgs     abi.Arguments
	poolKeyArgsOnce sync.Once
	poolKeyArgsErr  error
)

// PoolKeyArguments returns the abi.encode layout of a PoolKey.
func PoolKeyArguments() (abi.Arguments, error) {
	poolKeyArgsOnce.Do(func() {
		var types [5]abi.Type
		for i, name := range []string{"address", "address", "uint24", "int24", "address"} {
			typ, err := abi.NewType(name, "", nil)
			if err != nil {
				poolKeyArgsErr = fmt.Errorf("abi type %s: %w", name, err)
				return
			}
			types[i] = typ
		}
		for _, typ := range types {
			poolKeyArgs = append(poolKeyArgs, abi.Argument{Type: typ})
		}
	})
	return poolKeyArgs, poolKeyArgsErr
}

// EncodeValues returns the key fields in the order expected by PoolKeyArguments.
func (k PoolKey) EncodeValues() []interface{} {
	return []interface{}{
		k.Currency0,
		k.Currency1,
		new(big.Int).SetUint64(uint64(k.Fee)),
		big.NewInt(int64(k.TickSpacing)),
		k.Hooks,
	}
}

// ID returns keccak256(abi.encode(key)).
func (k PoolKey) ID() common.Hash {
	args, err := PoolKeyArguments()
	if err != nil {
		panic(err)
	}
	packed, err := args.Pack(k.EncodeValues()...)
	if err != nil {
		panic(fmt.Errorf("pack pool key: %w", err))
	}
	return crypto.Keccak256Hash(packed)
}

// Currency returns the input currency of an order in the given direction.
func (k PoolKey) Currency(zeroForOne bool) common.Address {
	if zeroForOne {
		return k.Currency0
	}
	return k.Currency1
}

// OutputCurrency returns the currency an order in the given direction receives.
func (k PoolKey) OutputCurrency(zeroForOne bool) common.Address {
	return k.Currency(!zeroForOne)
}

// Validate checks currency ordering and tick spacing.
func (k PoolKey) Validate() error {
	if k.Currency0 == k.Currency1 {
		return fmt.Errorf("currencies must differ")
	}
	if k.Currency0.Cmp(k.Currency1) > 0 {
		return fmt.Errorf("currencies not sorted: %s > %s", k.Currency0.Hex(), k.Currency1.Hex())
	}
	if k.TickSpacing <= 0 {
		return fmt.Errorf("tick spacing must be positive: %d", k.TickSpacing)
	}
	if k.Fee > 1_000_000 {
		return fmt.Errorf("fee out of range: %d", k.Fee)
	}
	return nil
}

// NewPoolKey sorts the two currencies and builds a key.
func NewPoolKey(tokenA, tokenB common.Address, fee uint32, tickSpacing int32, hooks common.Address) PoolKey {
	if tokenA.Cmp(tokenB) > 0 {
		tokenA, tokenB = tokenB, tokenA
	}
	return PoolKey{
		Currency0:   tokenA,
		Currency1:   tokenB,
		Fee:         fee,
		TickSpacing: tickSpacing,
		Hooks:       hooks,
	}
}
