package model

import "github.com/ethereum/go-ethereum/common"

// PoolMeta captures immutable V3 pool metadata with optional live fields.
type PoolMeta struct {
	Token0      string     `json:"token0"`
	Token1      string     `json:"token1"`
	Fee         uint32     `json:"fee"`
	TickSpacing int32      `json:"tick_spacing"`
	Slot0       *PoolSlot0 `json:"slot0,omitempty"`
}

// PoolSlot0 includes select slot0 fields.
type PoolSlot0 struct {
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
}

// Key builds the pool key an order book hook would see for this pool.
func (m PoolMeta) Key(hooks common.Address) PoolKey {
	return NewPoolKey(common.HexToAddress(m.Token0), common.HexToAddress(m.Token1), m.Fee, m.TickSpacing, hooks)
}
