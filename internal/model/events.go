package model

// SwapObservation is a decoded pool Swap log reduced to what the order book consumes.
type SwapObservation struct {
	BlockNumber  uint64 `json:"block_number"`
	TxHash       string `json:"tx_hash"`
	LogIndex     uint64 `json:"log_index"`
	Pool         string `json:"pool"`
	Sender       string `json:"sender"`
	Recipient    string `json:"recipient"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Liquidity    string `json:"liquidity"`
	Tick         int32  `json:"tick"`
}

// Engine event kinds.
const (
	EventPoolInitialized = "pool_initialized"
	EventOrderPlaced     = "order_placed"
	EventOrderCancelled  = "order_cancelled"
	EventBucketExecuted  = "bucket_executed"
	EventRedeemed        = "redeemed"
)

// EngineEvent is a committed state transition of the order book.
// Amounts are decimal strings.
type EngineEvent struct {
	Kind       string `json:"kind"`
	PoolID     string `json:"pool_id"`
	ClaimID    string `json:"claim_id,omitempty"`
	Account    string `json:"account,omitempty"`
	Tick       int32  `json:"tick"`
	ZeroForOne bool   `json:"zero_for_one"`
	AmountIn   string `json:"amount_in,omitempty"`
	AmountOut  string `json:"amount_out,omitempty"`
}
