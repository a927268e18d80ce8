package model

// Snapshot is the persisted state layout of the order book. Block is the last chain
// block whose swaps are reflected in the state, or zero when not tied to a replay.
type Snapshot struct {
	Block    uint64         `json:"block,omitempty"`
	Pools    []PoolState    `json:"pools"`
	Buckets  []BucketState  `json:"buckets"`
	Claims   []ClaimState   `json:"claims"`
	Balances []BalanceState `json:"balances"`
}

// PoolState is a pool's key and last observed spot tick.
type PoolState struct {
	Key      PoolKey `json:"key"`
	LastTick int32   `json:"last_tick"`
}

// BucketState is the resting amount of one (pool, tick, direction) bucket.
type BucketState struct {
	PoolID     string `json:"pool_id"`
	Tick       int32  `json:"tick"`
	ZeroForOne bool   `json:"zero_for_one"`
	Amount     string `json:"amount"`
}

// ClaimState is the metadata and outstanding rounds of one claim id.
type ClaimState struct {
	ID         string       `json:"id"`
	Pool       PoolKey      `json:"pool"`
	Tick       int32        `json:"tick"`
	ZeroForOne bool         `json:"zero_for_one"`
	OpenRound  uint64       `json:"open_round"`
	Rounds     []RoundState `json:"rounds,omitempty"`
}

// RoundState is one execution round of a claim.
type RoundState struct {
	Round       uint64 `json:"round"`
	Executed    bool   `json:"executed"`
	TotalSupply string `json:"total_supply"`
	Claimable   string `json:"claimable"`
}

// BalanceState is one holder's claim-unit balance in one round.
type BalanceState struct {
	ClaimID string `json:"claim_id"`
	Round   uint64 `json:"round"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}
