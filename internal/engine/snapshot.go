package engine

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/claims"
	"limitScope/internal/ledger"
	"limitScope/internal/model"
)

// Snapshot exports the persisted state layout in a deterministic order.
func (e *Engine) Snapshot() model.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var snap model.Snapshot
	ids := make([]common.Hash, 0, len(e.pools))
	for id := range e.pools {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	for _, id := range ids {
		state := e.pools[id]
		snap.Pools = append(snap.Pools, model.PoolState{Key: state.key, LastTick: state.lastTick})
	}
	for _, b := range e.ledger.Buckets() {
		snap.Buckets = append(snap.Buckets, model.BucketState{
			PoolID:     b.Key.Pool.Hex(),
			Tick:       b.Key.Tick,
			ZeroForOne: b.Key.ZeroForOne,
			Amount:     b.Amount.Dec(),
		})
	}
	for _, c := range e.claims.Claims() {
		state := model.ClaimState{
			ID:         c.ID.Hex(),
			Pool:       c.Pool,
			Tick:       c.Tick,
			ZeroForOne: c.ZeroForOne,
			OpenRound:  c.OpenRound,
		}
		for _, rd := range c.Rounds {
			state.Rounds = append(state.Rounds, model.RoundState{
				Round:       rd.Number,
				Executed:    rd.Executed,
				TotalSupply: rd.TotalSupply.Dec(),
				Claimable:   rd.Claimable.Dec(),
			})
		}
		snap.Claims = append(snap.Claims, state)
	}
	for _, h := range e.claims.Holdings() {
		snap.Balances = append(snap.Balances, model.BalanceState{
			ClaimID: h.ID.Hex(),
			Round:   h.Round,
			Holder:  h.Holder.Hex(),
			Amount:  h.Amount.Dec(),
		})
	}
	return snap
}

type restoredState struct {
	pools    map[common.Hash]*poolState
	buckets  []ledger.Bucket
	claims   []claims.Claim
	holdings map[common.Hash][]claims.Holding
}

type roundKey struct {
	id    common.Hash
	round uint64
}

// ValidateSnapshot reports whether Restore would accept snap.
func ValidateSnapshot(snap model.Snapshot) error {
	_, err := decodeSnapshot(snap)
	return err
}

// Restore replaces all engine state with snap. Nothing is replaced if snap is invalid.
func (e *Engine) Restore(snap model.Snapshot) error {
	state, err := decodeSnapshot(snap)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.journal.Reset()
	e.pending = nil
	e.pools = state.pools
	e.ledger.Reset()
	for _, b := range state.buckets {
		e.ledger.Set(b.Key, b.Amount)
	}
	e.claims.Reset()
	for _, c := range state.claims {
		e.claims.Restore(c, state.holdings[c.ID])
	}
	e.journal.Reset()
	return nil
}

func decodeSnapshot(snap model.Snapshot) (*restoredState, error) {
	pools := make(map[common.Hash]*poolState, len(snap.Pools))
	for _, p := range snap.Pools {
		if err := p.Key.Validate(); err != nil {
			return nil, fmt.Errorf("restore pool: %w", err)
		}
		pools[p.Key.ID()] = &poolState{key: p.Key, lastTick: p.LastTick}
	}

	buckets := make([]ledger.Bucket, 0, len(snap.Buckets))
	resting := make(map[ledger.Key]*uint256.Int, len(snap.Buckets))
	for _, b := range snap.Buckets {
		pool := common.HexToHash(b.PoolID)
		if _, ok := pools[pool]; !ok {
			return nil, fmt.Errorf("restore bucket: %w: %s", ErrPoolNotInitialized, b.PoolID)
		}
		amount, err := parseAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("restore bucket %s/%d: %w", b.PoolID, b.Tick, err)
		}
		key := ledger.Key{Pool: pool, Tick: b.Tick, ZeroForOne: b.ZeroForOne}
		buckets = append(buckets, ledger.Bucket{Key: key, Amount: amount})
		resting[key] = amount
	}

	holdings := make(map[common.Hash][]claims.Holding)
	held := make(map[roundKey]*uint256.Int)
	for _, bal := range snap.Balances {
		amount, err := parseAmount(bal.Amount)
		if err != nil {
			return nil, fmt.Errorf("restore balance %s: %w", bal.ClaimID, err)
		}
		id := common.HexToHash(bal.ClaimID)
		holdings[id] = append(holdings[id], claims.Holding{
			ID:     id,
			Round:  bal.Round,
			Holder: common.HexToAddress(bal.Holder),
			Amount: amount,
		})
		rk := roundKey{id: id, round: bal.Round}
		if held[rk] == nil {
			held[rk] = new(uint256.Int)
		}
		held[rk].Add(held[rk], amount)
	}

	restored := make([]claims.Claim, 0, len(snap.Claims))
	for _, c := range snap.Claims {
		id := common.HexToHash(c.ID)
		if derived := claims.DeriveID(c.Pool, c.Tick, c.ZeroForOne); derived != id {
			return nil, fmt.Errorf("restore claim %s: id does not match metadata (%s)", c.ID, derived.Hex())
		}
		claim := claims.Claim{
			ID:         id,
			Pool:       c.Pool,
			Tick:       c.Tick,
			ZeroForOne: c.ZeroForOne,
			OpenRound:  c.OpenRound,
		}
		seen := make(map[uint64]bool, len(c.Rounds))
		for _, rd := range c.Rounds {
			if seen[rd.Round] {
				return nil, fmt.Errorf("restore claim %s: duplicate round %d", c.ID, rd.Round)
			}
			seen[rd.Round] = true
			if rd.Round > c.OpenRound || rd.Executed == (rd.Round == c.OpenRound) {
				return nil, fmt.Errorf("%w: claim %s round %d executed=%t with open round %d", ErrInvariantViolation, c.ID, rd.Round, rd.Executed, c.OpenRound)
			}
			supply, err := parseAmount(rd.TotalSupply)
			if err != nil {
				return nil, fmt.Errorf("restore claim %s round %d supply: %w", c.ID, rd.Round, err)
			}
			claimable, err := parseAmount(rd.Claimable)
			if err != nil {
				return nil, fmt.Errorf("restore claim %s round %d claimable: %w", c.ID, rd.Round, err)
			}
			sum := held[roundKey{id: id, round: rd.Round}]
			if sum == nil {
				sum = new(uint256.Int)
			}
			if !sum.Eq(supply) {
				return nil, fmt.Errorf("%w: claim %s round %d balances %s != supply %s", ErrInvariantViolation, c.ID, rd.Round, sum.Dec(), supply.Dec())
			}
			if rd.Round == c.OpenRound {
				bucket := ledger.Key{Pool: c.Pool.ID(), Tick: c.Tick, ZeroForOne: c.ZeroForOne}
				if r := resting[bucket]; r == nil || !r.Eq(supply) {
					return nil, fmt.Errorf("%w: claim %s open round %s units, bucket %s", ErrInvariantViolation, c.ID, supply.Dec(), amountString(r))
				}
			}
			claim.Rounds = append(claim.Rounds, claims.Round{
				Number:      rd.Round,
				Executed:    rd.Executed,
				TotalSupply: supply,
				Claimable:   claimable,
			})
		}
		for _, h := range holdings[id] {
			if !seen[h.Round] {
				return nil, fmt.Errorf("restore balance %s: unknown round %d", c.ID, h.Round)
			}
		}
		restored = append(restored, claim)
	}

	return &restoredState{pools: pools, buckets: buckets, claims: restored, holdings: holdings}, nil
}

func amountString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return amount, nil
}
