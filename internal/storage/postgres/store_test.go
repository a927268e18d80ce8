package postgres

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"limitScope/internal/model"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("LIMITSCOPE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LIMITSCOPE_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return store
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	key := model.PoolKey{
		Currency0:   common.HexToAddress("0x1000"),
		Currency1:   common.HexToAddress("0x2000"),
		Fee:         3000,
		TickSpacing: 60,
		Hooks:       common.HexToAddress("0x40c0"),
	}
	claimID := common.HexToHash("0xabc").Hex()
	holder := common.HexToAddress("0xa1").Hex()
	snap := model.Snapshot{
		Block:    1234,
		Pools:    []model.PoolState{{Key: key, LastTick: -120}},
		Buckets:  []model.BucketState{{PoolID: key.ID().Hex(), Tick: 60, ZeroForOne: true, Amount: "115792089237316195423570985008687907853269984665640564039457584007913129639935"}},
		Claims: []model.ClaimState{{
			ID:         claimID,
			Pool:       key,
			Tick:       60,
			ZeroForOne: true,
			OpenRound:  1,
			Rounds: []model.RoundState{
				{Round: 0, Executed: true, TotalSupply: "4", Claimable: "7"},
				{Round: 1, TotalSupply: "10", Claimable: "0"},
			},
		}},
		Balances: []model.BalanceState{
			{ClaimID: claimID, Round: 0, Holder: holder, Amount: "4"},
			{ClaimID: claimID, Round: 1, Holder: holder, Amount: "10"},
		},
	}
	name := t.Name()
	if err := store.SaveSnapshot(ctx, name, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveSnapshot(ctx, name, snap); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, ok, err := store.LoadSnapshot(ctx, name)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(snap, got) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", snap, got)
	}

	if _, ok, err := store.LoadSnapshot(ctx, name+"-missing"); err != nil || ok {
		t.Fatalf("missing snapshot: ok=%t err=%v", ok, err)
	}
}

func TestState(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	name := t.Name()
	if err := store.SaveState(ctx, name, 42); err != nil {
		t.Fatalf("save: %v", err)
	}
	block, ok, err := store.LoadState(ctx, name)
	if err != nil || !ok || block != 42 {
		t.Fatalf("load: block=%d ok=%t err=%v", block, ok, err)
	}
}
