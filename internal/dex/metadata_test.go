package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// fakeCaller answers eth_call by 4-byte selector.
type fakeCaller struct {
	responses map[[4]byte][]byte
	blocks    []*big.Int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, block)
	var selector [4]byte
	copy(selector[:], msg.Data)
	resp, ok := f.responses[selector]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (f *fakeCaller) respond(t *testing.T, parsed abi.ABI, method string, values ...interface{}) {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("no method %s", method)
	}
	out, err := m.Outputs.Pack(values...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if f.responses == nil {
		f.responses = make(map[[4]byte][]byte)
	}
	var selector [4]byte
	copy(selector[:], m.ID)
	f.responses[selector] = out
}

func TestFetchPoolMeta(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	caller := &fakeCaller{}
	caller.respond(t, poolABI, "token0", token0)
	caller.respond(t, poolABI, "token1", token1)
	caller.respond(t, poolABI, "fee", big.NewInt(2500))
	caller.respond(t, poolABI, "tickSpacing", big.NewInt(50))
	caller.respond(t, poolABI, "slot0", big.NewInt(79228162514264337), big.NewInt(-887), uint16(1), uint16(2), uint16(3), uint8(0), true)

	meta, err := FetchPoolMeta(context.Background(), caller, common.HexToAddress("0x01"), 100)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Token0 != token0.Hex() || meta.Token1 != token1.Hex() || meta.Fee != 2500 || meta.TickSpacing != 50 {
		t.Fatalf("meta mismatch: %+v", meta)
	}
	if meta.Slot0 == nil || meta.Slot0.Tick != -887 || meta.Slot0.SqrtPriceX96 != "79228162514264337" {
		t.Fatalf("slot0 mismatch: %+v", meta.Slot0)
	}
	for _, b := range caller.blocks {
		if b == nil || b.Uint64() != 100 {
			t.Fatalf("call not pinned to block: %v", b)
		}
	}

	key := meta.Key(common.HexToAddress("0x40c0"))
	if key.Currency0 != token0 || key.TickSpacing != 50 {
		t.Fatalf("key mismatch: %+v", key)
	}
}

func TestFetchTokenMetaFallsBackToBytes32(t *testing.T) {
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	var symbol [32]byte
	copy(symbol[:], "MKR")

	caller := &fakeCaller{}
	caller.respond(t, stringABI, "decimals", uint8(18))
	// string and bytes32 symbol share a selector; a bytes32 payload fails string decoding.
	caller.respond(t, bytes32ABI, "symbol", symbol)

	meta, err := FetchTokenMeta(context.Background(), caller, common.HexToAddress("0x02"), nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "MKR" {
		t.Fatalf("meta mismatch: %+v", meta)
	}

	cache := NewTokenMetaCache()
	first, err := CachedTokenMeta(context.Background(), caller, cache, common.HexToAddress("0x02"), nil)
	if err != nil {
		t.Fatalf("cached: %v", err)
	}
	calls := len(caller.blocks)
	second, err := CachedTokenMeta(context.Background(), caller, cache, common.HexToAddress("0x02"), nil)
	if err != nil || second != first || len(caller.blocks) != calls {
		t.Fatalf("cache miss: %v %+v", err, second)
	}
}

func TestFetchPoolMetaCallFailure(t *testing.T) {
	_, err := FetchPoolMeta(context.Background(), &fakeCaller{}, common.HexToAddress("0x01"), 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, err := FetchPoolMeta(context.Background(), nil, common.Address{}, 0); err == nil {
		t.Fatalf("expected nil caller error")
	}
}
