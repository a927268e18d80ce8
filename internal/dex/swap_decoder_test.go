package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestSwapDecoder(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := types.Log{
		Address:     pool,
		Topics:      []common.Hash{decoder.Topic(), topicFromAddress(sender), topicFromAddress(recipient)},
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       1,
	}
	if !decoder.CanDecode(log) {
		t.Fatalf("swap log not recognized")
	}

	swap, err := decoder.Decode(log)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch")
	}
	if swap.Pool != pool.Hex() || swap.BlockNumber != 12345 || swap.LogIndex != 1 {
		t.Fatalf("log position mismatch: %+v", swap)
	}
}

func TestSwapDecoderRejects(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	cases := []struct {
		name string
		log  types.Log
	}{
		{"no topics", types.Log{}},
		{"other event", types.Log{Topics: []common.Hash{common.HexToHash("0x01")}}},
		{"missing indexed topics", types.Log{Topics: []common.Hash{decoder.Topic()}}},
		{"bad data", types.Log{Topics: []common.Hash{decoder.Topic(), {}, {}}, Data: []byte{1, 2, 3}}},
	}
	for _, c := range cases {
		if _, err := decoder.Decode(c.log); err == nil {
			t.Fatalf("%s: expected error", c.name)
		}
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
