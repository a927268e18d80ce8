package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNewPoolKeySortsCurrencies(t *testing.T) {
	a := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	b := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	key := NewPoolKey(a, b, 3000, 60, common.Address{})
	if key.Currency0 != b || key.Currency1 != a {
		t.Fatalf("currencies not sorted: %+v", key)
	}
	if err := key.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if key.Currency(true) != b || key.OutputCurrency(true) != a {
		t.Fatalf("direction mapping mismatch")
	}
}

func TestPoolKeyIDDeterministic(t *testing.T) {
	key := NewPoolKey(
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		3000, 60, common.HexToAddress("0x3333333333333333333333333333333333333333"),
	)
	if key.ID() != key.ID() {
		t.Fatalf("pool id not deterministic")
	}

	other := key
	other.Fee = 500
	if key.ID() == other.ID() {
		t.Fatalf("different fee must change pool id")
	}
}

func TestPoolKeyValidate(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	if err := (PoolKey{Currency0: token, Currency1: token, TickSpacing: 60}).Validate(); err == nil {
		t.Fatalf("expected error for identical currencies")
	}

	key := NewPoolKey(token, common.HexToAddress("0x2222222222222222222222222222222222222222"), 3000, 0, common.Address{})
	if err := key.Validate(); err == nil {
		t.Fatalf("expected error for zero tick spacing")
	}
}
