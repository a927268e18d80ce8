package custody

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/journal"
)

var (
	token   = common.HexToAddress("0x1000")
	alice   = common.HexToAddress("0xa1")
	custody = common.HexToAddress("0xc0")
)

func TestTransfer(t *testing.T) {
	v := NewVault(nil)
	if err := v.Credit(alice, token, uint256.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := v.Transfer(alice, custody, token, uint256.NewInt(11)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if got := v.BalanceOf(alice, token); got.Uint64() != 10 {
		t.Fatalf("failed transfer moved funds: %s", got.Dec())
	}
	if err := v.Transfer(alice, custody, token, uint256.NewInt(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := v.BalanceOf(custody, token); got.Uint64() != 10 {
		t.Fatalf("custody: %s", got.Dec())
	}
	if bals := v.Balances(); len(bals) != 1 || bals[0].Account != custody {
		t.Fatalf("balances %+v", bals)
	}
}

func TestCreditOverflow(t *testing.T) {
	v := NewVault(nil)
	top := new(uint256.Int).SetAllOne()
	if err := v.Credit(alice, token, top); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := v.Credit(alice, token, uint256.NewInt(1)); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestCustodianRevert(t *testing.T) {
	j := journal.New()
	v := NewVault(j)
	if err := v.Credit(alice, token, uint256.NewInt(5)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	snap := j.Snapshot()
	c := v.Custodian(custody)
	ctx := context.Background()
	if err := c.Deposit(ctx, alice, token, uint256.NewInt(5)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := c.Withdraw(ctx, alice, token, uint256.NewInt(6)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	j.RevertToSnapshot(snap)
	if got := v.BalanceOf(alice, token); got.Uint64() != 5 {
		t.Fatalf("alice after revert: %s", got.Dec())
	}
	if got := v.BalanceOf(custody, token); !got.IsZero() {
		t.Fatalf("custody after revert: %s", got.Dec())
	}
}
