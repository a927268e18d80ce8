// Package custody holds per-account token balances for offline runs.
package custody

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/journal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

type balanceKey struct {
	account  common.Address
	currency common.Address
}

// Balance is one account's holding of one currency.
type Balance struct {
	Account  common.Address
	Currency common.Address
	Amount   *uint256.Int
}

// Vault is a token ledger. A transfer either moves the full amount or nothing.
// It is not safe for concurrent use.
type Vault struct {
	balances map[balanceKey]*uint256.Int
	journal  *journal.Journal
}

// NewVault builds a vault recording undo steps into j (which may be nil).
func NewVault(j *journal.Journal) *Vault {
	return &Vault{
		balances: make(map[balanceKey]*uint256.Int),
		journal:  j,
	}
}

// BalanceOf returns account's holding of currency.
func (v *Vault) BalanceOf(account, currency common.Address) *uint256.Int {
	if bal, ok := v.balances[balanceKey{account, currency}]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

// Credit mints amount of currency to account.
func (v *Vault) Credit(account, currency common.Address, amount *uint256.Int) error {
	key := balanceKey{account, currency}
	next, overflow := new(uint256.Int).AddOverflow(v.BalanceOf(account, currency), amount)
	if overflow {
		return fmt.Errorf("%w: %s %s", ErrBalanceOverflow, account.Hex(), currency.Hex())
	}
	v.set(key, next)
	return nil
}

// Transfer moves amount of currency from one account to another.
func (v *Vault) Transfer(from, to, currency common.Address, amount *uint256.Int) error {
	fromBal := v.BalanceOf(from, currency)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientFunds, from.Hex(), fromBal.Dec(), currency.Hex(), amount.Dec())
	}
	if from == to {
		return nil
	}
	toBal, overflow := new(uint256.Int).AddOverflow(v.BalanceOf(to, currency), amount)
	if overflow {
		return fmt.Errorf("%w: %s %s", ErrBalanceOverflow, to.Hex(), currency.Hex())
	}
	v.set(balanceKey{from, currency}, new(uint256.Int).Sub(fromBal, amount))
	v.set(balanceKey{to, currency}, toBal)
	return nil
}

// Balances returns every non-zero balance ordered by account then currency.
func (v *Vault) Balances() []Balance {
	out := make([]Balance, 0, len(v.balances))
	for key, amount := range v.balances {
		out = append(out, Balance{Account: key.account, Currency: key.currency, Amount: amount.Clone()})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].Account[:], out[j].Account[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(out[i].Currency[:], out[j].Currency[:]) < 0
	})
	return out
}

func (v *Vault) set(key balanceKey, amount *uint256.Int) {
	prev, existed := v.balances[key]
	if amount.IsZero() {
		delete(v.balances, key)
	} else {
		v.balances[key] = amount
	}
	v.journal.Append(func() {
		if existed {
			v.balances[key] = prev
		} else {
			delete(v.balances, key)
		}
	})
}

// Custodian moves funds between callers and one custody account.
type Custodian struct {
	vault   *Vault
	account common.Address
}

// Custodian binds the vault to a custody account.
func (v *Vault) Custodian(account common.Address) *Custodian {
	return &Custodian{vault: v, account: account}
}

// Account returns the custody account.
func (c *Custodian) Account() common.Address {
	return c.account
}

// Deposit pulls amount of currency from the caller into custody.
func (c *Custodian) Deposit(ctx context.Context, from common.Address, currency common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.vault.Transfer(from, c.account, currency, amount)
}

// Withdraw pays amount of currency out of custody.
func (c *Custodian) Withdraw(ctx context.Context, to common.Address, currency common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.vault.Transfer(c.account, to, currency, amount)
}
