// Package claims tracks fungible multi-holder claims on order buckets.
//
// A claim id is derived from (pool key, lower tick, direction). Claim units are minted
// 1:1 with deposited principal into the claim's open round. Executing the bucket closes
// the round: its units stop resting, its swap proceeds become claimable, and a new round
// opens for later deposits. Each closed round is redeemed pro-rata to the unit balances
// minted in it, so later deposits never share earlier proceeds.
package claims

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"limitScope/internal/journal"
	"limitScope/internal/model"
)

var (
	ErrClaimNotFound       = errors.New("claim not found")
	ErrInsufficientBalance = errors.New("insufficient claim balance")
	ErrSupplyOverflow      = errors.New("claim supply overflow")
	ErrMetadataMismatch    = errors.New("claim metadata mismatch")
	ErrNoOpenUnits         = errors.New("claim has no open units")
)

var (
	claimArgs     abi.Arguments
	claimArgsOnce sync.Once
	claimArgsErr  error
)

func claimArguments() (abi.Arguments, error) {
	claimArgsOnce.Do(func() {
		poolArgs, err := model.PoolKeyArguments()
		if err != nil {
			claimArgsErr = err
			return
		}
		tickType, err := abi.NewType("int24", "", nil)
		if err != nil {
			claimArgsErr = err
			return
		}
		boolType, err := abi.NewType("bool", "", nil)
		if err != nil {
			claimArgsErr = err
			return
		}
		claimArgs = append(abi.Arguments{}, poolArgs...)
		claimArgs = append(claimArgs, abi.Argument{Type: tickType}, abi.Argument{Type: boolType})
	})
	return claimArgs, claimArgsErr
}

// DeriveID returns keccak256(abi.encode(key, tick, zeroForOne)).
func DeriveID(key model.PoolKey, tick int32, zeroForOne bool) common.Hash {
	args, err := claimArguments()
	if err != nil {
		panic(err)
	}
	values := append(key.EncodeValues(), big.NewInt(int64(tick)), zeroForOne)
	packed, err := args.Pack(values...)
	if err != nil {
		panic(fmt.Errorf("pack claim id: %w", err))
	}
	return crypto.Keccak256Hash(packed)
}

// Round is one execution round of a claim.
type Round struct {
	Number      uint64
	Executed    bool
	TotalSupply *uint256.Int
	Claimable   *uint256.Int
}

// Claim is the aggregate state of one claim id. Pool, Tick and ZeroForOne never change
// after creation. TotalSupply and Claimable sum every outstanding round; Executed is set
// while some executed round still has units outstanding.
type Claim struct {
	ID          common.Hash
	Pool        model.PoolKey
	Tick        int32
	ZeroForOne  bool
	OpenRound   uint64
	Executed    bool
	TotalSupply *uint256.Int
	Claimable   *uint256.Int
	Rounds      []Round
}

type round struct {
	executed  bool
	supply    *uint256.Int
	claimable *uint256.Int
	balances  map[common.Address]*uint256.Int
}

type claimState struct {
	id         common.Hash
	pool       model.PoolKey
	tick       int32
	zeroForOne bool
	open       uint64
	rounds     map[uint64]*round
}

func (c *claimState) numbers() []uint64 {
	out := make([]uint64, 0, len(c.rounds))
	for n := range c.rounds {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *claimState) view() Claim {
	out := Claim{
		ID:          c.id,
		Pool:        c.pool,
		Tick:        c.tick,
		ZeroForOne:  c.zeroForOne,
		OpenRound:   c.open,
		TotalSupply: new(uint256.Int),
		Claimable:   new(uint256.Int),
	}
	for _, n := range c.numbers() {
		r := c.rounds[n]
		out.TotalSupply.Add(out.TotalSupply, r.supply)
		out.Claimable.Add(out.Claimable, r.claimable)
		if r.executed {
			out.Executed = true
		}
		out.Rounds = append(out.Rounds, Round{
			Number:      n,
			Executed:    r.executed,
			TotalSupply: r.supply.Clone(),
			Claimable:   r.claimable.Clone(),
		})
	}
	return out
}

// Registry owns claim metadata, rounds, claimable proceeds and holder balances.
// It is not safe for concurrent use.
type Registry struct {
	claims  map[common.Hash]*claimState
	journal *journal.Journal
}

// New builds a registry recording undo steps into j (which may be nil).
func New(j *journal.Journal) *Registry {
	return &Registry{
		claims:  make(map[common.Hash]*claimState),
		journal: j,
	}
}

// EnsureCreated records metadata on the first call for id and is a no-op afterwards.
func (r *Registry) EnsureCreated(id common.Hash, key model.PoolKey, tick int32, zeroForOne bool) error {
	if existing, ok := r.claims[id]; ok {
		if existing.pool != key || existing.tick != tick || existing.zeroForOne != zeroForOne {
			return fmt.Errorf("%w: %s", ErrMetadataMismatch, id.Hex())
		}
		return nil
	}
	r.claims[id] = &claimState{
		id:         id,
		pool:       key,
		tick:       tick,
		zeroForOne: zeroForOne,
		rounds:     make(map[uint64]*round),
	}
	r.journal.Append(func() { delete(r.claims, id) })
	return nil
}

// Exists reports whether id has been created.
func (r *Registry) Exists(id common.Hash) bool {
	_, ok := r.claims[id]
	return ok
}

// Claim returns a copy of the claim state.
func (r *Registry) Claim(id common.Hash) (Claim, bool) {
	c, ok := r.claims[id]
	if !ok {
		return Claim{}, false
	}
	return c.view(), true
}

// BalanceOf returns holder's units of id across every round.
func (r *Registry) BalanceOf(id common.Hash, holder common.Address) *uint256.Int {
	return r.sumBalances(id, holder, func(*round, bool) bool { return true })
}

// OpenBalance returns holder's units of id that are still resting.
func (r *Registry) OpenBalance(id common.Hash, holder common.Address) *uint256.Int {
	return r.sumBalances(id, holder, func(_ *round, open bool) bool { return open })
}

// ExecutedBalance returns holder's units of id in executed rounds.
func (r *Registry) ExecutedBalance(id common.Hash, holder common.Address) *uint256.Int {
	return r.sumBalances(id, holder, func(rd *round, _ bool) bool { return rd.executed })
}

func (r *Registry) sumBalances(id common.Hash, holder common.Address, include func(*round, bool) bool) *uint256.Int {
	out := new(uint256.Int)
	c, ok := r.claims[id]
	if !ok {
		return out
	}
	for n, rd := range c.rounds {
		if bal, ok := rd.balances[holder]; ok && include(rd, n == c.open) {
			out.Add(out, bal)
		}
	}
	return out
}

// TotalSupply returns the outstanding units of id across every round.
func (r *Registry) TotalSupply(id common.Hash) *uint256.Int {
	c, ok := r.claims[id]
	if !ok {
		return new(uint256.Int)
	}
	return c.view().TotalSupply
}

// OpenSupply returns the units of id minted since its last execution.
func (r *Registry) OpenSupply(id common.Hash) *uint256.Int {
	c, ok := r.claims[id]
	if !ok {
		return new(uint256.Int)
	}
	if rd, ok := c.rounds[c.open]; ok {
		return rd.supply.Clone()
	}
	return new(uint256.Int)
}

// ClaimableAmount returns the unredeemed proceeds of id.
func (r *Registry) ClaimableAmount(id common.Hash) *uint256.Int {
	c, ok := r.claims[id]
	if !ok {
		return new(uint256.Int)
	}
	return c.view().Claimable
}

// Mint credits holder with amount units in the open round of id.
func (r *Registry) Mint(id common.Hash, holder common.Address, amount *uint256.Int) error {
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, id.Hex())
	}
	rd := r.openRound(c)
	supply, overflow := new(uint256.Int).AddOverflow(rd.supply, amount)
	if overflow {
		return fmt.Errorf("%w: %s", ErrSupplyOverflow, id.Hex())
	}
	r.setSupply(rd, supply)
	r.setBalance(rd, holder, new(uint256.Int).Add(balanceIn(rd, holder), amount))
	return nil
}

// Burn removes amount resting units of id from holder.
func (r *Registry) Burn(id common.Hash, holder common.Address, amount *uint256.Int) error {
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, id.Hex())
	}
	rd, ok := c.rounds[c.open]
	bal := new(uint256.Int)
	if ok {
		bal = balanceIn(rd, holder)
	}
	if bal.Lt(amount) {
		return fmt.Errorf("%w: holder %s has %s, burn %s", ErrInsufficientBalance, holder.Hex(), bal.Dec(), amount.Dec())
	}
	if !ok || amount.IsZero() {
		return nil
	}
	r.setSupply(rd, new(uint256.Int).Sub(rd.supply, amount))
	r.setBalance(rd, holder, new(uint256.Int).Sub(bal, amount))
	r.dropIfSpent(c, c.open)
	return nil
}

// AccumulateClaimable adds executed proceeds to the open round of id.
func (r *Registry) AccumulateClaimable(id common.Hash, amount *uint256.Int) error {
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, id.Hex())
	}
	rd := r.openRound(c)
	next, overflow := new(uint256.Int).AddOverflow(rd.claimable, amount)
	if overflow {
		return fmt.Errorf("%w: claimable for %s", ErrSupplyOverflow, id.Hex())
	}
	r.setClaimable(rd, next)
	return nil
}

// MarkExecuted closes the open round of id and opens the next one.
func (r *Registry) MarkExecuted(id common.Hash) error {
	c, ok := r.claims[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrClaimNotFound, id.Hex())
	}
	rd, ok := c.rounds[c.open]
	if !ok || rd.supply.IsZero() {
		return fmt.Errorf("%w: %s", ErrNoOpenUnits, id.Hex())
	}
	prevExecuted := rd.executed
	rd.executed = true
	prevOpen := c.open
	c.open++
	r.journal.Append(func() {
		rd.executed = prevExecuted
		c.open = prevOpen
	})
	return nil
}

// Redeemable returns the sum over executed rounds of
// floor(claimable * balance / supply).
func (r *Registry) Redeemable(id common.Hash, holder common.Address) *uint256.Int {
	out := new(uint256.Int)
	c, ok := r.claims[id]
	if !ok {
		return out
	}
	for _, rd := range c.rounds {
		bal, held := rd.balances[holder]
		if !rd.executed || !held || rd.supply.IsZero() {
			continue
		}
		out.Add(out, proRata(rd.claimable, bal, rd.supply))
	}
	return out
}

// Redeem burns the holder's units in every executed round and removes the matching
// share of each round's claimable. Claimable and supply shrink together, so the
// per-unit rate for remaining holders never drops below the rate at execution, and
// the last holder of a round takes what is left. A share that floors to zero is
// burned for nothing. A round whose last unit is burned is dropped.
func (r *Registry) Redeem(id common.Hash, holder common.Address) (units, amount *uint256.Int, err error) {
	c, ok := r.claims[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrClaimNotFound, id.Hex())
	}
	units, amount = new(uint256.Int), new(uint256.Int)
	for _, n := range c.numbers() {
		rd := c.rounds[n]
		bal, held := rd.balances[holder]
		if !rd.executed || !held {
			continue
		}
		if rd.supply.Lt(bal) {
			return nil, nil, fmt.Errorf("%w: round %d supply %s below balance %s", ErrInsufficientBalance, n, rd.supply.Dec(), bal.Dec())
		}
		share := proRata(rd.claimable, bal, rd.supply)
		r.setSupply(rd, new(uint256.Int).Sub(rd.supply, bal))
		r.setBalance(rd, holder, new(uint256.Int))
		r.setClaimable(rd, new(uint256.Int).Sub(rd.claimable, share))
		r.dropIfSpent(c, n)
		units.Add(units, bal)
		amount.Add(amount, share)
	}
	return units, amount, nil
}

// Claims returns every claim ordered by id.
func (r *Registry) Claims() []Claim {
	out := make([]Claim, 0, len(r.claims))
	for _, c := range r.claims {
		out = append(out, c.view())
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out
}

// Holding is one non-zero balance in one round.
type Holding struct {
	ID     common.Hash
	Round  uint64
	Holder common.Address
	Amount *uint256.Int
}

// Holdings returns every non-zero balance ordered by id, round, then holder.
func (r *Registry) Holdings() []Holding {
	out := make([]Holding, 0)
	for id, c := range r.claims {
		for n, rd := range c.rounds {
			for holder, amount := range rd.balances {
				out = append(out, Holding{ID: id, Round: n, Holder: holder, Amount: amount.Clone()})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].ID[:], out[j].ID[:]); c != 0 {
			return c < 0
		}
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return bytes.Compare(out[i].Holder[:], out[j].Holder[:]) < 0
	})
	return out
}

// Restore installs a persisted claim, its rounds and their holdings without
// journaling. Holdings of other claims are ignored.
func (r *Registry) Restore(c Claim, holdings []Holding) {
	state := &claimState{
		id:         c.ID,
		pool:       c.Pool,
		tick:       c.Tick,
		zeroForOne: c.ZeroForOne,
		open:       c.OpenRound,
		rounds:     make(map[uint64]*round, len(c.Rounds)),
	}
	for _, rd := range c.Rounds {
		state.rounds[rd.Number] = &round{
			executed:  rd.Executed,
			supply:    rd.TotalSupply.Clone(),
			claimable: rd.Claimable.Clone(),
			balances:  make(map[common.Address]*uint256.Int),
		}
	}
	for _, h := range holdings {
		rd, ok := state.rounds[h.Round]
		if h.ID != c.ID || !ok || h.Amount.IsZero() {
			continue
		}
		rd.balances[h.Holder] = h.Amount.Clone()
	}
	r.claims[c.ID] = state
}

func (r *Registry) openRound(c *claimState) *round {
	if rd, ok := c.rounds[c.open]; ok {
		return rd
	}
	rd := &round{
		supply:    new(uint256.Int),
		claimable: new(uint256.Int),
		balances:  make(map[common.Address]*uint256.Int),
	}
	n := c.open
	c.rounds[n] = rd
	r.journal.Append(func() { delete(c.rounds, n) })
	return rd
}

// dropIfSpent removes round n once it has no units left.
func (r *Registry) dropIfSpent(c *claimState, n uint64) {
	rd, ok := c.rounds[n]
	if !ok || !rd.supply.IsZero() || len(rd.balances) != 0 {
		return
	}
	delete(c.rounds, n)
	r.journal.Append(func() { c.rounds[n] = rd })
}

func balanceIn(rd *round, holder common.Address) *uint256.Int {
	if bal, ok := rd.balances[holder]; ok {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (r *Registry) setSupply(rd *round, supply *uint256.Int) {
	prev := rd.supply
	rd.supply = supply
	r.journal.Append(func() { rd.supply = prev })
}

func (r *Registry) setClaimable(rd *round, claimable *uint256.Int) {
	prev := rd.claimable
	rd.claimable = claimable
	r.journal.Append(func() { rd.claimable = prev })
}

func (r *Registry) setBalance(rd *round, holder common.Address, amount *uint256.Int) {
	prev, existed := rd.balances[holder]
	if amount.IsZero() {
		delete(rd.balances, holder)
	} else {
		rd.balances[holder] = amount
	}
	r.journal.Append(func() {
		if existed {
			rd.balances[holder] = prev
		} else {
			delete(rd.balances, holder)
		}
	})
}

func proRata(claimable, balance, supply *uint256.Int) *uint256.Int {
	// balance <= supply, so the quotient never exceeds claimable.
	out, _ := new(uint256.Int).MulDivOverflow(claimable, balance, supply)
	return out
}

// Reset drops every claim and balance without journaling.
func (r *Registry) Reset() {
	r.claims = make(map[common.Hash]*claimState)
}
