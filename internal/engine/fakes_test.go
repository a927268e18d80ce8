package engine

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"limitScope/internal/model"
)

var (
	hookAddr = common.HexToAddress("0x00000000000000000000000000000000000040c0")
	alice    = common.HexToAddress("0xa1")
	bob      = common.HexToAddress("0xb0")
	carol    = common.HexToAddress("0xc0")

	errRejected = errors.New("rejected")
)

func testKey() model.PoolKey {
	return model.PoolKey{
		Currency0:   common.HexToAddress("0x1000"),
		Currency1:   common.HexToAddress("0x2000"),
		Fee:         3000,
		TickSpacing: 60,
		Hooks:       hookAddr,
	}
}

type swapCall struct {
	key    model.PoolKey
	params model.SwapParams
}

// fakeAMM fills every swap in full and pays out amount*num/den.
type fakeAMM struct {
	num, den int64
	fail     bool
	swaps    []swapCall
	settled  map[common.Address]*big.Int
	taken    map[common.Address]*big.Int
}

func newFakeAMM(num, den int64) *fakeAMM {
	return &fakeAMM{
		num:     num,
		den:     den,
		settled: make(map[common.Address]*big.Int),
		taken:   make(map[common.Address]*big.Int),
	}
}

func (f *fakeAMM) Swap(_ context.Context, _ common.Address, key model.PoolKey, params model.SwapParams) (model.BalanceDelta, error) {
	if f.fail {
		return model.BalanceDelta{}, errRejected
	}
	f.swaps = append(f.swaps, swapCall{key: key, params: params})
	in := new(big.Int).Set(params.AmountSpecified)
	out := new(big.Int).Mul(in, big.NewInt(f.num))
	out.Quo(out, big.NewInt(f.den))
	out.Neg(out)
	if params.ZeroForOne {
		return model.NewBalanceDelta(in, out), nil
	}
	return model.NewBalanceDelta(out, in), nil
}

func (f *fakeAMM) Settle(_ context.Context, _ common.Address, currency common.Address, amount *big.Int) error {
	add(f.settled, currency, amount)
	return nil
}

func (f *fakeAMM) Take(_ context.Context, currency common.Address, _ common.Address, amount *big.Int) error {
	add(f.taken, currency, amount)
	return nil
}

func add(m map[common.Address]*big.Int, k common.Address, v *big.Int) {
	if m[k] == nil {
		m[k] = new(big.Int)
	}
	m[k].Add(m[k], v)
}

// fakeTransfers counts the net custody held per currency.
type fakeTransfers struct {
	failDeposit  bool
	failWithdraw bool
	held         map[common.Address]*big.Int
	paid         map[common.Address]map[common.Address]*big.Int
}

func newFakeTransfers() *fakeTransfers {
	return &fakeTransfers{
		held: make(map[common.Address]*big.Int),
		paid: make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (f *fakeTransfers) Deposit(_ context.Context, _ common.Address, currency common.Address, amount *uint256.Int) error {
	if f.failDeposit {
		return errRejected
	}
	add(f.held, currency, amount.ToBig())
	return nil
}

func (f *fakeTransfers) Withdraw(_ context.Context, to common.Address, currency common.Address, amount *uint256.Int) error {
	if f.failWithdraw {
		return errRejected
	}
	add(f.held, currency, new(big.Int).Neg(amount.ToBig()))
	if f.paid[to] == nil {
		f.paid[to] = make(map[common.Address]*big.Int)
	}
	add(f.paid[to], currency, amount.ToBig())
	return nil
}

func (f *fakeTransfers) paidTo(to, currency common.Address) uint64 {
	if v := f.paid[to][currency]; v != nil {
		return v.Uint64()
	}
	return 0
}

type recordingSink struct {
	batches [][]model.EngineEvent
}

func (s *recordingSink) PutEvents(events []model.EngineEvent) error {
	s.batches = append(s.batches, append([]model.EngineEvent(nil), events...))
	return nil
}

func (s *recordingSink) kinds() []string {
	var out []string
	for _, batch := range s.batches {
		for _, ev := range batch {
			out = append(out, ev.Kind)
		}
	}
	return out
}
