package sim

import (
	"math/big"

	"github.com/holiman/uint256"

	"limitScope/internal/model"
)

// BalanceLine is one vault balance in a report.
type BalanceLine struct {
	Account  string `json:"account"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// Report is the end state of a run.
type Report struct {
	Results  []Result       `json:"results"`
	Balances []BalanceLine  `json:"balances"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// Report collects results with the vault balances and engine snapshot.
func (e *Environment) Report(results []Result) Report {
	balances := e.Vault.Balances()
	lines := make([]BalanceLine, 0, len(balances))
	for _, b := range balances {
		lines = append(lines, BalanceLine{
			Account:  b.Account.Hex(),
			Currency: b.Currency.Hex(),
			Amount:   b.Amount.Dec(),
		})
	}
	return Report{
		Results:  results,
		Balances: lines,
		Snapshot: e.Engine.Snapshot(),
	}
}

// FormatAmount renders value in whole-token units with the given decimals.
func FormatAmount(value *uint256.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.Dec()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Rat).SetFrac(value.ToBig(), denom).FloatString(int(decimals))
}
