package amm

import (
	"math/big"
)

const quotePrecision = 256

var tickBase = new(big.Float).SetPrec(quotePrecision).Quo(
	new(big.Float).SetPrec(quotePrecision).SetInt64(10001),
	new(big.Float).SetPrec(quotePrecision).SetInt64(10000),
)

// Price returns 1.0001^tick, the amount of currency1 one unit of currency0 buys.
func Price(tick int32) *big.Float {
	exp := int64(tick)
	if exp < 0 {
		exp = -exp
	}
	result := new(big.Float).SetPrec(quotePrecision).SetInt64(1)
	base := new(big.Float).SetPrec(quotePrecision).Set(tickBase)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
		exp >>= 1
	}
	if tick < 0 {
		result.Quo(new(big.Float).SetPrec(quotePrecision).SetInt64(1), result)
	}
	return result
}

// Quote returns the output of an exact-input swap of amountIn at tick, less a fee in
// hundredths of a basis point, rounded down.
func Quote(amountIn *big.Int, tick int32, fee uint32, zeroForOne bool) *big.Int {
	value := new(big.Float).SetPrec(quotePrecision).SetInt(amountIn)
	price := Price(tick)
	if zeroForOne {
		value.Mul(value, price)
	} else {
		value.Quo(value, price)
	}
	if fee > feeDenominator {
		fee = feeDenominator
	}
	value.Mul(value, new(big.Float).SetPrec(quotePrecision).SetInt64(int64(feeDenominator-fee)))
	value.Quo(value, new(big.Float).SetPrec(quotePrecision).SetInt64(feeDenominator))
	out, _ := value.Int(nil)
	return out
}
