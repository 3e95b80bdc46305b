package math

import (
	"math/big"
	"sync"
)

// Fixed-point formats used by the pricing engine:
//
//	sqrt price ratios are Q64.96 (sqrt(price) * 2^96)
//	fee growth accumulators are Q128.128 (amount * 2^128 / liquidity)
var (
	// Q96 is the UQ64.96 fixed-point number representing 1.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// Q128 is the UQ128.128 fixed-point number representing 1.
	Q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	MaxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	MinInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))

	one = big.NewInt(1)
)

// FeeDenominator is the fee unit: fees are expressed in parts-per-million.
const FeeDenominator = 1_000_000

// RoundingMode selects the rounding direction for a division.
// Every boundary in the engine rounds in the pool's favor: amounts owed
// to the pool round up, amounts paid out by the pool round down.
type RoundingMode int

const (
	RoundDown RoundingMode = iota
	RoundUp
)

// intPool recycles big.Int scratch values for intermediate products.
var intPool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt() *big.Int {
	return intPool.Get().(*big.Int)
}

func putInt(v *big.Int) {
	v.SetInt64(0)
	intPool.Put(v)
}

// MulDiv returns (a * b) / c with the requested rounding direction.
// The intermediate product is computed at full precision.
func MulDiv(a, b, c *big.Int, mode RoundingMode) *big.Int {
	product := getInt()
	product.Mul(a, b)

	result := new(big.Int)
	rem := getInt()
	result.QuoRem(product, c, rem)
	if mode == RoundUp && rem.Sign() != 0 {
		result.Add(result, one)
	}

	putInt(product)
	putInt(rem)
	return result
}

// DivRoundingUp returns ceil(a / b).
func DivRoundingUp(a, b *big.Int) *big.Int {
	result := new(big.Int)
	rem := getInt()
	result.QuoRem(a, b, rem)
	if rem.Sign() != 0 {
		result.Add(result, one)
	}
	putInt(rem)
	return result
}

// FitsUint128 reports whether v is in [0, 2^128).
func FitsUint128(v *big.Int) bool {
	return v.Sign() >= 0 && v.Cmp(MaxUint128) <= 0
}

// FitsInt128 reports whether v is in [-2^127, 2^127).
func FitsInt128(v *big.Int) bool {
	return v.Cmp(MinInt128) >= 0 && v.Cmp(MaxInt128) <= 0
}
