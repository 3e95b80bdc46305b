package math

import (
	"errors"
	"math/big"
)

// Tick bounds: 1.0001^887272 is just above the largest representable
// Q64.96 sqrt ratio, mirroring the canonical concentrated-liquidity range.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is TickToSqrtRatio(MinTick).
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is TickToSqrtRatio(MaxTick).
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtRatioOutOfRange = errors.New("sqrt ratio out of range")
)

// sqrtRatioMagics[i] is sqrt(1/1.0001^(2^i)) in Q128 format. Multiplying
// the running ratio by the magic for each set bit of |tick| yields
// sqrt(1/1.0001^|tick|); positive ticks invert the result.
var sqrtRatioMagics = mustParseMagics([]string{
	"fffcb933bd6fad37aa2d162d1a594001",
	"fff97272373d413259a46990580e213a",
	"fff2e50f5f656932ef12357cf3c7fdcc",
	"ffe5caca7e10e4e61c3624eaa0941cd0",
	"ffcb9843d60f6159c9db58835c926644",
	"ff973b41fa98c081472e6896dfb254c0",
	"ff2ea16466c96a3843ec78b326b52861",
	"fe5dee046a99a2a811c461f1969c3053",
	"fcbe86c7900a88aedcffc83b479aa3a4",
	"f987a7253ac413176f2b074cf7815e54",
	"f3392b0822b70005940c7a398e4b70f3",
	"e7159475a2c29b7443b29c7fa6e889d9",
	"d097f3bdfd2022b8845ad8f792aa5825",
	"a9f746462d870fdf8a65dc1f90e061e5",
	"70d869a156d2a1b890bb3df62baf32f7",
	"31be135f97d08fd981231505542fcfa6",
	"9aa508b5b7a84e1c677de54f3e99bc9",
	"5d6af8dedb81196699c329225ee604",
	"2216e584f5fa1ea926041bedfe98",
	"48a170391f7dc42444e8fa2",
})

func mustParseMagics(hexes []string) []*big.Int {
	magics := make([]*big.Int, len(hexes))
	for i, h := range hexes {
		v, ok := new(big.Int).SetString(h, 16)
		if !ok {
			panic("bad sqrt ratio magic: " + h)
		}
		magics[i] = v
	}
	return magics
}

// TickToSqrtRatio converts a tick index to its Q64.96 sqrt price ratio:
// sqrt(1.0001^tick) * 2^96. The conversion is exact (bitwise identical to
// the canonical fixed-point evaluation), not a float approximation.
func TickToSqrtRatio(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&1 != 0 {
		ratio.Set(sqrtRatioMagics[0])
	} else {
		ratio.Lsh(one, 128)
	}
	for i := 1; i < len(sqrtRatioMagics); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, sqrtRatioMagics[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(MaxUint256, ratio)
	}

	// Q128 -> Q96, rounding up so that SqrtRatioToTick of the result
	// always returns the input tick.
	rem := getInt().And(ratio, new(big.Int).Sub(new(big.Int).Lsh(one, 32), one))
	result := new(big.Int).Rsh(ratio, 32)
	if rem.Sign() != 0 {
		result.Add(result, one)
	}
	putInt(rem)
	return result, nil
}

// SqrtRatioToTick returns the tick t such that
// TickToSqrtRatio(t) <= sqrtRatio < TickToSqrtRatio(t+1).
// Binary search over the tick range; the forward conversion is cheap
// enough that the ~20 probes beat carrying a log-space constant table.
func SqrtRatioToTick(sqrtRatio *big.Int) (int32, error) {
	if sqrtRatio.Cmp(MinSqrtRatio) < 0 || sqrtRatio.Cmp(MaxSqrtRatio) > 0 {
		return 0, ErrSqrtRatioOutOfRange
	}

	low, high := MinTick, MaxTick
	for low < high {
		mid := low + (high-low+1)/2
		midRatio, err := TickToSqrtRatio(mid)
		if err != nil {
			return 0, err
		}
		if midRatio.Cmp(sqrtRatio) <= 0 {
			low = mid
		} else {
			high = mid - 1
		}
	}
	return low, nil
}
