package math

import (
	"math/big"
)

// AmountsForLiquidity returns the signed token amounts that correspond to
// applying liquidityDelta over [sqrtRatioLower, sqrtRatioUpper) at the
// current price. Positive results are owed to the pool (deposits, rounded
// up), negative results are owed to the caller (withdrawals, rounded down
// in magnitude). The asymmetry is deliberate: depositing and withdrawing
// the same nominal liquidity may differ by one base unit, with the
// difference retained by the pool.
func AmountsForLiquidity(sqrtRatioCurrent, sqrtRatioLower, sqrtRatioUpper, liquidityDelta *big.Int) (amount0, amount1 *big.Int, err error) {
	if liquidityDelta.Sign() == 0 {
		return new(big.Int), new(big.Int), nil
	}

	deposit := liquidityDelta.Sign() > 0
	liq := new(big.Int).Abs(liquidityDelta)

	mode := RoundDown
	if deposit {
		mode = RoundUp
	}

	amount0 = new(big.Int)
	amount1 = new(big.Int)

	switch {
	case sqrtRatioCurrent.Cmp(sqrtRatioLower) < 0:
		// Price below the range: all token0.
		amount0, err = Amount0Delta(sqrtRatioLower, sqrtRatioUpper, liq, mode)
		if err != nil {
			return nil, nil, err
		}
	case sqrtRatioCurrent.Cmp(sqrtRatioUpper) < 0:
		// Price inside the range: token0 above current, token1 below.
		amount0, err = Amount0Delta(sqrtRatioCurrent, sqrtRatioUpper, liq, mode)
		if err != nil {
			return nil, nil, err
		}
		amount1 = Amount1Delta(sqrtRatioLower, sqrtRatioCurrent, liq, mode)
	default:
		// Price at or above the range: all token1.
		amount1 = Amount1Delta(sqrtRatioLower, sqrtRatioUpper, liq, mode)
	}

	if !deposit {
		amount0.Neg(amount0)
		amount1.Neg(amount1)
	}
	return amount0, amount1, nil
}
