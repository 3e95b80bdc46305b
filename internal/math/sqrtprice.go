package math

import (
	"errors"
	"math/big"
)

var (
	ErrLiquidityZero    = errors.New("liquidity must be greater than zero")
	ErrSqrtPriceZero    = errors.New("sqrt ratio must be greater than zero")
	ErrPriceUnderflow   = errors.New("sqrt ratio underflow")
	ErrAmountTooLarge   = errors.New("amount exceeds available reserves")
	sqrtRatioResolution = uint(96)
)

// NextSqrtRatioFromAmount0 returns the sqrt ratio after adding (or, when
// add is false, removing) amount of token0 at the given liquidity.
// Rounds up: token0 moves price down, and the post-trade price must not
// be lower than the exact value, or the pool would give out too much.
func NextSqrtRatioFromAmount0(sqrtRatio, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtRatio), nil
	}

	numerator := new(big.Int).Lsh(liquidity, sqrtRatioResolution)
	product := new(big.Int).Mul(amount, sqrtRatio)

	if add {
		// Prefer the full-precision form when the denominator fits.
		denominator := new(big.Int).Add(numerator, product)
		if denominator.Cmp(numerator) >= 0 {
			return MulDiv(numerator, sqrtRatio, denominator, RoundUp), nil
		}
		denominator = new(big.Int).Div(numerator, sqrtRatio)
		denominator.Add(denominator, amount)
		return DivRoundingUp(numerator, denominator), nil
	}

	if numerator.Cmp(product) <= 0 {
		return nil, ErrAmountTooLarge
	}
	denominator := new(big.Int).Sub(numerator, product)
	return MulDiv(numerator, sqrtRatio, denominator, RoundUp), nil
}

// NextSqrtRatioFromAmount1 returns the sqrt ratio after adding (or
// removing) amount of token1. Rounds down for the same pool-favoring
// reason: token1 moves price up.
func NextSqrtRatioFromAmount1(sqrtRatio, liquidity, amount *big.Int, add bool) (*big.Int, error) {
	if add {
		quotient := MulDiv(amount, Q96, liquidity, RoundDown)
		return new(big.Int).Add(sqrtRatio, quotient), nil
	}

	quotient := MulDiv(amount, Q96, liquidity, RoundUp)
	if sqrtRatio.Cmp(quotient) <= 0 {
		return nil, ErrPriceUnderflow
	}
	return new(big.Int).Sub(sqrtRatio, quotient), nil
}

// NextSqrtRatioFromInput computes the price after consuming amountIn of
// the input token. decreasing=true means the input is token0 (price moves
// down toward lower sqrt ratios).
func NextSqrtRatioFromInput(sqrtRatio, liquidity, amountIn *big.Int, decreasing bool) (*big.Int, error) {
	if sqrtRatio.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}
	if liquidity.Sign() <= 0 {
		return nil, ErrLiquidityZero
	}
	if decreasing {
		return NextSqrtRatioFromAmount0(sqrtRatio, liquidity, amountIn, true)
	}
	return NextSqrtRatioFromAmount1(sqrtRatio, liquidity, amountIn, true)
}

// Amount0Delta returns the token0 amount between two sqrt ratios at the
// given liquidity: liquidity * (sqrtB - sqrtA) / (sqrtB * sqrtA).
func Amount0Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, mode RoundingMode) (*big.Int, error) {
	if sqrtRatioA.Cmp(sqrtRatioB) > 0 {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	if sqrtRatioA.Sign() <= 0 {
		return nil, ErrSqrtPriceZero
	}

	numerator1 := new(big.Int).Lsh(liquidity, sqrtRatioResolution)
	numerator2 := new(big.Int).Sub(sqrtRatioB, sqrtRatioA)

	if mode == RoundUp {
		term := MulDiv(numerator1, numerator2, sqrtRatioB, RoundUp)
		return DivRoundingUp(term, sqrtRatioA), nil
	}
	term := MulDiv(numerator1, numerator2, sqrtRatioB, RoundDown)
	return term.Div(term, sqrtRatioA), nil
}

// Amount1Delta returns the token1 amount between two sqrt ratios:
// liquidity * (sqrtB - sqrtA) / 2^96.
func Amount1Delta(sqrtRatioA, sqrtRatioB, liquidity *big.Int, mode RoundingMode) *big.Int {
	if sqrtRatioA.Cmp(sqrtRatioB) > 0 {
		sqrtRatioA, sqrtRatioB = sqrtRatioB, sqrtRatioA
	}
	diff := new(big.Int).Sub(sqrtRatioB, sqrtRatioA)
	return MulDiv(liquidity, diff, Q96, mode)
}
