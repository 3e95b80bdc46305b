package math

import (
	"math/big"
)

// SwapStep is the outcome of consuming input against one contiguous
// liquidity region (no tick boundary inside the region).
type SwapStep struct {
	NextSqrtRatio *big.Int // price after the step
	AmountIn      *big.Int // input consumed, excluding the fee
	AmountOut     *big.Int // output produced
	FeeAmount     *big.Int // fee taken from the input side
}

// ComputeSwapStep advances the price from sqrtRatioCurrent toward
// sqrtRatioTarget, consuming at most amountRemaining of exact input.
// feePips is the fee in parts-per-million, charged on the input side.
// The target binds before the input does when the region's capacity is
// smaller than the remaining amount.
func ComputeSwapStep(sqrtRatioCurrent, sqrtRatioTarget, liquidity, amountRemaining *big.Int, feePips uint64) (SwapStep, error) {
	decreasing := sqrtRatioCurrent.Cmp(sqrtRatioTarget) >= 0

	feeDenom := big.NewInt(FeeDenominator)
	feeFactor := big.NewInt(FeeDenominator - int64(feePips))
	amountLessFee := MulDiv(amountRemaining, feeFactor, feeDenom, RoundDown)

	var step SwapStep
	var err error

	// Capacity of the region: input needed to reach the target exactly.
	var capacityIn *big.Int
	if decreasing {
		capacityIn, err = Amount0Delta(sqrtRatioTarget, sqrtRatioCurrent, liquidity, RoundUp)
		if err != nil {
			return step, err
		}
	} else {
		capacityIn = Amount1Delta(sqrtRatioCurrent, sqrtRatioTarget, liquidity, RoundUp)
	}

	next := new(big.Int)
	if amountLessFee.Cmp(capacityIn) >= 0 {
		next.Set(sqrtRatioTarget)
	} else {
		next, err = NextSqrtRatioFromInput(sqrtRatioCurrent, liquidity, amountLessFee, decreasing)
		if err != nil {
			return step, err
		}
	}
	reachedTarget := next.Cmp(sqrtRatioTarget) == 0

	// Recompute amounts from the actual price movement so rounding never
	// drifts in the caller's favor.
	if decreasing {
		if reachedTarget {
			step.AmountIn = capacityIn
		} else {
			step.AmountIn, err = Amount0Delta(next, sqrtRatioCurrent, liquidity, RoundUp)
			if err != nil {
				return step, err
			}
		}
		step.AmountOut = Amount1Delta(next, sqrtRatioCurrent, liquidity, RoundDown)
	} else {
		if reachedTarget {
			step.AmountIn = capacityIn
		} else {
			step.AmountIn = Amount1Delta(sqrtRatioCurrent, next, liquidity, RoundUp)
		}
		step.AmountOut, err = Amount0Delta(sqrtRatioCurrent, next, liquidity, RoundDown)
		if err != nil {
			return step, err
		}
	}

	if !reachedTarget {
		// Whole remaining input is consumed; the leftover after the
		// recomputed amountIn is the fee.
		step.FeeAmount = new(big.Int).Sub(amountRemaining, step.AmountIn)
	} else {
		step.FeeAmount = MulDiv(step.AmountIn, big.NewInt(int64(feePips)), feeFactor, RoundUp)
	}

	step.NextSqrtRatio = next
	return step, nil
}
