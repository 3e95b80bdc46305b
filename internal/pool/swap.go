package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	fpmath "AMMLedger/internal/math"
)

// SwapParams describes an exact-input swap against one pool.
type SwapParams struct {
	// Amount is the input amount, in the token selected by IsToken1.
	Amount *big.Int

	// IsToken1 selects the input token. Paying token0 moves the price
	// down, paying token1 moves it up.
	IsToken1 bool

	// SqrtRatioLimit bounds how far the price may move. Nil means the
	// relevant global bound.
	SqrtRatioLimit *big.Int

	// AllowPartialFill makes a swap that stops (at the limit or out of
	// liquidity) before consuming the full input a valid partial
	// result instead of ErrNotEnoughLiquidity.
	AllowPartialFill bool

	// SkipAhead caps how many extra bitmap words each tick search may
	// scan. It is a performance hint for sparse pools and never changes
	// the result.
	SkipAhead uint32
}

// SwapResult reports the balance and state effects of a swap. Deltas
// are signed from the pool's perspective: the input amount is positive,
// the output amount negative.
type SwapResult struct {
	Delta0 *big.Int
	Delta1 *big.Int

	SqrtRatioAfter *big.Int
	TickAfter      int32
	LiquidityAfter *uint256.Int

	// FeesPaid is the total swap fee taken from the input token,
	// including the protocol's share.
	FeesPaid *uint256.Int

	// ProtocolFees is the protocol's cut of FeesPaid, also in the
	// input token.
	ProtocolFees *uint256.Int

	// Partial is set when an explicit price limit stopped the swap
	// before the full input was consumed.
	Partial bool

	// TicksCrossed counts initialized ticks flipped while the price
	// moved.
	TicksCrossed int
}

func (p *Pool) swapLimit(params SwapParams) (*big.Int, error) {
	increasing := params.IsToken1
	limit := params.SqrtRatioLimit
	if limit == nil {
		if increasing {
			return new(big.Int).Set(fpmath.MaxSqrtRatio), nil
		}
		return new(big.Int).Set(fpmath.MinSqrtRatio), nil
	}
	if limit.Cmp(fpmath.MinSqrtRatio) < 0 || limit.Cmp(fpmath.MaxSqrtRatio) > 0 {
		return nil, fpmath.ErrSqrtRatioOutOfRange
	}
	if increasing && limit.Cmp(p.SqrtRatio) < 0 {
		return nil, fmt.Errorf("%w: limit=%s current=%s", ErrInvalidSqrtRatioLimit, limit, p.SqrtRatio)
	}
	if !increasing && limit.Cmp(p.SqrtRatio) > 0 {
		return nil, fmt.Errorf("%w: limit=%s current=%s", ErrInvalidSqrtRatioLimit, limit, p.SqrtRatio)
	}
	return new(big.Int).Set(limit), nil
}

// Swap executes an exact-input swap, walking initialized ticks until the
// input is consumed or the price limit is reached. All rounding favors
// the pool.
func (p *Pool) Swap(params SwapParams, protocolFeeRate uint64) (*SwapResult, error) {
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, ErrZeroSwapAmount
	}
	if !fpmath.FitsInt128(params.Amount) {
		return nil, ErrDepositOverflow
	}

	limit, err := p.swapLimit(params)
	if err != nil {
		return nil, err
	}
	increasing := params.IsToken1

	remaining := new(big.Int).Set(params.Amount)
	amountIn := new(big.Int)
	amountOut := new(big.Int)
	totalFees := uint256.NewInt(0)
	protocolFees := uint256.NewInt(0)

	sqrtRatio := new(big.Int).Set(p.SqrtRatio)
	tick := p.Tick
	liquidity := new(uint256.Int).Set(p.Liquidity)
	feeGrowth := new(uint256.Int)
	if increasing {
		feeGrowth.Set(p.FeeGrowthGlobal1)
	} else {
		feeGrowth.Set(p.FeeGrowthGlobal0)
	}
	ticksCrossed := 0

	for remaining.Sign() > 0 && sqrtRatio.Cmp(limit) != 0 {
		var nextTick int32
		var initialized bool
		if increasing {
			nextTick, initialized = p.bitmap.nextAbove(tick, p.Key.TickSpacing, params.SkipAhead)
		} else {
			nextTick, initialized = p.bitmap.nextBelow(tick, p.Key.TickSpacing, params.SkipAhead)
		}

		tickRatio, err := fpmath.TickToSqrtRatio(nextTick)
		if err != nil {
			return nil, err
		}
		target := tickRatio
		crossesTick := initialized
		if increasing && target.Cmp(limit) > 0 || !increasing && target.Cmp(limit) < 0 {
			target = limit
			crossesTick = false
		}

		if liquidity.IsZero() {
			// Nothing to trade against in this stretch; the price
			// moves to the boundary for free.
			sqrtRatio = new(big.Int).Set(target)
		} else {
			step, err := fpmath.ComputeSwapStep(sqrtRatio, target, liquidity.ToBig(), remaining, p.Key.Fee)
			if err != nil {
				return nil, err
			}

			consumed := new(big.Int).Add(step.AmountIn, step.FeeAmount)
			remaining.Sub(remaining, consumed)
			amountIn.Add(amountIn, consumed)
			amountOut.Add(amountOut, step.AmountOut)

			fee, _ := uint256.FromBig(step.FeeAmount)
			totalFees.Add(totalFees, fee)

			poolFee := new(uint256.Int).Set(fee)
			if protocolFeeRate > 0 {
				cut := new(uint256.Int).Mul(fee, uint256.NewInt(protocolFeeRate))
				cut.Div(cut, uint256.NewInt(fpmath.FeeDenominator))
				protocolFees.Add(protocolFees, cut)
				poolFee.Sub(poolFee, cut)
			}
			if !poolFee.IsZero() {
				growth := new(big.Int).Lsh(poolFee.ToBig(), 128)
				growth.Div(growth, liquidity.ToBig())
				g, _ := uint256.FromBig(growth)
				feeGrowth.Add(feeGrowth, g)
			}

			sqrtRatio = step.NextSqrtRatio
		}

		if crossesTick && sqrtRatio.Cmp(tickRatio) == 0 {
			// Commit fee growth before the flip so the crossed tick
			// checkpoints the post-step value.
			p.commitFeeGrowth(feeGrowth, increasing)
			net := p.crossTick(nextTick)
			ticksCrossed++
			if increasing {
				next := new(big.Int).Add(liquidity.ToBig(), net)
				if next.Sign() < 0 || !fpmath.FitsUint128(next) {
					return nil, ErrLiquidityOverflow
				}
				liquidity, _ = uint256.FromBig(next)
				tick = nextTick
			} else {
				next := new(big.Int).Sub(liquidity.ToBig(), net)
				if next.Sign() < 0 || !fpmath.FitsUint128(next) {
					return nil, ErrLiquidityOverflow
				}
				liquidity, _ = uint256.FromBig(next)
				if nextTick > fpmath.MinTick {
					tick = nextTick - 1
				} else {
					tick = fpmath.MinTick
				}
			}
		} else if sqrtRatio.Cmp(tickRatio) == 0 && !initialized {
			// Reached the boundary of the scanned range; continue the
			// search from there on the next iteration.
			if increasing {
				tick = nextTick
			} else if nextTick > fpmath.MinTick {
				tick = nextTick - 1
			} else {
				tick = fpmath.MinTick
			}
		} else {
			tick, err = fpmath.SqrtRatioToTick(sqrtRatio)
			if err != nil {
				return nil, err
			}
		}
	}

	if remaining.Sign() > 0 && !params.AllowPartialFill {
		return nil, fmt.Errorf("%w: unconsumed=%s", ErrNotEnoughLiquidity, remaining)
	}

	p.commitFeeGrowth(feeGrowth, increasing)
	p.SqrtRatio = sqrtRatio
	p.Tick = tick
	p.Liquidity = liquidity

	delta0 := new(big.Int)
	delta1 := new(big.Int)
	if increasing {
		delta1.Set(amountIn)
		delta0.Neg(amountOut)
	} else {
		delta0.Set(amountIn)
		delta1.Neg(amountOut)
	}

	return &SwapResult{
		Delta0:         delta0,
		Delta1:         delta1,
		SqrtRatioAfter: new(big.Int).Set(sqrtRatio),
		TickAfter:      tick,
		LiquidityAfter: new(uint256.Int).Set(liquidity),
		FeesPaid:       totalFees,
		ProtocolFees:   protocolFees,
		Partial:        remaining.Sign() > 0,
		TicksCrossed:   ticksCrossed,
	}, nil
}

func (p *Pool) commitFeeGrowth(growth *uint256.Int, isToken1 bool) {
	if isToken1 {
		p.FeeGrowthGlobal1 = new(uint256.Int).Set(growth)
	} else {
		p.FeeGrowthGlobal0 = new(uint256.Int).Set(growth)
	}
}
