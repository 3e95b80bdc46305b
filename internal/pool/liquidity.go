package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	fpmath "AMMLedger/internal/math"
)

// UpdatePositionResult reports the balance effects of a position change.
// Amount0 and Amount1 are signed from the pool's perspective: positive
// amounts are owed to the pool by the caller, negative amounts are paid
// out. Collected fees are folded into the amounts and also reported
// separately.
type UpdatePositionResult struct {
	Amount0 *big.Int
	Amount1 *big.Int
	Fees0   *uint256.Int
	Fees1   *uint256.Int
}

func (p *Pool) checkTickBounds(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidTickBounds, lower, upper)
	}
	if lower < fpmath.MinTick || upper > fpmath.MaxTick {
		return fmt.Errorf("%w: [%d, %d)", fpmath.ErrTickOutOfRange, lower, upper)
	}
	spacing := p.Key.TickSpacing
	if lower%spacing != 0 || upper%spacing != 0 {
		return fmt.Errorf("%w: [%d, %d) spacing=%d", ErrTickNotSpaced, lower, upper, spacing)
	}
	return nil
}

// UpdatePosition changes a position's liquidity by the signed delta and
// settles its accrued fees. Fees stop compounding the moment they are
// earned; they accrue to the position as token amounts and are paid out
// whenever the position is touched, including delta zero.
func (p *Pool) UpdatePosition(key PositionKey, liquidityDelta *big.Int) (*UpdatePositionResult, error) {
	if err := p.checkTickBounds(key.Lower, key.Upper); err != nil {
		return nil, err
	}

	pos := p.positions[key]
	if pos == nil {
		if liquidityDelta.Sign() < 0 {
			return nil, ErrPositionNotFound
		}
		pos = newPosition()
	}

	nextLiquidity := new(big.Int).Add(pos.Liquidity.ToBig(), liquidityDelta)
	if nextLiquidity.Sign() < 0 {
		return nil, fmt.Errorf("%w: have=%s delta=%s", ErrLiquidityUnderflow, pos.Liquidity, liquidityDelta)
	}
	if !fpmath.FitsUint128(nextLiquidity) {
		return nil, ErrLiquidityOverflow
	}

	// Settle fees against the pre-update checkpoints before any state
	// changes shift fee growth inside the range.
	inside0, inside1 := p.feeGrowthInside(key.Lower, key.Upper)
	fees0 := feesAccrued(pos.Liquidity, pos.FeeGrowthInsideLast0, inside0)
	fees1 := feesAccrued(pos.Liquidity, pos.FeeGrowthInsideLast1, inside1)

	if liquidityDelta.Sign() != 0 {
		if err := p.updateTick(key.Lower, liquidityDelta, false); err != nil {
			return nil, err
		}
		if err := p.updateTick(key.Upper, liquidityDelta, true); err != nil {
			return nil, err
		}
		if key.Lower <= p.Tick && p.Tick < key.Upper {
			active := new(big.Int).Add(p.Liquidity.ToBig(), liquidityDelta)
			if active.Sign() < 0 || !fpmath.FitsUint128(active) {
				return nil, ErrLiquidityOverflow
			}
			p.Liquidity, _ = uint256.FromBig(active)
		}
	}

	lowerRatio, err := fpmath.TickToSqrtRatio(key.Lower)
	if err != nil {
		return nil, err
	}
	upperRatio, err := fpmath.TickToSqrtRatio(key.Upper)
	if err != nil {
		return nil, err
	}
	amount0, amount1, err := fpmath.AmountsForLiquidity(p.SqrtRatio, lowerRatio, upperRatio, liquidityDelta)
	if err != nil {
		return nil, err
	}
	if !fpmath.FitsInt128(amount0) || !fpmath.FitsInt128(amount1) {
		return nil, ErrDepositOverflow
	}

	amount0.Sub(amount0, fees0.ToBig())
	amount1.Sub(amount1, fees1.ToBig())

	nl, _ := uint256.FromBig(nextLiquidity)
	pos.Liquidity = nl
	pos.FeeGrowthInsideLast0 = inside0
	pos.FeeGrowthInsideLast1 = inside1

	if pos.Liquidity.IsZero() {
		delete(p.positions, key)
	} else {
		p.positions[key] = pos
	}

	return &UpdatePositionResult{
		Amount0: amount0,
		Amount1: amount1,
		Fees0:   fees0,
		Fees1:   fees1,
	}, nil
}

// CollectFees settles a position's accrued fees without changing its
// liquidity.
func (p *Pool) CollectFees(key PositionKey) (*UpdatePositionResult, error) {
	if p.positions[key] == nil {
		return nil, ErrPositionNotFound
	}
	return p.UpdatePosition(key, new(big.Int))
}

// feesAccrued converts a fee growth difference into token amounts. The
// growth values wrap mod 2^256; the subtraction is therefore performed
// in wrapping arithmetic before scaling by liquidity.
func feesAccrued(liquidity, last, current *uint256.Int) *uint256.Int {
	if liquidity.IsZero() {
		return uint256.NewInt(0)
	}
	diff := new(uint256.Int).Sub(current, last)
	product := new(big.Int).Mul(liquidity.ToBig(), diff.ToBig())
	product.Rsh(product, 128)
	fees, _ := uint256.FromBig(product)
	if fees == nil {
		fees = uint256.NewInt(0)
	}
	return fees
}
