package pool

import (
	"math/big"

	"github.com/holiman/uint256"

	fpmath "AMMLedger/internal/math"
)

// TickInfo holds the per-tick accounting for one initialized tick.
type TickInfo struct {
	// LiquidityGross is the total liquidity of all positions that
	// reference this tick. The tick is initialized iff it is nonzero.
	LiquidityGross *uint256.Int

	// LiquidityNet is added to active liquidity when the price crosses
	// the tick moving up, subtracted moving down.
	LiquidityNet *big.Int

	// Fee growth on the far side of the tick relative to the current
	// price, per unit of liquidity, Q128. Meaningful only relative to
	// the crossing history, not as an absolute value.
	FeeGrowthOutside0 *uint256.Int
	FeeGrowthOutside1 *uint256.Int
}

func newTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:    uint256.NewInt(0),
		LiquidityNet:      new(big.Int),
		FeeGrowthOutside0: uint256.NewInt(0),
		FeeGrowthOutside1: uint256.NewInt(0),
	}
}

func (t *TickInfo) clone() *TickInfo {
	return &TickInfo{
		LiquidityGross:    new(uint256.Int).Set(t.LiquidityGross),
		LiquidityNet:      new(big.Int).Set(t.LiquidityNet),
		FeeGrowthOutside0: new(uint256.Int).Set(t.FeeGrowthOutside0),
		FeeGrowthOutside1: new(uint256.Int).Set(t.FeeGrowthOutside1),
	}
}

// Pool is the full state of one market: current price, active liquidity,
// global fee accumulators, initialized ticks, and open positions.
type Pool struct {
	Key Key

	// SqrtRatio is the current price as a Q64.96 square root ratio of
	// token1 over token0.
	SqrtRatio *big.Int

	// Tick is the index of the current price. The price sits at or
	// above TickToSqrtRatio(Tick) and below the next tick's ratio.
	Tick int32

	// Liquidity currently in range.
	Liquidity *uint256.Int

	// Global fee growth per unit of liquidity, Q128, wrapping.
	FeeGrowthGlobal0 *uint256.Int
	FeeGrowthGlobal1 *uint256.Int

	ticks     map[int32]*TickInfo
	bitmap    *tickBitmap
	positions map[PositionKey]*Position
}

func newPool(key Key, tick int32, sqrtRatio *big.Int) *Pool {
	return &Pool{
		Key:              key,
		SqrtRatio:        new(big.Int).Set(sqrtRatio),
		Tick:             tick,
		Liquidity:        uint256.NewInt(0),
		FeeGrowthGlobal0: uint256.NewInt(0),
		FeeGrowthGlobal1: uint256.NewInt(0),
		ticks:            make(map[int32]*TickInfo),
		bitmap:           newTickBitmap(),
		positions:        make(map[PositionKey]*Position),
	}
}

// TickAt returns the info for an initialized tick, or nil.
func (p *Pool) TickAt(tick int32) *TickInfo {
	return p.ticks[tick]
}

// InitializedTicks returns the indices of all initialized ticks.
func (p *Pool) InitializedTicks() []int32 {
	out := make([]int32, 0, len(p.ticks))
	for t := range p.ticks {
		out = append(out, t)
	}
	return out
}

// feeGrowthInside computes the fee growth accumulated inside the range
// [lower, upper) per unit of liquidity. All arithmetic wraps mod 2^256;
// only differences between observations of the same range are
// meaningful.
func (p *Pool) feeGrowthInside(lower, upper int32) (*uint256.Int, *uint256.Int) {
	lowerInfo := p.ticks[lower]
	upperInfo := p.ticks[upper]

	below0, below1 := uint256.NewInt(0), uint256.NewInt(0)
	if lowerInfo != nil {
		if p.Tick >= lower {
			below0.Set(lowerInfo.FeeGrowthOutside0)
			below1.Set(lowerInfo.FeeGrowthOutside1)
		} else {
			below0.Sub(p.FeeGrowthGlobal0, lowerInfo.FeeGrowthOutside0)
			below1.Sub(p.FeeGrowthGlobal1, lowerInfo.FeeGrowthOutside1)
		}
	}

	above0, above1 := uint256.NewInt(0), uint256.NewInt(0)
	if upperInfo != nil {
		if p.Tick < upper {
			above0.Set(upperInfo.FeeGrowthOutside0)
			above1.Set(upperInfo.FeeGrowthOutside1)
		} else {
			above0.Sub(p.FeeGrowthGlobal0, upperInfo.FeeGrowthOutside0)
			above1.Sub(p.FeeGrowthGlobal1, upperInfo.FeeGrowthOutside1)
		}
	}

	inside0 := new(uint256.Int).Sub(p.FeeGrowthGlobal0, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(uint256.Int).Sub(p.FeeGrowthGlobal1, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// updateTick applies a signed liquidity change to one tick boundary and
// maintains the bitmap. A tick initialized for the first time adopts
// the global fee growth as its outside value when the current price is
// at or above it.
func (p *Pool) updateTick(tick int32, liquidityDelta *big.Int, isUpper bool) error {
	info := p.ticks[tick]
	wasInitialized := info != nil
	if info == nil {
		info = newTickInfo()
	}

	gross := new(big.Int).Add(info.LiquidityGross.ToBig(), liquidityDelta)
	if gross.Sign() < 0 {
		return ErrLiquidityUnderflow
	}
	if !fpmath.FitsUint128(gross) {
		return ErrLiquidityOverflow
	}

	if !wasInitialized && gross.Sign() > 0 {
		if p.Tick >= tick {
			info.FeeGrowthOutside0.Set(p.FeeGrowthGlobal0)
			info.FeeGrowthOutside1.Set(p.FeeGrowthGlobal1)
		}
		p.ticks[tick] = info
		p.bitmap.flip(tick, p.Key.TickSpacing)
	}

	g, _ := uint256.FromBig(gross)
	info.LiquidityGross = g
	if isUpper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}

	if wasInitialized && gross.Sign() == 0 {
		delete(p.ticks, tick)
		p.bitmap.flip(tick, p.Key.TickSpacing)
	}
	return nil
}

// crossTick flips the tick's outside fee growth to the other side of
// the current price and returns its net liquidity change.
func (p *Pool) crossTick(tick int32) *big.Int {
	info := p.ticks[tick]
	if info == nil {
		return new(big.Int)
	}
	info.FeeGrowthOutside0 = new(uint256.Int).Sub(p.FeeGrowthGlobal0, info.FeeGrowthOutside0)
	info.FeeGrowthOutside1 = new(uint256.Int).Sub(p.FeeGrowthGlobal1, info.FeeGrowthOutside1)
	return info.LiquidityNet
}

func (p *Pool) clone() *Pool {
	cp := &Pool{
		Key:              p.Key,
		SqrtRatio:        new(big.Int).Set(p.SqrtRatio),
		Tick:             p.Tick,
		Liquidity:        new(uint256.Int).Set(p.Liquidity),
		FeeGrowthGlobal0: new(uint256.Int).Set(p.FeeGrowthGlobal0),
		FeeGrowthGlobal1: new(uint256.Int).Set(p.FeeGrowthGlobal1),
		ticks:            make(map[int32]*TickInfo, len(p.ticks)),
		bitmap:           newTickBitmap(),
		positions:        make(map[PositionKey]*Position, len(p.positions)),
	}
	for t, info := range p.ticks {
		cp.ticks[t] = info.clone()
	}
	for w, bitsW := range p.bitmap.words {
		cp.bitmap.words[w] = bitsW
	}
	for k, pos := range p.positions {
		cp.positions[k] = pos.clone()
	}
	return cp
}
