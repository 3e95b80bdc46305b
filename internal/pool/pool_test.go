package pool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	fpmath "AMMLedger/internal/math"
)

var (
	token0 = common.HexToAddress("0x0000000000000000000000000000000000000001")
	token1 = common.HexToAddress("0x0000000000000000000000000000000000000002")
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func testKey(fee uint64, spacing int32) Key {
	return Key{Token0: token0, Token1: token1, Fee: fee, TickSpacing: spacing}
}

func mustInitPool(t *testing.T, fee uint64, spacing, tick int32) *Pool {
	t.Helper()
	p, err := NewRegistry().Initialize(testKey(fee, spacing), tick)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return p
}

func mustUpdate(t *testing.T, p *Pool, key PositionKey, delta int64) *UpdatePositionResult {
	t.Helper()
	res, err := p.UpdatePosition(key, big.NewInt(delta))
	if err != nil {
		t.Fatalf("update position: %v", err)
	}
	return res
}

// ==========================================================================
// Keys and registry
// ==========================================================================

func TestKeyValidation(t *testing.T) {
	cases := []struct {
		name string
		key  Key
		want error
	}{
		{"equal tokens", Key{Token0: token0, Token1: token0, TickSpacing: 1}, ErrTokensEqual},
		{"unsorted", Key{Token0: token1, Token1: token0, TickSpacing: 1}, ErrTokensUnsorted},
		{"zero spacing", Key{Token0: token0, Token1: token1, TickSpacing: 0}, ErrInvalidTickSpacing},
		{"huge spacing", Key{Token0: token0, Token1: token1, TickSpacing: MaxTickSpacing + 1}, ErrInvalidTickSpacing},
		{"fee too high", Key{Token0: token0, Token1: token1, TickSpacing: 1, Fee: fpmath.FeeDenominator}, ErrInvalidFee},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.key.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
	if err := testKey(3000, 60).Validate(); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

func TestKeyIDDistinguishesMarkets(t *testing.T) {
	a := testKey(3000, 60).ID()
	b := testKey(3000, 10).ID()
	c := testKey(500, 60).ID()
	if a == b || a == c || b == c {
		t.Fatal("distinct keys produced colliding identifiers")
	}
	if a != testKey(3000, 60).ID() {
		t.Fatal("identifier not deterministic")
	}
}

func TestRegistryDoubleInitialize(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Initialize(testKey(3000, 60), 0); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	if _, err := r.Initialize(testKey(3000, 60), 100); !errors.Is(err, ErrPoolAlreadyInitialized) {
		t.Fatalf("got %v, want ErrPoolAlreadyInitialized", err)
	}
	if r.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", r.Len())
	}
}

func TestInitializeSetsPriceFromTick(t *testing.T) {
	p := mustInitPool(t, 3000, 60, 0)
	if p.SqrtRatio.Cmp(fpmath.Q96) != 0 {
		t.Fatalf("sqrt ratio at tick 0 = %s, want %s", p.SqrtRatio, fpmath.Q96)
	}
	if !p.Liquidity.IsZero() {
		t.Fatal("fresh pool has nonzero liquidity")
	}
}

// ==========================================================================
// Position updates
// ==========================================================================

func TestUpdatePositionDepositAndWithdraw(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	key := PositionKey{Owner: owner, Lower: -100, Upper: 100}

	dep := mustUpdate(t, p, key, 1_000_000)
	if dep.Amount0.Sign() <= 0 || dep.Amount1.Sign() <= 0 {
		t.Fatalf("in-range deposit amounts = (%s, %s), want both positive", dep.Amount0, dep.Amount1)
	}
	if p.Liquidity.Uint64() != 1_000_000 {
		t.Fatalf("active liquidity = %s, want 1000000", p.Liquidity)
	}

	wd := mustUpdate(t, p, key, -1_000_000)
	if wd.Amount0.Sign() > 0 || wd.Amount1.Sign() > 0 {
		t.Fatalf("withdrawal amounts = (%s, %s), want both non-positive", wd.Amount0, wd.Amount1)
	}
	// Withdrawal rounding never returns more than was deposited.
	if new(big.Int).Neg(wd.Amount0).Cmp(dep.Amount0) > 0 {
		t.Fatalf("withdrew %s of token0, deposited %s", new(big.Int).Neg(wd.Amount0), dep.Amount0)
	}
	if new(big.Int).Neg(wd.Amount1).Cmp(dep.Amount1) > 0 {
		t.Fatalf("withdrew %s of token1, deposited %s", new(big.Int).Neg(wd.Amount1), dep.Amount1)
	}
	if !p.Liquidity.IsZero() {
		t.Fatalf("active liquidity = %s after full withdrawal", p.Liquidity)
	}
	if p.GetPosition(key) != nil {
		t.Fatal("emptied position still present")
	}
}

func TestUpdatePositionOutOfRangeSingleSided(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)

	above := mustUpdate(t, p, PositionKey{Owner: owner, Lower: 100, Upper: 200}, 1_000_000)
	if above.Amount0.Sign() <= 0 || above.Amount1.Sign() != 0 {
		t.Fatalf("range above price: amounts = (%s, %s), want (positive, 0)", above.Amount0, above.Amount1)
	}
	below := mustUpdate(t, p, PositionKey{Owner: owner, Lower: -200, Upper: -100}, 1_000_000)
	if below.Amount0.Sign() != 0 || below.Amount1.Sign() <= 0 {
		t.Fatalf("range below price: amounts = (%s, %s), want (0, positive)", below.Amount0, below.Amount1)
	}
	// Neither range covers the current price.
	if !p.Liquidity.IsZero() {
		t.Fatalf("active liquidity = %s, want 0", p.Liquidity)
	}
}

func TestUpdatePositionBoundsValidation(t *testing.T) {
	p := mustInitPool(t, 0, 10, 0)

	cases := []struct {
		name string
		key  PositionKey
		want error
	}{
		{"inverted", PositionKey{Owner: owner, Lower: 10, Upper: 10}, ErrInvalidTickBounds},
		{"unspaced lower", PositionKey{Owner: owner, Lower: -15, Upper: 20}, ErrTickNotSpaced},
		{"unspaced upper", PositionKey{Owner: owner, Lower: -10, Upper: 25}, ErrTickNotSpaced},
		{"below min", PositionKey{Owner: owner, Lower: fpmath.MinTick - 10, Upper: 0}, fpmath.ErrTickOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.UpdatePosition(tc.key, big.NewInt(1)); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := p.UpdatePosition(PositionKey{Owner: owner, Lower: -10, Upper: 10}, big.NewInt(-1)); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("got %v, want ErrPositionNotFound", err)
	}
}

func TestTickNetLiquiditySumsToZero(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)

	mustUpdate(t, p, PositionKey{Owner: owner, Lower: -50, Upper: 50}, 1_000)
	mustUpdate(t, p, PositionKey{Owner: owner, Lower: -50, Upper: 200}, 2_500)
	mustUpdate(t, p, PositionKey{Owner: owner, Lower: 100, Upper: 200}, 7_000)
	mustUpdate(t, p, PositionKey{Owner: owner, Lower: -50, Upper: 50}, -400)

	sum := new(big.Int)
	for _, tick := range p.InitializedTicks() {
		sum.Add(sum, p.TickAt(tick).LiquidityNet)
	}
	if sum.Sign() != 0 {
		t.Fatalf("sum of net liquidity = %s, want 0", sum)
	}
}

func TestTickClearedWhenGrossReachesZero(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	key := PositionKey{Owner: owner, Lower: -50, Upper: 50}

	mustUpdate(t, p, key, 1_000)
	if p.TickAt(-50) == nil || p.TickAt(50) == nil {
		t.Fatal("boundary ticks not initialized")
	}
	if !p.bitmap.isSet(-50, 1) || !p.bitmap.isSet(50, 1) {
		t.Fatal("boundary ticks not set in bitmap")
	}

	mustUpdate(t, p, key, -1_000)
	if p.TickAt(-50) != nil || p.TickAt(50) != nil {
		t.Fatal("boundary ticks not cleared")
	}
	if p.bitmap.isSet(-50, 1) || p.bitmap.isSet(50, 1) {
		t.Fatal("boundary ticks still set in bitmap")
	}
}

func TestSetPositionExtraData(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	key := PositionKey{Owner: owner, Lower: -10, Upper: 10}

	if err := p.SetPositionExtraData(key, []byte("x")); !errors.Is(err, ErrZeroLiquidityPosition) {
		t.Fatalf("got %v, want ErrZeroLiquidityPosition", err)
	}

	mustUpdate(t, p, key, 100)
	if err := p.SetPositionExtraData(key, []byte("meta")); err != nil {
		t.Fatalf("set extra data: %v", err)
	}
	if string(p.GetPosition(key).ExtraData) != "meta" {
		t.Fatal("extra data not stored")
	}

	mustUpdate(t, p, key, -100)
	if p.GetPosition(key) != nil {
		t.Fatal("extra data survived full withdrawal")
	}
}

func TestUpdatePositionMatchesClosedFormAmounts(t *testing.T) {
	p := mustInitPool(t, 0, 10, 7)
	key := PositionKey{Owner: owner, Lower: -500, Upper: 500}
	delta := big.NewInt(3_000_000)

	lower, _ := fpmath.TickToSqrtRatio(key.Lower)
	upper, _ := fpmath.TickToSqrtRatio(key.Upper)
	want0, want1, err := fpmath.AmountsForLiquidity(p.SqrtRatio, lower, upper, delta)
	if err != nil {
		t.Fatalf("closed form: %v", err)
	}

	res, err := p.UpdatePosition(key, delta)
	if err != nil {
		t.Fatalf("update position: %v", err)
	}
	if res.Amount0.Cmp(want0) != 0 || res.Amount1.Cmp(want1) != 0 {
		t.Fatalf("amounts (%s, %s) diverge from closed form (%s, %s)",
			res.Amount0, res.Amount1, want0, want1)
	}
}

// ==========================================================================
// Swaps
// ==========================================================================

func depositWide(t *testing.T, p *Pool, liquidity int64) PositionKey {
	t.Helper()
	key := PositionKey{Owner: owner, Lower: -10_000, Upper: 10_000}
	mustUpdate(t, p, key, liquidity)
	return key
}

func TestSwapExactInNoFee(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	depositWide(t, p, 10_000_000_000)

	res, err := p.Swap(SwapParams{Amount: big.NewInt(10_000)}, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.Delta0.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("delta0 = %s, want 10000", res.Delta0)
	}
	if res.Delta1.Sign() >= 0 {
		t.Fatalf("delta1 = %s, want negative", res.Delta1)
	}
	out := new(big.Int).Neg(res.Delta1)
	// Near tick zero the price is ~1, so the output approaches the
	// input without ever exceeding it.
	if out.Cmp(big.NewInt(10_000)) > 0 {
		t.Fatalf("output %s exceeds input", out)
	}
	if out.Cmp(big.NewInt(9_900)) < 0 {
		t.Fatalf("output %s implausibly small for deep liquidity", out)
	}
	if res.SqrtRatioAfter.Cmp(fpmath.Q96) >= 0 {
		t.Fatal("price did not decrease for token0 input")
	}
	if res.Partial {
		t.Fatal("fully consumed swap flagged partial")
	}
	if !res.FeesPaid.IsZero() {
		t.Fatalf("fees = %s on zero-fee pool", res.FeesPaid)
	}
}

func TestSwapDirectionToken1(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	depositWide(t, p, 10_000_000_000)

	res, err := p.Swap(SwapParams{Amount: big.NewInt(10_000), IsToken1: true}, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.Delta1.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("delta1 = %s, want 10000", res.Delta1)
	}
	if res.Delta0.Sign() >= 0 {
		t.Fatalf("delta0 = %s, want negative", res.Delta0)
	}
	if res.SqrtRatioAfter.Cmp(fpmath.Q96) <= 0 {
		t.Fatal("price did not increase for token1 input")
	}
}

func TestSwapFeeAccrualAndCollection(t *testing.T) {
	p := mustInitPool(t, 10_000, 1, 0) // 1% fee
	key := depositWide(t, p, 10_000_000_000)

	res, err := p.Swap(SwapParams{Amount: big.NewInt(1_000_000)}, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.FeesPaid.IsZero() {
		t.Fatal("no fees accrued")
	}
	// The fee is roughly 1% of the input.
	if res.FeesPaid.Uint64() < 9_000 || res.FeesPaid.Uint64() > 10_100 {
		t.Fatalf("fees = %s, want about 10000", res.FeesPaid)
	}
	if p.FeeGrowthGlobal0.IsZero() {
		t.Fatal("fee growth not committed")
	}

	collected, err := p.CollectFees(key)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if collected.Fees0.IsZero() {
		t.Fatal("sole liquidity provider collected no fees")
	}
	if collected.Fees0.Gt(res.FeesPaid) {
		t.Fatalf("collected %s, more than the %s paid", collected.Fees0, res.FeesPaid)
	}
	if collected.Amount0.Sign() >= 0 {
		t.Fatalf("fee collection amount0 = %s, want negative", collected.Amount0)
	}

	// A second collect with no new swaps yields nothing.
	again, err := p.CollectFees(key)
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if !again.Fees0.IsZero() || !again.Fees1.IsZero() {
		t.Fatal("fees collected twice")
	}
}

func TestSwapProtocolFeeShare(t *testing.T) {
	p := mustInitPool(t, 10_000, 1, 0)
	depositWide(t, p, 10_000_000_000)

	res, err := p.Swap(SwapParams{Amount: big.NewInt(1_000_000)}, 100_000) // 10% of fees
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if res.ProtocolFees.IsZero() {
		t.Fatal("no protocol fees taken")
	}
	if res.ProtocolFees.Gt(res.FeesPaid) {
		t.Fatalf("protocol fees %s exceed total fees %s", res.ProtocolFees, res.FeesPaid)
	}
	tenx := new(uint256.Int).Mul(res.ProtocolFees, uint256.NewInt(10))
	diff := new(uint256.Int).Sub(res.FeesPaid, tenx)
	if diff.Gt(uint256.NewInt(16)) {
		t.Fatalf("protocol share off: fees=%s protocol=%s", res.FeesPaid, res.ProtocolFees)
	}
}

func TestSwapCrossesTickAndDropsLiquidity(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	mustUpdate(t, p, PositionKey{Owner: owner, Lower: -10, Upper: 10}, 1_000_000)

	limit, err := fpmath.TickToSqrtRatio(-30)
	if err != nil {
		t.Fatalf("tick ratio: %v", err)
	}
	res, err := p.Swap(SwapParams{
		Amount:           big.NewInt(100_000_000),
		SqrtRatioLimit:   limit,
		AllowPartialFill: true,
	}, 0)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if !res.Partial {
		t.Fatal("swap past all liquidity not flagged partial")
	}
	if !res.LiquidityAfter.IsZero() {
		t.Fatalf("liquidity after = %s, want 0 below the range", res.LiquidityAfter)
	}
	if res.TickAfter >= -10 {
		t.Fatalf("tick after = %d, want below -10", res.TickAfter)
	}
	if res.SqrtRatioAfter.Cmp(limit) != 0 {
		t.Fatalf("price stopped at %s, want limit %s", res.SqrtRatioAfter, limit)
	}
	// The crossed lower tick flipped its fee growth checkpoint.
	if p.TickAt(-10) == nil {
		t.Fatal("lower tick disappeared")
	}
}

func TestSwapNotEnoughLiquidity(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)

	_, err := p.Swap(SwapParams{Amount: big.NewInt(1_000)}, 0)
	if !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("got %v, want ErrNotEnoughLiquidity", err)
	}
}

func TestSwapLimitWithoutPartialFillFails(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	mustUpdate(t, p, PositionKey{Owner: owner, Lower: -10, Upper: 10}, 1_000_000)

	limit, err := fpmath.TickToSqrtRatio(-5)
	if err != nil {
		t.Fatalf("tick ratio: %v", err)
	}
	// The limit binds long before the input is consumed; without the
	// partial-fill mode that is a failure.
	_, err = p.Swap(SwapParams{
		Amount:         big.NewInt(100_000_000),
		SqrtRatioLimit: limit,
	}, 0)
	if !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("got %v, want ErrNotEnoughLiquidity", err)
	}
}

func TestSwapParameterValidation(t *testing.T) {
	p := mustInitPool(t, 0, 1, 0)
	depositWide(t, p, 1_000_000)

	if _, err := p.Swap(SwapParams{Amount: big.NewInt(0)}, 0); !errors.Is(err, ErrZeroSwapAmount) {
		t.Fatalf("zero amount: got %v, want ErrZeroSwapAmount", err)
	}

	// A limit above the current price is invalid for a token0 input.
	above, err := fpmath.TickToSqrtRatio(100)
	if err != nil {
		t.Fatalf("tick ratio: %v", err)
	}
	if _, err := p.Swap(SwapParams{Amount: big.NewInt(10), SqrtRatioLimit: above}, 0); !errors.Is(err, ErrInvalidSqrtRatioLimit) {
		t.Fatalf("wrong-side limit: got %v, want ErrInvalidSqrtRatioLimit", err)
	}
}

func TestSwapSkipAheadDoesNotChangeResult(t *testing.T) {
	build := func() *Pool {
		p := mustInitPool(t, 3000, 10, 0)
		mustUpdate(t, p, PositionKey{Owner: owner, Lower: -20_000, Upper: 20_000}, 5_000_000_000)
		mustUpdate(t, p, PositionKey{Owner: owner, Lower: -5_000, Upper: -3_000}, 2_000_000_000)
		return p
	}

	a, err := build().Swap(SwapParams{Amount: big.NewInt(50_000_000)}, 0)
	if err != nil {
		t.Fatalf("swap without skip: %v", err)
	}
	b, err := build().Swap(SwapParams{Amount: big.NewInt(50_000_000), SkipAhead: 8}, 0)
	if err != nil {
		t.Fatalf("swap with skip: %v", err)
	}
	if a.Delta0.Cmp(b.Delta0) != 0 || a.Delta1.Cmp(b.Delta1) != 0 {
		t.Fatalf("skip ahead changed deltas: (%s, %s) vs (%s, %s)", a.Delta0, a.Delta1, b.Delta0, b.Delta1)
	}
	if a.SqrtRatioAfter.Cmp(b.SqrtRatioAfter) != 0 || a.TickAfter != b.TickAfter {
		t.Fatal("skip ahead changed final price")
	}
}

// ==========================================================================
// Tick bitmap
// ==========================================================================

func TestBitmapFlipAndSearch(t *testing.T) {
	b := newTickBitmap()
	const spacing = 10

	for _, tick := range []int32{-3000, -500, 0, 500, 3000} {
		b.flip(tick, spacing)
	}

	next, ok := b.nextBelow(400, spacing, 100)
	if !ok || next != 0 {
		t.Fatalf("nextBelow(400) = (%d, %v), want (0, true)", next, ok)
	}
	next, ok = b.nextBelow(0, spacing, 100)
	if !ok || next != 0 {
		t.Fatalf("nextBelow(0) = (%d, %v), want (0, true)", next, ok)
	}
	next, ok = b.nextBelow(-1, spacing, 100)
	if !ok || next != -500 {
		t.Fatalf("nextBelow(-1) = (%d, %v), want (-500, true)", next, ok)
	}
	next, ok = b.nextAbove(0, spacing, 100)
	if !ok || next != 500 {
		t.Fatalf("nextAbove(0) = (%d, %v), want (500, true)", next, ok)
	}
	next, ok = b.nextAbove(500, spacing, 100)
	if !ok || next != 3000 {
		t.Fatalf("nextAbove(500) = (%d, %v), want (3000, true)", next, ok)
	}

	b.flip(0, spacing)
	next, ok = b.nextBelow(400, spacing, 100)
	if !ok || next != -500 {
		t.Fatalf("after clearing 0: nextBelow(400) = (%d, %v), want (-500, true)", next, ok)
	}
}

func TestBitmapBudgetStopsAtWordBoundary(t *testing.T) {
	b := newTickBitmap()
	const spacing = 1

	b.flip(-10_000, spacing)

	// With a zero budget the search gives up at the edge of the first
	// word instead of walking all the way to the distant tick.
	next, ok := b.nextBelow(0, spacing, 0)
	if ok {
		t.Fatalf("found tick %d with exhausted budget", next)
	}
	if next <= -10_000 || next > 0 {
		t.Fatalf("boundary = %d, want inside (-10000, 0]", next)
	}

	// A generous budget finds it.
	next, ok = b.nextBelow(0, spacing, 1_000)
	if !ok || next != -10_000 {
		t.Fatalf("nextBelow = (%d, %v), want (-10000, true)", next, ok)
	}
}
