package math_test

import (
	"math/big"
	"testing"

	fpmath "AMMLedger/internal/math"
)

// ============================================================================
// Test: TickToSqrtRatio
// ============================================================================

func TestTickToSqrtRatio_ZeroTickIsOne(t *testing.T) {
	ratio, err := fpmath.TickToSqrtRatio(0)
	if err != nil {
		t.Fatalf("TickToSqrtRatio(0): %v", err)
	}
	if ratio.Cmp(fpmath.Q96) != 0 {
		t.Errorf("tick 0 should map to exactly 2^96, got %s", ratio)
	}
}

func TestTickToSqrtRatio_Bounds(t *testing.T) {
	minRatio, err := fpmath.TickToSqrtRatio(fpmath.MinTick)
	if err != nil {
		t.Fatalf("min tick: %v", err)
	}
	if minRatio.Cmp(fpmath.MinSqrtRatio) != 0 {
		t.Errorf("min tick ratio: got %s, want %s", minRatio, fpmath.MinSqrtRatio)
	}

	maxRatio, err := fpmath.TickToSqrtRatio(fpmath.MaxTick)
	if err != nil {
		t.Fatalf("max tick: %v", err)
	}
	if maxRatio.Cmp(fpmath.MaxSqrtRatio) != 0 {
		t.Errorf("max tick ratio: got %s, want %s", maxRatio, fpmath.MaxSqrtRatio)
	}
}

func TestTickToSqrtRatio_OutOfRange(t *testing.T) {
	if _, err := fpmath.TickToSqrtRatio(fpmath.MinTick - 1); err == nil {
		t.Error("tick below MinTick should fail")
	}
	if _, err := fpmath.TickToSqrtRatio(fpmath.MaxTick + 1); err == nil {
		t.Error("tick above MaxTick should fail")
	}
}

func TestTickToSqrtRatio_Monotonic(t *testing.T) {
	ticks := []int32{-887272, -600000, -100000, -60, -1, 0, 1, 60, 100000, 600000, 887272}

	var prev *big.Int
	for _, tick := range ticks {
		ratio, err := fpmath.TickToSqrtRatio(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if prev != nil && ratio.Cmp(prev) <= 0 {
			t.Errorf("ratio at tick %d not strictly greater than previous", tick)
		}
		prev = ratio
	}
}

// ============================================================================
// Test: SqrtRatioToTick
// ============================================================================

func TestSqrtRatioToTick_Roundtrip(t *testing.T) {
	ticks := []int32{-887272, -123456, -60, -1, 0, 1, 60, 123456, 887271}

	for _, tick := range ticks {
		ratio, err := fpmath.TickToSqrtRatio(tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		got, err := fpmath.SqrtRatioToTick(ratio)
		if err != nil {
			t.Fatalf("SqrtRatioToTick(%s): %v", ratio, err)
		}
		if got != tick {
			t.Errorf("roundtrip for tick %d: got %d", tick, got)
		}
	}
}

func TestSqrtRatioToTick_BetweenTicks(t *testing.T) {
	// A ratio strictly between tick 10 and tick 11 belongs to tick 10.
	lower, _ := fpmath.TickToSqrtRatio(10)
	upper, _ := fpmath.TickToSqrtRatio(11)

	mid := new(big.Int).Add(lower, upper)
	mid.Rsh(mid, 1)

	got, err := fpmath.SqrtRatioToTick(mid)
	if err != nil {
		t.Fatalf("SqrtRatioToTick: %v", err)
	}
	if got != 10 {
		t.Errorf("mid-ratio tick: got %d, want 10", got)
	}
}

func TestSqrtRatioToTick_OutOfRange(t *testing.T) {
	tooSmall := new(big.Int).Sub(fpmath.MinSqrtRatio, big.NewInt(1))
	if _, err := fpmath.SqrtRatioToTick(tooSmall); err == nil {
		t.Error("ratio below MinSqrtRatio should fail")
	}

	tooBig := new(big.Int).Add(fpmath.MaxSqrtRatio, big.NewInt(1))
	if _, err := fpmath.SqrtRatioToTick(tooBig); err == nil {
		t.Error("ratio above MaxSqrtRatio should fail")
	}
}

// ============================================================================
// Test: MulDiv rounding
// ============================================================================

func TestMulDiv_Rounding(t *testing.T) {
	a, b, c := big.NewInt(10), big.NewInt(10), big.NewInt(3)

	down := fpmath.MulDiv(a, b, c, fpmath.RoundDown)
	if down.Int64() != 33 {
		t.Errorf("RoundDown: got %d, want 33", down.Int64())
	}

	up := fpmath.MulDiv(a, b, c, fpmath.RoundUp)
	if up.Int64() != 34 {
		t.Errorf("RoundUp: got %d, want 34", up.Int64())
	}

	// Exact division rounds identically in both directions.
	exactDown := fpmath.MulDiv(big.NewInt(6), big.NewInt(4), big.NewInt(8), fpmath.RoundDown)
	exactUp := fpmath.MulDiv(big.NewInt(6), big.NewInt(4), big.NewInt(8), fpmath.RoundUp)
	if exactDown.Cmp(exactUp) != 0 {
		t.Error("exact division should not round")
	}
}

func TestDivRoundingUp(t *testing.T) {
	if got := fpmath.DivRoundingUp(big.NewInt(7), big.NewInt(2)); got.Int64() != 4 {
		t.Errorf("ceil(7/2): got %d, want 4", got.Int64())
	}
	if got := fpmath.DivRoundingUp(big.NewInt(8), big.NewInt(2)); got.Int64() != 4 {
		t.Errorf("ceil(8/2): got %d, want 4", got.Int64())
	}
}
