package intake_test

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"AMMLedger/internal/intake"
)

func rawOp(t *testing.T, subject string, v interface{}) intake.RawOp {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return intake.RawOp{
		Subject: subject,
		Data:    data,
		AckFunc: func() {},
		NakFunc: func() {},
	}
}

// ============================================================
// Parsing
// ============================================================

func TestParseInitializePool(t *testing.T) {
	payload := map[string]interface{}{
		"owner":        "0x0000000000000000000000000000000000000a11",
		"token0":       "0x0000000000000000000000000000000000001001",
		"token1":       "0x0000000000000000000000000000000000001002",
		"fee":          uint64(3000),
		"tick_spacing": int32(60),
		"tick":         int32(-120),
		"timestamp_us": int64(1750000000000000),
	}

	op, err := intake.ParseRawOp(rawOp(t, "amm.ops.pool.initialize", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	init, ok := op.(*intake.InitializePool)
	if !ok {
		t.Fatalf("expected *intake.InitializePool, got %T", op)
	}
	if init.Key.Fee != 3000 {
		t.Errorf("fee: got %d, want 3000", init.Key.Fee)
	}
	if init.Key.TickSpacing != 60 {
		t.Errorf("tick_spacing: got %d, want 60", init.Key.TickSpacing)
	}
	if init.Tick != -120 {
		t.Errorf("tick: got %d, want -120", init.Tick)
	}
	if init.Key.Extension != (common.Address{}) {
		t.Errorf("extension: got %s, want zero", init.Key.Extension.Hex())
	}
	if init.Timestamp.UnixMicro() != 1750000000000000 {
		t.Errorf("timestamp: got %d", init.Timestamp.UnixMicro())
	}
}

func TestParseSwap(t *testing.T) {
	payload := map[string]interface{}{
		"owner":              "0x0000000000000000000000000000000000000a11",
		"pool":               "0x0102030405060708010203040506070801020304050607080102030405060708",
		"amount":             "1000000",
		"is_token1":          true,
		"sqrt_ratio_limit":   "79228162514264337593543950336",
		"allow_partial_fill": true,
		"skip_ahead":         uint32(2),
		"balance_salt":       "0x01",
		"timestamp_us":       int64(1750000000000001),
	}

	op, err := intake.ParseRawOp(rawOp(t, "amm.ops.swap", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	swap, ok := op.(*intake.Swap)
	if !ok {
		t.Fatalf("expected *intake.Swap, got %T", op)
	}
	if swap.Amount.String() != "1000000" {
		t.Errorf("amount: got %s", swap.Amount)
	}
	if !swap.IsToken1 {
		t.Error("is_token1 not set")
	}
	if swap.SqrtRatioLimit == nil || swap.SqrtRatioLimit.String() != "79228162514264337593543950336" {
		t.Errorf("sqrt_ratio_limit: got %v", swap.SqrtRatioLimit)
	}
	if swap.SkipAhead != 2 {
		t.Errorf("skip_ahead: got %d", swap.SkipAhead)
	}
	if !swap.AllowPartialFill {
		t.Error("allow_partial_fill not set")
	}
}

func TestParseSwapWithoutLimit(t *testing.T) {
	payload := map[string]interface{}{
		"owner":        "0x0000000000000000000000000000000000000a11",
		"pool":         "0x0102030405060708010203040506070801020304050607080102030405060708",
		"amount":       "-500",
		"timestamp_us": int64(1750000000000002),
	}

	op, err := intake.ParseRawOp(rawOp(t, "amm.ops.swap", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	swap := op.(*intake.Swap)
	if swap.SqrtRatioLimit != nil {
		t.Errorf("expected nil limit, got %s", swap.SqrtRatioLimit)
	}
	if swap.Amount.Sign() >= 0 {
		t.Errorf("expected negative amount preserved, got %s", swap.Amount)
	}
}

func TestParseUpdatePositionNegativeDelta(t *testing.T) {
	payload := map[string]interface{}{
		"owner":           "0x0000000000000000000000000000000000000a11",
		"pool":            "0x0102030405060708010203040506070801020304050607080102030405060708",
		"lower":           int32(-600),
		"upper":           int32(600),
		"position_salt":   "0x02",
		"balance_salt":    "0x01",
		"liquidity_delta": "-250000",
		"timestamp_us":    int64(1750000000000003),
	}

	op, err := intake.ParseRawOp(rawOp(t, "amm.ops.position.update", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	up := op.(*intake.UpdatePosition)
	if up.LiquidityDelta.String() != "-250000" {
		t.Errorf("liquidity_delta: got %s", up.LiquidityDelta)
	}
	if up.Lower != -600 || up.Upper != 600 {
		t.Errorf("bounds: got [%d, %d)", up.Lower, up.Upper)
	}
}

func TestParseWithdrawDefaultsRecipient(t *testing.T) {
	payload := map[string]interface{}{
		"owner":        "0x0000000000000000000000000000000000000a11",
		"token":        "0x0000000000000000000000000000000000001001",
		"salt":         "0x00",
		"amount":       "42",
		"timestamp_us": int64(1750000000000004),
	}

	op, err := intake.ParseRawOp(rawOp(t, "amm.ops.withdraw", payload))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	wd := op.(*intake.Withdraw)
	if wd.Recipient != wd.Owner {
		t.Errorf("recipient: got %s, want owner %s", wd.Recipient.Hex(), wd.Owner.Hex())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		payload map[string]interface{}
	}{
		{
			name:    "bad owner address",
			subject: "amm.ops.deposit",
			payload: map[string]interface{}{
				"owner": "not-an-address", "token": "0x0000000000000000000000000000000000001001",
				"amount": "10",
			},
		},
		{
			name:    "negative deposit amount",
			subject: "amm.ops.deposit",
			payload: map[string]interface{}{
				"owner":  "0x0000000000000000000000000000000000000a11",
				"token":  "0x0000000000000000000000000000000000001001",
				"amount": "-10",
			},
		},
		{
			name:    "garbled liquidity delta",
			subject: "amm.ops.position.update",
			payload: map[string]interface{}{
				"owner": "0x0000000000000000000000000000000000000a11",
				"pool":  "0x01", "liquidity_delta": "lots",
			},
		},
		{
			name:    "unknown subject",
			subject: "amm.ops.unknown",
			payload: map[string]interface{}{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := intake.ParseRawOp(rawOp(t, tc.subject, tc.payload)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}
