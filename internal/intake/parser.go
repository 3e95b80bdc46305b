package intake

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"AMMLedger/internal/pool"
)

// Operation type discriminators, matched to subjects in DefaultSubjects.
const (
	OpInitializePool = "InitializePool"
	OpDeposit        = "Deposit"
	OpWithdraw       = "Withdraw"
	OpSwap           = "Swap"
	OpUpdatePosition = "UpdatePosition"
	OpCollectFees    = "CollectFees"
)

// Operation is a parsed mutation request ready for the executor.
type Operation interface {
	OpType() string
	OpOwner() common.Address
	OpTimestamp() time.Time
}

// InitializePool creates a new pool at an initial tick.
type InitializePool struct {
	Owner     common.Address
	Key       pool.Key
	Tick      int32
	Timestamp time.Time
}

func (op *InitializePool) OpType() string          { return OpInitializePool }
func (op *InitializePool) OpOwner() common.Address { return op.Owner }
func (op *InitializePool) OpTimestamp() time.Time  { return op.Timestamp }

// Deposit pulls tokens from the owner's bank account into the vault
// and parks them as a saved balance.
type Deposit struct {
	Owner     common.Address
	Token     common.Address
	Salt      common.Hash
	Amount    *uint256.Int
	Timestamp time.Time
}

func (op *Deposit) OpType() string          { return OpDeposit }
func (op *Deposit) OpOwner() common.Address { return op.Owner }
func (op *Deposit) OpTimestamp() time.Time  { return op.Timestamp }

// Withdraw loads a saved balance and transfers it out of the vault.
type Withdraw struct {
	Owner     common.Address
	Token     common.Address
	Recipient common.Address
	Salt      common.Hash
	Amount    *uint256.Int
	Timestamp time.Time
}

func (op *Withdraw) OpType() string          { return OpWithdraw }
func (op *Withdraw) OpOwner() common.Address { return op.Owner }
func (op *Withdraw) OpTimestamp() time.Time  { return op.Timestamp }

// Swap executes an exact-input swap settled against the owner's saved
// balances under BalanceSalt.
type Swap struct {
	Owner            common.Address
	Pool             common.Hash
	Amount           *big.Int
	IsToken1         bool
	SqrtRatioLimit   *big.Int // nil means no explicit limit
	AllowPartialFill bool
	SkipAhead        uint32
	BalanceSalt      common.Hash
	Timestamp        time.Time
}

func (op *Swap) OpType() string          { return OpSwap }
func (op *Swap) OpOwner() common.Address { return op.Owner }
func (op *Swap) OpTimestamp() time.Time  { return op.Timestamp }

// UpdatePosition changes position liquidity, settling principal and
// fees against the owner's saved balances under BalanceSalt.
type UpdatePosition struct {
	Owner          common.Address
	Pool           common.Hash
	Lower          int32
	Upper          int32
	PositionSalt   common.Hash
	BalanceSalt    common.Hash
	LiquidityDelta *big.Int
	Timestamp      time.Time
}

func (op *UpdatePosition) OpType() string          { return OpUpdatePosition }
func (op *UpdatePosition) OpOwner() common.Address { return op.Owner }
func (op *UpdatePosition) OpTimestamp() time.Time  { return op.Timestamp }

// CollectFees settles accrued fees into the owner's saved balances
// without touching liquidity.
type CollectFees struct {
	Owner        common.Address
	Pool         common.Hash
	Lower        int32
	Upper        int32
	PositionSalt common.Hash
	BalanceSalt  common.Hash
	Timestamp    time.Time
}

func (op *CollectFees) OpType() string          { return OpCollectFees }
func (op *CollectFees) OpOwner() common.Address { return op.Owner }
func (op *CollectFees) OpTimestamp() time.Time  { return op.Timestamp }

// ParseRawOp converts a RawOp (JSON bytes on a known subject) into a
// typed Operation. Field names use snake_case to match upstream
// producers; amounts travel as decimal strings.
func ParseRawOp(raw RawOp) (Operation, error) {
	switch raw.Subject {
	case "amm.ops.pool.initialize":
		return parseInitializePool(raw.Data)
	case "amm.ops.deposit":
		return parseDeposit(raw.Data)
	case "amm.ops.withdraw":
		return parseWithdraw(raw.Data)
	case "amm.ops.swap":
		return parseSwap(raw.Data)
	case "amm.ops.position.update":
		return parseUpdatePosition(raw.Data)
	case "amm.ops.fees.collect":
		return parseCollectFees(raw.Data)
	default:
		return nil, fmt.Errorf("unknown operation subject: %s", raw.Subject)
	}
}

type initializePoolJSON struct {
	Owner       string `json:"owner"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	Fee         uint64 `json:"fee"`
	TickSpacing int32  `json:"tick_spacing"`
	Extension   string `json:"extension"`
	Tick        int32  `json:"tick"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseInitializePool(data []byte) (*InitializePool, error) {
	var j initializePoolJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse InitializePool: %w", err)
	}

	owner, err := parseAddress(j.Owner, "owner")
	if err != nil {
		return nil, err
	}
	token0, err := parseAddress(j.Token0, "token0")
	if err != nil {
		return nil, err
	}
	token1, err := parseAddress(j.Token1, "token1")
	if err != nil {
		return nil, err
	}

	extension := common.Address{}
	if j.Extension != "" {
		extension, err = parseAddress(j.Extension, "extension")
		if err != nil {
			return nil, err
		}
	}

	return &InitializePool{
		Owner: owner,
		Key: pool.Key{
			Token0:      token0,
			Token1:      token1,
			Fee:         j.Fee,
			TickSpacing: j.TickSpacing,
			Extension:   extension,
		},
		Tick:      j.Tick,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type transferJSON struct {
	Owner       string `json:"owner"`
	Token       string `json:"token"`
	Recipient   string `json:"recipient,omitempty"`
	Salt        string `json:"salt"`
	Amount      string `json:"amount"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseDeposit(data []byte) (*Deposit, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Deposit: %w", err)
	}

	owner, err := parseAddress(j.Owner, "owner")
	if err != nil {
		return nil, err
	}
	token, err := parseAddress(j.Token, "token")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(j.Amount)
	if err != nil {
		return nil, err
	}

	return &Deposit{
		Owner:     owner,
		Token:     token,
		Salt:      common.HexToHash(j.Salt),
		Amount:    amount,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseWithdraw(data []byte) (*Withdraw, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Withdraw: %w", err)
	}

	owner, err := parseAddress(j.Owner, "owner")
	if err != nil {
		return nil, err
	}
	token, err := parseAddress(j.Token, "token")
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(j.Amount)
	if err != nil {
		return nil, err
	}

	// An absent recipient means pay out to the owner.
	recipient := owner
	if j.Recipient != "" {
		recipient, err = parseAddress(j.Recipient, "recipient")
		if err != nil {
			return nil, err
		}
	}

	return &Withdraw{
		Owner:     owner,
		Token:     token,
		Recipient: recipient,
		Salt:      common.HexToHash(j.Salt),
		Amount:    amount,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type swapJSON struct {
	Owner            string `json:"owner"`
	Pool             string `json:"pool"`
	Amount           string `json:"amount"`
	IsToken1         bool   `json:"is_token1"`
	SqrtRatioLimit   string `json:"sqrt_ratio_limit,omitempty"`
	AllowPartialFill bool   `json:"allow_partial_fill,omitempty"`
	SkipAhead        uint32 `json:"skip_ahead"`
	BalanceSalt      string `json:"balance_salt"`
	TimestampUs      int64  `json:"timestamp_us"`
}

func parseSwap(data []byte) (*Swap, error) {
	var j swapJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Swap: %w", err)
	}

	owner, err := parseAddress(j.Owner, "owner")
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(j.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("parse amount %q", j.Amount)
	}

	var limit *big.Int
	if j.SqrtRatioLimit != "" {
		limit, ok = new(big.Int).SetString(j.SqrtRatioLimit, 10)
		if !ok || limit.Sign() < 0 {
			return nil, fmt.Errorf("parse sqrt_ratio_limit %q", j.SqrtRatioLimit)
		}
	}

	return &Swap{
		Owner:            owner,
		Pool:             common.HexToHash(j.Pool),
		Amount:           amount,
		IsToken1:         j.IsToken1,
		SqrtRatioLimit:   limit,
		AllowPartialFill: j.AllowPartialFill,
		SkipAhead:        j.SkipAhead,
		BalanceSalt:      common.HexToHash(j.BalanceSalt),
		Timestamp:        time.UnixMicro(j.TimestampUs),
	}, nil
}

type updatePositionJSON struct {
	Owner          string `json:"owner"`
	Pool           string `json:"pool"`
	Lower          int32  `json:"lower"`
	Upper          int32  `json:"upper"`
	PositionSalt   string `json:"position_salt"`
	BalanceSalt    string `json:"balance_salt"`
	LiquidityDelta string `json:"liquidity_delta"`
	TimestampUs    int64  `json:"timestamp_us"`
}

func parseUpdatePosition(data []byte) (*UpdatePosition, error) {
	var j updatePositionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UpdatePosition: %w", err)
	}

	owner, err := parseAddress(j.Owner, "owner")
	if err != nil {
		return nil, err
	}
	delta, ok := new(big.Int).SetString(j.LiquidityDelta, 10)
	if !ok {
		return nil, fmt.Errorf("parse liquidity_delta %q", j.LiquidityDelta)
	}

	return &UpdatePosition{
		Owner:          owner,
		Pool:           common.HexToHash(j.Pool),
		Lower:          j.Lower,
		Upper:          j.Upper,
		PositionSalt:   common.HexToHash(j.PositionSalt),
		BalanceSalt:    common.HexToHash(j.BalanceSalt),
		LiquidityDelta: delta,
		Timestamp:      time.UnixMicro(j.TimestampUs),
	}, nil
}

type collectFeesJSON struct {
	Owner        string `json:"owner"`
	Pool         string `json:"pool"`
	Lower        int32  `json:"lower"`
	Upper        int32  `json:"upper"`
	PositionSalt string `json:"position_salt"`
	BalanceSalt  string `json:"balance_salt"`
	TimestampUs  int64  `json:"timestamp_us"`
}

func parseCollectFees(data []byte) (*CollectFees, error) {
	var j collectFeesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollectFees: %w", err)
	}

	owner, err := parseAddress(j.Owner, "owner")
	if err != nil {
		return nil, err
	}

	return &CollectFees{
		Owner:        owner,
		Pool:         common.HexToHash(j.Pool),
		Lower:        j.Lower,
		Upper:        j.Upper,
		PositionSalt: common.HexToHash(j.PositionSalt),
		BalanceSalt:  common.HexToHash(j.BalanceSalt),
		Timestamp:    time.UnixMicro(j.TimestampUs),
	}, nil
}

func parseAddress(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("parse %s: %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return amount, nil
}
