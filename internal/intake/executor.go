package intake

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"AMMLedger/internal/core"
	"AMMLedger/internal/observability"
	"AMMLedger/internal/pool"
)

// Executor applies parsed operations to the core, one at a time in
// arrival order. Remote operations settle against saved balances: lock
// callbacks cannot cross a network boundary, so deposits fund a saved
// balance first and later operations draw on it.
type Executor struct {
	engine  *core.Engine
	opChan  <-chan RawOp
	log     zerolog.Logger
	metrics *observability.Metrics
}

func NewExecutor(engine *core.Engine, opChan <-chan RawOp, log zerolog.Logger, metrics *observability.Metrics) *Executor {
	return &Executor{
		engine:  engine,
		opChan:  opChan,
		log:     log.With().Str("component", "executor").Logger(),
		metrics: metrics,
	}
}

// Run consumes raw operations until ctx is cancelled. Every message is
// ACKed after processing: a rejected operation is a deterministic
// outcome, and redelivering it would only reorder the stream.
func (ex *Executor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-ex.opChan:
			if !ok {
				return nil
			}

			op, err := ParseRawOp(raw)
			if err != nil {
				ex.log.Error().Err(err).Str("subject", raw.Subject).Msg("malformed operation")
				ex.count("malformed", "rejected")
				raw.AckFunc()
				continue
			}

			if err := ex.Apply(op); err != nil {
				ex.log.Warn().Err(err).
					Str("type", op.OpType()).
					Str("owner", op.OpOwner().Hex()).
					Msg("operation rejected")
				ex.count(op.OpType(), "rejected")
			} else {
				ex.count(op.OpType(), "applied")
			}
			raw.AckFunc()
		}
	}
}

// Apply runs one operation inside a locked call.
func (ex *Executor) Apply(op Operation) error {
	switch op := op.(type) {
	case *InitializePool:
		return ex.applyInitializePool(op)
	case *Deposit:
		return ex.applyDeposit(op)
	case *Withdraw:
		return ex.applyWithdraw(op)
	case *Swap:
		return ex.applySwap(op)
	case *UpdatePosition:
		return ex.applyUpdatePosition(op)
	case *CollectFees:
		return ex.applyCollectFees(op)
	default:
		return fmt.Errorf("unhandled operation type %T", op)
	}
}

func (ex *Executor) applyInitializePool(op *InitializePool) error {
	return ex.engine.Lock(op.Owner, op.Timestamp, func(s *core.Session) error {
		_, err := s.InitializePool(op.Key, op.Tick)
		return err
	})
}

func (ex *Executor) applyDeposit(op *Deposit) error {
	return ex.engine.Lock(op.Owner, op.Timestamp, func(s *core.Session) error {
		if err := s.PayFrom(op.Owner, op.Token, op.Amount); err != nil {
			return err
		}
		return s.Save(op.Owner, op.Token, op.Salt, op.Amount)
	})
}

func (ex *Executor) applyWithdraw(op *Withdraw) error {
	return ex.engine.Lock(op.Owner, op.Timestamp, func(s *core.Session) error {
		if err := s.Load(op.Token, op.Salt, op.Amount); err != nil {
			return err
		}
		return s.Withdraw(op.Token, op.Recipient, op.Amount)
	})
}

func (ex *Executor) applySwap(op *Swap) error {
	p, err := ex.engine.Pools().Get(op.Pool)
	if err != nil {
		return err
	}
	token0, token1 := p.Key.Token0, p.Key.Token1

	return ex.engine.Lock(op.Owner, op.Timestamp, func(s *core.Session) error {
		res, err := s.Swap(op.Pool, pool.SwapParams{
			Amount:           op.Amount,
			IsToken1:         op.IsToken1,
			SqrtRatioLimit:   op.SqrtRatioLimit,
			AllowPartialFill: op.AllowPartialFill,
			SkipAhead:        op.SkipAhead,
		})
		if err != nil {
			return err
		}
		if err := ex.settle(s, op.Owner, token0, op.BalanceSalt, res.Delta0); err != nil {
			return err
		}
		return ex.settle(s, op.Owner, token1, op.BalanceSalt, res.Delta1)
	})
}

func (ex *Executor) applyUpdatePosition(op *UpdatePosition) error {
	p, err := ex.engine.Pools().Get(op.Pool)
	if err != nil {
		return err
	}
	token0, token1 := p.Key.Token0, p.Key.Token1

	return ex.engine.Lock(op.Owner, op.Timestamp, func(s *core.Session) error {
		res, err := s.UpdatePosition(op.Pool, op.Lower, op.Upper, op.PositionSalt, op.LiquidityDelta)
		if err != nil {
			return err
		}
		if err := ex.settle(s, op.Owner, token0, op.BalanceSalt, res.Amount0); err != nil {
			return err
		}
		return ex.settle(s, op.Owner, token1, op.BalanceSalt, res.Amount1)
	})
}

func (ex *Executor) applyCollectFees(op *CollectFees) error {
	p, err := ex.engine.Pools().Get(op.Pool)
	if err != nil {
		return err
	}
	token0, token1 := p.Key.Token0, p.Key.Token1

	return ex.engine.Lock(op.Owner, op.Timestamp, func(s *core.Session) error {
		res, err := s.CollectFees(op.Pool, op.Lower, op.Upper, op.PositionSalt)
		if err != nil {
			return err
		}
		if !res.Fees0.IsZero() {
			if err := s.Save(op.Owner, token0, op.BalanceSalt, res.Fees0); err != nil {
				return err
			}
		}
		if !res.Fees1.IsZero() {
			return s.Save(op.Owner, token1, op.BalanceSalt, res.Fees1)
		}
		return nil
	})
}

// settle nets one token's frame delta against the owner's saved
// balance. amount is pool-perspective: positive means the frame owes
// the pool and is covered by a Load, negative means the frame holds a
// credit and is parked with a Save.
func (ex *Executor) settle(s *core.Session, owner, token common.Address, salt common.Hash, amount *big.Int) error {
	switch amount.Sign() {
	case 0:
		return nil
	case 1:
		u, overflow := uint256.FromBig(amount)
		if overflow {
			return fmt.Errorf("settle amount overflows uint256: %s", amount)
		}
		return s.Load(token, salt, u)
	default:
		u, overflow := uint256.FromBig(new(big.Int).Neg(amount))
		if overflow {
			return fmt.Errorf("settle amount overflows uint256: %s", amount)
		}
		return s.Save(owner, token, salt, u)
	}
}

func (ex *Executor) count(opType, outcome string) {
	if ex.metrics != nil {
		ex.metrics.IntakeOps.WithLabelValues(opType, outcome).Inc()
	}
}
