package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"AMMLedger/internal/event"
	"AMMLedger/internal/ledger"
	"AMMLedger/internal/pool"
)

// Session is the operation surface of one lock frame. All methods run
// synchronously on the engine's single thread; the frame they belong to
// must settle before the lock unwinds.
type Session struct {
	engine  *Engine
	owner   common.Address
	ts      time.Time
	frameID uint64
}

// Owner returns the address that holds this frame.
func (s *Session) Owner() common.Address { return s.owner }

// FrameID returns the frame's unique identifier.
func (s *Session) FrameID() uint64 { return s.frameID }

// Lock opens a nested frame for another owner.
func (s *Session) Lock(owner common.Address, fn func(*Session) error) error {
	return s.engine.Lock(owner, s.ts, fn)
}

// Delta returns this frame's current signed delta for token.
func (s *Session) Delta(token common.Address) *big.Int {
	return s.engine.accountant.Delta(token)
}

// ==========================================================================
// Pool lifecycle
// ==========================================================================

// InitializePool creates the pool for key at the initial tick and
// returns its identifier.
func (s *Session) InitializePool(key pool.Key, initialTick int32) (common.Hash, error) {
	if err := s.engine.dispatch.BeforeInitialize(s.owner, key, initialTick); err != nil {
		return common.Hash{}, err
	}
	p, err := s.engine.pools.Initialize(key, initialTick)
	if err != nil {
		return common.Hash{}, err
	}
	if err := s.engine.dispatch.AfterInitialize(s.owner, key, initialTick); err != nil {
		return common.Hash{}, err
	}

	id := key.ID()
	s.engine.buffer(&event.PoolInitialized{
		ID:          uuid.New(),
		Pool:        id,
		Token0:      key.Token0,
		Token1:      key.Token1,
		Fee:         key.Fee,
		TickSpacing: key.TickSpacing,
		Extension:   key.Extension,
		Tick:        initialTick,
		SqrtRatio:   p.SqrtRatio.String(),
		Timestamp:   s.ts,
	}, s.ts)
	if s.engine.metrics != nil {
		s.engine.metrics.PoolsInitialized.Inc()
	}
	return id, nil
}

// ==========================================================================
// Swaps
// ==========================================================================

// Swap executes an exact-input swap against the pool and posts the
// resulting deltas to this frame.
func (s *Session) Swap(poolID common.Hash, params pool.SwapParams) (*pool.SwapResult, error) {
	p, err := s.engine.pools.Get(poolID)
	if err != nil {
		return nil, err
	}

	// The hook may rewrite params; the pool revalidates on execution.
	if err := s.engine.dispatch.BeforeSwap(s.owner, p.Key, &params); err != nil {
		return nil, err
	}

	res, err := p.Swap(params, s.engine.cfg.ProtocolFeeRate)
	if err != nil {
		return nil, err
	}
	if s.engine.metrics != nil {
		s.engine.metrics.SwapTicksCrossed.Observe(float64(res.TicksCrossed))
	}

	if err := s.applyPoolDelta(p.Key.Token0, res.Delta0); err != nil {
		return nil, err
	}
	if err := s.applyPoolDelta(p.Key.Token1, res.Delta1); err != nil {
		return nil, err
	}

	if !res.ProtocolFees.IsZero() {
		inputToken := p.Key.Token0
		if params.IsToken1 {
			inputToken = p.Key.Token1
		}
		if err := s.engine.accountant.AccrueSaved(s.engine.cfg.ProtocolOwner, inputToken, common.Hash{}, res.ProtocolFees); err != nil {
			return nil, err
		}
		s.engine.buffer(&event.ProtocolFeesAccrued{
			ID:        uuid.New(),
			Pool:      poolID,
			Token:     inputToken,
			Amount:    res.ProtocolFees.Dec(),
			Timestamp: s.ts,
		}, s.ts)
		if s.engine.metrics != nil {
			s.engine.metrics.ProtocolFeesAccrued.WithLabelValues(poolID.Hex()).Inc()
		}
	}

	if err := s.engine.dispatch.AfterSwap(s.owner, p.Key, res); err != nil {
		return nil, err
	}

	s.engine.buffer(&event.SwapExecuted{
		ID:             uuid.New(),
		Pool:           poolID,
		Locker:         s.owner,
		Delta0:         res.Delta0.String(),
		Delta1:         res.Delta1.String(),
		SqrtRatioAfter: res.SqrtRatioAfter.String(),
		TickAfter:      res.TickAfter,
		LiquidityAfter: res.LiquidityAfter.Dec(),
		FeesPaid:       res.FeesPaid.Dec(),
		ProtocolFees:   res.ProtocolFees.Dec(),
		Partial:        res.Partial,
		Timestamp:      s.ts,
	}, s.ts)
	if s.engine.metrics != nil {
		s.engine.metrics.SwapsExecuted.WithLabelValues(poolID.Hex()).Inc()
	}
	return res, nil
}

// applyPoolDelta posts a pool-perspective amount to the frame. Amounts
// owed to the pool debit the frame; amounts paid out credit it.
func (s *Session) applyPoolDelta(token common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	return s.engine.accountant.ApplyDelta(token, new(big.Int).Neg(amount))
}

// ==========================================================================
// Positions
// ==========================================================================

// UpdatePosition changes the liquidity of the frame owner's position
// and posts principal and fee amounts to this frame.
func (s *Session) UpdatePosition(poolID common.Hash, lower, upper int32, salt common.Hash, liquidityDelta *big.Int) (*pool.UpdatePositionResult, error) {
	p, err := s.engine.pools.Get(poolID)
	if err != nil {
		return nil, err
	}
	key := pool.PositionKey{Owner: s.owner, Lower: lower, Upper: upper, Salt: salt}

	if err := s.engine.dispatch.BeforeUpdatePosition(s.owner, p.Key, key, liquidityDelta); err != nil {
		return nil, err
	}

	res, err := p.UpdatePosition(key, liquidityDelta)
	if err != nil {
		return nil, err
	}

	if err := s.applyPoolDelta(p.Key.Token0, res.Amount0); err != nil {
		return nil, err
	}
	if err := s.applyPoolDelta(p.Key.Token1, res.Amount1); err != nil {
		return nil, err
	}

	if err := s.engine.dispatch.AfterUpdatePosition(s.owner, p.Key, key, res); err != nil {
		return nil, err
	}

	s.engine.buffer(&event.PositionUpdated{
		ID:             uuid.New(),
		Pool:           poolID,
		Owner:          s.owner,
		Lower:          lower,
		Upper:          upper,
		Salt:           salt,
		LiquidityDelta: liquidityDelta.String(),
		Amount0:        res.Amount0.String(),
		Amount1:        res.Amount1.String(),
		Fees0:          res.Fees0.Dec(),
		Fees1:          res.Fees1.Dec(),
		Timestamp:      s.ts,
	}, s.ts)
	if s.engine.metrics != nil {
		direction := "deposit"
		if liquidityDelta.Sign() < 0 {
			direction = "withdraw"
		}
		s.engine.metrics.PositionUpdates.WithLabelValues(poolID.Hex(), direction).Inc()
	}
	return res, nil
}

// CollectFees settles the accrued fees of the frame owner's position
// without changing liquidity.
func (s *Session) CollectFees(poolID common.Hash, lower, upper int32, salt common.Hash) (*pool.UpdatePositionResult, error) {
	p, err := s.engine.pools.Get(poolID)
	if err != nil {
		return nil, err
	}
	key := pool.PositionKey{Owner: s.owner, Lower: lower, Upper: upper, Salt: salt}

	if err := s.engine.dispatch.BeforeCollectFees(s.owner, p.Key, key); err != nil {
		return nil, err
	}

	res, err := p.CollectFees(key)
	if err != nil {
		return nil, err
	}

	if err := s.applyPoolDelta(p.Key.Token0, res.Amount0); err != nil {
		return nil, err
	}
	if err := s.applyPoolDelta(p.Key.Token1, res.Amount1); err != nil {
		return nil, err
	}

	if err := s.engine.dispatch.AfterCollectFees(s.owner, p.Key, key, res); err != nil {
		return nil, err
	}

	s.engine.buffer(&event.FeesCollected{
		ID:        uuid.New(),
		Pool:      poolID,
		Owner:     s.owner,
		Lower:     lower,
		Upper:     upper,
		Salt:      salt,
		Fees0:     res.Fees0.Dec(),
		Fees1:     res.Fees1.Dec(),
		Timestamp: s.ts,
	}, s.ts)
	return res, nil
}

// SetPositionExtraData attaches opaque data to the frame owner's
// position.
func (s *Session) SetPositionExtraData(poolID common.Hash, lower, upper int32, salt common.Hash, data []byte) error {
	p, err := s.engine.pools.Get(poolID)
	if err != nil {
		return err
	}
	key := pool.PositionKey{Owner: s.owner, Lower: lower, Upper: upper, Salt: salt}
	return p.SetPositionExtraData(key, data)
}

// ==========================================================================
// Settlement
// ==========================================================================

// Pay asks the payer callback to fund token and credits the observed
// transfer to this frame.
func (s *Session) Pay(payer ledger.Payer, token common.Address) (*uint256.Int, error) {
	return s.engine.accountant.Pay(payer, token)
}

// PayFrom pulls an exact amount from the payer's account.
func (s *Session) PayFrom(payer common.Address, token common.Address, amount *uint256.Int) error {
	return s.engine.accountant.PayFrom(payer, token, amount)
}

// Withdraw debits this frame and sends tokens to the recipient.
func (s *Session) Withdraw(token, recipient common.Address, amount *uint256.Int) error {
	if err := s.engine.accountant.Withdraw(token, recipient, amount); err != nil {
		return err
	}
	s.engine.buffer(&event.WithdrawalExecuted{
		ID:        uuid.New(),
		Token:     token,
		Recipient: recipient,
		Amount:    amount.Dec(),
		Timestamp: s.ts,
	}, s.ts)
	if s.engine.metrics != nil {
		s.engine.metrics.Withdrawals.Inc()
	}
	return nil
}

// Save parks frame credit into the recipient's saved balance.
func (s *Session) Save(recipient, token common.Address, salt common.Hash, amount *uint256.Int) error {
	if err := s.engine.accountant.Save(recipient, token, salt, amount); err != nil {
		return err
	}
	s.engine.buffer(&event.BalanceSaved{
		ID:        uuid.New(),
		Owner:     recipient,
		Token:     token,
		Salt:      salt,
		Amount:    amount.Dec(),
		Timestamp: s.ts,
	}, s.ts)
	if s.engine.metrics != nil {
		s.engine.metrics.SavedBalanceOps.WithLabelValues("save").Inc()
	}
	return nil
}

// Load pulls the frame owner's saved balance back into frame credit.
func (s *Session) Load(token common.Address, salt common.Hash, amount *uint256.Int) error {
	if err := s.engine.accountant.Load(token, salt, amount); err != nil {
		return err
	}
	s.engine.buffer(&event.BalanceLoaded{
		ID:        uuid.New(),
		Owner:     s.owner,
		Token:     token,
		Salt:      salt,
		Amount:    amount.Dec(),
		Timestamp: s.ts,
	}, s.ts)
	if s.engine.metrics != nil {
		s.engine.metrics.SavedBalanceOps.WithLabelValues("load").Inc()
	}
	return nil
}

// SaveTwo saves a token pair under one salt.
func (s *Session) SaveTwo(recipient, token0, token1 common.Address, salt common.Hash, amount0, amount1 *uint256.Int) error {
	if err := s.Save(recipient, token0, salt, amount0); err != nil {
		return err
	}
	return s.Save(recipient, token1, salt, amount1)
}

// LoadTwo loads a token pair under one salt.
func (s *Session) LoadTwo(token0, token1 common.Address, salt common.Hash, amount0, amount1 *uint256.Int) error {
	if err := s.Load(token0, salt, amount0); err != nil {
		return err
	}
	return s.Load(token1, salt, amount1)
}
