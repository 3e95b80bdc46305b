package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// BalanceSaved records a frame credit parked into a saved balance.
type BalanceSaved struct {
	ID        uuid.UUID
	Owner     common.Address
	Token     common.Address
	Salt      common.Hash
	Amount    string
	Timestamp time.Time
}

func (e *BalanceSaved) EventID() string      { return e.ID.String() }
func (e *BalanceSaved) EventType() EventType { return EventTypeBalanceSaved }
func (e *BalanceSaved) PoolID() *common.Hash { return nil }

// BalanceLoaded records a saved balance pulled back into a lock frame.
type BalanceLoaded struct {
	ID        uuid.UUID
	Owner     common.Address
	Token     common.Address
	Salt      common.Hash
	Amount    string
	Timestamp time.Time
}

func (e *BalanceLoaded) EventID() string      { return e.ID.String() }
func (e *BalanceLoaded) EventType() EventType { return EventTypeBalanceLoaded }
func (e *BalanceLoaded) PoolID() *common.Hash { return nil }

// WithdrawalExecuted records tokens leaving the vault.
type WithdrawalExecuted struct {
	ID        uuid.UUID
	Token     common.Address
	Recipient common.Address
	Amount    string
	Timestamp time.Time
}

func (e *WithdrawalExecuted) EventID() string      { return e.ID.String() }
func (e *WithdrawalExecuted) EventType() EventType { return EventTypeWithdrawalExecuted }
func (e *WithdrawalExecuted) PoolID() *common.Hash { return nil }

// ProtocolFeesAccrued records the protocol's cut of one swap's fees
// being credited to the protocol's saved balance.
type ProtocolFeesAccrued struct {
	ID        uuid.UUID
	Pool      common.Hash
	Token     common.Address
	Amount    string
	Timestamp time.Time
}

func (e *ProtocolFeesAccrued) EventID() string      { return e.ID.String() }
func (e *ProtocolFeesAccrued) EventType() EventType { return EventTypeProtocolFeesAccrued }
func (e *ProtocolFeesAccrued) PoolID() *common.Hash { p := e.Pool; return &p }
