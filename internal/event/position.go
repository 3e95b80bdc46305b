package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// PositionUpdated records a liquidity change on one position, including
// the fee settlement that rides along with it.
type PositionUpdated struct {
	ID             uuid.UUID
	Pool           common.Hash
	Owner          common.Address
	Lower          int32
	Upper          int32
	Salt           common.Hash
	LiquidityDelta string
	Amount0        string
	Amount1        string
	Fees0          string
	Fees1          string
	Timestamp      time.Time
}

func (e *PositionUpdated) EventID() string      { return e.ID.String() }
func (e *PositionUpdated) EventType() EventType { return EventTypePositionUpdated }
func (e *PositionUpdated) PoolID() *common.Hash { p := e.Pool; return &p }

// FeesCollected records a fee-only settlement (liquidity delta zero).
type FeesCollected struct {
	ID        uuid.UUID
	Pool      common.Hash
	Owner     common.Address
	Lower     int32
	Upper     int32
	Salt      common.Hash
	Fees0     string
	Fees1     string
	Timestamp time.Time
}

func (e *FeesCollected) EventID() string      { return e.ID.String() }
func (e *FeesCollected) EventType() EventType { return EventTypeFeesCollected }
func (e *FeesCollected) PoolID() *common.Hash { p := e.Pool; return &p }
