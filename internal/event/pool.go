package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// PoolInitialized is emitted once when a pool key is first initialized.
type PoolInitialized struct {
	ID          uuid.UUID
	Pool        common.Hash
	Token0      common.Address
	Token1      common.Address
	Fee         uint64
	TickSpacing int32
	Extension   common.Address
	Tick        int32
	SqrtRatio   string // decimal Q64.96
	Timestamp   time.Time
}

func (e *PoolInitialized) EventID() string      { return e.ID.String() }
func (e *PoolInitialized) EventType() EventType { return EventTypePoolInitialized }
func (e *PoolInitialized) PoolID() *common.Hash { p := e.Pool; return &p }

// ExtensionRegistered is emitted when an extension address is bound to
// an implementation.
type ExtensionRegistered struct {
	ID         uuid.UUID
	Extension  common.Address
	CallPoints uint16
	Timestamp  time.Time
}

func (e *ExtensionRegistered) EventID() string      { return e.ID.String() }
func (e *ExtensionRegistered) EventType() EventType { return EventTypeExtensionRegistered }
func (e *ExtensionRegistered) PoolID() *common.Hash { return nil }
