package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// SwapExecuted records one completed swap. Deltas are signed decimal
// strings from the pool's perspective: input positive, output negative.
type SwapExecuted struct {
	ID             uuid.UUID
	Pool           common.Hash
	Locker         common.Address
	Delta0         string
	Delta1         string
	SqrtRatioAfter string
	TickAfter      int32
	LiquidityAfter string
	FeesPaid       string
	ProtocolFees   string
	Partial        bool
	Timestamp      time.Time
}

func (e *SwapExecuted) EventID() string      { return e.ID.String() }
func (e *SwapExecuted) EventType() EventType { return EventTypeSwapExecuted }
func (e *SwapExecuted) PoolID() *common.Hash { p := e.Pool; return &p }
