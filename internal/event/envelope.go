package event

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePoolInitialized
	EventTypeExtensionRegistered
	EventTypeSwapExecuted
	EventTypePositionUpdated
	EventTypeFeesCollected
	EventTypeBalanceSaved
	EventTypeBalanceLoaded
	EventTypeWithdrawalExecuted
	EventTypeProtocolFeesAccrued
)

// EventEnvelope wraps every event in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable event identifier
	EventID string

	// Event type discriminator
	EventType EventType

	// Pool context (nullable for global events)
	PoolID *common.Hash

	// Timestamp of the locked call that produced the event
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// EventID returns the stable event identifier
	EventID() string

	// EventType returns the discriminator
	EventType() EventType

	// PoolID returns the pool context (nil for global events)
	PoolID() *common.Hash
}

func (et EventType) String() string {
	switch et {
	case EventTypePoolInitialized:
		return "PoolInitialized"
	case EventTypeExtensionRegistered:
		return "ExtensionRegistered"
	case EventTypeSwapExecuted:
		return "SwapExecuted"
	case EventTypePositionUpdated:
		return "PositionUpdated"
	case EventTypeFeesCollected:
		return "FeesCollected"
	case EventTypeBalanceSaved:
		return "BalanceSaved"
	case EventTypeBalanceLoaded:
		return "BalanceLoaded"
	case EventTypeWithdrawalExecuted:
		return "WithdrawalExecuted"
	case EventTypeProtocolFeesAccrued:
		return "ProtocolFeesAccrued"
	default:
		return "Unknown"
	}
}
