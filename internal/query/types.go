package query

import (
	"encoding/json"
	"time"
)

// PoolResponse represents a pool's projected state for API queries.
type PoolResponse struct {
	PoolID       string `json:"pool_id"`
	Token0       string `json:"token0"`
	Token1       string `json:"token1"`
	Fee          uint64 `json:"fee"`
	TickSpacing  int32  `json:"tick_spacing"`
	Extension    string `json:"extension"`
	SqrtRatio    string `json:"sqrt_ratio"`
	Tick         int32  `json:"tick"`
	Liquidity    string `json:"liquidity"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// PositionResponse represents a liquidity position for API queries.
type PositionResponse struct {
	PoolID       string `json:"pool_id"`
	Owner        string `json:"owner"`
	LowerTick    int32  `json:"lower_tick"`
	UpperTick    int32  `json:"upper_tick"`
	Salt         string `json:"salt"`
	Liquidity    string `json:"liquidity"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// SavedBalanceResponse represents a saved balance for API queries.
type SavedBalanceResponse struct {
	Owner        string `json:"owner"`
	Token        string `json:"token"`
	Salt         string `json:"salt"`
	Balance      string `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// ExtensionResponse represents a registered extension for API queries.
type ExtensionResponse struct {
	Address      string `json:"address"`
	CallPoints   uint16 `json:"call_points"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// EventRecord represents one event-log entry for API queries.
type EventRecord struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	PoolID    *string         `json:"pool_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// EventPage is a cursor-paginated slice of the event log.
type EventPage struct {
	Events     []EventRecord `json:"events"`
	NextCursor int64         `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy            bool                   `json:"is_healthy"`
	HashChainBreaks      []int64                `json:"hash_chain_breaks,omitempty"`
	NegativeSavedBalance []SavedBalanceResponse `json:"negative_saved_balances,omitempty"`
}
