package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AMMLedger/internal/event"
)

// EventRow represents a row in event_log.events.
type EventRow struct {
	Sequence  int64
	EventID   string
	EventType string
	PoolID    *string
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp time.Time
}

// RowFromEnvelope converts an emitted envelope into its storage row.
// The orchestrator (cmd/ammledger) bridges between the core's output
// channel and the persistence worker using this.
func RowFromEnvelope(env event.EventEnvelope) EventRow {
	row := EventRow{
		Sequence:  env.Sequence,
		EventID:   env.EventID,
		EventType: env.EventType.String(),
		Payload:   env.Payload,
		StateHash: append([]byte(nil), env.StateHash[:]...),
		PrevHash:  append([]byte(nil), env.PrevHash[:]...),
		Timestamp: env.Timestamp,
	}
	if env.PoolID != nil {
		id := env.PoolID.Hex()
		row.PoolID = &id
	}
	return row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// EventLogWriter writes event batches to Postgres using multi-row INSERT.
// Writes are idempotent on sequence, so a retried batch that partially
// landed is safe to resend.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events to event_log.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, ex execer, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, event_id, event_type, pool_id, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)

	for i, e := range events {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.Sequence, e.EventID, e.EventType, e.PoolID,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := ex.ExecContext(ctx, query, args...)
	return err
}
