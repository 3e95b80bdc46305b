package persistence

import (
	"context"
	"database/sql"
	"fmt"
)

// Recovery reads the durable event log on startup so the core can
// resume its sequence counter and hash chain where the previous run
// left off.
type Recovery struct {
	db *sql.DB
}

func NewRecovery(db *sql.DB) *Recovery {
	return &Recovery{db: db}
}

// ResumePoint describes the tail of the persisted event log.
type ResumePoint struct {
	NextSequence int64
	LastHash     [32]byte
	Empty        bool
}

// LatestResumePoint returns the sequence the core should assign next
// and the state hash of the last persisted event. An empty log means a
// cold start from the genesis hash.
func (r *Recovery) LatestResumePoint(ctx context.Context) (ResumePoint, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT sequence, state_hash FROM event_log.events
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var seq int64
	var hash []byte
	if err := row.Scan(&seq, &hash); err != nil {
		if err == sql.ErrNoRows {
			return ResumePoint{Empty: true}, nil
		}
		return ResumePoint{}, fmt.Errorf("read log tail: %w", err)
	}
	if len(hash) != 32 {
		return ResumePoint{}, fmt.Errorf("state_hash at seq %d has %d bytes, want 32", seq, len(hash))
	}

	rp := ResumePoint{NextSequence: seq + 1}
	copy(rp.LastHash[:], hash)
	return rp, nil
}

// LoadEventsFrom loads persisted events at or after fromSequence, in
// order. Used to rebuild projections and for offline inspection.
func (r *Recovery) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sequence, event_id, event_type, pool_id, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventID, &e.EventType, &e.PoolID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
