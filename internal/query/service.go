package query

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// QueryService provides read-only access to the amm.* read-model
// tables and the event log. All state responses carry as_of_sequence,
// the projection watermark at query time, for freshness semantics.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetPool returns one pool's projected state.
func (qs *QueryService) GetPool(ctx context.Context, poolID string) (*PoolResponse, error) {
	asOfSeq, err := qs.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var p PoolResponse
	err = qs.db.QueryRowContext(ctx, `
		SELECT pool_id, token0, token1, fee, tick_spacing, extension,
		       sqrt_ratio::text, tick, liquidity::text
		FROM amm.pools
		WHERE pool_id = $1
	`, poolID).Scan(
		&p.PoolID, &p.Token0, &p.Token1, &p.Fee, &p.TickSpacing,
		&p.Extension, &p.SqrtRatio, &p.Tick, &p.Liquidity,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	p.AsOfSequence = asOfSeq
	return &p, nil
}

// ListPools returns all projected pools.
func (qs *QueryService) ListPools(ctx context.Context) ([]PoolResponse, error) {
	asOfSeq, err := qs.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT pool_id, token0, token1, fee, tick_spacing, extension,
		       sqrt_ratio::text, tick, liquidity::text
		FROM amm.pools
		ORDER BY pool_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pools []PoolResponse
	for rows.Next() {
		var p PoolResponse
		if err := rows.Scan(
			&p.PoolID, &p.Token0, &p.Token1, &p.Fee, &p.TickSpacing,
			&p.Extension, &p.SqrtRatio, &p.Tick, &p.Liquidity,
		); err != nil {
			return nil, err
		}
		p.AsOfSequence = asOfSeq
		pools = append(pools, p)
	}
	return pools, rows.Err()
}

// ListPositions returns an owner's open positions, optionally filtered
// to one pool.
func (qs *QueryService) ListPositions(ctx context.Context, owner string, poolID string) ([]PositionResponse, error) {
	asOfSeq, err := qs.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	q := `
		SELECT pool_id, owner, lower_tick, upper_tick, salt, liquidity::text
		FROM amm.positions
		WHERE owner = $1
	`
	args := []interface{}{owner}
	if poolID != "" {
		q += ` AND pool_id = $2`
		args = append(args, poolID)
	}
	q += ` ORDER BY pool_id, lower_tick, upper_tick, salt`

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionResponse
	for rows.Next() {
		var p PositionResponse
		if err := rows.Scan(&p.PoolID, &p.Owner, &p.LowerTick, &p.UpperTick, &p.Salt, &p.Liquidity); err != nil {
			return nil, err
		}
		p.AsOfSequence = asOfSeq
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// ListSavedBalances returns an owner's saved balances across all
// tokens and salts.
func (qs *QueryService) ListSavedBalances(ctx context.Context, owner string) ([]SavedBalanceResponse, error) {
	asOfSeq, err := qs.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT owner, token, salt, balance::text
		FROM amm.saved_balances
		WHERE owner = $1
		ORDER BY token, salt
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []SavedBalanceResponse
	for rows.Next() {
		var b SavedBalanceResponse
		if err := rows.Scan(&b.Owner, &b.Token, &b.Salt, &b.Balance); err != nil {
			return nil, err
		}
		b.AsOfSequence = asOfSeq
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// ListExtensions returns all registered extensions.
func (qs *QueryService) ListExtensions(ctx context.Context) ([]ExtensionResponse, error) {
	asOfSeq, err := qs.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT address, call_points FROM amm.extensions ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exts []ExtensionResponse
	for rows.Next() {
		var e ExtensionResponse
		var points int32
		if err := rows.Scan(&e.Address, &points); err != nil {
			return nil, err
		}
		e.CallPoints = uint16(points)
		e.AsOfSequence = asOfSeq
		exts = append(exts, e)
	}
	return exts, rows.Err()
}

// GetEvents returns a page of the event log starting at cursor,
// optionally filtered by pool. hasMore is detected by fetching one row
// beyond the page size.
func (qs *QueryService) GetEvents(ctx context.Context, cursor int64, limit int, poolID string) (*EventPage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	q := `
		SELECT sequence, event_id, event_type, pool_id, payload, state_hash, prev_hash, timestamp
		FROM event_log.events
		WHERE sequence >= $1
	`
	args := []interface{}{cursor}
	if poolID != "" {
		q += ` AND pool_id = $3`
	}
	q += ` ORDER BY sequence ASC LIMIT $2`
	args = append(args, limit+1)
	if poolID != "" {
		args = append(args, poolID)
	}

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &EventPage{}
	for rows.Next() {
		var e EventRecord
		var stateHash, prevHash []byte
		if err := rows.Scan(
			&e.Sequence, &e.EventID, &e.EventType, &e.PoolID,
			&e.Payload, &stateHash, &prevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		e.StateHash = hex.EncodeToString(stateHash)
		e.PrevHash = hex.EncodeToString(prevHash)
		page.Events = append(page.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(page.Events) > limit {
		page.Events = page.Events[:limit]
		page.HasMore = true
	}
	if n := len(page.Events); n > 0 {
		page.NextCursor = page.Events[n-1].Sequence + 1
	} else {
		page.NextCursor = cursor
	}
	return page, nil
}

// VerifyIntegrity checks hash chain continuity and the saved-balance
// invariant (no saved balance may ever project negative).
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		LEFT JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.sequence > 0 AND e1.prev_hash != COALESCE(e2.state_hash, e1.prev_hash)
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	balanceRows, err := qs.db.QueryContext(ctx, `
		SELECT owner, token, salt, balance::text
		FROM amm.saved_balances
		WHERE balance < 0
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var b SavedBalanceResponse
		if err := balanceRows.Scan(&b.Owner, &b.Token, &b.Salt, &b.Balance); err != nil {
			return nil, err
		}
		report.NegativeSavedBalance = append(report.NegativeSavedBalance, b)
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.NegativeSavedBalance) == 0
	return report, nil
}

func (qs *QueryService) watermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM amm.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}
