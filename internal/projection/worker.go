package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"AMMLedger/internal/event"
)

// Update mirrors the fields of an emitted envelope that projections
// consume. The orchestrator bridges between the core's output channel
// and this.
type Update struct {
	Sequence  int64
	EventType string
	Payload   []byte
}

// ProjectionWorker maintains the amm.* read-model tables from
// processed events. The projection channel is non-blocking with drop:
// if projections fall behind they can be rebuilt from the event log.
type ProjectionWorker struct {
	db            *sql.DB
	inputChan     <-chan Update
	protocolOwner common.Address
	log           zerolog.Logger
	lastSeq       int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan Update, protocolOwner common.Address, log zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		db:            db,
		inputChan:     inputChan,
		protocolOwner: protocolOwner,
		log:           log.With().Str("component", "projection").Logger(),
	}
}

// Run starts the projection loop. Blocks until ctx is cancelled.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.apply(ctx, update); err != nil {
				// Projections are eventually consistent and can be
				// rebuilt from the event log.
				pw.log.Warn().Err(err).Int64("sequence", update.Sequence).Msg("projection update failed")
			}
			pw.lastSeq = update.Sequence
		}
	}
}

func (pw *ProjectionWorker) apply(ctx context.Context, update Update) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := pw.applyEvent(ctx, tx, update); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO amm.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, update.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (pw *ProjectionWorker) applyEvent(ctx context.Context, tx *sql.Tx, update Update) error {
	switch update.EventType {
	case event.EventTypePoolInitialized.String():
		var e event.PoolInitialized
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode PoolInitialized: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO amm.pools
				(pool_id, token0, token1, fee, tick_spacing, extension, sqrt_ratio, tick, liquidity, last_sequence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9)
			ON CONFLICT (pool_id) DO NOTHING
		`, e.Pool.Hex(), e.Token0.Hex(), e.Token1.Hex(), int64(e.Fee), e.TickSpacing,
			e.Extension.Hex(), e.SqrtRatio, e.Tick, update.Sequence)
		return err

	case event.EventTypeExtensionRegistered.String():
		var e event.ExtensionRegistered
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode ExtensionRegistered: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO amm.extensions (address, call_points, last_sequence)
			VALUES ($1, $2, $3)
			ON CONFLICT (address) DO NOTHING
		`, e.Extension.Hex(), int32(e.CallPoints), update.Sequence)
		return err

	case event.EventTypeSwapExecuted.String():
		var e event.SwapExecuted
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode SwapExecuted: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE amm.pools
			SET sqrt_ratio = $2, tick = $3, liquidity = $4::numeric, last_sequence = $5
			WHERE pool_id = $1
		`, e.Pool.Hex(), e.SqrtRatioAfter, e.TickAfter, e.LiquidityAfter, update.Sequence)
		return err

	case event.EventTypePositionUpdated.String():
		var e event.PositionUpdated
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode PositionUpdated: %w", err)
		}
		return pw.applyPositionDelta(ctx, tx, e, update.Sequence)

	case event.EventTypeBalanceSaved.String():
		var e event.BalanceSaved
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode BalanceSaved: %w", err)
		}
		return pw.applySavedDelta(ctx, tx, e.Owner, e.Token, e.Salt, e.Amount, false, update.Sequence)

	case event.EventTypeBalanceLoaded.String():
		var e event.BalanceLoaded
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode BalanceLoaded: %w", err)
		}
		return pw.applySavedDelta(ctx, tx, e.Owner, e.Token, e.Salt, e.Amount, true, update.Sequence)

	case event.EventTypeProtocolFeesAccrued.String():
		var e event.ProtocolFeesAccrued
		if err := json.Unmarshal(update.Payload, &e); err != nil {
			return fmt.Errorf("decode ProtocolFeesAccrued: %w", err)
		}
		// Protocol fees land in the owner's zero-salt saved balance.
		return pw.applySavedDelta(ctx, tx, pw.protocolOwner, e.Token, common.Hash{}, e.Amount, false, update.Sequence)

	default:
		// FeesCollected and WithdrawalExecuted only advance the
		// watermark; they leave no read-model state behind.
		return nil
	}
}

func (pw *ProjectionWorker) applyPositionDelta(ctx context.Context, tx *sql.Tx, e event.PositionUpdated, seq int64) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO amm.positions
			(pool_id, owner, lower_tick, upper_tick, salt, liquidity, last_sequence)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		ON CONFLICT (pool_id, owner, lower_tick, upper_tick, salt)
		DO UPDATE SET liquidity = amm.positions.liquidity + $6::numeric, last_sequence = $7
	`, e.Pool.Hex(), e.Owner.Hex(), e.Lower, e.Upper, e.Salt.Hex(), e.LiquidityDelta, seq); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		DELETE FROM amm.positions
		WHERE pool_id = $1 AND owner = $2 AND lower_tick = $3 AND upper_tick = $4 AND salt = $5
		  AND liquidity <= 0
	`, e.Pool.Hex(), e.Owner.Hex(), e.Lower, e.Upper, e.Salt.Hex())
	return err
}

func (pw *ProjectionWorker) applySavedDelta(
	ctx context.Context,
	tx *sql.Tx,
	owner, token common.Address,
	salt common.Hash,
	amount string,
	negate bool,
	seq int64,
) error {
	sign := ""
	if negate {
		sign = "-"
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO amm.saved_balances (owner, token, salt, balance, last_sequence)
		VALUES ($1, $2, $3, `+sign+`$4::numeric, $5)
		ON CONFLICT (owner, token, salt)
		DO UPDATE SET balance = amm.saved_balances.balance + `+sign+`$4::numeric, last_sequence = $5
	`, owner.Hex(), token.Hex(), salt.Hex(), amount, seq); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `
		DELETE FROM amm.saved_balances
		WHERE owner = $1 AND token = $2 AND salt = $3 AND balance = 0
	`, owner.Hex(), token.Hex(), salt.Hex())
	return err
}

// RebuildProjections truncates every read-model table and replays the
// durable event log through the same apply path the live worker uses.
func RebuildProjections(ctx context.Context, db *sql.DB, protocolOwner common.Address, log zerolog.Logger) error {
	truncateStatements := []string{
		`TRUNCATE amm.pools`,
		`TRUNCATE amm.extensions`,
		`TRUNCATE amm.positions`,
		`TRUNCATE amm.saved_balances`,
		`DELETE FROM amm.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	pw := &ProjectionWorker{db: db, protocolOwner: protocolOwner, log: log}

	const pageSize = 1000
	var cursor int64
	for {
		rows, err := db.QueryContext(ctx, `
			SELECT sequence, event_type, payload FROM event_log.events
			WHERE sequence >= $1
			ORDER BY sequence ASC
			LIMIT $2
		`, cursor, pageSize)
		if err != nil {
			return fmt.Errorf("read event log: %w", err)
		}

		var page []Update
		for rows.Next() {
			var u Update
			if err := rows.Scan(&u.Sequence, &u.EventType, &u.Payload); err != nil {
				rows.Close()
				return err
			}
			page = append(page, u)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, u := range page {
			if err := pw.apply(ctx, u); err != nil {
				return fmt.Errorf("replay seq %d: %w", u.Sequence, err)
			}
		}

		if len(page) < pageSize {
			break
		}
		cursor = page[len(page)-1].Sequence + 1
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
