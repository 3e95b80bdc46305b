package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"AMMLedger/internal/event"
	"AMMLedger/internal/extension"
	"AMMLedger/internal/ledger"
	"AMMLedger/internal/observability"
	"AMMLedger/internal/pool"
)

// Config carries the engine-level parameters.
type Config struct {
	// ProtocolFeeRate is the protocol's share of swap fees, in parts
	// per million of the fee amount. Zero disables the protocol cut.
	ProtocolFeeRate uint64

	// ProtocolOwner receives accrued protocol fees as a saved balance
	// under the zero salt.
	ProtocolOwner common.Address
}

// CoreOutput is what the engine emits downstream for every event.
type CoreOutput struct {
	Envelope *event.EventEnvelope
	Payload  event.Event
}

// Engine is the single-threaded settlement core. All state changes
// happen inside locked calls; an outermost lock either settles fully or
// leaves no trace. Events produced during a lock are buffered and only
// emitted once the lock unwinds settled.
type Engine struct {
	log zerolog.Logger
	cfg Config

	accountant *ledger.Accountant
	pools      *pool.Registry
	extensions *extension.Registry
	dispatch   *extension.Dispatcher

	sequence int64
	hasher   *StateHasher
	metrics  *observability.Metrics

	persistChan chan<- CoreOutput
	publishChan chan<- CoreOutput

	pending []pendingEvent
}

type pendingEvent struct {
	evt event.Event
	ts  time.Time
}

func NewEngine(
	cfg Config,
	bank ledger.Bank,
	vault common.Address,
	startSequence int64,
	persistChan, publishChan chan<- CoreOutput,
	metrics *observability.Metrics,
) *Engine {
	extensions := extension.NewRegistry()
	return &Engine{
		log:         observability.NewLogger("core"),
		cfg:         cfg,
		accountant:  ledger.NewAccountant(bank, vault),
		pools:       pool.NewRegistry(),
		extensions:  extensions,
		dispatch:    extension.NewDispatcher(extensions),
		sequence:    startSequence,
		hasher:      NewStateHasher(),
		metrics:     metrics,
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// Accountant exposes the ledger for read-only callers.
func (e *Engine) Accountant() *ledger.Accountant { return e.accountant }

// Pools exposes the pool registry for read-only callers.
func (e *Engine) Pools() *pool.Registry { return e.pools }

// Sequence returns the next event sequence number.
func (e *Engine) Sequence() int64 { return e.sequence }

// StateHash returns the current hash chain tip.
func (e *Engine) StateHash() [32]byte { return e.hasher.GetPrevHash() }

// ResumeHashChain points the hasher at the last persisted state hash.
// Called once during startup recovery, before any lock runs.
func (e *Engine) ResumeHashChain(prev [32]byte) { e.hasher.Resume(prev) }

// RegisterExtension binds an extension implementation to its address.
// Registration happens outside any lock and takes effect immediately.
func (e *Engine) RegisterExtension(addr common.Address, ext extension.Extension, ts time.Time) error {
	if e.accountant.InLock() {
		return fmt.Errorf("core: extension registration inside a locked call")
	}
	if err := e.extensions.Register(addr, ext); err != nil {
		return err
	}
	e.emit(&event.ExtensionRegistered{
		ID:         uuid.New(),
		Extension:  addr,
		CallPoints: uint16(ext.CallPoints()),
		Timestamp:  ts,
	}, ts)
	e.log.Info().
		Str("extension", addr.Hex()).
		Uint16("call_points", uint16(ext.CallPoints())).
		Msg("extension registered")
	return nil
}

// snapshot captures everything a lock frame might mutate.
type snapshot struct {
	ledger  *ledger.State
	pools   map[common.Hash]*pool.Pool
	pending int
}

func (e *Engine) takeSnapshot() snapshot {
	return snapshot{
		ledger:  e.accountant.Snapshot(),
		pools:   e.pools.Snapshot(),
		pending: len(e.pending),
	}
}

func (e *Engine) restoreSnapshot(s snapshot) {
	e.accountant.Restore(s.ledger)
	e.pools.Restore(s.pools)
	e.pending = e.pending[:s.pending]
}

// Lock opens a lock frame for owner and runs fn against a session bound
// to that frame. Every frame is all-or-nothing: on any error the
// engine-internal state is restored to the frame's entry point and its
// buffered events are dropped. The timestamp is a versioned input; the
// engine never reads the wall clock for event ordering.
func (e *Engine) Lock(owner common.Address, ts time.Time, fn func(*Session) error) error {
	outermost := !e.accountant.InLock()
	snap := e.takeSnapshot()

	var start time.Time
	if outermost {
		start = time.Now()
	}
	if e.metrics != nil {
		e.metrics.CoreLockDepth.Set(float64(e.accountant.Depth() + 1))
	}

	err := e.accountant.Lock(owner, ledger.LockerFunc(func(frameID uint64, _ []byte) error {
		s := &Session{engine: e, owner: owner, ts: ts, frameID: frameID}
		return fn(s)
	}), nil)

	if e.metrics != nil {
		e.metrics.CoreLockDepth.Set(float64(e.accountant.Depth()))
	}

	if err != nil {
		e.restoreSnapshot(snap)
		if e.metrics != nil {
			e.metrics.CoreLocksRejected.WithLabelValues(rejectionReason(err)).Inc()
			if errors.Is(err, ledger.ErrPayReentrance) {
				e.metrics.PayReentranceHits.Inc()
			}
		}
		e.log.Debug().Err(err).Str("owner", owner.Hex()).Msg("locked call rolled back")
		return err
	}

	if outermost {
		e.flushPending()
		if e.metrics != nil {
			e.metrics.CoreLocksCompleted.WithLabelValues("lock").Inc()
			e.metrics.CoreLockDuration.Observe(time.Since(start).Seconds())
		}
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnsettledDebt):
		return "unsettled_debt"
	case errors.Is(err, ledger.ErrPayReentrance):
		return "pay_reentrance"
	default:
		return "error"
	}
}

// buffer queues an event for emission when the outermost lock settles.
func (e *Engine) buffer(evt event.Event, ts time.Time) {
	e.pending = append(e.pending, pendingEvent{evt: evt, ts: ts})
}

func (e *Engine) flushPending() {
	for _, p := range e.pending {
		e.emit(p.evt, p.ts)
	}
	e.pending = e.pending[:0]
}

// emit assigns a sequence, extends the hash chain, and sends the event
// downstream. The persist send blocks (no event may be lost); the
// publish send drops on a full channel.
func (e *Engine) emit(evt event.Event, ts time.Time) {
	payload, err := json.Marshal(evt)
	if err != nil {
		e.log.Error().Err(err).Str("event_type", evt.EventType().String()).Msg("event payload marshal failed")
		payload = nil
	}

	hashStart := time.Now()
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, payload)
	if e.metrics != nil {
		e.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	output := CoreOutput{
		Envelope: &event.EventEnvelope{
			Sequence:  e.sequence,
			EventID:   evt.EventID(),
			EventType: evt.EventType(),
			PoolID:    evt.PoolID(),
			Timestamp: ts,
			Payload:   payload,
			StateHash: stateHash,
			PrevHash:  prevHash,
		},
		Payload: evt,
	}
	e.sequence++

	if e.persistChan != nil {
		select {
		case e.persistChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- output
		}
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- output:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.CoreEventsEmitted.WithLabelValues(evt.EventType().String()).Inc()
		e.metrics.CoreSequence.Set(float64(e.sequence))
	}
}
