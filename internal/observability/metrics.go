package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the settlement engine.
type Metrics struct {
	// --- Core processing ---
	CoreLocksCompleted *prometheus.CounterVec
	CoreLocksRejected  *prometheus.CounterVec
	CoreLockDuration   prometheus.Histogram
	CoreLockDepth      prometheus.Gauge
	CoreSequence       prometheus.Gauge
	CoreEventsEmitted  *prometheus.CounterVec
	CoreStateHashDur   prometheus.Histogram

	// --- Pools ---
	PoolsInitialized    prometheus.Counter
	SwapsExecuted       *prometheus.CounterVec
	SwapTicksCrossed    prometheus.Histogram
	PositionUpdates     *prometheus.CounterVec
	ProtocolFeesAccrued *prometheus.CounterVec

	// --- Ledger ---
	Withdrawals       prometheus.Counter
	SavedBalanceOps   *prometheus.CounterVec
	PayReentranceHits prometheus.Counter

	// --- Operation intake ---
	IntakeOps *prometheus.CounterVec

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CoreLocksCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_core_locks_completed_total",
			Help: "Locked calls that settled successfully",
		}, []string{"operation"}),

		CoreLocksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_core_locks_rejected_total",
			Help: "Locked calls rolled back (unsettled debt, validation)",
		}, []string{"reason"}),

		CoreLockDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amm_core_lock_duration_seconds",
			Help:    "Duration of one outermost locked call",
			Buckets: latencyBuckets,
		}),

		CoreLockDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "amm_core_lock_depth",
			Help: "Current lock nesting depth",
		}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "amm_core_sequence",
			Help: "Current global event sequence number",
		}),

		CoreEventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_core_events_emitted_total",
			Help: "Events emitted to the log",
		}, []string{"event_type"}),

		CoreStateHashDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amm_core_state_hash_duration_seconds",
			Help:    "Time to compute state hash",
			Buckets: latencyBuckets,
		}),

		PoolsInitialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_pools_initialized_total",
			Help: "Pools initialized",
		}),

		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_swaps_executed_total",
			Help: "Swaps executed",
		}, []string{"pool_id"}),

		SwapTicksCrossed: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amm_swap_ticks_crossed",
			Help:    "Initialized ticks crossed per swap",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),

		PositionUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_position_updates_total",
			Help: "Position liquidity updates",
		}, []string{"pool_id", "direction"}),

		ProtocolFeesAccrued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_protocol_fees_accrued_total",
			Help: "Protocol fee accruals",
		}, []string{"pool_id"}),

		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_withdrawals_total",
			Help: "Withdrawals executed",
		}),

		SavedBalanceOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_saved_balance_ops_total",
			Help: "Saved balance operations",
		}, []string{"op"}),

		PayReentranceHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_pay_reentrance_rejections_total",
			Help: "Payments rejected by the reentrance guard",
		}),

		IntakeOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_intake_ops_total",
			Help: "Operations received on the intake surface",
		}, []string{"type", "outcome"}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "amm_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "amm_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "amm_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amm_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "amm_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "amm_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "amm_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "amm_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "amm_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
