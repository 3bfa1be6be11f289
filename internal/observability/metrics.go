package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for HedgeLedger.
type Metrics struct {
	// --- Engine ---
	OpsApplied     *prometheus.CounterVec
	OpsRejected    *prometheus.CounterVec
	OpDuration     *prometheus.HistogramVec
	EngineSequence prometheus.Gauge
	HedgesOpen     prometheus.Gauge
	Settlements    *prometheus.CounterVec
	FeesCollected  *prometheus.CounterVec

	// --- Oracle / price feed ---
	PriceObservations *prometheus.CounterVec
	OracleFailures    *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchDur      prometheus.Histogram
	PersistErrors        prometheus.Counter
	PersistRetry         prometheus.Counter

	// --- Outbound publishing ---
	PublishDrops prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_engine_ops_applied_total",
			Help: "State-mutating operations successfully applied",
		}, []string{"op"}),
		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_engine_ops_rejected_total",
			Help: "Operations rejected before any state mutation",
		}, []string{"op", "reason"}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hedge_engine_op_duration_seconds",
			Help:    "Operation processing latency",
			Buckets: opBuckets,
		}, []string{"op"}),
		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hedge_engine_sequence",
			Help: "Current audit event sequence",
		}),
		HedgesOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hedge_engine_hedges_open",
			Help: "Live (created or taken, unsettled) hedges",
		}),
		Settlements: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_engine_settlements_total",
			Help: "Settlements by instrument and outcome",
		}, []string{"instrument", "outcome"}),
		FeesCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_engine_fees_collected_total",
			Help: "Protocol + miner fees collected, by asset",
		}, []string{"asset"}),

		PriceObservations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_oracle_price_observations_total",
			Help: "Price samples accepted into the TWAP window",
		}, []string{"asset", "currency"}),
		OracleFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_oracle_failures_total",
			Help: "Oracle quote failures by reason",
		}, []string{"reason"}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hedge_persist_events_written_total",
			Help: "Audit events written to Postgres",
		}),
		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hedge_persist_batch_duration_seconds",
			Help:    "Audit batch write latency",
			Buckets: prometheus.DefBuckets,
		}),
		PersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hedge_persist_errors_total",
			Help: "Audit batch write failures",
		}),
		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hedge_persist_retries_total",
			Help: "Audit batch write retries",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hedge_publish_drops_total",
			Help: "Outbound events dropped on full publish channel",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hedge_query_requests_total",
			Help: "Query API requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hedge_query_duration_seconds",
			Help:    "Query API latency by endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}
