package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reconciliation counters and histograms, partitioned by network where the
// value depends on which chain the service reads.

var (
	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total JSON-RPC calls by method and outcome",
	}, []string{"network", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"network"})

	RPCCircuitTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "rpc",
		Name:      "circuit_transitions_total",
		Help:      "Total RPC circuit breaker state transitions",
	}, []string{"network", "to"})

	// Chain reader
	ChainReadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "chain",
		Name:      "read_failures_total",
		Help:      "Total per-parcel chain reads skipped after failure",
	}, []string{"network"})

	WatcherHeadBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "watcher",
		Name:      "head_block",
		Help:      "Last block scanned for contract events",
	}, []string{"network"})

	WatcherEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "watcher",
		Name:      "events_total",
		Help:      "Total contract events delivered to the synchronizer",
	}, []string{"network", "kind"})

	// Synchronizer
	SyncRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "sync",
		Name:      "refresh_total",
		Help:      "Total batch refreshes by outcome (applied, superseded, error)",
	}, []string{"network", "outcome"})

	SyncRefreshLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "terra",
		Subsystem: "sync",
		Name:      "refresh_duration_seconds",
		Help:      "Batch refresh duration including the chain round trip",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"network"})

	SyncSnapshotParcels = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "sync",
		Name:      "snapshot_parcels",
		Help:      "Parcels in the current chain snapshot",
	}, []string{"network"})

	SyncBulkOverwrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "sync",
		Name:      "bulk_overwrites_total",
		Help:      "Total bulk chain-state overwrites of the secondary cache",
	}, []string{"network"})

	SyncParcelErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "sync",
		Name:      "parcel_errors_total",
		Help:      "Total single-parcel sync failures",
	}, []string{"network", "stage"})

	// Confirmation watcher
	ConfirmOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "confirm",
		Name:      "outcomes_total",
		Help:      "Total watched transactions by outcome (success, reverted, timeout, duplicate)",
	}, []string{"network", "outcome"})

	ConfirmInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "confirm",
		Name:      "in_flight",
		Help:      "Transactions currently being watched",
	}, []string{"network"})

	ConfirmLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "terra",
		Subsystem: "confirm",
		Name:      "wait_duration_seconds",
		Help:      "Time from watch start to mined receipt",
		Buckets:   []float64{1, 2.5, 5, 10, 15, 30, 60, 120, 300, 600},
	}, []string{"network"})

	// Secondary cache
	MirrorWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "mirror",
		Name:      "writes_total",
		Help:      "Total secondary cache writes by operation and outcome",
	}, []string{"op", "status"})

	MirrorStaleMarkersPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "mirror",
		Name:      "stale_markers_purged_total",
		Help:      "Total pending markers deleted after the staleness window",
	})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "terra",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total API requests by route pattern and status code",
	}, []string{"route", "code"})

	APIRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Total API requests rejected by the per-IP limiter",
	})

	// Change notifications
	NotifyPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "terra",
		Subsystem: "notify",
		Name:      "publish_errors_total",
		Help:      "Total change notifications that failed to publish",
	}, []string{"backend"})
)
