// Package metrics provides Prometheus metrics for the tally service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the tally service.
type Manager struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	// Admission metrics - the heart of the pipeline.
	votesAccepted    prometheus.Counter
	votesDuplicate   prometheus.Counter
	votesUnresolved  prometheus.Counter
	admissionErrors  prometheus.Counter
	admissionLatency prometheus.Histogram

	// Resolver metrics.
	resolveConfidence prometheus.Histogram
	resolveRefreshes  prometheus.Counter

	// Queue metrics.
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter

	// Worker metrics.
	workerCount  prometheus.Gauge
	ackErrors    prometheus.Counter
	notifyErrors prometheus.Counter

	// Catalog metrics.
	entriesTotal prometheus.Gauge

	// Replication metrics.
	replicationSyncs    prometheus.Counter
	replicationErrors   prometheus.Counter
	replicationSkipped  prometheus.Counter
	replicationDuration prometheus.Histogram
	replicationLastUnix prometheus.Gauge

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go collector noise.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "tally",
		subsystem: "votes",
		registry:  prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.votesAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "accepted_total",
		Help: "Total vote events accepted and committed to the catalog store.",
	})
	m.votesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "duplicate_total",
		Help: "Total vote events rejected as already-processed ids.",
	})
	m.votesUnresolved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "unresolved_total",
		Help: "Total vote events whose label matched no catalog entry.",
	})
	m.admissionErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "admission_errors_total",
		Help: "Total vote events that failed admission due to store errors.",
	})
	m.admissionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "admission_latency_ms",
		Help:    "Admission latency per vote event in milliseconds.",
		Buckets: prometheus.DefBuckets,
	})

	m.resolveConfidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "resolver",
		Name:    "confidence",
		Help:    "Best-match confidence per resolution attempt (0-100).",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})
	m.resolveRefreshes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "resolver",
		Name: "cache_refreshes_total",
		Help: "Total canonical-name cache rebuilds.",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "size",
		Help: "Current number of queued vote events.",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "capacity",
		Help: "Configured queue capacity.",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "queue",
		Name: "enqueue_errors_total",
		Help: "Total failed enqueue attempts (backpressure or closed queue).",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "workers",
		Name: "count",
		Help: "Number of admission workers.",
	})
	m.ackErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "workers",
		Name: "ack_errors_total",
		Help: "Total failed acknowledgments to the event source.",
	})
	m.notifyErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "workers",
		Name: "notify_errors_total",
		Help: "Total failed fire-and-forget notifications.",
	})

	m.entriesTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "catalog",
		Name: "entries",
		Help: "Number of catalog entries tracked.",
	})

	m.replicationSyncs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "replication",
		Name: "syncs_total",
		Help: "Total successful replication cycles.",
	})
	m.replicationErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "replication",
		Name: "errors_total",
		Help: "Total replication attempts that failed.",
	})
	m.replicationSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "replication",
		Name: "skipped_total",
		Help: "Total replication cycles skipped because nothing changed.",
	})
	m.replicationDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "replication",
		Name:    "duration_ms",
		Help:    "Duration of a replication cycle in milliseconds.",
		Buckets: prometheus.DefBuckets,
	})
	m.replicationLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "replication",
		Name: "last_success_unix",
		Help: "Unix timestamp of the last successful replication cycle.",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "Total HTTP requests by endpoint, method and status code.",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_ms",
		Help:    "HTTP request duration in milliseconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// Admission metrics helpers.

func RecordVoteAccepted()   { globalManager.votesAccepted.Inc() }
func RecordVoteDuplicate()  { globalManager.votesDuplicate.Inc() }
func RecordVoteUnresolved() { globalManager.votesUnresolved.Inc() }
func RecordAdmissionError() { globalManager.admissionErrors.Inc() }

func RecordAdmissionLatency(latencyMs float64) {
	globalManager.admissionLatency.Observe(latencyMs)
}

// Resolver metrics helpers.

func RecordResolveConfidence(confidence float64) {
	globalManager.resolveConfidence.Observe(confidence)
}

func RecordResolveCacheRefresh() { globalManager.resolveRefreshes.Inc() }

// Queue metrics helpers.

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func RecordQueueEnqueueError()         { globalManager.queueEnqueueErrors.Inc() }

// Worker metrics helpers.

func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }
func RecordAckError()             { globalManager.ackErrors.Inc() }
func RecordNotifyError()          { globalManager.notifyErrors.Inc() }

// Catalog metrics helpers.

func UpdateTotalEntries(count int) { globalManager.entriesTotal.Set(float64(count)) }

// Replication metrics helpers.

func RecordReplicationSync()    { globalManager.replicationSyncs.Inc() }
func RecordReplicationError()   { globalManager.replicationErrors.Inc() }
func RecordReplicationSkipped() { globalManager.replicationSkipped.Inc() }

func RecordReplicationDuration(durationMs float64) {
	globalManager.replicationDuration.Observe(durationMs)
}

func UpdateReplicationLastSuccess(unix int64) {
	globalManager.replicationLastUnix.Set(float64(unix))
}

// HTTP metrics helpers.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the custom registry for serving /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
