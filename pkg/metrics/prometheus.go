// Package metrics provides Prometheus metrics for the taikai score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the taikai service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ledger
	submissions    *prometheus.CounterVec
	ledgerRecords  prometheus.Gauge
	teamCount      prometheus.Gauge
	recomputes     *prometheus.CounterVec
	recomputeTime  prometheus.Histogram
	unknownRecords prometheus.Counter
	autoRecompute  *prometheus.CounterVec

	// Mutation queue
	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	queueDepth      *prometheus.GaugeVec
	queueCapacity   prometheus.Gauge
	backpressure    *prometheus.CounterVec

	// Storage
	storageOps     *prometheus.CounterVec
	storageLatency *prometheus.HistogramVec

	// Broadcast
	broadcasts  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByComp     *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "taikai",
		subsystem:        "scores",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.submissions = m.counterVec("submissions_total",
		"Single score submissions by outcome (accepted, duplicate, rejected)", "outcome")
	m.ledgerRecords = m.gauge("ledger_records", "Number of records in the score ledger")
	m.teamCount = m.gauge("teams", "Number of teams on the roster")
	m.recomputes = m.counterVec("recomputes_total", "Roster recomputes by outcome", "outcome")
	m.recomputeTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recompute_duration_milliseconds",
		Help:        "Time spent recomputing the roster from the ledger",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.unknownRecords = m.counter("unknown_team_records_total",
		"Ledger records seen during recompute whose team was not on the roster")
	m.autoRecompute = m.counterVec("auto_recompute_failures_total",
		"Recomputes after a committed ledger change that left the roster stale, by reason", "reason")

	m.mutations = m.counterVec("mutations_total", "Queued mutations by resource and outcome", "resource", "outcome")
	m.mutationLatency = m.histogramVec("mutation_latency_milliseconds",
		"Time from enqueue to completion of a mutation", "resource")
	m.queueDepth = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_depth",
		Help:        "Mutations waiting per resource",
		ConstLabels: m.constLabels,
	}, []string{"resource"})
	m.queueCapacity = m.gauge("queue_capacity", "Configured capacity of each resource queue")
	m.backpressure = m.counterVec("queue_backpressure_total", "Mutations refused because a queue was full", "resource")

	m.storageOps = m.counterVec("storage_operations_total",
		"Storage backend calls by backend, operation and outcome", "backend", "operation", "outcome")
	m.storageLatency = m.histogramVec("storage_latency_milliseconds",
		"Storage backend call latency", "backend", "operation")

	m.broadcasts = m.counterVec("broadcasts_total", "Messages delivered to subscribers by topic", "topic")
	m.dropped = m.counterVec("broadcast_dropped_total", "Messages dropped for slow subscribers by topic", "topic")
	m.subscribers = m.gauge("subscribers", "Connected live sync subscribers")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorRateByComp = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// Ledger metrics.

// RecordSubmission counts a single-record submission by outcome.
func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

// UpdateLedgerSize sets the ledger record count.
func UpdateLedgerSize(n int) {
	globalManager.ledgerRecords.Set(float64(n))
}

// UpdateTeamCount sets the roster size.
func UpdateTeamCount(n int) {
	globalManager.teamCount.Set(float64(n))
}

// RecordRecompute records a completed recompute.
func RecordRecompute(latencyMs float64, unknownRecords int) {
	globalManager.recomputes.WithLabelValues("ok").Inc()
	globalManager.recomputeTime.Observe(latencyMs)
	if unknownRecords > 0 {
		globalManager.unknownRecords.Add(float64(unknownRecords))
	}
}

// RecordRecomputeError counts a recompute that did not produce a roster.
func RecordRecomputeError() {
	globalManager.recomputes.WithLabelValues("error").Inc()
}

// RecordAutoRecomputeFailure counts a recompute triggered by a ledger change
// that failed after the ledger had already committed.
func RecordAutoRecomputeFailure(reason string) {
	globalManager.autoRecompute.WithLabelValues(reason).Inc()
}

// Queue metrics.

// RecordMutation records a finished mutation and its enqueue-to-done latency.
func RecordMutation(resource, outcome string, latencyMs float64) {
	globalManager.mutations.WithLabelValues(resource, outcome).Inc()
	globalManager.mutationLatency.WithLabelValues(resource).Observe(latencyMs)
}

// UpdateQueueDepth sets the number of pending mutations for a resource.
func UpdateQueueDepth(resource string, depth int) {
	globalManager.queueDepth.WithLabelValues(resource).Set(float64(depth))
}

// UpdateQueueCapacity sets the per-resource queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordBackpressure counts a refused enqueue.
func RecordBackpressure(resource string) {
	globalManager.backpressure.WithLabelValues(resource).Inc()
}

// Storage metrics.

// RecordStorageOperation records one backend call.
func RecordStorageOperation(backend, operation, outcome string, latencyMs float64) {
	globalManager.storageOps.WithLabelValues(backend, operation, outcome).Inc()
	globalManager.storageLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// Broadcast metrics.

// RecordBroadcast counts a message handed to a subscriber.
func RecordBroadcast(topic string) {
	globalManager.broadcasts.WithLabelValues(topic).Inc()
}

// RecordBroadcastDropped counts a message a subscriber could not take.
func RecordBroadcastDropped(topic string) {
	globalManager.dropped.WithLabelValues(topic).Inc()
}

// UpdateSubscribers sets the number of connected subscribers.
func UpdateSubscribers(n int) {
	globalManager.subscribers.Set(float64(n))
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComp.WithLabelValues(component, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
