// Package metrics provides Prometheus metrics for the PLU solver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector the solver exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Solver metrics
	attempts          *prometheus.CounterVec
	attemptDuration   prometheus.Histogram
	runs              *prometheus.CounterVec
	runsActive        prometheus.Gauge
	lastKnowledge     prometheus.Gauge
	answersSubmitted  *prometheus.CounterVec
	eventsEmitted     *prometheus.CounterVec
	runAttemptsNeeded prometheus.Histogram

	// Vendor API metrics
	vendorRequests        *prometheus.CounterVec
	vendorRequestDuration *prometheus.HistogramVec

	// Answer cache metrics
	cacheItems        prometheus.Gauge
	cacheLookups      *prometheus.CounterVec
	cachePopulated    prometheus.Counter
	cacheQueryLatency prometheus.Histogram

	// Progress queue and relay metrics
	queueSize      prometheus.Gauge
	queueEnqueued  prometheus.Counter
	queueDequeued  prometheus.Counter
	relayForwarded prometheus.Counter
	relayErrors    prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "plusolver",
		subsystem:        "solver",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval is how often gauge-style system metrics should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.attempts = auto.NewCounterVec(
		m.counterOpts("attempts_total", "Quiz attempts by outcome"),
		[]string{"outcome"},
	)
	m.attemptDuration = auto.NewHistogram(m.histogramOpts(
		"attempt_duration_milliseconds",
		"Wall time of a full quiz attempt in milliseconds",
		[]float64{500, 1000, 2500, 5000, 10000, 20000, 40000, 80000},
	))
	m.runs = auto.NewCounterVec(
		m.counterOpts("runs_total", "Solver runs by mode and outcome"),
		[]string{"mode", "outcome"},
	)
	m.runsActive = auto.NewGauge(m.gaugeOpts("runs_active", "Streaming runs currently in flight"))
	m.lastKnowledge = auto.NewGauge(m.gaugeOpts(
		"last_user_knowledge_percent",
		"Knowledge percentage reported by the vendor for the latest attempt",
	))
	m.answersSubmitted = auto.NewCounterVec(
		m.counterOpts("answers_submitted_total", "Answers submitted by kind (correct, wrong, gap)"),
		[]string{"kind"},
	)
	m.eventsEmitted = auto.NewCounterVec(
		m.counterOpts("progress_events_total", "Progress events emitted by stage"),
		[]string{"stage"},
	)
	m.runAttemptsNeeded = auto.NewHistogram(m.histogramOpts(
		"run_attempts",
		"Attempts consumed by a full-knowledge run",
		[]float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
	))

	m.vendorRequests = auto.NewCounterVec(
		m.counterOpts("vendor_requests_total", "Calls to the vendor API by call and status"),
		[]string{"call", "status"},
	)
	m.vendorRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("vendor_request_duration_milliseconds", "Vendor API call latency in milliseconds",
			[]float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}),
		[]string{"call"},
	)

	m.cacheItems = auto.NewGauge(m.gaugeOpts("cache_items", "Catalog entries held by the answer cache"))
	m.cacheLookups = auto.NewCounterVec(
		m.counterOpts("cache_lookups_total", "Answer cache lookups by result (hit, miss)"),
		[]string{"result"},
	)
	m.cachePopulated = auto.NewCounter(m.counterOpts("cache_populations_total", "Completed cache population passes"))
	m.cacheQueryLatency = auto.NewHistogram(m.histogramOpts(
		"cache_query_latency_milliseconds",
		"Answer cache query latency in milliseconds",
		nil,
	))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Progress events waiting in relay queues"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Progress events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Progress events dequeued"))
	m.relayForwarded = auto.NewCounter(m.counterOpts("relay_forwarded_total", "Progress events forwarded to a sink"))
	m.relayErrors = auto.NewCounter(m.counterOpts("relay_errors_total", "Sink write failures in the relay"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counterOpts("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// Solver metrics.

// RecordAttempt counts a finished attempt and its duration.
func RecordAttempt(outcome string, durationMs float64) {
	globalManager.attempts.WithLabelValues(outcome).Inc()
	globalManager.attemptDuration.Observe(durationMs)
}

// RecordRun counts a finished run.
func RecordRun(mode, outcome string) {
	globalManager.runs.WithLabelValues(mode, outcome).Inc()
}

// RecordRunAttempts observes how many attempts a full-knowledge run consumed.
func RecordRunAttempts(n int) {
	globalManager.runAttemptsNeeded.Observe(float64(n))
}

// UpdateRunsActive sets the number of in-flight streaming runs.
func UpdateRunsActive(n int) {
	globalManager.runsActive.Set(float64(n))
}

// UpdateLastKnowledge sets the latest vendor-reported knowledge percentage.
func UpdateLastKnowledge(pct float64) {
	globalManager.lastKnowledge.Set(pct)
}

// RecordAnswers adds n submitted answers of the given kind.
func RecordAnswers(kind string, n int) {
	if n <= 0 {
		return
	}
	globalManager.answersSubmitted.WithLabelValues(kind).Add(float64(n))
}

// RecordProgressEvent counts an emitted progress event.
func RecordProgressEvent(stage string) {
	globalManager.eventsEmitted.WithLabelValues(stage).Inc()
}

// Vendor metrics.

// RecordVendorRequest counts a vendor call and observes its latency.
func RecordVendorRequest(call, status string, durationMs float64) {
	globalManager.vendorRequests.WithLabelValues(call, status).Inc()
	globalManager.vendorRequestDuration.WithLabelValues(call).Observe(durationMs)
}

// Cache metrics.

// UpdateCacheItems sets the number of cached catalog entries.
func UpdateCacheItems(n int) {
	globalManager.cacheItems.Set(float64(n))
}

// RecordCacheLookup counts a lookup as a hit or a miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

// RecordCachePopulated counts a completed population pass.
func RecordCachePopulated() {
	globalManager.cachePopulated.Inc()
}

// RecordCacheQueryLatency records cache query latency.
func RecordCacheQueryLatency(latencyMs float64) {
	globalManager.cacheQueryLatency.Observe(latencyMs)
}

// Queue and relay metrics.

// UpdateQueueSize sets the current queue backlog.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordRelayForwarded counts an event handed to a sink.
func RecordRelayForwarded() {
	globalManager.relayForwarded.Inc()
}

// RecordRelayError counts a failed sink write.
func RecordRelayError() {
	globalManager.relayErrors.Inc()
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

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// RefreshInterval returns the sampling interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
