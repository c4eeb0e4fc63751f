// Package metrics provides Prometheus metrics for the prefrank ranking engine.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ranking service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine metrics
	judgmentsRecorded  *prometheus.CounterVec
	cycleRejections    *prometheus.CounterVec
	placements         *prometheus.CounterVec
	matchupSuggestions *prometheus.CounterVec
	rankLatency        prometheus.Histogram
	rankMemoHits       prometheus.Counter
	convergencePasses  prometheus.Histogram
	convergenceCapHits prometheus.Counter
	rankRepairs        prometheus.Counter
	persistFailures    prometheus.Counter

	// Graph cache metrics
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheEvictions     prometheus.Counter
	cacheInvalidations prometheus.Counter
	cachedGraphs       prometheus.Gauge
	graphBuildLatency  prometheus.Histogram

	// Repository metrics
	storedPreferences prometheus.Gauge
	repositoryLatency *prometheus.HistogramVec

	// Warm-up queue and worker metrics
	queueCapacity           prometheus.Gauge
	queueSize               prometheus.Gauge
	queueEnqueued           prometheus.Counter
	queueDequeued           prometheus.Counter
	queueEnqueueErrors      prometheus.Counter
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec

	// System metrics
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
		namespace:        "prefrank",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.judgmentsRecorded = auto.NewCounterVec(m.counterOpts("judgments_recorded_total", "Pairwise judgments committed to a preference graph"), []string{"polarity"})
	m.cycleRejections = auto.NewCounterVec(m.counterOpts("cycle_rejections_total", "Mutations rejected because they would introduce a preference cycle"), []string{"operation"})
	m.placements = auto.NewCounterVec(m.counterOpts("placements_total", "Forced placements by outcome"), []string{"outcome"})
	m.matchupSuggestions = auto.NewCounterVec(m.counterOpts("matchup_suggestions_total", "Matchup suggestions by whether a pair was found"), []string{"found"})
	m.rankLatency = auto.NewHistogram(m.histogramOpts("rank_computation_milliseconds", "Rank computation latency in milliseconds", m.histogramBuckets))
	m.rankMemoHits = auto.NewCounter(m.counterOpts("rank_memo_hits_total", "Rank requests served from the memoized result"))
	m.convergencePasses = auto.NewHistogram(m.histogramOpts("convergence_passes", "Score adjustment passes per rank computation", prometheus.ExponentialBuckets(1, 2, 14)))
	m.convergenceCapHits = auto.NewCounter(m.counterOpts("convergence_cap_reached_total", "Rank computations that exhausted the iteration cap"))
	m.rankRepairs = auto.NewCounter(m.counterOpts("rank_repairs_total", "Rank computations repaired with a topological order"))
	m.persistFailures = auto.NewCounter(m.counterOpts("persist_failures_total", "Store writes that failed around a graph mutation"))

	m.cacheHits = auto.NewCounter(m.counterOpts("graph_cache_hits_total", "Graph cache lookups served by a live entry"))
	m.cacheMisses = auto.NewCounter(m.counterOpts("graph_cache_misses_total", "Graph cache lookups that required a build"))
	m.cacheEvictions = auto.NewCounter(m.counterOpts("graph_cache_evictions_total", "Graph cache entries dropped after expiry"))
	m.cacheInvalidations = auto.NewCounter(m.counterOpts("graph_cache_invalidations_total", "Graph cache entries dropped explicitly"))
	m.cachedGraphs = auto.NewGauge(m.gaugeOpts("graph_cache_entries", "Number of cached preference graphs"))
	m.graphBuildLatency = auto.NewHistogram(m.histogramOpts("graph_build_milliseconds", "Graph build latency in milliseconds", m.histogramBuckets))

	m.storedPreferences = auto.NewGauge(m.gaugeOpts("stored_preferences", "Preference records held by the in-memory store"))
	m.repositoryLatency = auto.NewHistogramVec(m.histogramOpts("repository_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets), []string{"operation"})

	m.queueCapacity = auto.NewGauge(m.gaugeOpts("warm_queue_capacity", "Capacity of the rank warm-up queue"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("warm_queue_size", "Current size of the rank warm-up queue"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("warm_queue_enqueued_total", "Warm-up jobs enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("warm_queue_dequeued_total", "Warm-up jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("warm_queue_enqueue_errors_total", "Warm-up jobs dropped on enqueue"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("warm_worker_count", "Number of warm-up workers"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("warm_worker_processing_milliseconds", "Warm-up job processing latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("warm_worker_errors_total", "Warm-up jobs that failed"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP error responses by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Engine Metrics Functions.

// RecordJudgment counts a judgment committed to the graph of the given polarity.
func RecordJudgment(polarity string) {
	globalManager.judgmentsRecorded.WithLabelValues(polarity).Inc()
}

// RecordCycleRejection counts a mutation rejected as cycle-forming.
func RecordCycleRejection(operation string) {
	globalManager.cycleRejections.WithLabelValues(operation).Inc()
}

// RecordPlacement counts a forced placement by outcome (committed, rolled_back).
func RecordPlacement(outcome string) {
	globalManager.placements.WithLabelValues(outcome).Inc()
}

// RecordMatchupSuggestion counts a matchup request.
func RecordMatchupSuggestion(found bool) {
	globalManager.matchupSuggestions.WithLabelValues(strconv.FormatBool(found)).Inc()
}

// RecordRankComputation records the latency of a full rank computation.
func RecordRankComputation(latencyMs float64) {
	globalManager.rankLatency.Observe(latencyMs)
}

// RecordRankMemoHit counts a rank request answered from the memo.
func RecordRankMemoHit() {
	globalManager.rankMemoHits.Inc()
}

// RecordConvergencePasses records how many adjustment passes a computation took.
func RecordConvergencePasses(passes int) {
	globalManager.convergencePasses.Observe(float64(passes))
}

// RecordConvergenceCapReached counts a computation that hit the iteration cap.
func RecordConvergenceCapReached() {
	globalManager.convergenceCapHits.Inc()
}

// RecordRankRepair counts a computation whose order was repaired topologically.
func RecordRankRepair() {
	globalManager.rankRepairs.Inc()
}

// RecordPersistFailure counts a failed store write around a mutation.
func RecordPersistFailure() {
	globalManager.persistFailures.Inc()
}

// Graph Cache Metrics Functions.

// RecordCacheHit counts a cache lookup served by a live entry.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss counts a cache lookup that needed a build.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheEvictions adds n expired entries to the eviction counter.
func RecordCacheEvictions(n int) {
	if n > 0 {
		globalManager.cacheEvictions.Add(float64(n))
	}
}

// RecordCacheInvalidation counts an explicit invalidation.
func RecordCacheInvalidation() {
	globalManager.cacheInvalidations.Inc()
}

// UpdateCachedGraphs sets the number of cached graphs.
func UpdateCachedGraphs(count int) {
	globalManager.cachedGraphs.Set(float64(count))
}

// RecordGraphBuild records the latency of building a graph from stored records.
func RecordGraphBuild(latencyMs float64) {
	globalManager.graphBuildLatency.Observe(latencyMs)
}

// Repository Metrics Functions.

// UpdateStoredPreferences sets the number of stored preference records.
func UpdateStoredPreferences(count int) {
	globalManager.storedPreferences.Set(float64(count))
}

// RecordRepositoryLatency records a store operation latency.
func RecordRepositoryLatency(operation string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// Queue and Worker Metrics Functions.

// UpdateQueueCapacity sets the warm-up queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current warm-up queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordQueueEnqueue counts an enqueued warm-up job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued warm-up job.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a dropped warm-up job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of warm-up workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long a warm-up job took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed warm-up job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

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
