// Package metrics provides Prometheus metrics for the earnsignal pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Latency buckets in milliseconds; AI completions can take tens of seconds.
var defaultLatencyBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000} //nolint:gochecknoglobals // default bucket layout

// Manager owns every Prometheus collector for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Acquisition
	fetchRequests *prometheus.CounterVec
	fetchRetries  *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	cacheLookups  *prometheus.CounterVec
	cacheWrites   *prometheus.CounterVec
	limiterWait   *prometheus.HistogramVec

	// AI
	aiRequests *prometheus.CounterVec
	aiLatency  *prometheus.HistogramVec
	aiRetries  prometheus.Counter

	// Pipeline
	tickersTotal     prometheus.Gauge
	tickersCompleted prometheus.Counter
	tickersFailed    prometheus.Counter
	tickerDuration   prometheus.Histogram
	eventsDropped    *prometheus.CounterVec
	eventsScored     prometheus.Counter
	queueSize        prometheus.Gauge
	workerActive     prometheus.Gauge

	// Run
	snapshots      prometheus.Gauge
	runs           *prometheus.CounterVec
	runDuration    prometheus.Gauge
	lastRunSuccess prometheus.Gauge

	// Status API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	globalMu      sync.RWMutex //nolint:gochecknoglobals // guards the singleton manager
	globalManager *Manager     //nolint:gochecknoglobals // intentional global for singleton metrics manager

	// Custom registry to avoid default Go metrics.
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry
)

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "earnsignal",
		subsystem:        "pipeline",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// SetGlobal replaces the manager used by the package-level recorders.
func SetGlobal(m *Manager) {
	if m == nil {
		return
	}
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
}

func current() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalManager == nil || !globalManager.enabled {
		return nil
	}
	return globalManager
}

// RefreshInterval reports how often gauges sampled from the runtime should be refreshed.
func RefreshInterval() time.Duration {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager.refreshInterval
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
		Buckets:     m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.fetchRequests = auto.NewCounterVec(m.counterOpts("fetch_requests_total",
		"Data-service requests by outcome (ok, cached, throttled, transport_error, status_error)"),
		[]string{"outcome"})
	m.fetchRetries = auto.NewCounterVec(m.counterOpts("fetch_retries_total",
		"Data-service retries by reason"), []string{"reason"})
	m.fetchLatency = auto.NewHistogram(m.histogramOpts("fetch_latency_milliseconds",
		"Latency of data-service round trips in milliseconds"))
	m.cacheLookups = auto.NewCounterVec(m.counterOpts("cache_lookups_total",
		"Cache lookups by namespace and result"), []string{"namespace", "result"})
	m.cacheWrites = auto.NewCounterVec(m.counterOpts("cache_writes_total",
		"Cache writes by namespace"), []string{"namespace"})
	m.limiterWait = auto.NewHistogramVec(m.histogramOpts("limiter_wait_milliseconds",
		"Time spent waiting on a rate limiter in milliseconds"), []string{"limiter"})

	m.aiRequests = auto.NewCounterVec(m.counterOpts("ai_requests_total",
		"AI completions by kind and outcome"), []string{"kind", "outcome"})
	m.aiLatency = auto.NewHistogramVec(m.histogramOpts("ai_latency_milliseconds",
		"AI completion latency in milliseconds"), []string{"kind"})
	m.aiRetries = auto.NewCounter(m.counterOpts("ai_retries_total",
		"AI completions retried after throttling"))

	m.tickersTotal = auto.NewGauge(m.gaugeOpts("tickers",
		"Tickers scheduled in the current run"))
	m.tickersCompleted = auto.NewCounter(m.counterOpts("tickers_completed_total",
		"Tickers whose pipeline completed"))
	m.tickersFailed = auto.NewCounter(m.counterOpts("tickers_failed_total",
		"Tickers whose pipeline failed"))
	m.tickerDuration = auto.NewHistogram(m.histogramOpts("ticker_duration_milliseconds",
		"Per-ticker pipeline duration in milliseconds"))
	m.eventsDropped = auto.NewCounterVec(m.counterOpts("events_dropped_total",
		"Earnings events dropped during enrichment by reason"), []string{"reason"})
	m.eventsScored = auto.NewCounter(m.counterOpts("events_scored_total",
		"Earnings events that completed AI scoring"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Tickers waiting in the work queue"))
	m.workerActive = auto.NewGauge(m.gaugeOpts("worker_active_count",
		"Workers currently processing a ticker"))

	m.snapshots = auto.NewGauge(m.gaugeOpts("snapshots",
		"Cohort snapshots produced by the last run"))
	m.runs = auto.NewCounterVec(m.counterOpts("runs_total",
		"Pipeline runs by outcome"), []string{"outcome"})
	m.runDuration = auto.NewGauge(m.gaugeOpts("run_duration_seconds",
		"Duration of the last run in seconds"))
	m.lastRunSuccess = auto.NewGauge(m.gaugeOpts("last_run_success_unix",
		"Unix time of the last successful run"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Status API requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"Status API request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"Resident set size of the process in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
}

// RecordFetch counts a data-service request outcome.
func RecordFetch(outcome string) {
	if m := current(); m != nil {
		m.fetchRequests.WithLabelValues(outcome).Inc()
	}
}

// RecordFetchRetry counts a data-service retry.
func RecordFetchRetry(reason string) {
	if m := current(); m != nil {
		m.fetchRetries.WithLabelValues(reason).Inc()
	}
}

// RecordFetchLatency records a data-service round trip.
func RecordFetchLatency(latencyMs float64) {
	if m := current(); m != nil {
		m.fetchLatency.Observe(latencyMs)
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(namespace string, hit bool) {
	if m := current(); m != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.cacheLookups.WithLabelValues(namespace, result).Inc()
	}
}

// RecordCacheWrite counts a cache write.
func RecordCacheWrite(namespace string) {
	if m := current(); m != nil {
		m.cacheWrites.WithLabelValues(namespace).Inc()
	}
}

// RecordLimiterWait records time spent blocked on a limiter.
func RecordLimiterWait(limiter string, wait time.Duration) {
	if m := current(); m != nil {
		m.limiterWait.WithLabelValues(limiter).Observe(float64(wait) / float64(time.Millisecond))
	}
}

// RecordAIRequest counts an AI completion and its latency.
func RecordAIRequest(kind, outcome string, latency time.Duration) {
	if m := current(); m != nil {
		m.aiRequests.WithLabelValues(kind, outcome).Inc()
		m.aiLatency.WithLabelValues(kind).Observe(float64(latency) / float64(time.Millisecond))
	}
}

// RecordAIRetry counts a throttled AI completion that will be retried.
func RecordAIRetry() {
	if m := current(); m != nil {
		m.aiRetries.Inc()
	}
}

// UpdateTickersTotal sets the number of tickers in the current run.
func UpdateTickersTotal(n int) {
	if m := current(); m != nil {
		m.tickersTotal.Set(float64(n))
	}
}

// RecordTickerCompleted counts a completed ticker pipeline.
func RecordTickerCompleted(d time.Duration) {
	if m := current(); m != nil {
		m.tickersCompleted.Inc()
		m.tickerDuration.Observe(float64(d) / float64(time.Millisecond))
	}
}

// RecordTickerFailed counts a failed ticker pipeline.
func RecordTickerFailed() {
	if m := current(); m != nil {
		m.tickersFailed.Inc()
	}
}

// RecordEventDropped counts an event removed by a data-quality rule.
func RecordEventDropped(reason string) {
	if m := current(); m != nil {
		m.eventsDropped.WithLabelValues(reason).Inc()
	}
}

// RecordEventScored counts an event that completed AI scoring.
func RecordEventScored() {
	if m := current(); m != nil {
		m.eventsScored.Inc()
	}
}

// UpdateQueueSize sets the number of queued tickers.
func UpdateQueueSize(n int) {
	if m := current(); m != nil {
		m.queueSize.Set(float64(n))
	}
}

// AddWorkerActive adjusts the busy worker gauge.
func AddWorkerActive(delta int) {
	if m := current(); m != nil {
		m.workerActive.Add(float64(delta))
	}
}

// UpdateSnapshots sets the number of snapshots built by the last run.
func UpdateSnapshots(n int) {
	if m := current(); m != nil {
		m.snapshots.Set(float64(n))
	}
}

// RecordRun records a finished run.
func RecordRun(success bool, d time.Duration) {
	m := current()
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
		m.lastRunSuccess.Set(float64(time.Now().Unix()))
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Set(d.Seconds())
}

// RecordHTTPRequest records a status API request.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if m := current(); m != nil {
		m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
		m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if m := current(); m != nil {
		m.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if m := current(); m != nil {
		m.systemGoroutineCount.Set(float64(count))
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
