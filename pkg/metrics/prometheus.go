// Package metrics provides Prometheus metrics for the ranking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run statuses used as label values.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
	StatusDryRun = "dry_run"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking runs
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	rowsUpserted  *prometheus.CounterVec
	warnings      prometheus.Counter
	dataGaps      prometheus.Counter
	checks        *prometheus.CounterVec
	teamsRanked   prometheus.Gauge
	lastRunUnix   prometheus.Gauge
	runsDeduped   prometheus.Counter
	scheduledRuns prometheus.Counter

	// Run queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueWait          prometheus.Histogram

	// Store
	storeLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errors *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "powerrank",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.runs = auto.NewCounterVec(m.counter("runs_total", "Ranking runs by outcome"), []string{"status"})
	m.runDuration = auto.NewHistogram(m.histogram("run_duration_milliseconds", "Wall time of a ranking run"))
	m.rowsUpserted = auto.NewCounterVec(m.counter("rows_upserted_total", "Rows written by table and operation"), []string{"table", "op"})
	m.warnings = auto.NewCounter(m.counter("warnings_total", "Non-fatal run warnings"))
	m.dataGaps = auto.NewCounter(m.counter("data_gaps_total", "Team-weeks carried forward for missing input"))
	m.checks = auto.NewCounterVec(m.counter("checks_total", "Validation check results"), []string{"check", "status"})
	m.teamsRanked = auto.NewGauge(m.gauge("teams_ranked", "Teams ranked by the last run"))
	m.lastRunUnix = auto.NewGauge(m.gauge("last_run_unix", "Finish time of the last successful run"))
	m.runsDeduped = auto.NewCounter(m.counter("runs_deduplicated_total", "Run requests dropped because an identical run was pending"))
	m.scheduledRuns = auto.NewCounter(m.counter("scheduled_runs_total", "Runs requested by the scheduler"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Pending run requests"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Run queue capacity"))
	m.queueEnqueue = auto.NewCounter(m.counter("queue_enqueue_total", "Run requests enqueued"))
	m.queueDequeue = auto.NewCounter(m.counter("queue_dequeue_total", "Run requests dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Run requests rejected by the queue"))
	m.queueWait = auto.NewHistogram(m.histogram("queue_wait_milliseconds", "Time a run request waited in the queue"))

	m.storeLatency = auto.NewHistogramVec(m.histogram("store_latency_milliseconds", "Store operation latency"), []string{"op"})

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status_code"})

	m.errors = auto.NewCounterVec(m.counter("errors_total", "Errors by component and type"), []string{"component", "type"})
}

// RecordRun records a finished run.
func RecordRun(status string, took time.Duration) {
	globalManager.runs.WithLabelValues(status).Inc()
	globalManager.runDuration.Observe(float64(took.Milliseconds()))
	if status == StatusOK {
		globalManager.lastRunUnix.Set(float64(time.Now().Unix()))
	}
}

// RecordRowsUpserted adds created and updated counts for a table.
func RecordRowsUpserted(table string, created, updated int) {
	globalManager.rowsUpserted.WithLabelValues(table, "created").Add(float64(created))
	globalManager.rowsUpserted.WithLabelValues(table, "updated").Add(float64(updated))
}

// RecordWarnings adds n run warnings.
func RecordWarnings(n int) {
	globalManager.warnings.Add(float64(n))
}

// RecordDataGaps adds n carried-forward team-weeks.
func RecordDataGaps(n int) {
	globalManager.dataGaps.Add(float64(n))
}

// RecordCheck records one validation check result.
func RecordCheck(check, status string) {
	globalManager.checks.WithLabelValues(check, status).Inc()
}

// UpdateTeamsRanked sets the number of teams ranked by the last run.
func UpdateTeamsRanked(n int) {
	globalManager.teamsRanked.Set(float64(n))
}

// RecordRunDeduplicated increments the dropped duplicate run counter.
func RecordRunDeduplicated() {
	globalManager.runsDeduped.Inc()
}

// RecordScheduledRun increments the scheduler counter.
func RecordScheduledRun() {
	globalManager.scheduledRuns.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter and observes the wait.
func RecordQueueDequeue(waited time.Duration) {
	globalManager.queueDequeue.Inc()
	globalManager.queueWait.Observe(float64(waited.Milliseconds()))
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordStoreLatency observes one store operation.
func RecordStoreLatency(op string, took time.Duration) {
	globalManager.storeLatency.WithLabelValues(op).Observe(float64(took.Microseconds()) / 1000)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordError records an error with component and type labels.
func RecordError(component, errorType string) {
	globalManager.errors.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
