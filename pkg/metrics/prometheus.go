// Package metrics provides Prometheus metrics for the icexg pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes recorded by RecordPoll.
const (
	OutcomeScored = "scored"
	OutcomeEmpty  = "empty"
	OutcomeFailed = "failed"
)

// Manager manages all Prometheus metrics for the icexg service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline metrics
	polls           *prometheus.CounterVec
	pollLatency     prometheus.Histogram
	eventsNew       prometheus.Counter
	eventsSeen      prometheus.Counter
	rowsExtracted   prometheus.Counter
	rowsCommitted   prometheus.Counter
	ledgerEntries   *prometheus.GaugeVec
	tableRows       *prometheus.GaugeVec
	sessionsActive  prometheus.Gauge
	modelChanges    *prometheus.CounterVec
	liveGamesListed prometheus.Gauge

	// Upstream metrics
	feedRequests   *prometheus.CounterVec
	feedLatency    prometheus.Histogram
	scoringLatency prometheus.Histogram
	scoringErrors  *prometheus.CounterVec

	// Auto-poll queue and workers
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueDropped  *prometheus.CounterVec
	workerCount   prometheus.Gauge

	// Stream metrics
	streamClients  prometheus.Gauge
	streamDropped  prometheus.Counter
	streamMessages prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "icexg",
		subsystem:        "pipeline",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

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

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.polls = auto.NewCounterVec(m.counterOpts("polls_total", "Total number of session polls by outcome"), []string{"outcome"})
	m.pollLatency = auto.NewHistogram(m.histogramOpts("poll_latency_milliseconds", "End-to-end poll latency in milliseconds"))
	m.eventsNew = auto.NewCounter(m.counterOpts("events_new_total", "Plays not yet committed to a session ledger when fetched"))
	m.eventsSeen = auto.NewCounter(m.counterOpts("events_seen_total", "Plays skipped because the ledger already committed them"))
	m.rowsExtracted = auto.NewCounter(m.counterOpts("rows_extracted_total", "Feature rows produced by the extractor"))
	m.rowsCommitted = auto.NewCounter(m.counterOpts("rows_committed_total", "Scored feature rows merged into session tables"))
	m.ledgerEntries = auto.NewGaugeVec(m.gaugeOpts("ledger_entries", "Committed event ids per game session"), []string{"game_id"})
	m.tableRows = auto.NewGaugeVec(m.gaugeOpts("table_rows", "Rows in the accumulated table per game session"), []string{"game_id"})
	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active", "Number of open game sessions"))
	m.modelChanges = auto.NewCounterVec(m.counterOpts("model_changes_total", "Model selection attempts by result"), []string{"model", "result"})
	m.liveGamesListed = auto.NewGauge(m.gaugeOpts("live_games", "Live games returned by the last scoreboard lookup"))

	m.feedRequests = auto.NewCounterVec(m.counterOpts("feed_requests_total", "Feed requests by endpoint and result"), []string{"endpoint", "result"})
	m.feedLatency = auto.NewHistogram(m.histogramOpts("feed_latency_milliseconds", "Feed request latency in milliseconds"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds", "Scoring gateway latency in milliseconds"))
	m.scoringErrors = auto.NewCounterVec(m.counterOpts("scoring_errors_total", "Scoring gateway failures by kind"), []string{"kind"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Pending auto-poll requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum pending auto-poll requests"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Auto-poll requests enqueued"))
	m.queueDropped = auto.NewCounterVec(m.counterOpts("queue_dropped_total", "Auto-poll requests dropped by reason"), []string{"reason"})
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Auto-poll workers running"))

	m.streamClients = auto.NewGauge(m.gaugeOpts("stream_clients", "Connected stream subscribers"))
	m.streamDropped = auto.NewCounter(m.counterOpts("stream_dropped_total", "Stream messages dropped for slow subscribers"))
	m.streamMessages = auto.NewCounter(m.counterOpts("stream_messages_total", "Scored batches published to the stream"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Current heap allocation in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Current number of goroutines"))
}

// RecordPoll increments the poll counter for outcome and observes its latency.
func RecordPoll(outcome string, latencyMs float64) error {
	switch outcome {
	case OutcomeScored, OutcomeEmpty, OutcomeFailed:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownOutcome, outcome)
	}
	globalManager.polls.WithLabelValues(outcome).Inc()
	globalManager.pollLatency.Observe(latencyMs)
	return nil
}

// RecordEventsFiltered records how many fetched plays were new versus already committed.
func RecordEventsFiltered(newCount, seenCount int) {
	globalManager.eventsNew.Add(float64(newCount))
	globalManager.eventsSeen.Add(float64(seenCount))
}

// RecordRowsExtracted adds n extracted feature rows.
func RecordRowsExtracted(n int) {
	globalManager.rowsExtracted.Add(float64(n))
}

// RecordRowsCommitted adds n scored rows merged into a table.
func RecordRowsCommitted(n int) {
	globalManager.rowsCommitted.Add(float64(n))
}

// UpdateLedgerEntries sets the committed id count for a game session.
func UpdateLedgerEntries(gameID string, n int) {
	globalManager.ledgerEntries.WithLabelValues(gameID).Set(float64(n))
}

// UpdateTableRows sets the accumulated row count for a game session.
func UpdateTableRows(gameID string, n int) {
	globalManager.tableRows.WithLabelValues(gameID).Set(float64(n))
}

// ForgetSession drops per-game series for a closed session.
func ForgetSession(gameID string) {
	globalManager.ledgerEntries.DeleteLabelValues(gameID)
	globalManager.tableRows.DeleteLabelValues(gameID)
}

// UpdateSessionsActive sets the number of open sessions.
func UpdateSessionsActive(n int) {
	globalManager.sessionsActive.Set(float64(n))
}

// RecordModelChange counts a model selection attempt.
func RecordModelChange(model string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	globalManager.modelChanges.WithLabelValues(model, result).Inc()
}

// UpdateLiveGames sets the number of games returned by the last discovery call.
func UpdateLiveGames(n int) {
	globalManager.liveGamesListed.Set(float64(n))
}

// RecordFeedRequest counts a feed request and observes its latency.
func RecordFeedRequest(endpoint string, ok bool, latencyMs float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	globalManager.feedRequests.WithLabelValues(endpoint, result).Inc()
	globalManager.feedLatency.Observe(latencyMs)
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringError counts a gateway failure of the given kind.
func RecordScoringError(kind string) {
	globalManager.scoringErrors.WithLabelValues(kind).Inc()
}

// UpdateQueueSize sets the pending auto-poll request count.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted auto-poll request.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDropped counts a rejected auto-poll request.
func RecordQueueDropped(reason string) {
	globalManager.queueDropped.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running auto-poll workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateStreamClients sets the number of connected stream subscribers.
func UpdateStreamClients(n int) {
	globalManager.streamClients.Set(float64(n))
}

// RecordStreamPublished counts a batch published to subscribers.
func RecordStreamPublished() {
	globalManager.streamMessages.Inc()
}

// RecordStreamDropped counts a message dropped for a slow subscriber.
func RecordStreamDropped() {
	globalManager.streamDropped.Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates the system memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
