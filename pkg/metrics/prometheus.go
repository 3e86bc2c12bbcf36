// Package metrics provides Prometheus metrics for the rumble party service.
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

// Manager manages all Prometheus metrics for the rumble service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core Business Metrics - the pulse of a running party
	factsConfirmed      *prometheus.CounterVec
	factsRejected       *prometheus.CounterVec
	predictionsAccepted prometheus.Counter
	predictionsRejected prometheus.Counter
	resolutions         *prometheus.CounterVec
	unresolutions       *prometheus.CounterVec

	// Operational Health Metrics
	partyCount       prometheus.Gauge
	standingsUpdates prometheus.Counter

	// Update Bus Metrics - fan-out performance
	busCapacity      prometheus.Gauge
	busDepth         prometheus.Gauge
	updatesDelivered prometheus.Counter
	updatesDropped   *prometheus.CounterVec
	subscriberCount  prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec
	errorLatency        *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rumble",
		subsystem:        "party",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Business Metrics - confirmed facts and scoring activity
	m.factsConfirmed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "facts_confirmed_total",
			Help:      "Total number of host-confirmed facts applied, by fact kind",
		},
		[]string{"kind"},
	)

	m.factsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "facts_rejected_total",
			Help:      "Total number of fact commands rejected by validation, by fact kind",
		},
		[]string{"kind"},
	)

	m.predictionsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_accepted_total",
		Help:      "Total number of predictions accepted",
	})

	m.predictionsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "predictions_rejected_total",
		Help:      "Total number of predictions rejected (conflicts, locks, validation)",
	})

	m.resolutions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "resolutions_total",
			Help:      "Total number of category resolutions, by category kind",
		},
		[]string{"kind"},
	)

	m.unresolutions = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "unresolutions_total",
			Help:      "Total number of category un-resolutions (resets), by category kind",
		},
		[]string{"kind"},
	)

	// Operational Health Metrics
	m.partyCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "party_count",
		Help:      "Number of parties currently hosted",
	})

	m.standingsUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "standings_updates_total",
		Help:      "Total number of standings store updates",
	})

	// Update Bus Metrics - fan-out performance
	m.busCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "update_bus_capacity",
		Help:      "Maximum update bus capacity",
	})

	m.busDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "update_bus_depth",
		Help:      "Current number of updates waiting on the bus",
	})

	m.updatesDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "updates_delivered_total",
		Help:      "Total number of updates delivered to subscribers",
	})

	m.updatesDropped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "updates_dropped_total",
			Help:      "Total number of updates dropped, by reason",
		},
		[]string{"reason"},
	)

	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscriber_count",
		Help:      "Number of live update subscribers across all parties",
	})

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics - Detailed error tracking
	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total number of errors by type",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total number of errors by endpoint",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of operations that resulted in errors",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordFactConfirmed increments the confirmed facts counter for a kind.
func RecordFactConfirmed(kind string) {
	globalManager.factsConfirmed.WithLabelValues(kind).Inc()
}

// RecordFactRejected increments the rejected facts counter for a kind.
func RecordFactRejected(kind string) {
	globalManager.factsRejected.WithLabelValues(kind).Inc()
}

// RecordPredictionAccepted increments the accepted predictions counter.
func RecordPredictionAccepted() {
	globalManager.predictionsAccepted.Inc()
}

// RecordPredictionRejected increments the rejected predictions counter.
func RecordPredictionRejected() {
	globalManager.predictionsRejected.Inc()
}

// RecordResolution increments the resolutions counter for a category kind.
func RecordResolution(kind string) {
	globalManager.resolutions.WithLabelValues(kind).Inc()
}

// RecordUnresolution increments the un-resolutions counter for a category kind.
func RecordUnresolution(kind string) {
	globalManager.unresolutions.WithLabelValues(kind).Inc()
}

// UpdatePartyCount sets the number of hosted parties.
func UpdatePartyCount(count int) {
	globalManager.partyCount.Set(float64(count))
}

// RecordStandingsUpdate increments the standings updates counter.
func RecordStandingsUpdate() {
	globalManager.standingsUpdates.Inc()
}

// Update Bus Metrics Functions.

// UpdateBusCapacity sets the maximum update bus capacity.
func UpdateBusCapacity(capacity int) {
	globalManager.busCapacity.Set(float64(capacity))
}

// UpdateBusDepth sets the current update bus depth.
func UpdateBusDepth(depth int) {
	globalManager.busDepth.Set(float64(depth))
}

// RecordUpdateDelivered increments the delivered updates counter.
func RecordUpdateDelivered() {
	globalManager.updatesDelivered.Inc()
}

// RecordUpdateDropped increments the dropped updates counter for a reason.
func RecordUpdateDropped(reason string) {
	globalManager.updatesDropped.WithLabelValues(reason).Inc()
}

// UpdateSubscriberCount sets the number of live update subscribers.
func UpdateSubscriberCount(count int) {
	globalManager.subscriberCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
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
