// Package metrics defines the Prometheus metrics of the catalog service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Import metrics
	ImportFilesTotal *prometheus.CounterVec
	ImportDuration   prometheus.Histogram

	// Write queue metrics
	WriteQueueOpsTotal *prometheus.CounterVec
	WriteQueueDepth    prometheus.Gauge

	// Web source metrics
	WebSearchTotal    *prometheus.CounterVec
	WebSearchDuration *prometheus.HistogramVec
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// Default returns the process-wide metrics registered with the default
// Prometheus registry.
func Default() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(prometheus.DefaultRegisterer)
	}
	return globalMetrics
}

// New creates the metrics and registers them with reg. Collectors that are
// already registered are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movies_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movies_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		ImportFilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movies_import_files_total",
			Help: "Files seen by imports, by outcome",
		}, []string{"result"}),

		ImportDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "movies_import_duration_seconds",
			Help:    "Folder import duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}),

		WriteQueueOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movies_write_queue_ops_total",
			Help: "Write queue operations, by status",
		}, []string{"status"}),

		WriteQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "movies_write_queue_depth",
			Help: "Writes waiting in the queue",
		}),

		WebSearchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movies_web_requests_total",
			Help: "Requests to web metadata sources",
		}, []string{"source", "operation", "status"}),

		WebSearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movies_web_request_duration_seconds",
			Help:    "Web metadata source request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"source", "operation"}),
	}

	m.HTTPRequestTotal = registerOrGet(reg, m.HTTPRequestTotal).(*prometheus.CounterVec)
	m.HTTPRequestDuration = registerOrGet(reg, m.HTTPRequestDuration).(*prometheus.HistogramVec)
	m.ImportFilesTotal = registerOrGet(reg, m.ImportFilesTotal).(*prometheus.CounterVec)
	m.ImportDuration = registerOrGet(reg, m.ImportDuration).(prometheus.Histogram)
	m.WriteQueueOpsTotal = registerOrGet(reg, m.WriteQueueOpsTotal).(*prometheus.CounterVec)
	m.WriteQueueDepth = registerOrGet(reg, m.WriteQueueDepth).(prometheus.Gauge)
	m.WebSearchTotal = registerOrGet(reg, m.WebSearchTotal).(*prometheus.CounterVec)
	m.WebSearchDuration = registerOrGet(reg, m.WebSearchDuration).(*prometheus.HistogramVec)
	return m
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// ObserveHTTP records a served request. path is the route template, not
// the raw URL, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ImportFile counts one file by outcome: imported, skipped or failed.
func (m *Metrics) ImportFile(result string) {
	if m == nil {
		return
	}
	m.ImportFilesTotal.WithLabelValues(result).Inc()
}

// ObserveImport records the duration of a folder import.
func (m *Metrics) ObserveImport(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ImportDuration.Observe(elapsed.Seconds())
}

// QueueOp counts a write queue operation and updates the depth gauge.
func (m *Metrics) QueueOp(status string, depth int) {
	if m == nil {
		return
	}
	m.WriteQueueOpsTotal.WithLabelValues(status).Inc()
	m.WriteQueueDepth.Set(float64(depth))
}

// ObserveWeb records a request to a web source.
func (m *Metrics) ObserveWeb(source, operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.WebSearchTotal.WithLabelValues(source, operation, status).Inc()
	m.WebSearchDuration.WithLabelValues(source, operation).Observe(elapsed.Seconds())
}
