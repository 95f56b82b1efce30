package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	linesReceived     prometheus.Counter
	parseErrors       prometheus.Counter
	recordsEnqueued   prometheus.Counter
	activeConnections prometheus.Gauge
	connections       *prometheus.CounterVec

	flushes       *prometheus.CounterVec
	batchSize     prometheus.Histogram
	flushDuration *prometheus.HistogramVec
	rowsInserted  prometheus.Counter
	rowsDuplicate prometheus.Counter
	queueDepth    prometheus.Gauge
	deadLettered  prometheus.Counter
	publishErrors prometheus.Counter
}

// NewMetrics creates the collectors on a dedicated registry
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "ohlcv"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.linesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "lines_received_total",
		Help:      "Complete lines read from ingestion connections",
	})
	m.parseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "parse_errors_total",
		Help:      "Lines dropped because they failed to parse",
	})
	m.recordsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "records_enqueued_total",
		Help:      "Parsed records pushed to the transfer queue",
	})
	m.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "active_connections",
		Help:      "Currently open ingestion connections",
	})
	m.connections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "connections_closed_total",
		Help:      "Closed ingestion connections by reason",
	}, []string{"reason"})

	m.flushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "flushes_total",
		Help:      "Batch flushes by trigger and result",
	}, []string{"trigger", "result"})
	m.batchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "size_records",
		Help:      "Records per flushed batch",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
	m.flushDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "flush_duration_seconds",
		Help:      "Time spent writing a batch",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"result"})
	m.rowsInserted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "rows_inserted_total",
		Help:      "Raw rows newly inserted by committed batches",
	})
	m.rowsDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "rows_duplicate_total",
		Help:      "Raw rows ignored as duplicates by committed batches",
	})
	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Records waiting in the transfer queue",
	})
	m.deadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "dead_lettered_records_total",
		Help:      "Records of failed batches spilled to the dead-letter sink",
	})
	m.publishErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "batch",
		Name:      "publish_errors_total",
		Help:      "Committed batches whose metrics could not be published",
	})

	m.registry.MustRegister(
		m.linesReceived, m.parseErrors, m.recordsEnqueued, m.activeConnections, m.connections,
		m.flushes, m.batchSize, m.flushDuration, m.rowsInserted, m.rowsDuplicate,
		m.queueDepth, m.deadLettered, m.publishErrors,
	)

	return m
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LineReceived() {
	if m != nil {
		m.linesReceived.Inc()
	}
}

func (m *Metrics) ParseError() {
	if m != nil {
		m.parseErrors.Inc()
	}
}

func (m *Metrics) RecordEnqueued() {
	if m != nil {
		m.recordsEnqueued.Inc()
	}
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.activeConnections.Inc()
	}
}

// ConnectionClosed records a worker exit; reason is eof, shutdown or error
func (m *Metrics) ConnectionClosed(reason string) {
	if m != nil {
		m.activeConnections.Dec()
		m.connections.WithLabelValues(reason).Inc()
	}
}

// FlushObserved records one flush attempt
func (m *Metrics) FlushObserved(trigger string, size, inserted, duplicates int, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "committed"
	if err != nil {
		result = "failed"
	}
	m.flushes.WithLabelValues(trigger, result).Inc()
	m.batchSize.Observe(float64(size))
	m.flushDuration.WithLabelValues(result).Observe(d.Seconds())
	if err == nil {
		m.rowsInserted.Add(float64(inserted))
		m.rowsDuplicate.Add(float64(duplicates))
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

func (m *Metrics) DeadLettered(n int) {
	if m != nil {
		m.deadLettered.Add(float64(n))
	}
}

func (m *Metrics) PublishError() {
	if m != nil {
		m.publishErrors.Inc()
	}
}
