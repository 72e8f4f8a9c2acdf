package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the audit trail's side channel.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	auditWritten    prometheus.Counter
	auditFailures   *prometheus.CounterVec
	auditQueueDepth prometheus.Gauge
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	auditWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_records_written_total",
		Help: "Total audit records durably persisted",
	})

	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit records dropped or failed, by stage",
	}, []string{"stage"})

	auditQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "audit_queue_depth",
		Help: "Audit records buffered awaiting a background writer",
	})

	registry.MustRegister(requestDuration, requestTotal, auditWritten, auditFailures, auditQueueDepth)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		auditWritten:    auditWritten,
		auditFailures:   auditFailures,
		auditQueueDepth: auditQueueDepth,
	}
}

// Handler exposes the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one completed request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, strconv.Itoa(status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// AuditRecordWritten counts one persisted audit record.
func (s *MetricsService) AuditRecordWritten() {
	s.auditWritten.Inc()
}

// AuditWriteFailed counts one dropped or failed audit write.
func (s *MetricsService) AuditWriteFailed(stage string) {
	s.auditFailures.WithLabelValues(stage).Inc()
}

// SetAuditQueueDepth reports the current audit writer backlog.
func (s *MetricsService) SetAuditQueueDepth(depth int) {
	s.auditQueueDepth.Set(float64(depth))
}
