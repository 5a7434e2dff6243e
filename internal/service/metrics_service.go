package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// validation pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	qrIssued        *prometheus.CounterVec
	gateScans       *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	mailDeliveries  *prometheus.CounterVec
	outboxBacklog   prometheus.Gauge
}

// NewMetricsService registers the collectors.
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

	qrIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_codes_issued_total",
		Help: "QR credentials issued, by trigger (accept or resend)",
	}, []string{"trigger"})

	gateScans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gate_scans_total",
		Help: "Gate scan attempts, by outcome",
	}, []string{"outcome"})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limited_total",
		Help: "Requests rejected by the rate limiter, by endpoint key",
	}, []string{"endpoint"})

	mailDeliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_deliveries_total",
		Help: "Outbox email delivery attempts, by result",
	}, []string{"result"})

	outboxBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mail_outbox_backlog",
		Help: "Queued emails awaiting delivery",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, qrIssued, gateScans, rateLimited, mailDeliveries, outboxBacklog, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		qrIssued:        qrIssued,
		gateScans:       gateScans,
		rateLimited:     rateLimited,
		mailDeliveries:  mailDeliveries,
		outboxBacklog:   outboxBacklog,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request timing and volume.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordQRIssued counts an issued credential. Trigger is "accept" or "resend".
func (m *MetricsService) RecordQRIssued(trigger string) {
	if m == nil {
		return
	}
	m.qrIssued.WithLabelValues(trigger).Inc()
}

// RecordGateScan counts a scan attempt by outcome, e.g. "verified",
// "completed", "expired", "already_used", "not_found".
func (m *MetricsService) RecordGateScan(outcome string) {
	if m == nil {
		return
	}
	m.gateScans.WithLabelValues(outcome).Inc()
}

// RecordRateLimited counts a limiter rejection for the given endpoint key.
func (m *MetricsService) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordMailDelivery counts an outbox attempt. Result is "sent", "retried" or
// "failed".
func (m *MetricsService) RecordMailDelivery(result string) {
	if m == nil {
		return
	}
	m.mailDeliveries.WithLabelValues(result).Inc()
}

// SetOutboxBacklog publishes the queued email count.
func (m *MetricsService) SetOutboxBacklog(n int) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(float64(n))
}
