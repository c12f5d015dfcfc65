package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic,
// the read cache and the ledger orchestrations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	ledgerItems          *prometheus.CounterVec
	thresholdAlerts      prometheus.Counter
	notificationFailures *prometheus.CounterVec
	transferRuns         *prometheus.CounterVec
	transferStepFailures *prometheus.CounterVec
	enrollmentDecisions  *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	ledgerItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_items_total",
		Help: "Per-student batch results by operation and outcome",
	}, []string{"operation", "outcome"})

	thresholdAlerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_threshold_alerts_total",
		Help: "Recomputed averages that fell below the alert threshold",
	})

	notificationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notifications that could not be stored",
	}, []string{"mode"})

	transferRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfers_total",
		Help: "Transfer orchestrations by result",
	}, []string{"result"})

	transferStepFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_step_failures_total",
		Help: "Transfer orchestrations stopped at a step",
	}, []string{"step"})

	enrollmentDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_decisions_total",
		Help: "Enrollment decisions applied",
	}, []string{"decision"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		ledgerItems, thresholdAlerts, notificationFailures, transferRuns, transferStepFailures, enrollmentDecisions, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheLookups:         cacheLookups,
		ledgerItems:          ledgerItems,
		thresholdAlerts:      thresholdAlerts,
		notificationFailures: notificationFailures,
		transferRuns:         transferRuns,
		transferStepFailures: transferStepFailures,
		enrollmentDecisions:  enrollmentDecisions,
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordBatch counts the per-student results of a ledger batch.
func (m *MetricsService) RecordBatch(operation string, results []models.PerItemResult) {
	if m == nil {
		return
	}
	for _, r := range results {
		m.ledgerItems.WithLabelValues(operation, string(r.Outcome)).Inc()
	}
}

// RecordThresholdAlert counts an average below the alert threshold.
func (m *MetricsService) RecordThresholdAlert() {
	if m == nil {
		return
	}
	m.thresholdAlerts.Inc()
}

// RecordNotificationFailure counts a notification that was dropped.
func (m *MetricsService) RecordNotificationFailure(mode string) {
	if m == nil {
		return
	}
	m.notificationFailures.WithLabelValues(mode).Inc()
}

// RecordTransfer counts a finished transfer run; step is empty on success.
func (m *MetricsService) RecordTransfer(step string) {
	if m == nil {
		return
	}
	if step == "" {
		m.transferRuns.WithLabelValues("completed").Inc()
		return
	}
	m.transferRuns.WithLabelValues("incomplete").Inc()
	m.transferStepFailures.WithLabelValues(step).Inc()
}

// RecordEnrollmentDecision counts an applied enrollment decision.
func (m *MetricsService) RecordEnrollmentDecision(status models.EnrollmentStatus) {
	if m == nil {
		return
	}
	m.enrollmentDecisions.WithLabelValues(string(status)).Inc()
}
