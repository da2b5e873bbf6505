package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. A nil receiver is a no-op.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec

	moderationDecisions *prometheus.CounterVec
	classifierLatency   *prometheus.HistogramVec
	classifierFailures  *prometheus.CounterVec
	ledgerOperations    *prometheus.CounterVec
	levelUps            prometheus.Counter
	notifications       *prometheus.CounterVec
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache reads",
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

	moderationDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_decisions_total",
		Help: "Moderated messages by kind, verdict source and status",
	}, []string{"kind", "source", "status"})

	classifierLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classifier_request_duration_seconds",
		Help:    "Round trip to the content classifier",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"kind"})

	classifierFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classifier_failures_total",
		Help: "Classifier calls that fell back to the local heuristic",
	}, []string{"kind", "reason"})

	ledgerOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger mutations by operation and outcome",
	}, []string{"operation", "outcome"})

	levelUps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_level_ups_total",
		Help: "Levels gained across all children",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notifications by severity and outcome",
	}, []string{"severity", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		moderationDecisions, classifierLatency, classifierFailures, ledgerOperations, levelUps, notifications, goroutines)

	return &MetricsService{
		registry:            registry,
		handler:             promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheLookups:        cacheLookups,
		moderationDecisions: moderationDecisions,
		classifierLatency:   classifierLatency,
		classifierFailures:  classifierFailures,
		ledgerOperations:    ledgerOperations,
		levelUps:            levelUps,
		notifications:       notifications,
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

// Registry exposes the underlying registry for tests and extra collectors.
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

// RecordModeration counts a moderation verdict.
func (m *MetricsService) RecordModeration(kind, source, status string) {
	if m == nil {
		return
	}
	m.moderationDecisions.WithLabelValues(kind, source, status).Inc()
}

// ObserveClassifier records one classifier round trip. failure is empty on success.
func (m *MetricsService) ObserveClassifier(kind string, duration time.Duration, failure string) {
	if m == nil {
		return
	}
	m.classifierLatency.WithLabelValues(kind).Observe(duration.Seconds())
	if failure != "" {
		m.classifierFailures.WithLabelValues(kind, failure).Inc()
	}
}

// RecordLedger counts a ledger mutation and any levels it gained.
func (m *MetricsService) RecordLedger(operation, outcome string, levelsGained int) {
	if m == nil {
		return
	}
	m.ledgerOperations.WithLabelValues(operation, outcome).Inc()
	if levelsGained > 0 {
		m.levelUps.Add(float64(levelsGained))
	}
}

// RecordNotification counts a notification outcome (delivered, suppressed, dropped, failed).
func (m *MetricsService) RecordNotification(severity, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(severity, outcome).Inc()
}
