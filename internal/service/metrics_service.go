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
// points subsystem.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	pointsAwarded   *prometheus.CounterVec
	pointsRedeemed  prometheus.Counter
	txConflicts     *prometheus.CounterVec
	txRetriesSpent  prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
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

	pointsAwarded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_awarded_total",
		Help: "Points credited to users, by ledger kind",
	}, []string{"kind"})

	pointsRedeemed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "points_redeemed_total",
		Help: "Points debited through redemptions",
	})

	txConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "points_tx_conflicts_total",
		Help: "Serialization conflicts in points transactions, by operation",
	}, []string{"operation"})

	txRetriesSpent := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "points_tx_retries",
		Help:    "Retries spent per points transaction",
		Buckets: []float64{0, 1, 2, 3},
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, pointsAwarded, pointsRedeemed, txConflicts, txRetriesSpent, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		pointsAwarded:   pointsAwarded,
		pointsRedeemed:  pointsRedeemed,
		txConflicts:     txConflicts,
		txRetriesSpent:  txRetriesSpent,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordAward counts credited points by ledger kind.
func (m *MetricsService) RecordAward(kind string, amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.pointsAwarded.WithLabelValues(kind).Add(float64(amount))
}

// RecordRedemption counts debited points.
func (m *MetricsService) RecordRedemption(amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.pointsRedeemed.Add(float64(amount))
}

// RecordTxConflict counts a serialization conflict for the operation.
func (m *MetricsService) RecordTxConflict(operation string) {
	if m == nil {
		return
	}
	m.txConflicts.WithLabelValues(operation).Inc()
}

// RecordTxRetries observes how many retries a transaction spent.
func (m *MetricsService) RecordTxRetries(retries int) {
	if m == nil {
		return
	}
	m.txRetriesSpent.Observe(float64(retries))
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
