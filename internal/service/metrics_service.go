package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErrors "github.com/noah-isme/sma-presence-api/pkg/errors"
)

// MetricsSnapshot is a point-in-time summary of the collected metrics.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	QueriesTotal             uint64    `json:"queries_total"`
	QueryErrorsTotal         uint64    `json:"query_errors_total"`
	AverageQueryDurationMs   float64   `json:"average_query_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	queryDuration   *prometheus.HistogramVec
	queryRows       *prometheus.HistogramVec
	queryErrors     *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	queryCount           uint64
	queryErrorCount      uint64
	queryDurationTotal   uint64
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

	queryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database statements per model and operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"model", "operation"})

	queryRows := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_rows",
		Help:    "Rows returned or affected per statement",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"model", "operation"})

	queryErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "db_query_errors_total",
		Help: "Failed database statements by error code",
	}, []string{"model", "operation", "code"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "query_cache_latency_seconds",
		Help:    "Latency of query cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "query_cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_hits_total",
		Help: "Total query cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "query_cache_misses_total",
		Help: "Total query cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, queryDuration, queryRows, queryErrors,
		cacheLatency, cacheHitRatio, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		queryDuration:   queryDuration,
		queryRows:       queryRows,
		queryErrors:     queryErrors,
		cacheLatency:    cacheLatency,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveQuery records one repository statement.
func (m *MetricsService) ObserveQuery(model, operation string, duration time.Duration, rows int, err error) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
	m.queryRows.WithLabelValues(model, operation).Observe(float64(rows))
	atomic.AddUint64(&m.queryCount, 1)
	atomic.AddUint64(&m.queryDurationTotal, uint64(duration.Nanoseconds()))
	if err != nil {
		m.queryErrors.WithLabelValues(model, operation, appErrors.FromError(err).Code).Inc()
		atomic.AddUint64(&m.queryErrorCount, 1)
	}
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// Snapshot returns aggregated metrics suitable for the health endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	queries := atomic.LoadUint64(&m.queryCount)
	queryErrors := atomic.LoadUint64(&m.queryErrorCount)
	queryDuration := atomic.LoadUint64(&m.queryDurationTotal)

	snap := MetricsSnapshot{
		RequestsTotal:    requests,
		QueriesTotal:     queries,
		QueryErrorsTotal: queryErrors,
		CacheHits:        hits,
		CacheMisses:      misses,
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
	if total := hits + misses; total > 0 {
		snap.CacheHitRatio = float64(hits) / float64(total)
	}
	if requests > 0 {
		snap.AverageRequestDurationMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	if queries > 0 {
		snap.AverageQueryDurationMs = float64(queryDuration) / float64(queries) / float64(time.Millisecond)
	}
	return snap
}
