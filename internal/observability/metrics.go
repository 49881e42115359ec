package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the dashboard server.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Sensor-log endpoint calls by operation (post, fetch) and status label.
	SensorLogCallsTotal *prometheus.CounterVec

	// Sensor-log endpoint latency. Watch for: p99 near sensor_log.timeout.
	SensorLogDuration *prometheus.HistogramVec

	// Upload loop outcomes (success, failure) with failure category.
	UploadsTotal *prometheus.CounterVec

	// Charts rendered by metric and outcome (success, error).
	ChartsRenderedTotal *prometheus.CounterVec

	// Dashboard cache hits.
	CacheHitsTotal *prometheus.CounterVec

	// Cache operation failures by operation (get, set).
	CacheErrorsTotal *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	// Sensor-log read circuit state: 0=closed, 1=open, 2=half_open.
	CircuitBreakerState prometheus.Gauge
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	SensorLogCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensorLogCallsTotal",
			Help: "Total number of sensor-log endpoint calls",
		},
		[]string{"op", "status"},
	)
	SensorLogDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sensorLogDurationSeconds",
			Help:    "Sensor-log endpoint latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"op", "status"},
	)
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploadsTotal",
			Help: "Synthetic samples uploaded, by outcome and failure category",
		},
		[]string{"outcome", "category"},
	)
	ChartsRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartsRenderedTotal",
			Help: "Charts rendered, by metric and outcome",
		},
		[]string{"metric", "outcome"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of dashboard cache hits",
		},
		[]string{"cacheType"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache operation failures",
		},
		[]string{"operation"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	CircuitBreakerState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Sensor-log read circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		SensorLogCallsTotal, SensorLogDuration,
		UploadsTotal, ChartsRenderedTotal,
		CacheHitsTotal, CacheErrorsTotal,
		RateLimitDeniedTotal, CircuitBreakerState,
	)
}

// RecordUpload counts one upload attempt. category is empty on success.
func RecordUpload(success bool, category string) {
	if success {
		UploadsTotal.WithLabelValues("success", "").Inc()
		return
	}
	UploadsTotal.WithLabelValues("failure", category).Inc()
}

// RecordChart counts one chart render attempt.
func RecordChart(metric string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ChartsRenderedTotal.WithLabelValues(metric, outcome).Inc()
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
