// Package metrics exposes Prometheus collectors for the dispatch service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	dispatchRunsTotal            *prometheus.CounterVec
	dispatchArticlesTotal        *prometheus.CounterVec
	sourceRequestsTotal          *prometheus.CounterVec
	sourceRequestDurationSeconds *prometheus.HistogramVec
	translationBatchesTotal      *prometheus.CounterVec
	translationFallbacksTotal    prometheus.Counter
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec
	dispatchActiveWorkers        prometheus.Gauge
	sourceRateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		dispatchRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_runs_total",
				Help: "Total number of pipeline runs, labeled by source and terminal state.",
			},
			[]string{"source", "state"},
		)

		dispatchArticlesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_articles_total",
				Help: "Total number of articles included in ready runs, labeled by source.",
			},
			[]string{"source"},
		)

		sourceRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_requests_total",
				Help: "Total number of source fetch attempts, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		sourceRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "source_request_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by source.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)

		translationBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "translation_batches_total",
				Help: "Total number of translation batch calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		translationFallbacksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "translation_fallbacks_total",
				Help: "Total number of batches that exhausted every translation provider.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		dispatchActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dispatch_active_workers",
				Help: "Number of workers currently executing a pipeline run.",
			},
		)

		sourceRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "source_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by source.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"source"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun increments the run counter for a terminal state and records the
// number of dispatched articles.
func ObserveRun(source string, state string, articles int) {
	dispatchRunsTotal.WithLabelValues(source, state).Inc()
	if articles > 0 {
		dispatchArticlesTotal.WithLabelValues(source).Add(float64(articles))
	}
}

// ObserveSourceRequest records one fetch attempt against a source.
func ObserveSourceRequest(source string, outcome string, duration time.Duration) {
	sourceRequestsTotal.WithLabelValues(source, outcome).Inc()
	sourceRequestDurationSeconds.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveTranslationBatch records one provider call for a title batch.
func ObserveTranslationBatch(provider string, outcome string) {
	translationBatchesTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveTranslationFallback counts a batch that no provider could translate.
func ObserveTranslationFallback() {
	translationFallbacksTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	dispatchActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	dispatchActiveWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(source string, duration time.Duration) {
	sourceRateLimitDelaysSeconds.WithLabelValues(source).Observe(duration.Seconds())
}
