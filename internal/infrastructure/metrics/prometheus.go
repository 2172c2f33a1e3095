package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusExporter exports metrics to Prometheus format.
type PrometheusExporter struct {
	collector *Collector

	// Prometheus metrics
	dnsCacheHits      prometheus.Counter
	dnsCacheMisses    prometheus.Counter
	dnsCacheHitRate   prometheus.Gauge
	dnsCacheKeys      prometheus.Gauge
	dnsCacheEvictions prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpErrors        *prometheus.CounterVec
	decisions         *prometheus.CounterVec
	evalDuration      prometheus.Histogram
	policyErrors      prometheus.Counter
}

// NewPrometheusExporter creates a new Prometheus exporter.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		dnsCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sekimori_dns_cache_hits_total",
			Help: "Total number of reverse-DNS cache hits",
		}),
		dnsCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sekimori_dns_cache_misses_total",
			Help: "Total number of reverse-DNS cache misses",
		}),
		dnsCacheHitRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sekimori_dns_cache_hit_rate",
			Help: "Current reverse-DNS cache hit rate (0.0 to 1.0)",
		}),
		dnsCacheKeys: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "sekimori_dns_cache_keys_current",
			Help: "Current number of keys in the reverse-DNS cache",
		}),
		dnsCacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sekimori_dns_cache_evictions_total",
			Help: "Total number of reverse-DNS cache evictions due to the capacity limit",
		}),
		httpRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sekimori_http_requests_total",
				Help: "Total number of proxied HTTP requests",
			},
			[]string{"method"},
		),
		httpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sekimori_http_request_duration_seconds",
				Help:    "Duration of proxied HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"method"},
		),
		httpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sekimori_http_errors_total",
				Help: "Total number of proxied HTTP requests that failed with a server error",
			},
			[]string{"method"},
		),
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sekimori_decisions_total",
				Help: "Total number of authorization decisions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		evalDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "sekimori_eval_duration_seconds",
			Help:    "Duration of policy evaluation in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),
		policyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sekimori_policy_errors_total",
			Help: "Total number of requests denied because the policy was malformed",
		}),
	}
}

// Update updates Gauge metrics from the collector.
// Counters are updated via the HTTP middleware, so only update gauges here.
// This should be called periodically (e.g., every 10 seconds).
func (e *PrometheusExporter) Update() {
	cacheMetrics := e.collector.GetCacheMetrics()
	e.dnsCacheHitRate.Set(cacheMetrics.HitRate)
	e.dnsCacheKeys.Set(float64(cacheMetrics.KeysCurrent))
}

// RecordRequest records a request in Prometheus.
func (e *PrometheusExporter) RecordRequest(method string) {
	e.httpRequests.WithLabelValues(method).Inc()
}

// RecordDuration records a duration in Prometheus.
func (e *PrometheusExporter) RecordDuration(method string, durationSeconds float64) {
	e.httpDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordError records a server error in Prometheus.
func (e *PrometheusExporter) RecordError(method string) {
	e.httpErrors.WithLabelValues(method).Inc()
}

// RecordDecision records an authorization decision.
func (e *PrometheusExporter) RecordDecision(action, outcome string) {
	e.decisions.WithLabelValues(action, outcome).Inc()
}

// RecordEvalDuration records how long one policy evaluation took.
func (e *PrometheusExporter) RecordEvalDuration(durationSeconds float64) {
	e.evalDuration.Observe(durationSeconds)
}

// RecordPolicyError records a request denied over a malformed policy.
func (e *PrometheusExporter) RecordPolicyError() {
	e.policyErrors.Inc()
}

// RecordCacheHit records a reverse-DNS cache hit.
func (e *PrometheusExporter) RecordCacheHit() {
	e.dnsCacheHits.Inc()
}

// RecordCacheMiss records a reverse-DNS cache miss.
func (e *PrometheusExporter) RecordCacheMiss() {
	e.dnsCacheMisses.Inc()
}

// RecordCacheEviction records a reverse-DNS cache eviction.
func (e *PrometheusExporter) RecordCacheEviction() {
	e.dnsCacheEvictions.Inc()
}
