// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Source fetch metrics
	SourceRequests *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec
	SourceRetries  *prometheus.CounterVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	RateLimitWaits *prometheus.CounterVec

	// Source health
	SourceConsecutiveFailures *prometheus.GaugeVec
	SourceLastSuccess         *prometheus.GaugeVec

	// Aggregation metrics
	AggregationsTotal   prometheus.Counter
	AggregationDuration prometheus.Histogram
	InsufficientData    prometheus.Counter
	DivergentFields     prometheus.Counter

	// Scoring metrics
	Verdicts *prometheus.CounterVec

	// Alert and delivery metrics
	AlertsFormatted *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec

	// Feed metrics
	FeedEvents     *prometheus.CounterVec
	FeedReconnects prometheus.Counter
}

// NewMetrics creates a Metrics instance on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tokenwatch"
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SourceRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "requests_total",
			Help:      "Total number of source fetches by outcome status",
		}, []string{"source", "status"}),
		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "fetch_duration_seconds",
			Help:      "Source fetch latency including rate-limit wait and retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		SourceRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "retries_total",
			Help:      "Total retry attempts per source",
		}, []string{"source"}),
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "cache_hits_total",
			Help:      "Cache hits per source",
		}, []string{"source"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "cache_misses_total",
			Help:      "Cache misses per source",
		}, []string{"source"}),
		RateLimitWaits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "ratelimit_waits_total",
			Help:      "Calls that had to wait for rate-limit admission",
		}, []string{"source"}),

		SourceConsecutiveFailures: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "consecutive_failures",
			Help:      "Consecutive failed fetches per source, reset on success",
		}, []string{"source"}),
		SourceLastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful fetch per source",
		}, []string{"source"}),

		AggregationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "runs_total",
			Help:      "Total number of aggregation runs",
		}),
		AggregationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "run_duration_seconds",
			Help:      "Aggregation fan-out duration",
			Buckets:   prometheus.DefBuckets,
		}),
		InsufficientData: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "insufficient_data_total",
			Help:      "Snapshots flagged data-insufficient",
		}),
		DivergentFields: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "divergent_fields_total",
			Help:      "Merged fields flagged divergent across sources",
		}),

		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scorer",
			Name:      "verdicts_total",
			Help:      "Scoring verdicts by kind",
		}, []string{"verdict"}),

		AlertsFormatted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "formatted_total",
			Help:      "Alerts formatted by type",
		}, []string{"type"}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "delivery",
			Name:      "attempts_total",
			Help:      "Delivery attempts by outcome",
		}, []string{"status"}),

		FeedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Detection events received from the feed by outcome",
		}, []string{"outcome"}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Feed websocket reconnect attempts",
		}),
	}
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSourceFetch records one source fetch outcome.
func (m *Metrics) ObserveSourceFetch(source, status string, retries int, dur time.Duration) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(source, status).Inc()
	m.SourceLatency.WithLabelValues(source).Observe(dur.Seconds())
	if retries > 0 {
		m.SourceRetries.WithLabelValues(source).Add(float64(retries))
	}
}

// ObserveSourceHealth records a source's failure streak and, on success,
// its last-success time.
func (m *Metrics) ObserveSourceHealth(source string, consecutiveFailures int, lastSuccessMs int64) {
	if m == nil {
		return
	}
	m.SourceConsecutiveFailures.WithLabelValues(source).Set(float64(consecutiveFailures))
	if lastSuccessMs > 0 {
		m.SourceLastSuccess.WithLabelValues(source).Set(float64(lastSuccessMs) / 1000)
	}
}

// ObserveCache records a cache lookup per source.
func (m *Metrics) ObserveCache(source string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.WithLabelValues(source).Inc()
	} else {
		m.CacheMisses.WithLabelValues(source).Inc()
	}
}

// ObserveRateLimitWait records a call that blocked on admission.
func (m *Metrics) ObserveRateLimitWait(source string) {
	if m == nil {
		return
	}
	m.RateLimitWaits.WithLabelValues(source).Inc()
}

// ObserveAggregation records one aggregation run.
func (m *Metrics) ObserveAggregation(dur time.Duration, sufficient bool, divergent int) {
	if m == nil {
		return
	}
	m.AggregationsTotal.Inc()
	m.AggregationDuration.Observe(dur.Seconds())
	if !sufficient {
		m.InsufficientData.Inc()
	}
	if divergent > 0 {
		m.DivergentFields.Add(float64(divergent))
	}
}

// ObserveVerdict records a scoring verdict.
func (m *Metrics) ObserveVerdict(verdict string) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(verdict).Inc()
}

// ObserveAlert records a formatted alert.
func (m *Metrics) ObserveAlert(alertType string) {
	if m == nil {
		return
	}
	m.AlertsFormatted.WithLabelValues(alertType).Inc()
}

// ObserveDelivery records a delivery attempt outcome.
func (m *Metrics) ObserveDelivery(status string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(status).Inc()
}

// ObserveFeedEvent records one detection event by outcome.
func (m *Metrics) ObserveFeedEvent(outcome string) {
	if m == nil {
		return
	}
	m.FeedEvents.WithLabelValues(outcome).Inc()
}

// ObserveFeedReconnect records one reconnect attempt.
func (m *Metrics) ObserveFeedReconnect() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}
