// Package metrics provides Prometheus metrics for feedhub.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts per-feed fetch outcomes.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Name:      "fetch_total",
			Help:      "Total number of feed results by status",
		},
		[]string{"status"},
	)

	// FetchDuration measures fetch+parse duration of cache misses.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedhub",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of feed fetch and parse in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
	)

	// FetchesInFlight tracks feeds holding a fetch slot.
	FetchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "feedhub",
			Name:      "fetches_in_flight",
			Help:      "Number of feeds currently being fetched and parsed",
		},
	)

	// CacheLookups counts cache lookups by result.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Name:      "cache_lookups_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"result"},
	)

	// DateFallbacks counts items whose publication date could not be parsed.
	DateFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "feedhub",
			Name:      "date_fallbacks_total",
			Help:      "Items with a missing or unparseable date treated as published now",
		},
		[]string{"feed"},
	)

	// ArticlesServed observes the number of articles per aggregated response.
	ArticlesServed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "feedhub",
			Name:      "articles_served",
			Help:      "Distribution of article counts per aggregation",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)

// RecordFetch records the outcome of one feed.
func RecordFetch(status string, seconds float64) {
	FetchTotal.WithLabelValues(status).Inc()
	if seconds > 0 {
		FetchDuration.Observe(seconds)
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// RecordDateFallback records an item dated "now" for lack of a usable date.
func RecordDateFallback(feed string) {
	DateFallbacks.WithLabelValues(feed).Inc()
}

// RecordArticlesServed records the size of one aggregated response.
func RecordArticlesServed(n int) {
	ArticlesServed.Observe(float64(n))
}
