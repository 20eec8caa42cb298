// Package metrics exports prometheus collectors for the rating service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ts4z/placerank/rating"
)

const namespace = "placerank"

// Metrics holds the collectors.  They are registered on a registry of their
// own so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	matchesRated     *prometheus.CounterVec
	ratingDuration   prometheus.Histogram
	searchIterations prometheus.Histogram
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		matchesRated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_rated_total",
			Help:      "Matches rated, by mode (rate, preview or record).",
		}, []string{"mode"}),
		ratingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rating_duration_seconds",
			Help:      "Time spent computing the ratings of one match.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		searchIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_iterations",
			Help:      "Bisection steps per participant in the performance search.",
			Buckets:   prometheus.LinearBuckets(1, 2, 12),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probability_cache_lookups_total",
			Help:      "Win probability lookups, by result (hit, miss or uncached).",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by status code.",
		}, []string{"code"}),
	}
	m.registry.MustRegister(
		m.matchesRated,
		m.ratingDuration,
		m.searchIterations,
		m.cacheLookups,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRating notes one engine run.
func (m *Metrics) RecordRating(mode string, participants int, stats rating.Stats, elapsed time.Duration) {
	m.matchesRated.WithLabelValues(mode).Inc()
	m.ratingDuration.Observe(elapsed.Seconds())
	if participants > 0 {
		m.searchIterations.Observe(float64(stats.SearchIterations) / float64(participants))
	}
	m.cacheLookups.WithLabelValues("hit").Add(float64(stats.CacheHits))
	m.cacheLookups.WithLabelValues("miss").Add(float64(stats.CacheMisses))
	m.cacheLookups.WithLabelValues("uncached").Add(float64(stats.Uncached))
}

// RecordHTTP counts one response.
func (m *Metrics) RecordHTTP(code int) {
	m.httpRequests.WithLabelValues(strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordRating(string, int, rating.Stats, time.Duration) {}
func (Nop) RecordHTTP(int)                                         {}
