// Package telemetry exposes the backend's prometheus metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the counters the search and chat paths record.
type Metrics struct {
	Searches    prometheus.Counter
	SearchFails prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	Uploads     prometheus.Counter
	ChatTurns   *prometheus.CounterVec
}

// New registers the metrics on the given registerer. Pass a fresh
// prometheus.NewRegistry() in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Searches: factory.NewCounter(prometheus.CounterOpts{
			Name: "confscout_searches_total",
			Help: "Search requests served.",
		}),
		SearchFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "confscout_search_failures_total",
			Help: "Search requests that failed after validation.",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "confscout_dive_cache_hits_total",
			Help: "Deep-dive cache lookups served from an unexpired handle.",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "confscout_dive_cache_misses_total",
			Help: "Deep-dive cache lookups that required an upload.",
		}),
		Uploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "confscout_dive_uploads_total",
			Help: "Documents uploaded to a provider.",
		}),
		ChatTurns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "confscout_chat_turns_total",
			Help: "Chat turns by outcome.",
		}, []string{"provider", "status"}),
	}
}
