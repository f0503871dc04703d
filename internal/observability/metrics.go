package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the pipeline's Prometheus collectors. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	// SearchRequests counts arXiv queries by outcome (ok, empty, error).
	SearchRequests *prometheus.CounterVec
	// SearchRetries counts rate-limited attempts that were retried.
	SearchRetries prometheus.Counter
	// EnrichmentRuns counts enrichment units by trigger (save, regenerate) and outcome.
	EnrichmentRuns *prometheus.CounterVec
	// EnrichmentDuration observes fetch+analyze+merge time in seconds.
	EnrichmentDuration *prometheus.HistogramVec
	// TasksDropped counts background tasks rejected because the queue was full or closed.
	TasksDropped prometheus.Counter
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		SearchRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papershelf",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "arXiv search requests by outcome.",
		}, []string{"outcome"}),
		SearchRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "papershelf",
			Subsystem: "search",
			Name:      "rate_limit_retries_total",
			Help:      "arXiv requests retried after a rate-limit response.",
		}),
		EnrichmentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "papershelf",
			Subsystem: "enrichment",
			Name:      "runs_total",
			Help:      "Enrichment units by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		EnrichmentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "papershelf",
			Subsystem: "enrichment",
			Name:      "duration_seconds",
			Help:      "Time spent fetching, analyzing and merging a paper.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"trigger"}),
		TasksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "papershelf",
			Subsystem: "tasks",
			Name:      "dropped_total",
			Help:      "Background tasks rejected by the runner.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
