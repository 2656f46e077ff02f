package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"scaletrack/internal/domain"
)

// Metrics counts cache outcomes. All recording methods tolerate a nil
// receiver so tests can run without a registry.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	invalidations prometheus.Counter
}

// NewMetrics creates the cache collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scaletrack_cache_hits_total",
			Help: "Period cache hits served without a record source call.",
		}, []string{"granularity"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scaletrack_cache_misses_total",
			Help: "Period cache misses and stale entries that required a fetch.",
		}, []string{"granularity"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scaletrack_cache_invalidations_total",
			Help: "Full cache clears performed after record writes.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.invalidations)
	}
	return m
}

// Hit records a fetch served from cache.
func (m *Metrics) Hit(g domain.Granularity) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(string(g)).Inc()
}

// Miss records a fetch that had to go to the record source.
func (m *Metrics) Miss(g domain.Granularity) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(string(g)).Inc()
}

// Invalidation records a full cache clear.
func (m *Metrics) Invalidation() {
	if m == nil {
		return
	}
	m.invalidations.Inc()
}
