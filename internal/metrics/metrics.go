// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine collectors. Registered once at startup and
// injected into the components that record into them.
type Metrics struct {
	CalculationsTotal   *prometheus.CounterVec
	CalculationDuration *prometheus.HistogramVec
	CacheHits           prometheus.Counter
	CacheMisses         prometheus.Counter
	SettlementRetries   prometheus.Counter
	ChunksDispatched    prometheus.Counter
}

// New registers the collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CalculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swapflow",
			Name:      "calculations_total",
			Help:      "Calculations by route and outcome.",
		}, []string{"route", "outcome"}),
		CalculationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swapflow",
			Name:      "calculation_duration_seconds",
			Help:      "Wall time per calculation by route.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"route"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swapflow",
			Name:      "result_cache_hits_total",
			Help:      "Result cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swapflow",
			Name:      "result_cache_misses_total",
			Help:      "Result cache misses.",
		}),
		SettlementRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swapflow",
			Name:      "settlement_publish_retries_total",
			Help:      "Settlement instruction publish retries.",
		}),
		ChunksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "swapflow",
			Name:      "historical_chunks_dispatched_total",
			Help:      "Chunks dispatched to the historical worker pool.",
		}),
	}
	reg.MustRegister(
		m.CalculationsTotal,
		m.CalculationDuration,
		m.CacheHits,
		m.CacheMisses,
		m.SettlementRetries,
		m.ChunksDispatched,
	)
	return m
}

// NewNop returns unregistered collectors for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
