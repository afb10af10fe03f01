// Package metrics exposes Prometheus collectors for the portfolio pipeline.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lp_portfolio"

// Metrics holds the pipeline collectors
type Metrics struct {
	PipelineLoads      *prometheus.CounterVec
	StaleResults       prometheus.Counter
	PositionsFound     *prometheus.GaugeVec
	PriceLookups       *prometheus.CounterVec
	ExplorerRequests   *prometheus.CounterVec
	LoadDuration       prometheus.Histogram
	CircuitTransitions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PipelineLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_loads_total",
			Help:      "Portfolio loads by outcome.",
		}, []string{"outcome"}),
		StaleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_dropped_total",
			Help:      "Load results discarded because a newer load had started.",
		}),
		PositionsFound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "positions_found",
			Help:      "Positions found by the latest load, per chain.",
		}, []string{"chain"}),
		PriceLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_lookups_total",
			Help:      "Price lookups by the source that answered.",
		}, []string{"source"}),
		ExplorerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explorer_requests_total",
			Help:      "Explorer API requests by chain, action and outcome.",
		}, []string{"chain", "action", "outcome"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Wall time of a full portfolio load.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		CircuitTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Circuit breaker state changes.",
		}, []string{"name", "to"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PipelineLoads,
			m.StaleResults,
			m.PositionsFound,
			m.PriceLookups,
			m.ExplorerRequests,
			m.LoadDuration,
			m.CircuitTransitions,
		)
	}
	return m
}

// ObserveLoad records a finished load
func (m *Metrics) ObserveLoad(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.PipelineLoads.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(d.Seconds())
}

// StaleResultDropped counts a discarded out-of-date result
func (m *Metrics) StaleResultDropped() {
	if m == nil {
		return
	}
	m.StaleResults.Inc()
}

// SetPositions records the number of positions found on a chain
func (m *Metrics) SetPositions(chain string, n int) {
	if m == nil {
		return
	}
	m.PositionsFound.WithLabelValues(chain).Set(float64(n))
}

// PriceLookup counts a price answered by source (custom, cache, feed, stale, fallback)
func (m *Metrics) PriceLookup(source string) {
	if m == nil {
		return
	}
	m.PriceLookups.WithLabelValues(source).Inc()
}

// ExplorerRequest counts an explorer call
func (m *Metrics) ExplorerRequest(chain, action, outcome string) {
	if m == nil {
		return
	}
	m.ExplorerRequests.WithLabelValues(chain, action, outcome).Inc()
}

// CircuitTransition counts a breaker state change
func (m *Metrics) CircuitTransition(name, to string) {
	if m == nil {
		return
	}
	m.CircuitTransitions.WithLabelValues(name, to).Inc()
}
