// Package metrics defines the prometheus collectors for selector indexing
// and DOM invalidation.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrRegistrationFailed is returned when a collector can't be registered.
var ErrRegistrationFailed = errors.New("metric registration failed")

// Metrics holds the indexing and invalidation collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	rulesIndexed      prometheus.Counter
	selectorsIndexed  prometheus.Counter
	setsMaterialized  *prometheus.CounterVec
	bloomInsertions   prometheus.Counter
	fullRecalcs       prometheus.Counter
	mutations         *prometheus.CounterVec
	elementsScheduled *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is useful in tests.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		rulesIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "rules_total",
			Help:      "Style rules indexed for invalidation.",
		}),
		selectorsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "selectors_total",
			Help:      "Complex selectors indexed for invalidation.",
		}),
		setsMaterialized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "sets_materialized_total",
			Help:      "Invalidation sets created, by key kind and set type.",
		}, []string{"kind", "type"}),
		bloomInsertions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "bloom_insertions_total",
			Help:      "Self-invalidating names recorded in the Bloom filter.",
		}),
		fullRecalcs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "full_recalc_fallbacks_total",
			Help:      "Selectors too deeply nested to index precisely.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "mutations_total",
			Help:      "DOM mutations processed, by kind.",
		}, []string{"kind"}),
		elementsScheduled: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "invalidation",
			Name:      "elements_scheduled",
			Help:      "Elements scheduled for style recalc per mutation.",
			Buckets:   []float64{0, 1, 2, 5, 10, 50, 100, 1000, 10000},
		}, []string{"kind"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.rulesIndexed, m.selectorsIndexed, m.setsMaterialized,
		m.bloomInsertions, m.fullRecalcs, m.mutations, m.elementsScheduled,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRegistrationFailed, err)
		}
	}
	return m, nil
}

// RuleIndexed counts one style rule.
func (m *Metrics) RuleIndexed() {
	if m != nil {
		m.rulesIndexed.Inc()
	}
}

// SelectorIndexed counts one complex selector.
func (m *Metrics) SelectorIndexed() {
	if m != nil {
		m.selectorsIndexed.Inc()
	}
}

// SetMaterialized counts a newly created invalidation set.
func (m *Metrics) SetMaterialized(kind, typ string) {
	if m != nil {
		m.setsMaterialized.WithLabelValues(kind, typ).Inc()
	}
}

// BloomInsertion counts a name added to the self-invalidation filter.
func (m *Metrics) BloomInsertion() {
	if m != nil {
		m.bloomInsertions.Inc()
	}
}

// FullRecalcFallback counts a selector that forced a full style recalc.
func (m *Metrics) FullRecalcFallback() {
	if m != nil {
		m.fullRecalcs.Inc()
	}
}

// Mutation records a DOM mutation and the number of elements it scheduled.
func (m *Metrics) Mutation(kind string, scheduled int) {
	if m != nil {
		m.mutations.WithLabelValues(kind).Inc()
		m.elementsScheduled.WithLabelValues(kind).Observe(float64(scheduled))
	}
}
