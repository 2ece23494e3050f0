// Package rtmetrics exposes Prometheus instrumentation for the compile/instantiate/execute pipeline. A nil
// prometheus.Registerer is accepted everywhere so embedders that don't care about metrics pay nothing beyond a
// handful of counter increments.
package rtmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors registered for one Runtime.
type Metrics struct {
	ModulesCompiled    prometheus.Counter
	InstantiateSeconds prometheus.Histogram
	TrapsTotal         *prometheus.CounterVec
	CallStackDepth     prometheus.Gauge
}

// New registers a fresh set of collectors against reg. If reg is nil, collectors are created unregistered so
// callers can still observe/inc them without panicking; the metrics simply aren't exported anywhere.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModulesCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wrun",
			Name:      "modules_compiled_total",
			Help:      "Number of modules that completed validate+emit.",
		}),
		InstantiateSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wrun",
			Name:      "instantiate_duration_seconds",
			Help:      "Wall-clock time spent in the twelve-phase instantiation sequence.",
			Buckets:   prometheus.DefBuckets,
		}),
		TrapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wrun",
			Name:      "traps_total",
			Help:      "Traps raised by the dispatch loop, by kind.",
		}, []string{"kind"}),
		CallStackDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wrun",
			Name:      "call_stack_depth",
			Help:      "Current activation stack depth of the most recent call.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ModulesCompiled, m.InstantiateSeconds, m.TrapsTotal, m.CallStackDepth)
	}
	return m
}

// ObserveInstantiate records how long the instantiation phase sequence took.
func (m *Metrics) ObserveInstantiate(start time.Time) {
	m.InstantiateSeconds.Observe(time.Since(start).Seconds())
}

// RecordTrap increments the trap counter for the given trap kind name.
func (m *Metrics) RecordTrap(kind string) {
	m.TrapsTotal.WithLabelValues(kind).Inc()
}
