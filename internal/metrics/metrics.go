// Package metrics exposes prometheus collectors for assignment passes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dormd"

// Pass outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeNoop       = "noop"
	OutcomeStale      = "stale"
	OutcomeStorageErr = "storage_error"
)

// Collector records assignment pass activity.
type Collector struct {
	passes   *prometheus.CounterVec
	assigned prometheus.Counter
	waiting  prometheus.Gauge
	duration prometheus.Histogram
}

// NewCollector registers the assignment collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assignment_passes_total",
			Help:      "Assignment passes by outcome.",
		}, []string{"outcome"}),
		assigned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "people_assigned_total",
			Help:      "People placed into rooms.",
		}),
		waiting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "people_waiting",
			Help:      "People still waiting after the last pass.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assignment_pass_duration_seconds",
			Help:      "Wall time of assignment passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObservePass records one finished pass. A nil Collector is a no-op.
func (c *Collector) ObservePass(outcome string, assigned, waiting int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.passes.WithLabelValues(outcome).Inc()
	c.duration.Observe(elapsed.Seconds())
	if outcome == OutcomeOK || outcome == OutcomeNoop {
		c.assigned.Add(float64(assigned))
		c.waiting.Set(float64(waiting))
	}
}
