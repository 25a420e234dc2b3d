package evo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports evolution progress. A nil *Metrics records nothing.
type Metrics struct {
	generation  prometheus.Gauge
	bestScore   prometheus.Gauge
	evaluations prometheus.Counter
	operations  *prometheus.CounterVec
	scoring     prometheus.Histogram
}

// NewMetrics registers the evolution metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		generation: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lunargp",
			Name:      "generation",
			Help:      "Current generation number",
		}),
		bestScore: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lunargp",
			Name:      "best_score",
			Help:      "Best score kept so far",
		}),
		evaluations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lunargp",
			Name:      "evaluations_total",
			Help:      "Total number of scored individuals",
		}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lunargp",
			Name:      "operations_total",
			Help:      "Offspring produced, by operation",
		}, []string{"operation"}),
		scoring: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lunargp",
			Name:      "scoring_duration_seconds",
			Help:      "Time spent scoring one generation",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) observeOperation(op Operation) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(op)).Inc()
}

// ObserveScoring records one scored generation of n individuals.
func (m *Metrics) ObserveScoring(generation, n int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generation.Set(float64(generation))
	m.evaluations.Add(float64(n))
	m.scoring.Observe(elapsed.Seconds())
}

// ObserveBest records a new best score.
func (m *Metrics) ObserveBest(score float64) {
	if m == nil {
		return
	}
	m.bestScore.Set(score)
}
