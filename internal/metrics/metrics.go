// Package metrics exposes Prometheus instrumentation for the analytics
// pipeline: snapshot/score/verdict counters, subject gauges, and latency
// and score distributions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the pipeline's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// SnapshotsTotal counts snapshots accepted into buffers.
	SnapshotsTotal prometheus.Counter

	// ScoresComputed counts similarity comparisons performed.
	ScoresComputed prometheus.Counter

	// BaselineBuilds counts profile builds by creation method.
	BaselineBuilds *prometheus.CounterVec

	// DriftVerdicts counts verdicts by type and drifting outcome.
	DriftVerdicts *prometheus.CounterVec

	// ActiveSubjects gauges the number of monitored subjects.
	ActiveSubjects prometheus.Gauge

	// SimilarityScore observes the distribution of overall scores.
	SimilarityScore prometheus.Histogram

	// TickDuration observes pipeline tick latency in seconds.
	TickDuration prometheus.Histogram
}

// New creates and registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SnapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftd_snapshots_total",
			Help: "Snapshots accepted into per-subject buffers.",
		}),
		ScoresComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "driftd_scores_computed_total",
			Help: "Similarity comparisons performed.",
		}),
		BaselineBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftd_baseline_builds_total",
			Help: "Baseline profile builds by creation method.",
		}, []string{"method"}),
		DriftVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "driftd_drift_verdicts_total",
			Help: "Drift verdicts by type and drifting outcome.",
		}, []string{"type", "drifting"}),
		ActiveSubjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "driftd_active_subjects",
			Help: "Subjects currently monitored.",
		}),
		SimilarityScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftd_similarity_score",
			Help:    "Distribution of overall similarity scores.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "driftd_tick_duration_seconds",
			Help:    "Pipeline tick latency.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}

	reg.MustRegister(
		m.SnapshotsTotal,
		m.ScoresComputed,
		m.BaselineBuilds,
		m.DriftVerdicts,
		m.ActiveSubjects,
		m.SimilarityScore,
		m.TickDuration,
	)
	return m
}

// Handler returns the scrape endpoint for the pipeline registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry so callers can add collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
