// Package monitor drives the analytics pipeline on per-subject ticks.
//
// Each tick runs the fixed stage order: append snapshot, conditionally
// (re)build the baseline, score similarity, feed the drift detector, and
// assess confidence. Ticks for the same subject are serialized with a
// per-subject mutex; different subjects may tick concurrently. All
// computation is in-memory and bounded, so a tick runs synchronously.
package monitor

import (
	"log/slog"
	"sync"
	"time"

	"driftd/internal/baseline"
	"driftd/internal/confidence"
	"driftd/internal/config"
	"driftd/internal/drift"
	"driftd/internal/feature"
	"driftd/internal/metrics"
	"driftd/internal/similarity"
)

// TickResult is the outcome of one pipeline tick.
type TickResult struct {
	SubjectID string `json:"subject_id"`

	// Profile is the subject's current baseline, nil until enough history
	// accumulates.
	Profile *baseline.Profile `json:"profile,omitempty"`

	// ProfileCreated reports whether this tick (re)built the baseline.
	ProfileCreated bool `json:"profile_created,omitempty"`

	// Score is nil while no baseline exists.
	Score *similarity.Score `json:"score,omitempty"`

	// Drift is nil until the score window fills.
	Drift *drift.Detection `json:"drift,omitempty"`

	// Assessment is nil while no score exists.
	Assessment *confidence.Assessment `json:"assessment,omitempty"`

	// Warnings carry machine-readable reason codes for skipped stages.
	Warnings []string `json:"warnings,omitempty"`
}

// Pipeline owns the four analytics components and the per-subject tick
// locks.
type Pipeline struct {
	aggregator *baseline.Aggregator
	engine     *similarity.Engine
	detector   *drift.Detector
	estimator  *confidence.Estimator
	met        *metrics.Metrics
	log        *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires a pipeline from its components. met may be nil to disable
// instrumentation; a nil logger falls back to slog.Default.
func New(agg *baseline.Aggregator, eng *similarity.Engine, det *drift.Detector, est *confidence.Estimator, met *metrics.Metrics, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		aggregator: agg,
		engine:     eng,
		detector:   det,
		estimator:  est,
		met:        met,
		log:        log.With("component", "monitor"),
		locks:      make(map[string]*sync.Mutex),
	}

	det.OnAdaptationNeeded(func(subject string, d drift.Detection) {
		report, err := agg.Update(subject)
		if err != nil {
			p.log.Debug("adaptation deferred",
				"subject", subject,
				"reason", baseline.ReasonCode(err),
				"drift_type", d.Type)
			return
		}
		p.log.Info("baseline adapted after drift",
			"subject", subject,
			"drift_type", d.Type,
			"confidence_delta", report.ConfidenceDelta)
		if p.met != nil {
			p.met.BaselineBuilds.WithLabelValues(string(baseline.MethodAdaptive)).Inc()
		}
	})
	return p
}

// subjectLock returns the mutex serializing ticks for one subject.
func (p *Pipeline) subjectLock(subject string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[subject]
	if !ok {
		l = &sync.Mutex{}
		p.locks[subject] = l
		if p.met != nil {
			p.met.ActiveSubjects.Inc()
		}
	}
	return l
}

// Tick runs one full pipeline pass for a subject's snapshot.
func (p *Pipeline) Tick(subject string, snap feature.Snapshot) TickResult {
	l := p.subjectLock(subject)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	result := TickResult{SubjectID: subject}

	if created := p.aggregator.AddSnapshot(subject, snap); created != nil {
		result.ProfileCreated = true
		if p.met != nil {
			p.met.BaselineBuilds.WithLabelValues(string(created.Method)).Inc()
		}
	}
	if p.met != nil {
		p.met.SnapshotsTotal.Inc()
	}

	profile := p.aggregator.Profile(subject)
	result.Profile = profile
	if profile == nil {
		result.Warnings = append(result.Warnings, "insufficient_data")
		p.observeTick(start)
		return result
	}

	score := p.engine.Compute(&snap, profile)
	result.Score = &score
	if p.met != nil {
		p.met.ScoresComputed.Inc()
		p.met.SimilarityScore.Observe(score.Overall)
	}

	det := p.detector.ProcessScore(subject, score)
	result.Drift = det
	if det == nil {
		result.Warnings = append(result.Warnings, "drift_window_filling")
	} else if p.met != nil {
		drifting := "false"
		if det.IsDrifting {
			drifting = "true"
		}
		p.met.DriftVerdicts.WithLabelValues(string(det.Type), drifting).Inc()
	}

	var recent []similarity.Score
	if state := p.detector.State(subject); state != nil {
		recent = state.Scores()
	}
	assessment := p.estimator.Assess(subject, &score, profile, recent, det)
	result.Assessment = &assessment

	p.observeTick(start)
	return result
}

// Reconfigure applies updated tunables to every analytics component. Call
// it between ticks from the goroutine driving the pipeline; in-flight
// ticks finish under the old configuration. Logging and metrics settings
// are fixed at startup and are not touched here.
func (p *Pipeline) Reconfigure(cfg *config.Config) {
	p.aggregator.Reconfigure(cfg.Baseline)
	p.engine.Reconfigure(cfg.Similarity)
	p.detector.Reconfigure(cfg.Drift)
	p.estimator.Reconfigure(cfg.Confidence)
	p.log.Info("pipeline reconfigured")
}

// Mode exposes the subject's current monitoring mode.
func (p *Pipeline) Mode(subject string) drift.Mode {
	return p.detector.Mode(subject)
}

// Profile exposes the subject's current baseline (read-only).
func (p *Pipeline) Profile(subject string) *baseline.Profile {
	return p.aggregator.Profile(subject)
}

func (p *Pipeline) observeTick(start time.Time) {
	if p.met != nil {
		p.met.TickDuration.Observe(time.Since(start).Seconds())
	}
}
