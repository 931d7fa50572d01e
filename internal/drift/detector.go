package drift

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftd/internal/feature"
	"driftd/internal/similarity"
)

// AdaptationTrigger is notified when a verdict suggests the baseline should
// be re-derived. It is an informational hook: the detector never mutates
// baselines itself.
type AdaptationTrigger func(subject string, d Detection)

// Detector maintains per-subject recognition state and produces drift
// verdicts from rolling score windows. Safe for concurrent use across
// subjects; same-subject calls are serialized by the caller.
type Detector struct {
	mu       sync.RWMutex
	cfg      Config
	subjects map[string]*RecognitionState
	trigger  AdaptationTrigger
	log      *slog.Logger
}

// NewDetector creates a detector. A nil logger falls back to slog.Default.
func NewDetector(cfg Config, log *slog.Logger) *Detector {
	if log == nil {
		log = slog.Default()
	}
	if cfg.WindowSize < 2 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	return &Detector{
		cfg:      cfg,
		subjects: make(map[string]*RecognitionState),
		log:      log.With("component", "drift"),
	}
}

// Reconfigure swaps the detector tunables. Apply between ticks; already
// windowed scores are kept.
func (d *Detector) Reconfigure(cfg Config) {
	if cfg.WindowSize < 2 {
		cfg.WindowSize = DefaultConfig().WindowSize
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

// OnAdaptationNeeded registers the baseline-update collaborator hook.
func (d *Detector) OnAdaptationNeeded(trigger AdaptationTrigger) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trigger = trigger
}

// State returns the subject's recognition state, or nil if the subject has
// never been processed.
func (d *Detector) State(subject string) *RecognitionState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.subjects[subject]
}

// Mode returns the subject's monitoring mode (ModeNormal for unknown
// subjects).
func (d *Detector) Mode(subject string) Mode {
	if rs := d.State(subject); rs != nil {
		return rs.Mode
	}
	return ModeNormal
}

func (d *Detector) state(subject string) *RecognitionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	rs, ok := d.subjects[subject]
	if !ok {
		rs = newRecognitionState(subject)
		d.subjects[subject] = rs
	}
	return rs
}

// ProcessScore appends a score to the subject's rolling window and, once
// the window has filled, returns a drift verdict. A nil return with no
// verdict means "not enough data yet", not an error.
//
// Internal failures are caught at this boundary and reported as a
// non-drifting technical verdict with zero confidence.
func (d *Detector) ProcessScore(subject string, score similarity.Score) (det *Detection) {
	rs := d.state(subject)

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("drift analysis failed", "subject", subject, "panic", fmt.Sprint(r))
			det = &Detection{
				ID:           uuid.NewString(),
				SubjectID:    subject,
				Type:         TypeTechnical,
				Severity:     SeverityMinimal,
				Significance: SignificanceNone,
				Direction:    DirectionChange,
				DetectedAt:   time.Now().UTC(),
				Actions:      []string{"Analysis failed; verdict is untrusted."},
			}
		}
	}()

	rs.appendScore(score, 2*d.cfg.WindowSize)
	rs.LastCheck = time.Now().UTC()

	if len(rs.scores) < d.cfg.WindowSize {
		rs.appendEvolution(EvolutionEntry{
			Timestamp: score.Timestamp,
			Overall:   score.Overall,
			Mode:      rs.Mode,
		}, d.cfg.EvolutionHistoryCap)
		return nil
	}

	verdict := d.analyze(subject, rs)
	rs.appendDetection(verdict, d.cfg.DetectionHistoryCap)
	rs.updateMode()
	rs.appendEvolution(EvolutionEntry{
		Timestamp: score.Timestamp,
		Overall:   score.Overall,
		Mode:      rs.Mode,
		Drifting:  verdict.IsDrifting,
	}, d.cfg.EvolutionHistoryCap)

	if verdict.IsDrifting {
		d.log.Info("drift detected",
			"subject", subject,
			"type", verdict.Type,
			"severity", verdict.Severity,
			"direction", verdict.Direction,
			"magnitude", verdict.Magnitude,
			"confidence", verdict.Confidence)
	}

	if d.shouldTriggerAdaptation(rs, verdict) {
		d.mu.RLock()
		trigger := d.trigger
		d.mu.RUnlock()
		if trigger != nil {
			trigger(subject, verdict)
		}
	}
	return &verdict
}

// analyze runs trend, variability, and change-point analysis over the
// subject's window and classifies the outcome.
func (d *Detector) analyze(subject string, rs *RecognitionState) Detection {
	scores := rs.scores
	trend := analyzeTrend(scores)
	variability := analyzeVariability(scores)
	cp := scanChangePoint(scores, d.cfg.ChangePointDelta)

	trending := math.Abs(trend.direction) > d.cfg.TrendDirectionMin &&
		trend.consistency > d.cfg.TrendConsistencyMin &&
		trend.magnitude > d.cfg.Severity.Mild
	unstable := variability.volatility > d.cfg.VolatilityMax ||
		variability.stability < d.cfg.StabilityMin
	isDrifting := trending || unstable || cp.found

	verdict := Detection{
		ID:         uuid.NewString(),
		SubjectID:  subject,
		IsDrifting: isDrifting,
		DetectedAt: time.Now().UTC(),
		Magnitude:  trend.magnitude,
		RatePerDay: trend.ratePerDay,
		Stability: StabilityMetrics{
			Variance:   variability.variance,
			Trend:      trend.direction,
			Volatility: variability.volatility,
		},
		Window: WindowMeta{
			Size:  len(scores),
			Start: scores[0].Timestamp,
			End:   scores[len(scores)-1].Timestamp,
		},
	}

	verdict.Type = classify(trend, variability, cp, d.cfg)
	verdict.Severity = d.cfg.severityFor(math.Max(trend.magnitude, variability.volatility))
	verdict.Direction = direction(trend)
	verdict.AffectedModalities = affectedModalities(scores, 3)
	verdict.PrimaryFeatures = primaryFeatures(scores, 5)
	verdict.Significance = d.significance(verdict)
	verdict.ProgressionLikely = progressionLikely(verdict, trend)
	verdict.Confidence = driftConfidence(trend, variability, scores, d.cfg.WindowSize)
	verdict.Actions = actions(verdict)
	return verdict
}

// classify picks the drift type by priority: large change points first,
// then strong consistent trends, then volatility.
func classify(trend trendAnalysis, variability variabilityAnalysis, cp changePoint, cfg Config) Type {
	switch {
	case cp.found && math.Abs(cp.delta) > cfg.SuddenChangeDelta:
		return TypeSuddenChange
	case math.Abs(trend.direction) > cfg.TrendDirectionMin && trend.consistency > cfg.TrendConsistencyMin:
		if trend.direction < 0 {
			return TypeGradualDecline
		}
		return TypeRecovery
	case variability.volatility > cfg.VolatilityMax:
		return TypeErraticBehavior
	default:
		return TypeGradualDecline
	}
}

func direction(trend trendAnalysis) Direction {
	switch {
	case trend.direction > 0.3:
		return DirectionImprovement
	case trend.direction < -0.3:
		return DirectionDeterioration
	default:
		return DirectionChange
	}
}

// significance escalates medical significance from the verdict shape:
// moderate severity reaches monitoring; significant severity or a sudden
// change reach clinical attention; severe deterioration with neuromotor
// involvement reaches immediate review. Two or more neuromotor primary
// features or three affected modalities escalate one step.
func (d *Detector) significance(v Detection) Significance {
	if !v.IsDrifting {
		return SignificanceNone
	}

	sig := SignificanceNone
	if v.Severity.AtLeast(SeverityModerate) {
		sig = SignificanceMonitoring
	}
	if v.Severity.AtLeast(SeveritySignificant) || v.Type == TypeSuddenChange {
		sig = SignificanceClinicalAttention
	}

	neuromotor := 0
	for _, k := range v.PrimaryFeatures {
		if feature.NeuromotorTagged(k) {
			neuromotor++
		}
	}
	if neuromotor >= 2 || len(v.AffectedModalities) >= 3 {
		sig = escalate(sig)
	}
	if v.Severity == SeveritySevere && v.Direction == DirectionDeterioration && neuromotor >= 2 {
		sig = SignificanceImmediateReview
	}
	return sig
}

func escalate(s Significance) Significance {
	switch s {
	case SignificanceNone:
		return SignificanceMonitoring
	case SignificanceMonitoring:
		return SignificanceClinicalAttention
	default:
		return SignificanceImmediateReview
	}
}

// progressionLikely flags consistent deterioration that is accelerating or
// already significant.
func progressionLikely(v Detection, trend trendAnalysis) bool {
	if v.Direction != DirectionDeterioration {
		return false
	}
	return trend.acceleration < 0 || v.Severity.AtLeast(SeveritySignificant)
}

// driftConfidence combines trend consistency (0.3), mean score confidence
// (0.3), window saturation (0.2), and calmness 1−volatility (0.2).
func driftConfidence(trend trendAnalysis, variability variabilityAnalysis, scores []similarity.Score, window int) float64 {
	var confSum float64
	for _, s := range scores {
		confSum += s.Confidence
	}
	meanConf := confSum / float64(len(scores))
	saturation := math.Min(1, float64(len(scores))/float64(window))
	calm := math.Max(0, 1-variability.volatility)
	c := 0.3*trend.consistency + 0.3*meanConf + 0.2*saturation + 0.2*calm
	return math.Min(1, math.Max(0, c))
}

func actions(v Detection) []string {
	if !v.IsDrifting {
		return nil
	}
	var out []string
	switch v.Type {
	case TypeSuddenChange:
		out = append(out, "Verify for environmental or technical causes before clinical interpretation.")
	case TypeGradualDecline:
		out = append(out, "Compare against recent sleep, medication, and schedule context.")
	case TypeErraticBehavior:
		out = append(out, "Check input device and capture quality; erratic windows are often technical.")
	case TypeRecovery:
		out = append(out, "Consider adaptive baseline update to absorb the improvement.")
	}
	if v.Significance.AtLeast(SignificanceClinicalAttention) {
		out = append(out, "Surface this verdict for clinical review.")
	}
	return out
}

// shouldTriggerAdaptation fires the baseline-update hook when drift is
// severe or significant, when the last five verdicts agree on type and
// direction, or when the verdict carries clinical significance.
func (d *Detector) shouldTriggerAdaptation(rs *RecognitionState, v Detection) bool {
	if !v.IsDrifting {
		return false
	}
	if v.Severity.AtLeast(SeveritySignificant) {
		return true
	}
	if v.Significance.AtLeast(SignificanceClinicalAttention) {
		return true
	}
	recent := rs.recentDetections(5)
	if len(recent) < 5 {
		return false
	}
	for _, prev := range recent {
		if !prev.IsDrifting || prev.Type != v.Type || prev.Direction != v.Direction {
			return false
		}
	}
	return true
}
