package confidence

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"driftd/internal/baseline"
	"driftd/internal/drift"
	"driftd/internal/feature"
	"driftd/internal/similarity"
	"driftd/internal/stats"
)

// Weights set each component's share of the overall confidence.
type Weights struct {
	DataQuality         float64 `toml:"data_quality" json:"data_quality" yaml:"data_quality"`
	BaselineReliability float64 `toml:"baseline_reliability" json:"baseline_reliability" yaml:"baseline_reliability"`
	FeatureCoverage     float64 `toml:"feature_coverage" json:"feature_coverage" yaml:"feature_coverage"`
	TemporalConsistency float64 `toml:"temporal_consistency" json:"temporal_consistency" yaml:"temporal_consistency"`
	MedicalValidity     float64 `toml:"medical_validity" json:"medical_validity" yaml:"medical_validity"`
}

// DefaultWeights returns the default component weights.
func DefaultWeights() Weights {
	return Weights{
		DataQuality:         0.25,
		BaselineReliability: 0.25,
		FeatureCoverage:     0.20,
		TemporalConsistency: 0.15,
		MedicalValidity:     0.15,
	}
}

// Fixed uncertainty constants. These are acknowledged priors, not measured
// quantities; they keep the combined uncertainty from collapsing to zero on
// sparse evidence.
const (
	modelUncertainty          = 0.15
	interpretationUncertainty = 0.20
	biologicalVariability     = 0.10
	evidenceSupport           = 0.70
	baselineFreshDays         = 14.0
)

// criticalFeatures must be covered for full critical-feature coverage.
var criticalFeatures = []struct {
	m feature.Modality
	k feature.Key
}{
	{feature.ModalityKeyboard, feature.KeyMeanDwell},
	{feature.ModalityKeyboard, feature.KeyTimingEntropy},
	{feature.ModalityMouse, feature.KeyMovementJitter},
	{feature.ModalityComposite, feature.KeyTremorIndex},
	{feature.ModalityComposite, feature.KeyCoordinationIndex},
}

// Estimator produces confidence assessments. Stateless apart from
// configuration; safe for concurrent use.
type Estimator struct {
	mu      sync.RWMutex
	weights Weights
	log     *slog.Logger
	now     func() time.Time
}

// NewEstimator creates an estimator. A nil logger falls back to
// slog.Default.
func NewEstimator(weights Weights, log *slog.Logger) *Estimator {
	if log == nil {
		log = slog.Default()
	}
	return &Estimator{
		weights: weights,
		log:     log.With("component", "confidence"),
		now:     time.Now,
	}
}

// Reconfigure swaps the component weights. In-flight assessments finish
// under the old weights.
func (e *Estimator) Reconfigure(weights Weights) {
	e.mu.Lock()
	e.weights = weights
	e.mu.Unlock()
}

// Assess builds the confidence report for one similarity score.
// recentScores and det are optional; nil inputs degrade gracefully to
// neutral factors. Internal failures are caught at this boundary and
// reported as a zeroed assessment with a critical technical risk factor.
func (e *Estimator) Assess(subject string, score *similarity.Score, profile *baseline.Profile, recentScores []similarity.Score, det *drift.Detection) (out Assessment) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("confidence assessment failed", "subject", subject, "panic", fmt.Sprint(r))
			out = e.failed(subject)
		}
	}()

	if score == nil || profile == nil {
		return e.failed(subject)
	}

	components := map[Component]SubConfidence{
		ComponentDataQuality:         e.dataQuality(score),
		ComponentBaselineReliability: e.baselineReliability(profile),
		ComponentFeatureCoverage:     e.featureCoverage(score, profile),
		ComponentTemporalConsistency: e.temporalConsistency(score, profile, recentScores),
		ComponentMedicalValidity:     e.medicalValidity(score, det),
	}

	overall := stats.Clamp01(
		e.weights.DataQuality*components[ComponentDataQuality].Score +
			e.weights.BaselineReliability*components[ComponentBaselineReliability].Score +
			e.weights.FeatureCoverage*components[ComponentFeatureCoverage].Score +
			e.weights.TemporalConsistency*components[ComponentTemporalConsistency].Score +
			e.weights.MedicalValidity*components[ComponentMedicalValidity].Score)

	out = Assessment{
		SubjectID:   subject,
		Timestamp:   e.now().UTC(),
		Overall:     overall,
		Components:  components,
		Uncertainty: e.uncertainty(overall, score, profile),
	}
	out.RiskFactors = riskFactors(components, det)
	out.Recommendations = recommendations(components, out.RiskFactors, det)
	return out
}

// dataQuality reads the score's own quality signals: reliability, coverage,
// confidence, and anomaly density.
func (e *Estimator) dataQuality(score *similarity.Score) SubConfidence {
	anomalyDensity := math.Min(1, float64(len(score.Anomalies()))/10)
	factors := map[string]float64{
		"reliability":     score.Reliability,
		"coverage":        score.Coverage,
		"confidence":      score.Confidence,
		"anomaly_density": 1 - anomalyDensity,
	}
	sc := SubConfidence{
		Component: ComponentDataQuality,
		Score:     meanFactors(factors),
		Factors:   factors,
	}
	if score.Reliability < 0.4 {
		sc.Issues = append(sc.Issues, "low score reliability")
	}
	if score.Coverage < 0.3 {
		sc.Issues = append(sc.Issues, "sparse feature coverage in comparison")
	}
	return sc
}

// baselineReliability reads the profile: sample-size sigmoid, freshness
// relative to two weeks, stability, and confidence.
func (e *Estimator) baselineReliability(profile *baseline.Profile) SubConfidence {
	ageDays := e.now().Sub(profile.UpdatedAt).Hours() / 24
	freshness := 1.0
	if ageDays > baselineFreshDays {
		freshness = baselineFreshDays / ageDays
	}
	factors := map[string]float64{
		"sample_size": stats.Sigmoid(float64(profile.Statistics.SampleCount), 50, 0.1),
		"freshness":   freshness,
		"stability":   profile.Statistics.Stability,
		"confidence":  profile.Statistics.Confidence,
	}
	sc := SubConfidence{
		Component: ComponentBaselineReliability,
		Score:     meanFactors(factors),
		Factors:   factors,
	}
	if freshness < 0.5 {
		sc.Issues = append(sc.Issues, "baseline is stale; adaptive update overdue")
	}
	if profile.Statistics.SampleCount < 30 {
		sc.Issues = append(sc.Issues, "small baseline sample")
	}
	return sc
}

// featureCoverage reads breadth: modality-count ratio, feature density,
// critical-feature coverage, and a redundancy bonus above 20 features.
func (e *Estimator) featureCoverage(score *similarity.Score, profile *baseline.Profile) SubConfidence {
	modalitiesWithData := 0
	for _, ms := range score.Modalities {
		if ms.FeatureCount > 0 {
			modalitiesWithData++
		}
	}
	featureCount := score.FeatureCount()

	criticalCovered := 0
	for _, cf := range criticalFeatures {
		if cov, ok := profile.Statistics.Coverage[cf.m]; ok && cov[cf.k] {
			criticalCovered++
		}
	}

	redundancy := 0.0
	if featureCount > 20 {
		redundancy = math.Min(0.2, float64(featureCount-20)/100)
	}

	factors := map[string]float64{
		"modality_ratio":    float64(modalitiesWithData) / float64(len(feature.Modalities())),
		"feature_density":   math.Min(1, float64(featureCount)/50),
		"critical_coverage": float64(criticalCovered) / float64(len(criticalFeatures)),
		"redundancy_bonus":  redundancy,
	}
	base := (factors["modality_ratio"] + factors["feature_density"] + factors["critical_coverage"]) / 3
	sc := SubConfidence{
		Component: ComponentFeatureCoverage,
		Score:     stats.Clamp01(base + redundancy),
		Factors:   factors,
	}
	if modalitiesWithData < 3 {
		sc.Issues = append(sc.Issues, "fewer than three modalities reporting")
	}
	if factors["critical_coverage"] < 0.6 {
		sc.Issues = append(sc.Issues, "key medically relevant features uncovered")
	}
	return sc
}

// temporalConsistency reads score stability over recent history plus the
// environmental confidence of the baseline.
func (e *Estimator) temporalConsistency(score *similarity.Score, profile *baseline.Profile, recent []similarity.Score) SubConfidence {
	varianceFactor := 0.7 // neutral when no history
	if len(recent) >= 2 {
		overalls := make([]float64, len(recent))
		for i, s := range recent {
			overalls[i] = s.Overall
		}
		varianceFactor = math.Max(0, 1-4*stats.Variance(overalls))
	}
	envConfidence := 0.5 + 0.5*math.Min(1, float64(len(profile.Environment))/5)

	factors := map[string]float64{
		"score_reliability": score.Reliability,
		"score_confidence":  score.Confidence,
		"recent_variance":   varianceFactor,
		"environmental":     envConfidence,
	}
	sc := SubConfidence{
		Component: ComponentTemporalConsistency,
		Score:     meanFactors(factors),
		Factors:   factors,
	}
	if varianceFactor < 0.5 {
		sc.Issues = append(sc.Issues, "recent scores are highly variable")
	}
	return sc
}

// medicalValidity reads the clinical defensibility of the interpretation:
// flag burden, fixed evidence support, modality-based differential
// distinguishability, and drift progression consistency.
func (e *Estimator) medicalValidity(score *similarity.Score, det *drift.Detection) SubConfidence {
	flags := score.Interpretation.MedicalFlags
	severeFlags := 0
	for _, f := range flags {
		if f.Severity >= 0.75 {
			severeFlags++
		}
	}
	flagFactor := 1.0
	if len(flags) > 0 {
		flagFactor = 1 - float64(severeFlags)/float64(len(flags))
	}

	modalitiesWithData := 0
	for _, ms := range score.Modalities {
		if ms.FeatureCount > 0 {
			modalitiesWithData++
		}
	}
	differential := math.Min(1, float64(modalitiesWithData)/4)

	progression := 0.6 // neutral without a drift verdict
	if det != nil {
		progression = math.Max(0.3, det.Confidence)
	}

	factors := map[string]float64{
		"flag_burden":             flagFactor,
		"evidence_support":        evidenceSupport,
		"differential_diagnosis":  differential,
		"progression_consistency": progression,
	}
	sc := SubConfidence{
		Component: ComponentMedicalValidity,
		Score:     meanFactors(factors),
		Factors:   factors,
	}
	if severeFlags > 0 {
		sc.Issues = append(sc.Issues, "severe medical flags present")
	}
	return sc
}

// meanFactors sums in sorted-key order so identical factor maps always
// produce the same float result.
func meanFactors(factors map[string]float64) float64 {
	if len(factors) == 0 {
		return 0
	}
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)
	var sum float64
	for _, name := range names {
		sum += factors[name]
	}
	return stats.Clamp01(sum / float64(len(factors)))
}

// failed is the documented zero-confidence failure result.
func (e *Estimator) failed(subject string) Assessment {
	return Assessment{
		SubjectID:  subject,
		Timestamp:  e.now().UTC(),
		Components: map[Component]SubConfidence{},
		RiskFactors: []RiskFactor{{
			Name:        "technical",
			Level:       RiskCritical,
			Impact:      1,
			Description: "Confidence assessment failed; all outputs untrusted.",
		}},
		Recommendations: []Recommendation{{
			Priority:  PriorityUrgent,
			Action:    "Investigate assessment failure before consuming any scores.",
			Rationale: "The estimator hit an internal failure path.",
		}},
		Warnings: []string{"computation_failure"},
	}
}

// riskFactors derives threshold-ranked threats from the sub-confidences
// and any drift verdict, sorted by impact descending.
func riskFactors(components map[Component]SubConfidence, det *drift.Detection) []RiskFactor {
	var out []RiskFactor
	for _, sc := range components {
		switch {
		case sc.Score < 0.4:
			out = append(out, RiskFactor{
				Name:        string(sc.Component),
				Level:       RiskHigh,
				Impact:      1 - sc.Score,
				Description: fmt.Sprintf("%s confidence is low (%.2f)", sc.Component, sc.Score),
			})
		case sc.Score < 0.6:
			out = append(out, RiskFactor{
				Name:        string(sc.Component),
				Level:       RiskMedium,
				Impact:      1 - sc.Score,
				Description: fmt.Sprintf("%s confidence is marginal (%.2f)", sc.Component, sc.Score),
			})
		}
	}
	if det != nil && det.IsDrifting {
		level := RiskMedium
		if det.Severity.AtLeast(drift.SeveritySignificant) {
			level = RiskHigh
		}
		if det.Significance.AtLeast(drift.SignificanceImmediateReview) {
			level = RiskCritical
		}
		out = append(out, RiskFactor{
			Name:        "behavioral_drift",
			Level:       level,
			Impact:      math.Max(det.Magnitude, det.Stability.Volatility),
			Description: fmt.Sprintf("active %s drift (%s severity)", det.Type, det.Severity),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Impact != out[j].Impact {
			return out[i].Impact > out[j].Impact
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// recommendations derives prioritized remediation from weak components and
// risk factors, sorted by priority descending.
func recommendations(components map[Component]SubConfidence, risks []RiskFactor, det *drift.Detection) []Recommendation {
	var out []Recommendation

	add := func(p Priority, action, rationale string) {
		out = append(out, Recommendation{Priority: p, Action: action, Rationale: rationale})
	}

	if sc, ok := components[ComponentDataQuality]; ok && sc.Score < 0.5 {
		add(PriorityElevated, "Improve capture quality or session length.", "Data quality confidence is weak.")
	}
	if sc, ok := components[ComponentBaselineReliability]; ok && sc.Score < 0.5 {
		add(PriorityElevated, "Schedule an adaptive baseline update.", "Baseline reliability is weak.")
	}
	if sc, ok := components[ComponentFeatureCoverage]; ok && sc.Score < 0.5 {
		add(PriorityRoutine, "Enable additional modalities or extractors.", "Feature coverage is narrow.")
	}
	if sc, ok := components[ComponentTemporalConsistency]; ok && sc.Score < 0.5 {
		add(PriorityRoutine, "Gather more sessions before acting on single scores.", "Recent scores are inconsistent.")
	}

	for _, r := range risks {
		if r.Level == RiskCritical {
			add(PriorityUrgent, "Escalate for immediate review.", r.Description)
		}
	}
	if det != nil && det.IsDrifting && det.Significance.AtLeast(drift.SignificanceClinicalAttention) {
		add(PriorityUrgent, "Surface drift verdict for clinical review.", "Drift carries clinical significance.")
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() > out[j].Priority.rank()
	})
	return out
}
