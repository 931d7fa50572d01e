// Package baseline builds and adapts per-subject behavioral baselines.
//
// A baseline is a statistical model of a subject's "normal": robust per-feature
// point estimates, variability bounds, temporal activity patterns, and quality
// metrics, all learned from that subject's own snapshot history. There is no
// ground truth; a profile is only as good as the data behind it, and the
// aggregator reports exactly how good that is.
package baseline

import (
	"time"

	"driftd/internal/feature"
)

// Method records how a profile was produced.
type Method string

const (
	MethodInitial  Method = "initial"
	MethodAdaptive Method = "adaptive"
	MethodMerged   Method = "merged"
)

// QualityTier grades the data behind a profile.
type QualityTier string

const (
	QualityPoor       QualityTier = "poor"
	QualityAcceptable QualityTier = "acceptable"
	QualityGood       QualityTier = "good"
	QualityExcellent  QualityTier = "excellent"
)

// Variability captures the natural spread of one feature in the baseline.
// Bounds are mean ± SigmaBound·std, with the lower bound floored at 0.
type Variability struct {
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	LowerBound  float64 `json:"lower_bound"`
	UpperBound  float64 `json:"upper_bound"`
	SampleCount int     `json:"sample_count"`
}

// Statistics aggregates profile-level quality metrics.
type Statistics struct {
	SampleCount   int           `json:"sample_count"`
	SessionCount  int           `json:"session_count"`
	TotalDuration time.Duration `json:"total_duration"`
	Confidence    float64       `json:"confidence"`
	Stability     float64       `json:"stability"`

	// Coverage flags which features have enough samples for a point estimate.
	Coverage map[feature.Modality]map[feature.Key]bool `json:"coverage"`
}

// Temporal describes when the subject is normally active.
type Temporal struct {
	HourlyActivity  [24]int `json:"hourly_activity"`
	WeekdayActivity [7]int  `json:"weekday_activity"`

	// Session length distribution in minutes.
	MeanSessionMinutes   float64 `json:"mean_session_minutes"`
	MedianSessionMinutes float64 `json:"median_session_minutes"`

	// OptimalWindow is the inferred most-active hour range [start, end).
	OptimalWindowStart int `json:"optimal_window_start"`
	OptimalWindowEnd   int `json:"optimal_window_end"`
}

// Profile is the learned "normal" for one subject. It is owned by the
// Aggregator; every other component treats it as read-only.
type Profile struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// PointEstimates holds robust per-feature trimmed means, present only
	// where at least MinSamplesPerFeature valid samples existed.
	PointEstimates map[feature.Modality]map[feature.Key]float64 `json:"point_estimates"`

	// Variability holds per-feature spread records.
	Variability map[feature.Modality]map[feature.Key]Variability `json:"variability"`

	Statistics Statistics `json:"statistics"`
	Temporal   Temporal   `json:"temporal"`

	// Environment aggregates the most frequent context value per key.
	Environment map[string]string `json:"environment,omitempty"`

	Method           Method            `json:"method"`
	DataQuality      QualityTier       `json:"data_quality"`
	MedicalRelevance feature.Relevance `json:"medical_relevance"`
}

// Estimate returns the point estimate for (m, k) and whether one exists.
func (p *Profile) Estimate(m feature.Modality, k feature.Key) (float64, bool) {
	feats, ok := p.PointEstimates[m]
	if !ok {
		return 0, false
	}
	v, ok := feats[k]
	return v, ok
}

// Spread returns the variability record for (m, k) and whether one exists.
func (p *Profile) Spread(m feature.Modality, k feature.Key) (Variability, bool) {
	feats, ok := p.Variability[m]
	if !ok {
		return Variability{}, false
	}
	v, ok := feats[k]
	return v, ok
}

// FeatureShift describes a feature whose estimate moved significantly
// during an adaptive update.
type FeatureShift struct {
	Modality      feature.Modality `json:"modality"`
	Key           feature.Key      `json:"key"`
	Previous      float64          `json:"previous"`
	Current       float64          `json:"current"`
	RelativeShift float64          `json:"relative_shift"`
	Threshold     float64          `json:"threshold"`
}

// UpdateReport describes the outcome of an adaptive baseline update.
type UpdateReport struct {
	Profile            *Profile       `json:"profile"`
	PreviousConfidence float64        `json:"previous_confidence"`
	ConfidenceDelta    float64        `json:"confidence_delta"`
	PreviousStability  float64        `json:"previous_stability"`
	StabilityDelta     float64        `json:"stability_delta"`
	SnapshotsUsed      int            `json:"snapshots_used"`
	SignificantChanges []FeatureShift `json:"significant_changes,omitempty"`
}
