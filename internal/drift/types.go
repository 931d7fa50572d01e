// Package drift detects longitudinal behavioral drift from rolling windows
// of similarity scores.
//
// The detector maintains bounded per-subject recognition state with a
// monitoring-mode machine (normal, enhanced, clinical), runs trend,
// variability, and change-point analysis over the score window, and
// classifies any detected drift by type, severity, direction, and medical
// significance. A window that has not filled yet yields no verdict; that is
// a valid "not enough data" outcome, not an error.
package drift

import (
	"time"

	"driftd/internal/feature"
)

// Type classifies the shape of a detected drift.
type Type string

const (
	TypeGradualDecline  Type = "gradual_decline"
	TypeSuddenChange    Type = "sudden_change"
	TypeCyclicVariation Type = "cyclic_variation"
	TypeErraticBehavior Type = "erratic_behavior"
	TypeRecovery        Type = "recovery"
	TypeAdaptation      Type = "adaptation"
	TypeEnvironmental   Type = "environmental"
	TypeTechnical       Type = "technical"
)

// SeverityTier grades drift magnitude.
type SeverityTier string

const (
	SeverityMinimal     SeverityTier = "minimal"
	SeverityMild        SeverityTier = "mild"
	SeverityModerate    SeverityTier = "moderate"
	SeveritySignificant SeverityTier = "significant"
	SeveritySevere      SeverityTier = "severe"
)

// rank orders severity tiers for comparisons.
func (s SeverityTier) rank() int {
	switch s {
	case SeverityMinimal:
		return 0
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySignificant:
		return 3
	case SeveritySevere:
		return 4
	}
	return 0
}

// AtLeast reports whether s is at or above other.
func (s SeverityTier) AtLeast(other SeverityTier) bool {
	return s.rank() >= other.rank()
}

// Significance grades the medical weight of a drift verdict.
type Significance string

const (
	SignificanceNone              Significance = "none"
	SignificanceMonitoring        Significance = "monitoring"
	SignificanceClinicalAttention Significance = "clinical_attention"
	SignificanceImmediateReview   Significance = "immediate_review"
)

func (s Significance) rank() int {
	switch s {
	case SignificanceNone:
		return 0
	case SignificanceMonitoring:
		return 1
	case SignificanceClinicalAttention:
		return 2
	case SignificanceImmediateReview:
		return 3
	}
	return 0
}

// AtLeast reports whether s is at or above other.
func (s Significance) AtLeast(other Significance) bool {
	return s.rank() >= other.rank()
}

// Direction summarizes where the behavior is heading.
type Direction string

const (
	DirectionImprovement   Direction = "improvement"
	DirectionDeterioration Direction = "deterioration"
	DirectionChange        Direction = "change"
)

// StabilityMetrics summarizes window variability.
type StabilityMetrics struct {
	Variance   float64 `json:"variance"`
	Trend      float64 `json:"trend"`
	Volatility float64 `json:"volatility"`
}

// WindowMeta describes the score window a verdict was computed over.
type WindowMeta struct {
	Size  int       `json:"size"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Detection is a per-subject longitudinal drift verdict.
type Detection struct {
	ID        string `json:"id"`
	SubjectID string `json:"subject_id"`

	IsDrifting bool         `json:"is_drifting"`
	Type       Type         `json:"type"`
	Severity   SeverityTier `json:"severity"`
	Confidence float64      `json:"confidence"`
	DetectedAt time.Time    `json:"detected_at"`

	// AffectedModalities are the top-3 modalities by score variance.
	AffectedModalities []feature.Modality `json:"affected_modalities,omitempty"`

	// PrimaryFeatures are the top-5 features by anomaly frequency.
	PrimaryFeatures []feature.Key `json:"primary_features,omitempty"`

	Direction  Direction `json:"direction"`
	Magnitude  float64   `json:"magnitude"`
	RatePerDay float64   `json:"rate_per_day"`

	Stability StabilityMetrics `json:"stability"`

	Significance      Significance `json:"significance"`
	ProgressionLikely bool         `json:"progression_likely"`
	Actions           []string     `json:"actions,omitempty"`

	Window WindowMeta `json:"window"`
}
