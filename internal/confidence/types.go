// Package confidence quantifies how much a similarity score should be
// trusted.
//
// The estimator combines five independent sub-confidences with an
// epistemic/aleatoric uncertainty decomposition, producing calibrated
// intervals around the point estimate plus ranked risk factors and
// remediation recommendations. It reads the outputs of the baseline,
// similarity, and drift components and never mutates them.
package confidence

import "time"

// Component names one of the five assessed confidence dimensions.
type Component string

const (
	ComponentDataQuality         Component = "data_quality"
	ComponentBaselineReliability Component = "baseline_reliability"
	ComponentFeatureCoverage     Component = "feature_coverage"
	ComponentTemporalConsistency Component = "temporal_consistency"
	ComponentMedicalValidity     Component = "medical_validity"
)

// SubConfidence is the score of one component with its factor breakdown.
type SubConfidence struct {
	Component Component          `json:"component"`
	Score     float64            `json:"score"`
	Factors   map[string]float64 `json:"factors"`
	Issues    []string           `json:"issues,omitempty"`
}

// Interval is a closed [Lower, Upper] range, clamped to [0,1].
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v lies within the interval.
func (i Interval) Contains(v float64) bool {
	return v >= i.Lower && v <= i.Upper
}

// Uncertainty is the epistemic/aleatoric decomposition with derived
// intervals. Both intervals always contain the point estimate.
type Uncertainty struct {
	Epistemic float64 `json:"epistemic"`
	Aleatoric float64 `json:"aleatoric"`
	Combined  float64 `json:"combined"`

	ConfidenceInterval Interval `json:"confidence_interval"`
	PredictionInterval Interval `json:"prediction_interval"`
	ReliabilityBounds  Interval `json:"reliability_bounds"`
}

// RiskLevel grades a risk factor.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskFactor is one identified threat to assessment trustworthiness.
type RiskFactor struct {
	Name        string    `json:"name"`
	Level       RiskLevel `json:"level"`
	Impact      float64   `json:"impact"`
	Description string    `json:"description"`
}

// Priority orders recommendations.
type Priority string

const (
	PriorityRoutine  Priority = "routine"
	PriorityElevated Priority = "elevated"
	PriorityUrgent   Priority = "urgent"
)

func (p Priority) rank() int {
	switch p {
	case PriorityUrgent:
		return 2
	case PriorityElevated:
		return 1
	default:
		return 0
	}
}

// Recommendation is one remediation suggestion.
type Recommendation struct {
	Priority  Priority `json:"priority"`
	Action    string   `json:"action"`
	Rationale string   `json:"rationale"`
}

// Assessment is the complete confidence report for one similarity score.
type Assessment struct {
	SubjectID string    `json:"subject_id"`
	Timestamp time.Time `json:"timestamp"`

	// Overall is the weighted combination of the five sub-confidences.
	Overall float64 `json:"overall"`

	Components map[Component]SubConfidence `json:"components"`

	Uncertainty Uncertainty `json:"uncertainty"`

	// RiskFactors sorted by impact descending.
	RiskFactors []RiskFactor `json:"risk_factors,omitempty"`

	// Recommendations sorted by priority descending.
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}
