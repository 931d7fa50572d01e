// Package similarity scores one feature snapshot against a subject's
// baseline profile.
//
// Per-feature deviation is measured in baseline standard deviations and
// mapped to [0,1]; per-modality and overall scores are reliability-weighted
// averages. The engine also emits anomaly records, a structured
// interpretation across four behavioral domains, and medical flags. It is
// deterministic: identical inputs produce identical output.
package similarity

import (
	"time"

	"driftd/internal/feature"
)

// Severity grades a feature anomaly by its z-score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// weight returns the numeric weight of a severity tier for averaging.
func (s Severity) weight() float64 {
	switch s {
	case SeverityLow:
		return 0.25
	case SeverityMedium:
		return 0.5
	case SeverityHigh:
		return 0.75
	case SeverityCritical:
		return 1.0
	}
	return 0
}

// FeatureAnomaly records a feature deviating beyond the lowest z threshold.
type FeatureAnomaly struct {
	Modality    feature.Modality  `json:"modality"`
	Key         feature.Key       `json:"key"`
	Severity    Severity          `json:"severity"`
	Current     float64           `json:"current"`
	Baseline    float64           `json:"baseline"`
	ZScore      float64           `json:"z_score"`
	Relevance   feature.Relevance `json:"relevance"`
	Description string            `json:"description"`
}

// FeatureContribution records how one feature contributed to its modality
// score.
type FeatureContribution struct {
	Key         feature.Key `json:"key"`
	Score       float64     `json:"score"`
	Weight      float64     `json:"weight"`
	Reliability float64     `json:"reliability"`
}

// ModalitySimilarity is the per-modality comparison result.
type ModalitySimilarity struct {
	Modality      feature.Modality      `json:"modality"`
	Score         float64               `json:"score"`
	Weight        float64               `json:"weight"`
	FeatureCount  int                   `json:"feature_count"`
	Anomalies     []FeatureAnomaly      `json:"anomalies,omitempty"`
	Contributions []FeatureContribution `json:"contributions,omitempty"`
}

// Domain names one of the four interpreted behavioral domains.
type Domain string

const (
	DomainNeuromotor  Domain = "neuromotor"
	DomainCognitive   Domain = "cognitive"
	DomainTemporal    Domain = "temporal"
	DomainConsistency Domain = "behavioral_consistency"
)

// DomainAnalysis is the interpreted sub-score for one behavioral domain.
type DomainAnalysis struct {
	Domain  Domain  `json:"domain"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// MedicalFlag is raised when anomalies cluster into a clinically meaningful
// pattern (for example tremor-tagged features deviating together).
type MedicalFlag struct {
	Flag       string  `json:"flag"`
	Severity   float64 `json:"severity"`
	Confidence float64 `json:"confidence"`
	Count      int     `json:"count"`
}

// Interpretation is the natural-language-style reading of a score.
type Interpretation struct {
	Assessment      string           `json:"assessment"`
	Concerns        []string         `json:"concerns,omitempty"`
	Domains         []DomainAnalysis `json:"domains"`
	Recommendations []string         `json:"recommendations,omitempty"`
	MedicalFlags    []MedicalFlag    `json:"medical_flags,omitempty"`
}

// Score is one snapshot-against-baseline comparison result. Immutable once
// produced; consumed by the drift detector, the confidence estimator, and
// external reporting.
type Score struct {
	Overall        float64                                 `json:"overall"`
	Confidence     float64                                 `json:"confidence"`
	Timestamp      time.Time                               `json:"timestamp"`
	Modalities     map[feature.Modality]ModalitySimilarity `json:"modalities"`
	Interpretation Interpretation                          `json:"interpretation"`
	Reliability    float64                                 `json:"reliability"`
	Coverage       float64                                 `json:"coverage"`
	Warnings       []string                                `json:"warnings,omitempty"`
}

// Anomalies returns all anomalies across modalities.
func (s *Score) Anomalies() []FeatureAnomaly {
	var out []FeatureAnomaly
	for _, m := range feature.Modalities() {
		if ms, ok := s.Modalities[m]; ok {
			out = append(out, ms.Anomalies...)
		}
	}
	return out
}

// AnomaliesAt returns anomalies at or above the given severity.
func (s *Score) AnomaliesAt(min Severity) []FeatureAnomaly {
	minW := min.weight()
	var out []FeatureAnomaly
	for _, a := range s.Anomalies() {
		if a.Severity.weight() >= minW {
			out = append(out, a)
		}
	}
	return out
}

// FeatureCount returns the total number of compared features.
func (s *Score) FeatureCount() int {
	n := 0
	for _, ms := range s.Modalities {
		n += ms.FeatureCount
	}
	return n
}
