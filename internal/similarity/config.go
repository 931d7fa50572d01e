package similarity

import "driftd/internal/feature"

// ZThresholds are the z-score cutoffs for anomaly severity tiers.
type ZThresholds struct {
	Low      float64 `toml:"low" json:"low" yaml:"low"`
	Medium   float64 `toml:"medium" json:"medium" yaml:"medium"`
	High     float64 `toml:"high" json:"high" yaml:"high"`
	Critical float64 `toml:"critical" json:"critical" yaml:"critical"`
}

// Config holds the tunable parameters of the similarity engine. The
// defaults are hand-tuned starting points, not ground truth; deployments
// recalibrate them via the configuration surface.
type Config struct {
	// ModalityWeights set each modality's share of the overall score.
	ModalityWeights map[feature.Modality]float64 `toml:"modality_weights" json:"modality_weights" yaml:"modality_weights"`

	// ZThresholds set the anomaly severity ladder.
	ZThresholds ZThresholds `toml:"z_thresholds" json:"z_thresholds" yaml:"z_thresholds"`

	// CoverageTarget is the feature count at which coverage saturates to 1.
	CoverageTarget int `toml:"coverage_target" json:"coverage_target" yaml:"coverage_target"`

	// FallbackReliability is used for features lacking variability data.
	FallbackReliability float64 `toml:"fallback_reliability" json:"fallback_reliability" yaml:"fallback_reliability"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ModalityWeights: map[feature.Modality]float64{
			feature.ModalityKeyboard:  0.30,
			feature.ModalityMouse:     0.25,
			feature.ModalityScroll:    0.15,
			feature.ModalityFocus:     0.20,
			feature.ModalityComposite: 0.10,
		},
		ZThresholds: ZThresholds{
			Low:      1.5,
			Medium:   2.0,
			High:     2.5,
			Critical: 3.0,
		},
		CoverageTarget:      50,
		FallbackReliability: 0.6,
	}
}

// severityFor maps a z-score to its severity tier, or false below the
// lowest threshold.
func (c *Config) severityFor(z float64) (Severity, bool) {
	switch {
	case z >= c.ZThresholds.Critical:
		return SeverityCritical, true
	case z >= c.ZThresholds.High:
		return SeverityHigh, true
	case z >= c.ZThresholds.Medium:
		return SeverityMedium, true
	case z >= c.ZThresholds.Low:
		return SeverityLow, true
	}
	return "", false
}

// importanceOf weights a feature by its medical relevance.
func importanceOf(k feature.Key) float64 {
	switch feature.RelevanceOf(k) {
	case feature.RelevanceCritical:
		return 1.0
	case feature.RelevanceHigh:
		return 0.85
	case feature.RelevanceModerate:
		return 0.7
	default:
		return 0.5
	}
}
