package baseline

import "driftd/internal/feature"

// Config holds the tunable parameters for baseline construction.
type Config struct {
	// MinSnapshots is the minimum buffered snapshots for an initial build.
	MinSnapshots int `toml:"min_snapshots" json:"min_snapshots" yaml:"min_snapshots"`

	// InitialQualityThreshold is the per-snapshot quality floor for the
	// initial build.
	InitialQualityThreshold float64 `toml:"initial_quality_threshold" json:"initial_quality_threshold" yaml:"initial_quality_threshold"`

	// QualityPassFraction of MinSnapshots must pass the quality floor
	// before a profile may be created or replaced.
	QualityPassFraction float64 `toml:"quality_pass_fraction" json:"quality_pass_fraction" yaml:"quality_pass_fraction"`

	// UpdateQualityThreshold is the quality floor for adaptive updates.
	UpdateQualityThreshold float64 `toml:"update_quality_threshold" json:"update_quality_threshold" yaml:"update_quality_threshold"`

	// MinRecentSnapshots is the minimum number of post-baseline snapshots
	// required before an adaptive update proceeds.
	MinRecentSnapshots int `toml:"min_recent_snapshots" json:"min_recent_snapshots" yaml:"min_recent_snapshots"`

	// DecayHorizonDays controls the exponential recency decay used by
	// adaptive re-aggregation.
	DecayHorizonDays float64 `toml:"decay_horizon_days" json:"decay_horizon_days" yaml:"decay_horizon_days"`

	// TrimFraction is trimmed from each tail when estimating feature means.
	TrimFraction float64 `toml:"trim_fraction" json:"trim_fraction" yaml:"trim_fraction"`

	// SigmaBound sets variability bounds at mean ± SigmaBound·std.
	SigmaBound float64 `toml:"sigma_bound" json:"sigma_bound" yaml:"sigma_bound"`

	// MinSamplesPerFeature is the minimum valid samples before a feature
	// gets a point estimate.
	MinSamplesPerFeature int `toml:"min_samples_per_feature" json:"min_samples_per_feature" yaml:"min_samples_per_feature"`

	// BufferCapacity bounds the per-subject snapshot buffer.
	BufferCapacity int `toml:"buffer_capacity" json:"buffer_capacity" yaml:"buffer_capacity"`

	// DefaultShiftThreshold is the relative shift above which an adaptive
	// update reports a significant feature change.
	DefaultShiftThreshold float64 `toml:"default_shift_threshold" json:"default_shift_threshold" yaml:"default_shift_threshold"`

	// ShiftThresholds overrides DefaultShiftThreshold per feature.
	ShiftThresholds map[feature.Key]float64 `toml:"shift_thresholds" json:"shift_thresholds,omitempty" yaml:"shift_thresholds"`
}

// DefaultConfig returns the default aggregator configuration.
func DefaultConfig() Config {
	return Config{
		MinSnapshots:            20,
		InitialQualityThreshold: 0.7,
		QualityPassFraction:     0.7,
		UpdateQualityThreshold:  0.6,
		MinRecentSnapshots:      5,
		DecayHorizonDays:        30,
		TrimFraction:            0.10,
		SigmaBound:              2.5,
		MinSamplesPerFeature:    3,
		BufferCapacity:          feature.DefaultBufferCapacity,
		DefaultShiftThreshold:   0.20,
		ShiftThresholds: map[feature.Key]float64{
			feature.KeyMeanDwell:     0.20,
			feature.KeyTimingEntropy: 0.25,
		},
	}
}

// shiftThreshold returns the significant-change threshold for a feature.
func (c *Config) shiftThreshold(k feature.Key) float64 {
	if t, ok := c.ShiftThresholds[k]; ok {
		return t
	}
	if c.DefaultShiftThreshold > 0 {
		return c.DefaultShiftThreshold
	}
	return 0.20
}
