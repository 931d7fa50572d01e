// Package config handles configuration loading, validation, and hot reload
// for driftd.
package config

import (
	"errors"
	"fmt"

	"driftd/internal/baseline"
	"driftd/internal/confidence"
	"driftd/internal/drift"
	"driftd/internal/feature"
	"driftd/internal/logging"
	"driftd/internal/similarity"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Monitor configuration for the tick loop.
	Monitor MonitorConfig `toml:"monitor" json:"monitor" yaml:"monitor"`

	// Baseline aggregator tunables.
	Baseline baseline.Config `toml:"baseline" json:"baseline" yaml:"baseline"`

	// Similarity engine tunables.
	Similarity similarity.Config `toml:"similarity" json:"similarity" yaml:"similarity"`

	// Drift detector tunables.
	Drift drift.Config `toml:"drift" json:"drift" yaml:"drift"`

	// Confidence estimator component weights.
	Confidence confidence.Weights `toml:"confidence" json:"confidence" yaml:"confidence"`

	// Logging configuration.
	Logging logging.Config `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configuration.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`
}

// MonitorConfig holds tick-loop configuration.
type MonitorConfig struct {
	// TickIntervalSec is the target cadence for snapshot ticks, in seconds.
	TickIntervalSec int `toml:"tick_interval_sec" json:"tick_interval_sec" yaml:"tick_interval_sec"`

	// MaxConcurrentSubjects bounds cross-subject parallelism. Zero means
	// unbounded.
	MaxConcurrentSubjects int `toml:"max_concurrent_subjects" json:"max_concurrent_subjects" yaml:"max_concurrent_subjects"`
}

// MetricsConfig holds the scrape endpoint configuration.
type MetricsConfig struct {
	// Enabled starts the Prometheus scrape endpoint.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ListenAddr is the scrape endpoint address.
	ListenAddr string `toml:"listen_addr" json:"listen_addr" yaml:"listen_addr"`
}

// Default returns the complete default configuration.
func Default() *Config {
	return &Config{
		Version: Version,
		Monitor: MonitorConfig{
			TickIntervalSec: 5,
		},
		Baseline:   baseline.DefaultConfig(),
		Similarity: similarity.DefaultConfig(),
		Drift:      drift.DefaultConfig(),
		Confidence: confidence.DefaultWeights(),
		Logging:    logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:9477",
		},
	}
}

// Validate checks the configuration, collecting all problems found.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != Version {
		errs = append(errs, fmt.Errorf("unsupported config version %d (want %d)", c.Version, Version))
	}
	if c.Monitor.TickIntervalSec <= 0 {
		errs = append(errs, errors.New("monitor.tick_interval_sec must be positive"))
	}
	if c.Baseline.MinSnapshots < 5 {
		errs = append(errs, errors.New("baseline.min_snapshots must be at least 5"))
	}
	if c.Baseline.InitialQualityThreshold < 0 || c.Baseline.InitialQualityThreshold > 1 {
		errs = append(errs, errors.New("baseline.initial_quality_threshold must be in [0,1]"))
	}
	if c.Baseline.TrimFraction < 0 || c.Baseline.TrimFraction >= 0.5 {
		errs = append(errs, errors.New("baseline.trim_fraction must be in [0,0.5)"))
	}
	if c.Drift.WindowSize < 2 {
		errs = append(errs, errors.New("drift.window_size must be at least 2"))
	}

	z := c.Similarity.ZThresholds
	if !(z.Low < z.Medium && z.Medium < z.High && z.High < z.Critical) {
		errs = append(errs, errors.New("similarity.z_thresholds must be strictly increasing"))
	}

	var weightSum float64
	for _, m := range feature.Modalities() {
		w, ok := c.Similarity.ModalityWeights[m]
		if !ok {
			errs = append(errs, fmt.Errorf("similarity.modality_weights missing %q", m))
			continue
		}
		if w < 0 {
			errs = append(errs, fmt.Errorf("similarity.modality_weights[%q] must be non-negative", m))
		}
		weightSum += w
	}
	if weightSum == 0 {
		errs = append(errs, errors.New("similarity.modality_weights must not sum to zero"))
	}

	cw := c.Confidence
	confSum := cw.DataQuality + cw.BaselineReliability + cw.FeatureCoverage +
		cw.TemporalConsistency + cw.MedicalValidity
	if confSum < 0.99 || confSum > 1.01 {
		errs = append(errs, fmt.Errorf("confidence weights must sum to 1, got %.3f", confSum))
	}

	sev := c.Drift.Severity
	if !(sev.Minimal < sev.Mild && sev.Mild < sev.Moderate &&
		sev.Moderate < sev.Significant && sev.Significant < sev.Severe) {
		errs = append(errs, errors.New("drift.severity thresholds must be strictly increasing"))
	}

	return errors.Join(errs...)
}
