package drift

// SeverityThresholds is the ladder applied to max(magnitude, volatility).
type SeverityThresholds struct {
	Minimal     float64 `toml:"minimal" json:"minimal" yaml:"minimal"`
	Mild        float64 `toml:"mild" json:"mild" yaml:"mild"`
	Moderate    float64 `toml:"moderate" json:"moderate" yaml:"moderate"`
	Significant float64 `toml:"significant" json:"significant" yaml:"significant"`
	Severe      float64 `toml:"severe" json:"severe" yaml:"severe"`
}

// Config holds the tunable parameters of the drift detector.
type Config struct {
	// WindowSize is the minimum score window before verdicts are produced.
	// The rolling window retains up to twice this many scores.
	WindowSize int `toml:"window_size" json:"window_size" yaml:"window_size"`

	// Severity sets the severity ladder cutoffs.
	Severity SeverityThresholds `toml:"severity" json:"severity" yaml:"severity"`

	// ChangePointDelta is the before/after mean difference that flags a
	// change point.
	ChangePointDelta float64 `toml:"change_point_delta" json:"change_point_delta" yaml:"change_point_delta"`

	// SuddenChangeDelta is the change-point delta that classifies drift
	// as a sudden change.
	SuddenChangeDelta float64 `toml:"sudden_change_delta" json:"sudden_change_delta" yaml:"sudden_change_delta"`

	// TrendDirectionMin, TrendConsistencyMin gate trend-based drift.
	TrendDirectionMin   float64 `toml:"trend_direction_min" json:"trend_direction_min" yaml:"trend_direction_min"`
	TrendConsistencyMin float64 `toml:"trend_consistency_min" json:"trend_consistency_min" yaml:"trend_consistency_min"`

	// VolatilityMax and StabilityMin gate variability-based drift.
	VolatilityMax float64 `toml:"volatility_max" json:"volatility_max" yaml:"volatility_max"`
	StabilityMin  float64 `toml:"stability_min" json:"stability_min" yaml:"stability_min"`

	// History caps.
	DetectionHistoryCap int `toml:"detection_history_cap" json:"detection_history_cap" yaml:"detection_history_cap"`
	EvolutionHistoryCap int `toml:"evolution_history_cap" json:"evolution_history_cap" yaml:"evolution_history_cap"`
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		WindowSize: 10,
		Severity: SeverityThresholds{
			Minimal:     0.05,
			Mild:        0.10,
			Moderate:    0.20,
			Significant: 0.35,
			Severe:      0.50,
		},
		ChangePointDelta:    0.15,
		SuddenChangeDelta:   0.30,
		TrendDirectionMin:   0.30,
		TrendConsistencyMin: 0.50,
		VolatilityMax:       0.20,
		StabilityMin:        0.60,
		DetectionHistoryCap: 50,
		EvolutionHistoryCap: 100,
	}
}

// severityFor grades max(magnitude, volatility) on the ladder.
func (c *Config) severityFor(value float64) SeverityTier {
	switch {
	case value >= c.Severity.Severe:
		return SeveritySevere
	case value >= c.Severity.Significant:
		return SeveritySignificant
	case value >= c.Severity.Moderate:
		return SeverityModerate
	case value >= c.Severity.Mild:
		return SeverityMild
	default:
		return SeverityMinimal
	}
}
