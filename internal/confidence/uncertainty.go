package confidence

import (
	"math"

	"driftd/internal/baseline"
	"driftd/internal/similarity"
	"driftd/internal/stats"
)

// uncertainty decomposes assessment uncertainty.
//
// Epistemic (reducible with more data): model prior, score unreliability,
// baseline unconfidence, interpretation prior. Aleatoric (irreducible
// variability): signal noise, biological prior, environmental instability,
// and behavioral spread scaled by (1−overall)/2. Combined is the Euclidean
// norm; the 95% margin is 1.96·combined.
func (e *Estimator) uncertainty(overall float64, score *similarity.Score, profile *baseline.Profile) Uncertainty {
	epistemic := mean4(
		modelUncertainty,
		1-score.Reliability,
		1-profile.Statistics.Confidence,
		interpretationUncertainty,
	)

	snr := score.Reliability
	envStability := math.Min(1, float64(len(profile.Environment))/5)
	aleatoric := mean4(
		1-snr,
		biologicalVariability,
		1-envStability,
		(1-overall)*0.5,
	)

	combined := math.Sqrt(epistemic*epistemic + aleatoric*aleatoric)
	margin := 1.96 * combined

	u := Uncertainty{
		Epistemic:          epistemic,
		Aleatoric:          aleatoric,
		Combined:           combined,
		ConfidenceInterval: intervalAround(overall, 0.7*margin),
		PredictionInterval: intervalAround(overall, margin),
		ReliabilityBounds:  intervalAround(overall, combined),
	}
	return u
}

// intervalAround clamps point±margin to [0,1]; the point is always inside.
func intervalAround(point, margin float64) Interval {
	return Interval{
		Lower: stats.Clamp01(point - margin),
		Upper: stats.Clamp01(point + margin),
	}
}

func mean4(a, b, c, d float64) float64 {
	return (a + b + c + d) / 4
}
