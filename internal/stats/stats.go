// Package stats provides the robust statistical primitives shared by the
// baseline, similarity, and drift packages: trimmed means, sample moments,
// simple linear regression, and bounded transforms.
package stats

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// WeightedMean calculates the weighted mean. Missing weights default to 1;
// a zero total weight falls back to the unweighted mean.
func WeightedMean(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sumWeighted, sumWeights float64
	for i, v := range values {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		sumWeighted += v * w
		sumWeights += w
	}
	if sumWeights == 0 {
		return Mean(values)
	}
	return sumWeighted / sumWeights
}

// Variance calculates the sample variance (n-1 denominator).
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sumSquaredDiff float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(values)-1)
}

// StdDev calculates the sample standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Median calculates the median of values.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// TrimmedMean calculates the mean after discarding fraction of each tail.
// Samples too small to trim (fewer than minSamplesToTrim) fall back to the
// plain mean.
func TrimmedMean(values []float64, fraction float64) float64 {
	const minSamplesToTrim = 4

	if len(values) == 0 {
		return 0
	}
	if len(values) < minSamplesToTrim || fraction <= 0 {
		return Mean(values)
	}
	if fraction > 0.45 {
		fraction = 0.45
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	trim := int(math.Floor(float64(len(sorted)) * fraction))
	if 2*trim >= len(sorted) {
		return Mean(sorted)
	}
	return Mean(sorted[trim : len(sorted)-trim])
}

// CoefficientOfVariation returns stddev/|mean|, or 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / math.Abs(mean)
}

// MeanAbsSuccessiveDiff returns the mean absolute difference between
// consecutive values, a volatility measure robust to slow trends.
func MeanAbsSuccessiveDiff(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}
	return sum / float64(len(values)-1)
}

// Regression holds the result of an ordinary least-squares fit y = a + b·x.
type Regression struct {
	Slope     float64
	Intercept float64
	RSquared  float64
}

// LinearRegression fits y over x by ordinary least squares. Degenerate
// inputs (mismatched lengths, fewer than 2 points, zero x variance) return
// a zero Regression.
func LinearRegression(x, y []float64) Regression {
	if len(x) != len(y) || len(x) < 2 {
		return Regression{}
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var ssXY, ssXX, ssYY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		ssXY += dx * dy
		ssXX += dx * dx
		ssYY += dy * dy
	}
	if ssXX == 0 {
		return Regression{Intercept: meanY}
	}

	slope := ssXY / ssXX
	reg := Regression{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
	}
	if ssYY > 0 {
		r := ssXY / math.Sqrt(ssXX*ssYY)
		reg.RSquared = r * r
	}
	return reg
}

// Sigmoid maps x to (0,1) with the given center and steepness.
func Sigmoid(x, center, steepness float64) float64 {
	return 1 / (1 + math.Exp(-steepness*(x-center)))
}

// Clamp01 clamps v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp clamps v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
