package drift

import (
	"math"
	"sort"

	"driftd/internal/feature"
	"driftd/internal/similarity"
	"driftd/internal/stats"
)

// trendAnalysis summarizes the linear trend of a score window.
type trendAnalysis struct {
	// direction in [-1,1]: sign of the trend scaled by the fitted change
	// over the window.
	direction float64
	// magnitude is |last − first| of the observed overall scores.
	magnitude float64
	// consistency is the regression R².
	consistency float64
	// acceleration is the second-half slope minus the first-half slope.
	acceleration float64
	// ratePerDay is the fitted slope in score units per day.
	ratePerDay float64
}

// analyzeTrend fits overall scores over time by least squares.
func analyzeTrend(scores []similarity.Score) trendAnalysis {
	if len(scores) < 2 {
		return trendAnalysis{}
	}

	x := make([]float64, len(scores))
	y := make([]float64, len(scores))
	t0 := scores[0].Timestamp
	for i, s := range scores {
		x[i] = s.Timestamp.Sub(t0).Hours() / 24
		y[i] = s.Overall
	}

	reg := stats.LinearRegression(x, y)
	span := x[len(x)-1] - x[0]
	fittedChange := reg.Slope * span

	mid := len(scores) / 2
	firstReg := stats.LinearRegression(x[:mid], y[:mid])
	secondReg := stats.LinearRegression(x[mid:], y[mid:])

	return trendAnalysis{
		direction:    stats.Clamp(2*fittedChange, -1, 1),
		magnitude:    math.Abs(y[len(y)-1] - y[0]),
		consistency:  reg.RSquared,
		acceleration: secondReg.Slope - firstReg.Slope,
		ratePerDay:   reg.Slope,
	}
}

// variabilityAnalysis summarizes the spread of a score window.
type variabilityAnalysis struct {
	variance float64
	// volatility is the mean absolute successive difference.
	volatility float64
	// stability is 1/(1+CV).
	stability float64
}

func analyzeVariability(scores []similarity.Score) variabilityAnalysis {
	y := make([]float64, len(scores))
	for i, s := range scores {
		y[i] = s.Overall
	}
	return variabilityAnalysis{
		variance:   stats.Variance(y),
		volatility: stats.MeanAbsSuccessiveDiff(y),
		stability:  1 / (1 + stats.CoefficientOfVariation(y)),
	}
}

// changePoint is the result of a naive before/after mean scan.
type changePoint struct {
	found bool
	index int
	delta float64
}

// scanChangePoint finds the split maximizing |mean(after) − mean(before)|,
// flagging it when that delta exceeds threshold. Segments shorter than 3
// samples are not considered.
func scanChangePoint(scores []similarity.Score, threshold float64) changePoint {
	const minSegment = 3
	if len(scores) < 2*minSegment {
		return changePoint{}
	}

	y := make([]float64, len(scores))
	for i, s := range scores {
		y[i] = s.Overall
	}

	best := changePoint{}
	for split := minSegment; split <= len(y)-minSegment; split++ {
		delta := stats.Mean(y[split:]) - stats.Mean(y[:split])
		if math.Abs(delta) > math.Abs(best.delta) {
			best = changePoint{index: split, delta: delta}
		}
	}
	best.found = math.Abs(best.delta) > threshold
	return best
}

// affectedModalities returns the top-n modalities by score variance.
func affectedModalities(scores []similarity.Score, n int) []feature.Modality {
	type modVar struct {
		m feature.Modality
		v float64
	}
	var entries []modVar
	for _, m := range feature.Modalities() {
		var series []float64
		for _, s := range scores {
			if ms, ok := s.Modalities[m]; ok && ms.FeatureCount > 0 {
				series = append(series, ms.Score)
			}
		}
		if len(series) < 2 {
			continue
		}
		entries = append(entries, modVar{m: m, v: stats.Variance(series)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].v > entries[j].v })
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]feature.Modality, len(entries))
	for i, e := range entries {
		out[i] = e.m
	}
	return out
}

// primaryFeatures returns the top-n features by anomaly frequency.
func primaryFeatures(scores []similarity.Score, n int) []feature.Key {
	counts := make(map[feature.Key]int)
	for _, s := range scores {
		for _, a := range s.Anomalies() {
			counts[a.Key]++
		}
	}
	type keyCount struct {
		k feature.Key
		c int
	}
	entries := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		entries = append(entries, keyCount{k, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].c != entries[j].c {
			return entries[i].c > entries[j].c
		}
		return entries[i].k < entries[j].k
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]feature.Key, len(entries))
	for i, e := range entries {
		out[i] = e.k
	}
	return out
}
