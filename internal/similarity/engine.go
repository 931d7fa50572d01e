package similarity

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"driftd/internal/baseline"
	"driftd/internal/feature"
	"driftd/internal/stats"
)

// Engine compares snapshots against baseline profiles. Stateless apart from
// configuration; safe for concurrent use.
type Engine struct {
	mu  sync.RWMutex
	cfg Config
	log *slog.Logger
}

// NewEngine creates a similarity engine. A nil logger falls back to
// slog.Default.
func NewEngine(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, log: log.With("component", "similarity")}
}

// Reconfigure swaps the engine tunables. In-flight computations finish
// under the old configuration.
func (e *Engine) Reconfigure(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

// featureResult is the internal per-feature comparison record.
type featureResult struct {
	modality    feature.Modality
	key         feature.Key
	score       float64
	z           float64
	reliability float64
	importance  float64
}

// Compute scores one snapshot against a baseline profile.
//
// Any internal panic is converted into a neutral degraded score (overall
// 0.5, confidence 0, no anomalies). Callers must treat confidence 0 as
// "insufficient information", never as a trustworthy middle score.
func (e *Engine) Compute(snap *feature.Snapshot, profile *baseline.Profile) (score Score) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("similarity computation failed", "panic", fmt.Sprint(r))
			score = e.degraded(snap)
		}
	}()

	if snap == nil || profile == nil {
		return e.degraded(snap)
	}

	var results []featureResult
	modalities := make(map[feature.Modality]ModalitySimilarity)

	for _, m := range feature.Modalities() {
		ms, modResults := e.compareModality(snap, profile, m)
		modalities[m] = ms
		results = append(results, modResults...)
	}

	score = Score{
		Timestamp:  snap.Timestamp,
		Modalities: modalities,
	}
	score.Overall = e.overall(modalities)
	score.Coverage = math.Min(1, float64(len(results))/float64(e.coverageTarget()))
	score.Reliability = e.reliability(results, profile)
	score.Confidence = stats.Clamp01(
		0.3*snap.Quality +
			0.3*profile.Statistics.Confidence +
			0.2*score.Coverage +
			0.2*meanReliability(results))
	score.Interpretation = e.interpret(&score, results)
	return score
}

// compareModality compares the intersection of features present in both the
// snapshot and the baseline for one modality.
func (e *Engine) compareModality(snap *feature.Snapshot, profile *baseline.Profile, m feature.Modality) (ModalitySimilarity, []featureResult) {
	ms := ModalitySimilarity{
		Modality: m,
		Weight:   e.cfg.ModalityWeights[m],
	}

	var results []featureResult
	for _, k := range feature.KeysFor(m) {
		current, ok := snap.Value(m, k)
		if !ok {
			continue
		}
		mean, ok := profile.Estimate(m, k)
		if !ok {
			continue
		}

		res := featureResult{
			modality:   m,
			key:        k,
			importance: importanceOf(k),
		}

		spread, hasSpread := profile.Spread(m, k)
		if hasSpread && spread.Std > 0 {
			res.z = math.Abs(current-spread.Mean) / spread.Std
			res.score = math.Exp(-res.z / 2)
			res.reliability = 1 / (1 + spread.Std/math.Max(math.Abs(spread.Mean), 1e-9))
		} else {
			res.score = fallbackScore(current, mean)
			res.reliability = e.cfg.FallbackReliability
		}

		if sev, anomalous := e.cfg.severityFor(res.z); anomalous {
			ms.Anomalies = append(ms.Anomalies, FeatureAnomaly{
				Modality:  m,
				Key:       k,
				Severity:  sev,
				Current:   current,
				Baseline:  spread.Mean,
				ZScore:    res.z,
				Relevance: feature.RelevanceOf(k),
				Description: fmt.Sprintf("%s deviates %.1f standard deviations from baseline (%.2f vs %.2f)",
					k, res.z, current, spread.Mean),
			})
		}

		ms.Contributions = append(ms.Contributions, FeatureContribution{
			Key:         k,
			Score:       res.score,
			Weight:      res.importance,
			Reliability: res.reliability,
		})
		results = append(results, res)
	}

	ms.FeatureCount = len(results)
	ms.Score = modalityScore(results)
	return ms, results
}

// fallbackScore maps relative difference to [0,1] when no variability data
// exists: max(0, 1 − |current−mean| / max(|mean|, ε)).
func fallbackScore(current, mean float64) float64 {
	denom := math.Max(math.Abs(mean), 1e-9)
	return math.Max(0, 1-math.Abs(current-mean)/denom)
}

// modalityScore is the importance·reliability-weighted average of feature
// scores within one modality.
func modalityScore(results []featureResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum, weightSum float64
	for _, r := range results {
		w := r.importance * r.reliability
		sum += w * r.score
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// overall is the weight-normalized average of modality scores. Modalities
// with no comparable features are excluded; with nothing comparable at all
// the neutral 0.5 is returned. Summation follows the canonical modality
// order so the float result is bit-identical across calls.
func (e *Engine) overall(modalities map[feature.Modality]ModalitySimilarity) float64 {
	var sum, weightSum float64
	for _, m := range feature.Modalities() {
		ms, ok := modalities[m]
		if !ok || ms.FeatureCount == 0 {
			continue
		}
		sum += ms.Weight * ms.Score
		weightSum += ms.Weight
	}
	if weightSum == 0 {
		return 0.5
	}
	return sum / weightSum
}

// reliability is min(mean importance·reliability, baseline confidence).
func (e *Engine) reliability(results []featureResult, profile *baseline.Profile) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.importance * r.reliability
	}
	return math.Min(sum/float64(len(results)), profile.Statistics.Confidence)
}

func meanReliability(results []featureResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.reliability
	}
	return sum / float64(len(results))
}

func (e *Engine) coverageTarget() int {
	if e.cfg.CoverageTarget > 0 {
		return e.cfg.CoverageTarget
	}
	return 50
}

// degraded returns the neutral low-trust score used on failure paths.
func (e *Engine) degraded(snap *feature.Snapshot) Score {
	s := Score{
		Overall:    0.5,
		Confidence: 0,
		Modalities: make(map[feature.Modality]ModalitySimilarity),
		Warnings:   []string{"computation_failure"},
		Interpretation: Interpretation{
			Assessment: "Comparison unavailable: treat as insufficient information, not as normal.",
			Domains:    []DomainAnalysis{},
		},
	}
	if snap != nil {
		s.Timestamp = snap.Timestamp
	}
	return s
}
