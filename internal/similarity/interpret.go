package similarity

import (
	"fmt"
	"math"
	"sort"

	"driftd/internal/feature"
)

// interpret derives the structured reading of a computed score: four domain
// analyses, ranked concerns, medical flags, and recommendations.
func (e *Engine) interpret(score *Score, results []featureResult) Interpretation {
	interp := Interpretation{
		Assessment: assessmentText(score.Overall),
		Domains: []DomainAnalysis{
			e.domainAnalysis(DomainNeuromotor, neuromotorScore(score, results)),
			e.domainAnalysis(DomainCognitive, cognitiveScore(score, results)),
			e.domainAnalysis(DomainTemporal, temporalScore(score, results)),
			e.domainAnalysis(DomainConsistency, consistencyScore(score)),
		},
	}

	interp.Concerns = topConcerns(score, 5)
	interp.MedicalFlags = medicalFlags(score)
	interp.Recommendations = recommendations(score, interp.MedicalFlags)
	return interp
}

func assessmentText(overall float64) string {
	switch {
	case overall >= 0.8:
		return "Behavior is consistent with the established baseline."
	case overall >= 0.6:
		return "Behavior shows mild deviation from baseline; within expected day-to-day variation."
	case overall >= 0.4:
		return "Behavior shows moderate deviation from baseline; continued observation advised."
	default:
		return "Behavior shows marked deviation from baseline across multiple signals."
	}
}

func (e *Engine) domainAnalysis(d Domain, score float64) DomainAnalysis {
	return DomainAnalysis{Domain: d, Score: score, Summary: domainSummary(d, score)}
}

func domainSummary(d Domain, score float64) string {
	var aspect string
	switch d {
	case DomainNeuromotor:
		aspect = "fine motor control"
	case DomainCognitive:
		aspect = "cognitive engagement"
	case DomainTemporal:
		aspect = "timing rhythm"
	case DomainConsistency:
		aspect = "behavioral consistency"
	}
	switch {
	case score >= 0.8:
		return fmt.Sprintf("No notable change in %s.", aspect)
	case score >= 0.6:
		return fmt.Sprintf("Mild change in %s.", aspect)
	case score >= 0.4:
		return fmt.Sprintf("Moderate change in %s.", aspect)
	default:
		return fmt.Sprintf("Substantial change in %s.", aspect)
	}
}

// neuromotorScore averages the scores of fine-motor-control features,
// falling back to the keyboard and mouse modality scores.
func neuromotorScore(score *Score, results []featureResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		if feature.NeuromotorTagged(r.key) {
			sum += r.score
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}
	return modalityFallback(score, feature.ModalityKeyboard, feature.ModalityMouse)
}

// cognitiveScore reads attention and load signals: focus modality plus
// error-rate and cognitive-load features.
func cognitiveScore(score *Score, results []featureResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		switch r.key {
		case feature.KeyErrorRate, feature.KeyCognitiveLoad, feature.KeySwitchRate,
			feature.KeyIdleRatio, feature.KeyRevisitRate:
			sum += r.score
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}
	return modalityFallback(score, feature.ModalityFocus)
}

// temporalScore reads rhythm and pacing features.
func temporalScore(score *Score, results []featureResult) float64 {
	var sum float64
	var n int
	for _, r := range results {
		switch r.key {
		case feature.KeyMeanFlight, feature.KeyPauseRate, feature.KeyTimingEntropy,
			feature.KeyScrollRhythm, feature.KeyDigraphLatency:
			sum += r.score
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}
	return modalityFallback(score, feature.ModalityKeyboard, feature.ModalityScroll)
}

// consistencyScore reads the composite modality, falling back to overall.
func consistencyScore(score *Score) float64 {
	if ms, ok := score.Modalities[feature.ModalityComposite]; ok && ms.FeatureCount > 0 {
		return ms.Score
	}
	return score.Overall
}

func modalityFallback(score *Score, modalities ...feature.Modality) float64 {
	var sum float64
	var n int
	for _, m := range modalities {
		if ms, ok := score.Modalities[m]; ok && ms.FeatureCount > 0 {
			sum += ms.Score
			n++
		}
	}
	if n == 0 {
		return score.Overall
	}
	return sum / float64(n)
}

// topConcerns lists the highest-severity anomalies, capped at limit.
func topConcerns(score *Score, limit int) []string {
	anomalies := score.AnomaliesAt(SeverityHigh)
	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].Severity.weight() != anomalies[j].Severity.weight() {
			return anomalies[i].Severity.weight() > anomalies[j].Severity.weight()
		}
		return anomalies[i].ZScore > anomalies[j].ZScore
	})
	if len(anomalies) > limit {
		anomalies = anomalies[:limit]
	}
	concerns := make([]string, 0, len(anomalies))
	for _, a := range anomalies {
		concerns = append(concerns, a.Description)
	}
	return concerns
}

// medicalFlags raises pattern flags from clustered anomalies. A flag's
// severity is the mean severity weight of its anomalies; its confidence is
// min(0.9, 0.25·count).
func medicalFlags(score *Score) []MedicalFlag {
	var flags []MedicalFlag

	var tremor []FeatureAnomaly
	var slowing []FeatureAnomaly
	for _, a := range score.Anomalies() {
		if feature.TremorTagged(a.Key) {
			tremor = append(tremor, a)
		}
		if (a.Key == feature.KeyMeanDwell || a.Key == feature.KeyMeanFlight ||
			a.Key == feature.KeyClickInterval) && a.Current > a.Baseline {
			slowing = append(slowing, a)
		}
	}

	if f, ok := buildFlag("tremor", tremor, 2); ok {
		flags = append(flags, f)
	}
	if f, ok := buildFlag("motor_slowing", slowing, 2); ok {
		flags = append(flags, f)
	}
	return flags
}

func buildFlag(name string, anomalies []FeatureAnomaly, minCount int) (MedicalFlag, bool) {
	if len(anomalies) < minCount {
		return MedicalFlag{}, false
	}
	var sevSum float64
	for _, a := range anomalies {
		sevSum += a.Severity.weight()
	}
	return MedicalFlag{
		Flag:       name,
		Severity:   sevSum / float64(len(anomalies)),
		Confidence: math.Min(0.9, 0.25*float64(len(anomalies))),
		Count:      len(anomalies),
	}, true
}

func recommendations(score *Score, flags []MedicalFlag) []string {
	var recs []string
	critical := len(score.AnomaliesAt(SeverityCritical))
	switch {
	case critical > 0:
		recs = append(recs, "Review critical feature deviations promptly.")
	case score.Overall < 0.4:
		recs = append(recs, "Increase observation frequency until scores stabilize.")
	case score.Overall < 0.6:
		recs = append(recs, "Continue monitoring; compare against upcoming sessions.")
	}
	if score.Confidence < 0.4 {
		recs = append(recs, "Collect more high-quality sessions to improve comparison confidence.")
	}
	for _, f := range flags {
		recs = append(recs, fmt.Sprintf("Pattern flag %q raised across %d features; verify against recent history.", f.Flag, f.Count))
	}
	return recs
}
