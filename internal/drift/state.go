package drift

import (
	"time"

	"driftd/internal/similarity"
)

// Mode is the per-subject monitoring intensity.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeEnhanced Mode = "enhanced"
	ModeClinical Mode = "clinical"
)

// EvolutionEntry is one point in a subject's behavioral evolution history.
type EvolutionEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Overall   float64   `json:"overall"`
	Mode      Mode      `json:"mode"`
	Drifting  bool      `json:"drifting"`
}

// SummaryStats accumulates per-subject monitoring totals.
type SummaryStats struct {
	ScoresProcessed int       `json:"scores_processed"`
	DriftVerdicts   int       `json:"drift_verdicts"`
	MeanOverall     float64   `json:"mean_overall"`
	LastOverall     float64   `json:"last_overall"`
	LastDriftAt     time.Time `json:"last_drift_at,omitzero"`
}

// RecognitionState is the detector's mutable per-subject state. It is
// created lazily on the first processed score and mutated only on that
// subject's tick; all histories are bounded FIFO.
type RecognitionState struct {
	SubjectID string `json:"subject_id"`

	scores     []similarity.Score
	detections []Detection
	evolution  []EvolutionEntry

	LastCheck time.Time    `json:"last_check"`
	Mode      Mode         `json:"mode"`
	Summary   SummaryStats `json:"summary"`

	overallSum float64
}

func newRecognitionState(subject string) *RecognitionState {
	return &RecognitionState{
		SubjectID: subject,
		Mode:      ModeNormal,
	}
}

// appendScore adds a score to the rolling window, evicting oldest-first
// beyond cap.
func (rs *RecognitionState) appendScore(score similarity.Score, limit int) {
	if len(rs.scores) >= limit {
		copy(rs.scores, rs.scores[1:])
		rs.scores = rs.scores[:len(rs.scores)-1]
	}
	rs.scores = append(rs.scores, score)

	rs.Summary.ScoresProcessed++
	rs.Summary.LastOverall = score.Overall
	rs.overallSum += score.Overall
	rs.Summary.MeanOverall = rs.overallSum / float64(rs.Summary.ScoresProcessed)
}

// appendDetection records a verdict, evicting oldest-first beyond cap.
func (rs *RecognitionState) appendDetection(d Detection, limit int) {
	if len(rs.detections) >= limit {
		copy(rs.detections, rs.detections[1:])
		rs.detections = rs.detections[:len(rs.detections)-1]
	}
	rs.detections = append(rs.detections, d)
	if d.IsDrifting {
		rs.Summary.DriftVerdicts++
		rs.Summary.LastDriftAt = d.DetectedAt
	}
}

// appendEvolution records an evolution entry, evicting oldest-first.
func (rs *RecognitionState) appendEvolution(e EvolutionEntry, limit int) {
	if len(rs.evolution) >= limit {
		copy(rs.evolution, rs.evolution[1:])
		rs.evolution = rs.evolution[:len(rs.evolution)-1]
	}
	rs.evolution = append(rs.evolution, e)
}

// Scores returns a copy of the rolling score window, oldest-first.
func (rs *RecognitionState) Scores() []similarity.Score {
	out := make([]similarity.Score, len(rs.scores))
	copy(out, rs.scores)
	return out
}

// Detections returns a copy of the verdict history, oldest-first.
func (rs *RecognitionState) Detections() []Detection {
	out := make([]Detection, len(rs.detections))
	copy(out, rs.detections)
	return out
}

// Evolution returns a copy of the evolution history, oldest-first.
func (rs *RecognitionState) Evolution() []EvolutionEntry {
	out := make([]EvolutionEntry, len(rs.evolution))
	copy(out, rs.evolution)
	return out
}

// recentDetections returns up to n most-recent verdicts, newest last.
func (rs *RecognitionState) recentDetections(n int) []Detection {
	if len(rs.detections) <= n {
		return rs.detections
	}
	return rs.detections[len(rs.detections)-n:]
}

// updateMode advances the monitoring-mode machine after a verdict.
//
// Escalation: enhanced after two or more drifting verdicts among the five
// most recent, or any severe/significant verdict; clinical on any verdict
// at clinical_attention or above. De-escalation: step back toward normal
// when the three most recent verdicts show none of the escalation causes.
func (rs *RecognitionState) updateMode() {
	recent := rs.recentDetections(5)

	drifting := 0
	escalateEnhanced := false
	escalateClinical := false
	for _, d := range recent {
		if d.IsDrifting {
			drifting++
		}
		if d.Severity.AtLeast(SeveritySignificant) {
			escalateEnhanced = true
		}
		if d.Significance.AtLeast(SignificanceClinicalAttention) {
			escalateClinical = true
		}
	}
	if drifting >= 2 {
		escalateEnhanced = true
	}

	switch {
	case escalateClinical:
		rs.Mode = ModeClinical
	case escalateEnhanced && rs.Mode != ModeClinical:
		rs.Mode = ModeEnhanced
	}

	// De-escalate one step when the last three verdicts are clean.
	last3 := rs.recentDetections(3)
	if len(last3) == 3 {
		clean := true
		for _, d := range last3 {
			if d.IsDrifting || d.Severity.AtLeast(SeveritySignificant) ||
				d.Significance.AtLeast(SignificanceClinicalAttention) {
				clean = false
				break
			}
		}
		if clean {
			switch rs.Mode {
			case ModeClinical:
				rs.Mode = ModeEnhanced
			case ModeEnhanced:
				rs.Mode = ModeNormal
			}
		}
	}
}
