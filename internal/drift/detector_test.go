package drift

import (
	"testing"
	"time"

	"driftd/internal/similarity"
)

// =============================================================================
// Test Fixtures
// =============================================================================

var seriesBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// scoreSeries turns a slice of overall values into daily-spaced scores.
func scoreSeries(overalls []float64) []similarity.Score {
	scores := make([]similarity.Score, len(overalls))
	for i, v := range overalls {
		scores[i] = similarity.Score{
			Overall:    v,
			Confidence: 0.8,
			Timestamp:  seriesBase.AddDate(0, 0, i),
		}
	}
	return scores
}

func feed(d *Detector, subject string, scores []similarity.Score) *Detection {
	var last *Detection
	for _, s := range scores {
		if det := d.ProcessScore(subject, s); det != nil {
			last = det
		}
	}
	return last
}

// =============================================================================
// Window Tests
// =============================================================================

func TestNoVerdictBeforeWindowFills(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	scores := scoreSeries([]float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9, 0.9})

	for i, s := range scores {
		if det := d.ProcessScore("alice", s); det != nil {
			t.Fatalf("verdict at score %d, before the window filled", i+1)
		}
	}

	rs := d.State("alice")
	if rs == nil {
		t.Fatal("state should exist after processing")
	}
	if len(rs.Evolution()) != 9 {
		t.Errorf("evolution entries = %d, want 9 (recorded even pre-window)", len(rs.Evolution()))
	}
	if rs.Summary.ScoresProcessed != 9 {
		t.Errorf("scores processed = %d, want 9", rs.Summary.ScoresProcessed)
	}
}

func TestStableWindowIsNotDrift(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	overalls := []float64{0.88, 0.90, 0.89, 0.91, 0.90, 0.89, 0.90, 0.88, 0.91, 0.90}

	det := feed(d, "alice", scoreSeries(overalls))
	if det == nil {
		t.Fatal("expected a verdict once the window filled")
	}
	if det.IsDrifting {
		t.Errorf("stable series flagged as drifting: %+v", det)
	}
	if det.Severity != SeverityMinimal {
		t.Errorf("severity = %s, want minimal", det.Severity)
	}
	if det.Significance != SignificanceNone {
		t.Errorf("significance = %s, want none", det.Significance)
	}
	if len(det.Actions) != 0 {
		t.Errorf("non-drifting verdict carries actions: %v", det.Actions)
	}
	if d.Mode("alice") != ModeNormal {
		t.Errorf("mode = %s, want normal", d.Mode("alice"))
	}
}

// =============================================================================
// Classification Tests
// =============================================================================

func TestGradualDecline(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	// Linear slide 0.9 -> 0.5 across the window.
	overalls := make([]float64, 10)
	for i := range overalls {
		overalls[i] = 0.9 - 0.4*float64(i)/9
	}

	det := feed(d, "alice", scoreSeries(overalls))
	if det == nil {
		t.Fatal("expected a verdict")
	}
	if !det.IsDrifting {
		t.Fatal("consistent decline must be flagged as drift")
	}
	if det.Type != TypeGradualDecline {
		t.Errorf("type = %s, want gradual_decline", det.Type)
	}
	if det.Direction != DirectionDeterioration {
		t.Errorf("direction = %s, want deterioration", det.Direction)
	}
	if det.Severity != SeveritySignificant {
		t.Errorf("severity = %s, want significant for magnitude 0.4", det.Severity)
	}
	if !det.Significance.AtLeast(SignificanceClinicalAttention) {
		t.Errorf("significance = %s, want at least clinical_attention", det.Significance)
	}
	if !det.ProgressionLikely {
		t.Error("significant consistent deterioration should flag likely progression")
	}
	if det.RatePerDay >= 0 {
		t.Errorf("rate per day = %v, want negative", det.RatePerDay)
	}
	if det.Confidence < 0.5 {
		t.Errorf("confidence = %v, want decent for a clean linear trend", det.Confidence)
	}
	if d.Mode("alice") != ModeClinical {
		t.Errorf("mode = %s, want clinical after a clinical-attention verdict", d.Mode("alice"))
	}
}

func TestSuddenChange(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	overalls := []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.45, 0.45, 0.45, 0.45, 0.45}

	det := feed(d, "alice", scoreSeries(overalls))
	if det == nil {
		t.Fatal("expected a verdict")
	}
	if !det.IsDrifting {
		t.Fatal("step change must be flagged as drift")
	}
	if det.Type != TypeSuddenChange {
		t.Errorf("type = %s, want sudden_change", det.Type)
	}
	if !det.Significance.AtLeast(SignificanceClinicalAttention) {
		t.Errorf("significance = %s, sudden changes reach clinical attention", det.Significance)
	}
	if len(det.Actions) == 0 {
		t.Error("drifting verdict should propose actions")
	}
}

func TestErraticBehavior(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	overalls := []float64{0.9, 0.4, 0.9, 0.4, 0.9, 0.4, 0.9, 0.4, 0.9, 0.4}

	det := feed(d, "alice", scoreSeries(overalls))
	if det == nil {
		t.Fatal("expected a verdict")
	}
	if !det.IsDrifting {
		t.Fatal("high volatility must be flagged as drift")
	}
	if det.Type != TypeErraticBehavior {
		t.Errorf("type = %s, want erratic_behavior", det.Type)
	}
	if det.Stability.Volatility < 0.4 {
		t.Errorf("volatility = %v, want ~0.5", det.Stability.Volatility)
	}
}

func TestRecovery(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	overalls := make([]float64, 10)
	for i := range overalls {
		overalls[i] = 0.5 + 0.4*float64(i)/9
	}

	det := feed(d, "alice", scoreSeries(overalls))
	if det == nil {
		t.Fatal("expected a verdict")
	}
	if det.Type != TypeRecovery {
		t.Errorf("type = %s, want recovery", det.Type)
	}
	if det.Direction != DirectionImprovement {
		t.Errorf("direction = %s, want improvement", det.Direction)
	}
	if det.ProgressionLikely {
		t.Error("improvement must not flag likely progression")
	}
}

// =============================================================================
// Adaptation Trigger Tests
// =============================================================================

func TestAdaptationTrigger(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	var triggered []Detection
	d.OnAdaptationNeeded(func(subject string, det Detection) {
		if subject != "alice" {
			t.Errorf("trigger subject = %s", subject)
		}
		triggered = append(triggered, det)
	})

	overalls := make([]float64, 10)
	for i := range overalls {
		overalls[i] = 0.9 - 0.4*float64(i)/9
	}
	feed(d, "alice", scoreSeries(overalls))

	if len(triggered) == 0 {
		t.Error("significant drift should fire the adaptation trigger")
	}
}

func TestProcessScoreRecoversFromFailure(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	d.OnAdaptationNeeded(func(string, Detection) { panic("collaborator failure") })

	overalls := make([]float64, 10)
	for i := range overalls {
		overalls[i] = 0.9 - 0.4*float64(i)/9
	}

	var technical *Detection
	for _, s := range scoreSeries(overalls) {
		if det := d.ProcessScore("alice", s); det != nil && det.Type == TypeTechnical {
			technical = det
		}
	}
	if technical == nil {
		t.Fatal("a panicking trigger must surface as a technical verdict")
	}
	if technical.IsDrifting {
		t.Error("technical verdict must not claim drift")
	}
	if technical.Confidence != 0 {
		t.Errorf("technical verdict confidence = %v, want 0", technical.Confidence)
	}
	// Every graded field must carry a valid enum value, not the zero
	// string, or downstream schema validation rejects the record.
	if technical.Significance != SignificanceNone {
		t.Errorf("technical verdict significance = %q, want %q", technical.Significance, SignificanceNone)
	}
	if technical.Severity != SeverityMinimal {
		t.Errorf("technical verdict severity = %q, want %q", technical.Severity, SeverityMinimal)
	}
}

func TestReconfigureChangesWindow(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	cfg := DefaultConfig()
	cfg.WindowSize = 5
	d.Reconfigure(cfg)

	scores := scoreSeries([]float64{0.9, 0.9, 0.9, 0.9, 0.9})
	for i, s := range scores {
		det := d.ProcessScore("alice", s)
		if i < 4 && det != nil {
			t.Fatalf("verdict at score %d, before the shrunk window filled", i+1)
		}
		if i == 4 && det == nil {
			t.Fatal("no verdict once the reconfigured window filled")
		}
	}
}

func TestNoTriggerWhenStable(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	fired := false
	d.OnAdaptationNeeded(func(string, Detection) { fired = true })

	overalls := []float64{0.9, 0.89, 0.9, 0.91, 0.9, 0.89, 0.9, 0.9, 0.91, 0.9}
	feed(d, "alice", scoreSeries(overalls))

	if fired {
		t.Error("stable behavior must not fire the adaptation trigger")
	}
}

// =============================================================================
// Mode Machine Tests
// =============================================================================

func TestModeMachine(t *testing.T) {
	rs := newRecognitionState("alice")
	limit := DefaultConfig().DetectionHistoryCap

	clean := Detection{IsDrifting: false, Severity: SeverityMinimal, Significance: SignificanceNone}
	mild := Detection{IsDrifting: true, Severity: SeverityMild, Significance: SignificanceNone}
	clinical := Detection{IsDrifting: true, Severity: SeveritySignificant, Significance: SignificanceClinicalAttention}

	// Two drifting verdicts in the recent five escalate to enhanced.
	rs.appendDetection(mild, limit)
	rs.updateMode()
	if rs.Mode != ModeNormal {
		t.Errorf("one mild drift: mode = %s, want normal", rs.Mode)
	}
	rs.appendDetection(mild, limit)
	rs.updateMode()
	if rs.Mode != ModeEnhanced {
		t.Errorf("two drifting verdicts: mode = %s, want enhanced", rs.Mode)
	}

	// Clinical significance escalates straight to clinical.
	rs.appendDetection(clinical, limit)
	rs.updateMode()
	if rs.Mode != ModeClinical {
		t.Errorf("clinical verdict: mode = %s, want clinical", rs.Mode)
	}

	// Three clean verdicts step back one level at a time. The escalating
	// verdicts must first age out of the recent-five window.
	for i := 0; i < 5; i++ {
		rs.appendDetection(clean, limit)
		rs.updateMode()
	}
	if rs.Mode == ModeClinical {
		t.Errorf("after five clean verdicts: mode = %s, want de-escalated", rs.Mode)
	}
	for i := 0; i < 3; i++ {
		rs.appendDetection(clean, limit)
		rs.updateMode()
	}
	if rs.Mode != ModeNormal {
		t.Errorf("after sustained clean verdicts: mode = %s, want normal", rs.Mode)
	}
}

// =============================================================================
// History Bound Tests
// =============================================================================

func TestHistoriesAreBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetectionHistoryCap = 5
	cfg.EvolutionHistoryCap = 8
	d := NewDetector(cfg, nil)

	overalls := make([]float64, 40)
	for i := range overalls {
		overalls[i] = 0.9
	}
	feed(d, "alice", scoreSeries(overalls))

	rs := d.State("alice")
	if got := len(rs.Detections()); got > 5 {
		t.Errorf("detections = %d, want <= 5", got)
	}
	if got := len(rs.Evolution()); got > 8 {
		t.Errorf("evolution = %d, want <= 8", got)
	}
	if got := len(rs.Scores()); got > 2*cfg.WindowSize {
		t.Errorf("score window = %d, want <= %d", got, 2*cfg.WindowSize)
	}
}

// =============================================================================
// Change Point Tests
// =============================================================================

func TestScanChangePoint(t *testing.T) {
	t.Run("finds_step", func(t *testing.T) {
		scores := scoreSeries([]float64{0.9, 0.9, 0.9, 0.9, 0.5, 0.5, 0.5, 0.5})
		cp := scanChangePoint(scores, 0.15)
		if !cp.found {
			t.Fatal("step of 0.4 should be found")
		}
		if cp.index != 4 {
			t.Errorf("index = %d, want 4", cp.index)
		}
		if cp.delta >= 0 {
			t.Errorf("delta = %v, want negative for a drop", cp.delta)
		}
	})

	t.Run("ignores_noise", func(t *testing.T) {
		scores := scoreSeries([]float64{0.9, 0.88, 0.91, 0.9, 0.89, 0.9, 0.91, 0.89})
		if cp := scanChangePoint(scores, 0.15); cp.found {
			t.Errorf("noise flagged as change point: %+v", cp)
		}
	})

	t.Run("too_short", func(t *testing.T) {
		scores := scoreSeries([]float64{0.9, 0.5, 0.9, 0.5, 0.9})
		if cp := scanChangePoint(scores, 0.15); cp.found {
			t.Error("windows under twice the minimum segment must not match")
		}
	})
}
