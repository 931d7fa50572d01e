package monitor

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"driftd/internal/baseline"
	"driftd/internal/confidence"
	"driftd/internal/config"
	"driftd/internal/drift"
	"driftd/internal/feature"
	"driftd/internal/similarity"
)

// =============================================================================
// Test Fixtures
// =============================================================================

func newTestPipeline() *Pipeline {
	return New(
		baseline.NewAggregator(baseline.DefaultConfig(), nil),
		similarity.NewEngine(similarity.DefaultConfig(), nil),
		drift.NewDetector(drift.DefaultConfig(), nil),
		confidence.NewEstimator(confidence.DefaultWeights(), nil),
		nil,
		nil,
	)
}

// makeSnapshot produces one synthetic snapshot at the given day offset with
// all feature values multiplied by scale.
func makeSnapshot(rng *rand.Rand, day int, scale float64) feature.Snapshot {
	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	nominal := map[feature.Modality]map[feature.Key]float64{
		feature.ModalityKeyboard: {
			feature.KeyMeanDwell:  95,
			feature.KeyMeanFlight: 140,
			feature.KeyTypingRate: 220,
		},
		feature.ModalityMouse: {
			feature.KeyMeanVelocity:   420,
			feature.KeyMovementJitter: 0.12,
		},
		feature.ModalityComposite: {
			feature.KeyRhythmConsistency: 0.8,
			feature.KeyTremorIndex:       0.08,
		},
	}
	features := make(map[feature.Modality]map[feature.Key]float64, len(nominal))
	for m, keys := range nominal {
		values := make(map[feature.Key]float64, len(keys))
		for k, v := range keys {
			noise := 1 + 0.04*(rng.Float64()*2-1)
			values[k] = v * scale * noise
		}
		features[m] = values
	}
	return feature.Snapshot{
		Timestamp: base.AddDate(0, 0, day),
		SessionID: fmt.Sprintf("s-%03d", day),
		Features:  features,
		Context:   map[string]string{"device": "workstation"},
		Quality:   0.85,
	}
}

// =============================================================================
// Pipeline Flow Tests
// =============================================================================

func TestTickStageProgression(t *testing.T) {
	p := newTestPipeline()
	rng := rand.New(rand.NewSource(42))

	minSnaps := baseline.DefaultConfig().MinSnapshots
	window := drift.DefaultConfig().WindowSize

	drifting := 0
	for day := 0; day < minSnaps+window+5; day++ {
		result := p.Tick("alice", makeSnapshot(rng, day, 1))

		switch {
		case day < minSnaps-1:
			// Learning phase: no baseline, no score.
			if result.Profile != nil || result.Score != nil {
				t.Fatalf("day %d: scoring before the baseline exists", day)
			}
			if len(result.Warnings) == 0 || result.Warnings[0] != "insufficient_data" {
				t.Fatalf("day %d: warnings = %v", day, result.Warnings)
			}
		case day == minSnaps-1:
			if !result.ProfileCreated {
				t.Fatalf("day %d: initial baseline not created at threshold", day)
			}
			if result.Score == nil || result.Assessment == nil {
				t.Fatalf("day %d: first scored tick incomplete", day)
			}
		case day < minSnaps+window-2:
			// Scoring but the drift window is still filling.
			if result.Score == nil {
				t.Fatalf("day %d: no score with a baseline present", day)
			}
			if result.Drift != nil {
				t.Fatalf("day %d: drift verdict before the window filled", day)
			}
			hasWarning := false
			for _, w := range result.Warnings {
				if w == "drift_window_filling" {
					hasWarning = true
				}
			}
			if !hasWarning {
				t.Fatalf("day %d: missing drift_window_filling warning", day)
			}
		default:
			if result.Drift == nil {
				t.Fatalf("day %d: no drift verdict with a full window", day)
			}
			if result.Assessment == nil {
				t.Fatalf("day %d: no assessment", day)
			}
			if result.Drift.IsDrifting {
				drifting++
			}
		}
	}

	if drifting > 1 {
		t.Errorf("steady subject flagged as drifting %d times", drifting)
	}
}

func TestTickDetectsDecline(t *testing.T) {
	p := newTestPipeline()
	rng := rand.New(rand.NewSource(7))

	minSnaps := baseline.DefaultConfig().MinSnapshots

	day := 0
	for ; day < minSnaps+2; day++ {
		p.Tick("alice", makeSnapshot(rng, day, 1))
	}

	// Behavior slides: every feature moves away from baseline a bit more
	// each day. Similarity drops steadily, which the detector should flag.
	var flagged *drift.Detection
	lowest := 1.0
	escalated := false
	for i := 0; i < 18; i++ {
		scale := 1 + 0.005*float64(i+1)
		result := p.Tick("alice", makeSnapshot(rng, day, scale))
		day++
		if result.Drift != nil && result.Drift.IsDrifting &&
			result.Drift.Direction == drift.DirectionDeterioration {
			flagged = result.Drift
		}
		if result.Score != nil && result.Score.Overall < lowest {
			lowest = result.Score.Overall
		}
		if p.Mode("alice") != drift.ModeNormal {
			escalated = true
		}
	}

	if flagged == nil {
		t.Fatal("sustained decline never flagged as deteriorating drift")
	}
	if flagged.Type != drift.TypeGradualDecline && flagged.Type != drift.TypeSuddenChange {
		t.Errorf("type = %s, want a decline classification", flagged.Type)
	}
	if lowest > 0.6 {
		t.Errorf("lowest similarity = %v, want depressed under sustained shift", lowest)
	}
	if !escalated {
		t.Error("monitoring mode never escalated during the decline")
	}
}

// =============================================================================
// Isolation Tests
// =============================================================================

func TestSubjectsAreIsolated(t *testing.T) {
	p := newTestPipeline()
	rng := rand.New(rand.NewSource(3))

	minSnaps := baseline.DefaultConfig().MinSnapshots
	for day := 0; day < minSnaps+1; day++ {
		p.Tick("alice", makeSnapshot(rng, day, 1))
	}

	if p.Profile("alice") == nil {
		t.Fatal("alice should have a baseline")
	}
	if p.Profile("bob") != nil {
		t.Error("bob should have no baseline")
	}

	result := p.Tick("bob", makeSnapshot(rng, 0, 1))
	if result.Score != nil {
		t.Error("bob's first snapshot scored against no baseline")
	}
}

func TestReconfigureAppliesTunables(t *testing.T) {
	p := newTestPipeline()
	rng := rand.New(rand.NewSource(7))

	lowered := config.Default()
	lowered.Baseline.MinSnapshots = 8
	if err := lowered.Validate(); err != nil {
		t.Fatalf("fixture config invalid: %v", err)
	}
	p.Reconfigure(lowered)

	// With the lowered threshold the baseline must build on the eighth
	// snapshot instead of the default twentieth.
	for day := 0; day < 8; day++ {
		result := p.Tick("alice", makeSnapshot(rng, day, 1))
		switch {
		case day < 7 && result.Profile != nil:
			t.Fatalf("day %d: baseline built below the reconfigured minimum", day)
		case day == 7:
			if !result.ProfileCreated || result.Profile == nil {
				t.Fatal("baseline not built at the reconfigured minimum")
			}
			if result.Score == nil {
				t.Fatal("no score on the tick that built the baseline")
			}
		}
	}
}

func TestConcurrentSubjects(t *testing.T) {
	p := newTestPipeline()
	subjects := []string{"alice", "bob", "carol", "dave"}

	var wg sync.WaitGroup
	for i, subject := range subjects {
		wg.Add(1)
		go func(seed int64, subject string) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for day := 0; day < 30; day++ {
				p.Tick(subject, makeSnapshot(rng, day, 1))
			}
		}(int64(i), subject)
	}
	wg.Wait()

	for _, subject := range subjects {
		if p.Profile(subject) == nil {
			t.Errorf("%s has no baseline after 30 snapshots", subject)
		}
	}
}
