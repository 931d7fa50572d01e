package baseline

import (
	"fmt"
	"math/rand"
	"time"

	"driftd/internal/feature"
)

// =============================================================================
// Test Data Generators for Baseline Package
// =============================================================================

// snapshotGenerator produces deterministic synthetic feature snapshots.
type snapshotGenerator struct {
	rng  *rand.Rand
	base time.Time
}

func newSnapshotGenerator(seed int64) *snapshotGenerator {
	return &snapshotGenerator{
		rng:  rand.New(rand.NewSource(seed)),
		base: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

// nominalValues is a healthy reference subject.
var nominalValues = map[feature.Modality]map[feature.Key]float64{
	feature.ModalityKeyboard: {
		feature.KeyMeanDwell:     95,
		feature.KeyMeanFlight:    140,
		feature.KeyTypingRate:    220,
		feature.KeyTimingEntropy: 0.55,
		feature.KeyErrorRate:     0.04,
	},
	feature.ModalityMouse: {
		feature.KeyMeanVelocity:   420,
		feature.KeyMovementJitter: 0.12,
		feature.KeyClickInterval:  850,
	},
	feature.ModalityFocus: {
		feature.KeySwitchRate: 4.5,
		feature.KeyIdleRatio:  0.12,
	},
	feature.ModalityComposite: {
		feature.KeyRhythmConsistency: 0.8,
		feature.KeyTremorIndex:       0.08,
		feature.KeyCoordinationIndex: 0.85,
	},
}

// snapshotOpts tunes one generated snapshot.
type snapshotOpts struct {
	quality   float64
	noiseFrac float64
	scale     float64 // multiplier applied to every feature, 0 means 1
	dayOffset float64
	sessionID string
}

func (g *snapshotGenerator) snapshot(opts snapshotOpts) feature.Snapshot {
	scale := opts.scale
	if scale == 0 {
		scale = 1
	}
	features := make(map[feature.Modality]map[feature.Key]float64, len(nominalValues))
	for m, keys := range nominalValues {
		values := make(map[feature.Key]float64, len(keys))
		for k, base := range keys {
			noise := 1 + opts.noiseFrac*(g.rng.Float64()*2-1)
			values[k] = base * scale * noise
		}
		features[m] = values
	}
	return feature.Snapshot{
		Timestamp: g.base.Add(time.Duration(opts.dayOffset * 24 * float64(time.Hour))),
		SessionID: opts.sessionID,
		Features:  features,
		Context:   map[string]string{"device": "workstation-01"},
		Quality:   opts.quality,
	}
}

// steadySeries generates n daily snapshots with mild noise and high quality.
func (g *snapshotGenerator) steadySeries(n int) []feature.Snapshot {
	snaps := make([]feature.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		snaps = append(snaps, g.snapshot(snapshotOpts{
			quality:   0.85,
			noiseFrac: 0.05,
			dayOffset: float64(i),
			sessionID: fmt.Sprintf("session-%03d", i+1),
		}))
	}
	return snaps
}
