// snapshot-gen generates synthetic behavioral feature snapshots for testing
// the baseline, similarity, and drift pipelines without needing real sensor
// capture.
//
// Usage:
//
//	go run tools/snapshot-gen.go -output snapshots.ndjson -count 60
//	go run tools/snapshot-gen.go -output snapshots.ndjson -profile declining
//	go run tools/snapshot-gen.go -output snapshots.ndjson -profile erratic -seed 42
//
// The output is newline-delimited JSON, one record per line, in the format
// the driftd run command consumes.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"driftd/internal/feature"
)

// record matches the driftd run input format.
type record struct {
	SubjectID string           `json:"subject_id"`
	Snapshot  feature.Snapshot `json:"snapshot"`
}

// BehaviorProfile defines parameters for simulating different subject
// trajectories across a snapshot series.
type BehaviorProfile struct {
	Name        string
	Description string
	NoiseFrac   float64 // relative noise applied to every feature value
	DriftFrac   float64 // total relative shift applied linearly across the series
	ErraticProb float64 // probability a snapshot gets an extra large excursion
	ErraticFrac float64 // magnitude of the excursion when it fires
	QualityMean float64 // mean snapshot quality
	QualityStd  float64 // quality spread
}

var behaviorProfiles = map[string]BehaviorProfile{
	"steady": {
		Name:        "Steady Subject",
		Description: "Stable behavior with only natural session-to-session noise",
		NoiseFrac:   0.05,
		DriftFrac:   0,
		ErraticProb: 0.02,
		ErraticFrac: 0.10,
		QualityMean: 0.85,
		QualityStd:  0.05,
	},
	"declining": {
		Name:        "Gradual Decline",
		Description: "Slow deterioration: dwell and flight times lengthen, rhythm degrades",
		NoiseFrac:   0.06,
		DriftFrac:   0.35,
		ErraticProb: 0.05,
		ErraticFrac: 0.12,
		QualityMean: 0.80,
		QualityStd:  0.06,
	},
	"erratic": {
		Name:        "Erratic Behavior",
		Description: "High volatility with frequent large excursions in both directions",
		NoiseFrac:   0.15,
		DriftFrac:   0,
		ErraticProb: 0.30,
		ErraticFrac: 0.40,
		QualityMean: 0.70,
		QualityStd:  0.12,
	},
	"sudden": {
		Name:        "Sudden Change",
		Description: "Stable first half, then an abrupt persistent shift",
		NoiseFrac:   0.05,
		DriftFrac:   0,
		ErraticProb: 0.02,
		ErraticFrac: 0.10,
		QualityMean: 0.85,
		QualityStd:  0.05,
	},
}

// nominal values for a healthy adult subject. Units follow the feature
// definitions: milliseconds for timings, events per minute for rates,
// normalized [0,1] for indices.
var nominal = map[feature.Modality]map[feature.Key]float64{
	feature.ModalityKeyboard: {
		feature.KeyMeanDwell:         95,
		feature.KeyDwellVariability:  18,
		feature.KeyMeanFlight:        140,
		feature.KeyFlightVariability: 40,
		feature.KeyTypingRate:        220,
		feature.KeyErrorRate:         0.04,
		feature.KeyTimingEntropy:     0.55,
		feature.KeyDigraphLatency:    165,
		feature.KeyPauseRate:         0.08,
	},
	feature.ModalityMouse: {
		feature.KeyMeanVelocity:         420,
		feature.KeyPeakVelocity:         1800,
		feature.KeyAccelerationVariance: 0.30,
		feature.KeyMovementJitter:       0.12,
		feature.KeyClickInterval:        850,
		feature.KeyPathCurvature:        0.22,
	},
	feature.ModalityScroll: {
		feature.KeyScrollSpeed:  300,
		feature.KeyScrollDepth:  0.6,
		feature.KeyScrollRhythm: 0.7,
		feature.KeyFlickRate:    0.15,
	},
	feature.ModalityFocus: {
		feature.KeySwitchRate:     4.5,
		feature.KeyMeanFocusDwell: 95,
		feature.KeyIdleRatio:      0.12,
		feature.KeyRevisitRate:    0.25,
	},
	feature.ModalityComposite: {
		feature.KeyFatigueIndex:      0.2,
		feature.KeyCognitiveLoad:     0.35,
		feature.KeyRhythmConsistency: 0.8,
		feature.KeyTremorIndex:       0.08,
		feature.KeyCoordinationIndex: 0.85,
	},
}

// driftedKeys are the features the declining and sudden profiles push. The
// sign says which direction deterioration moves the value.
var driftedKeys = map[feature.Key]float64{
	feature.KeyMeanDwell:         +1,
	feature.KeyDwellVariability:  +1,
	feature.KeyMeanFlight:        +1,
	feature.KeyTypingRate:        -1,
	feature.KeyTimingEntropy:     +1,
	feature.KeyMovementJitter:    +1,
	feature.KeyClickInterval:     +1,
	feature.KeyRhythmConsistency: -1,
	feature.KeyTremorIndex:       +1,
	feature.KeyCoordinationIndex: -1,
}

func main() {
	var (
		outputPath   = flag.String("output", "snapshots.ndjson", "Output file path")
		subjectID    = flag.String("subject", "subject-001", "Subject identifier")
		count        = flag.Int("count", 60, "Number of snapshots to generate")
		profileName  = flag.String("profile", "steady", "Behavior profile to simulate")
		seed         = flag.Int64("seed", 0, "Random seed (0 = current time)")
		startTime    = flag.String("start", "", "Series start time, RFC 3339 (default: count days ago)")
		intervalMins = flag.Float64("interval", 1440, "Minutes between snapshots")
		listProfiles = flag.Bool("list", false, "List available profiles")
	)
	flag.Parse()

	if *listProfiles {
		fmt.Println("Available profiles:")
		for name, p := range behaviorProfiles {
			fmt.Printf("  %-12s %s\n", name, p.Description)
		}
		os.Exit(0)
	}

	profile, ok := behaviorProfiles[*profileName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown profile: %s\n", *profileName)
		fmt.Fprintf(os.Stderr, "Use -list to see available profiles\n")
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	start := time.Now().Add(-time.Duration(float64(*count) * *intervalMins * float64(time.Minute)))
	if *startTime != "" {
		parsed, err := time.Parse(time.RFC3339, *startTime)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -start: %v\n", err)
			os.Exit(1)
		}
		start = parsed
	}

	fmt.Printf("Generating %d snapshots with profile: %s\n", *count, profile.Name)
	fmt.Printf("Random seed: %d\n", *seed)

	records := generate(rng, profile, *profileName, *subjectID, *count, start, *intervalMins)

	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing record: %v\n", err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d snapshots to %s\n", len(records), *outputPath)
	printStats(records)
}

func generate(rng *rand.Rand, profile BehaviorProfile, profileName, subject string, count int, start time.Time, intervalMins float64) []record {
	records := make([]record, 0, count)

	for i := 0; i < count; i++ {
		progress := 0.0
		if count > 1 {
			progress = float64(i) / float64(count-1)
		}

		// The sudden profile applies the whole shift at the midpoint
		// instead of ramping linearly.
		shift := profile.DriftFrac * progress
		if profileName == "sudden" && i >= count/2 {
			shift = 0.35
		}

		erratic := 0.0
		if rng.Float64() < profile.ErraticProb {
			erratic = profile.ErraticFrac * (rng.Float64()*2 - 1)
		}

		features := make(map[feature.Modality]map[feature.Key]float64, len(nominal))
		for modality, keys := range nominal {
			values := make(map[feature.Key]float64, len(keys))
			for key, base := range keys {
				value := base * (1 + profile.NoiseFrac*rng.NormFloat64())
				if sign, drifted := driftedKeys[key]; drifted {
					value *= 1 + sign*shift
				}
				value *= 1 + erratic
				if value < 0 {
					value = 0
				}
				values[key] = value
			}
			features[modality] = values
		}

		quality := profile.QualityMean + profile.QualityStd*rng.NormFloat64()
		if quality < 0.1 {
			quality = 0.1
		}
		if quality > 1 {
			quality = 1
		}

		ts := start.Add(time.Duration(float64(i) * intervalMins * float64(time.Minute)))
		records = append(records, record{
			SubjectID: subject,
			Snapshot: feature.Snapshot{
				Timestamp: ts,
				SessionID: fmt.Sprintf("session-%04d", i+1),
				Features:  features,
				Context: map[string]string{
					"device":   "workstation-01",
					"keyboard": "builtin",
				},
				Quality: quality,
			},
		})
	}
	return records
}

func printStats(records []record) {
	if len(records) == 0 {
		return
	}
	first := records[0].Snapshot
	last := records[len(records)-1].Snapshot

	var qualitySum float64
	for _, rec := range records {
		qualitySum += rec.Snapshot.Quality
	}

	fmt.Println("\nSummary:")
	fmt.Printf("  Time span:    %s .. %s\n",
		first.Timestamp.Format(time.RFC3339), last.Timestamp.Format(time.RFC3339))
	fmt.Printf("  Mean quality: %.2f\n", qualitySum/float64(len(records)))
	firstDwell := first.Features[feature.ModalityKeyboard][feature.KeyMeanDwell]
	lastDwell := last.Features[feature.ModalityKeyboard][feature.KeyMeanDwell]
	fmt.Printf("  Mean dwell:   %.1f ms -> %.1f ms\n", firstDwell, lastDwell)
}
