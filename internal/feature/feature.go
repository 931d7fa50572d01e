// Package feature defines the behavioral feature vocabulary shared by the
// analytics pipeline.
//
// A feature snapshot is one session's worth of already-extracted numeric
// features, grouped by modality (keyboard, mouse, scroll, focus, composite).
// Extraction itself happens upstream; this package only names the features,
// carries their values, and records how medically relevant each one is.
package feature

import (
	"time"
)

// Modality is one behavioral input channel.
type Modality string

const (
	ModalityKeyboard  Modality = "keyboard"
	ModalityMouse     Modality = "mouse"
	ModalityScroll    Modality = "scroll"
	ModalityFocus     Modality = "focus"
	ModalityComposite Modality = "composite"
)

// Modalities lists all known modalities in canonical order.
func Modalities() []Modality {
	return []Modality{
		ModalityKeyboard,
		ModalityMouse,
		ModalityScroll,
		ModalityFocus,
		ModalityComposite,
	}
}

// Valid reports whether m names a known modality.
func (m Modality) Valid() bool {
	switch m {
	case ModalityKeyboard, ModalityMouse, ModalityScroll, ModalityFocus, ModalityComposite:
		return true
	}
	return false
}

// Key identifies a named numeric feature within a modality.
//
// The set of keys is closed: unknown keys arriving from upstream extractors
// are ignored, and a missing key means "no observation this session", never
// an implicit zero.
type Key string

// Keyboard features.
const (
	KeyMeanDwell         Key = "mean_dwell"
	KeyDwellVariability  Key = "dwell_variability"
	KeyMeanFlight        Key = "mean_flight"
	KeyFlightVariability Key = "flight_variability"
	KeyTypingRate        Key = "typing_rate"
	KeyErrorRate         Key = "error_rate"
	KeyTimingEntropy     Key = "timing_entropy"
	KeyDigraphLatency    Key = "digraph_latency"
	KeyPauseRate         Key = "pause_rate"
)

// Mouse features.
const (
	KeyMeanVelocity         Key = "mean_velocity"
	KeyPeakVelocity         Key = "peak_velocity"
	KeyAccelerationVariance Key = "acceleration_variance"
	KeyMovementJitter       Key = "movement_jitter"
	KeyClickInterval        Key = "click_interval"
	KeyPathCurvature        Key = "path_curvature"
)

// Scroll features.
const (
	KeyScrollSpeed  Key = "scroll_speed"
	KeyScrollDepth  Key = "scroll_depth"
	KeyScrollRhythm Key = "scroll_rhythm"
	KeyFlickRate    Key = "flick_rate"
)

// Focus features.
const (
	KeySwitchRate     Key = "switch_rate"
	KeyMeanFocusDwell Key = "mean_focus_dwell"
	KeyIdleRatio      Key = "idle_ratio"
	KeyRevisitRate    Key = "revisit_rate"
)

// Composite features derived cross-modally by upstream extractors.
const (
	KeyFatigueIndex      Key = "fatigue_index"
	KeyCognitiveLoad     Key = "cognitive_load"
	KeyRhythmConsistency Key = "rhythm_consistency"
	KeyTremorIndex       Key = "tremor_index"
	KeyCoordinationIndex Key = "coordination_index"
)

// KeysFor returns the known feature keys for a modality.
func KeysFor(m Modality) []Key {
	switch m {
	case ModalityKeyboard:
		return []Key{
			KeyMeanDwell, KeyDwellVariability, KeyMeanFlight, KeyFlightVariability,
			KeyTypingRate, KeyErrorRate, KeyTimingEntropy, KeyDigraphLatency, KeyPauseRate,
		}
	case ModalityMouse:
		return []Key{
			KeyMeanVelocity, KeyPeakVelocity, KeyAccelerationVariance,
			KeyMovementJitter, KeyClickInterval, KeyPathCurvature,
		}
	case ModalityScroll:
		return []Key{KeyScrollSpeed, KeyScrollDepth, KeyScrollRhythm, KeyFlickRate}
	case ModalityFocus:
		return []Key{KeySwitchRate, KeyMeanFocusDwell, KeyIdleRatio, KeyRevisitRate}
	case ModalityComposite:
		return []Key{
			KeyFatigueIndex, KeyCognitiveLoad, KeyRhythmConsistency,
			KeyTremorIndex, KeyCoordinationIndex,
		}
	}
	return nil
}

// Known reports whether k is a recognized feature key for modality m.
func Known(m Modality, k Key) bool {
	for _, known := range KeysFor(m) {
		if known == k {
			return true
		}
	}
	return false
}

// Relevance grades how medically informative a feature is.
type Relevance string

const (
	RelevanceLow      Relevance = "low"
	RelevanceModerate Relevance = "moderate"
	RelevanceHigh     Relevance = "high"
	RelevanceCritical Relevance = "critical"
)

// relevanceTable maps features to their medical relevance. Features absent
// from the table default to RelevanceLow.
var relevanceTable = map[Key]Relevance{
	KeyMeanDwell:         RelevanceHigh,
	KeyDwellVariability:  RelevanceHigh,
	KeyMeanFlight:        RelevanceModerate,
	KeyFlightVariability: RelevanceModerate,
	KeyTypingRate:        RelevanceModerate,
	KeyErrorRate:         RelevanceModerate,
	KeyTimingEntropy:     RelevanceHigh,
	KeyDigraphLatency:    RelevanceModerate,
	KeyPauseRate:         RelevanceModerate,

	KeyMeanVelocity:         RelevanceModerate,
	KeyAccelerationVariance: RelevanceHigh,
	KeyMovementJitter:       RelevanceCritical,
	KeyClickInterval:        RelevanceModerate,

	KeySwitchRate: RelevanceModerate,
	KeyIdleRatio:  RelevanceModerate,

	KeyFatigueIndex:      RelevanceHigh,
	KeyCognitiveLoad:     RelevanceHigh,
	KeyRhythmConsistency: RelevanceHigh,
	KeyTremorIndex:       RelevanceCritical,
	KeyCoordinationIndex: RelevanceCritical,
}

// RelevanceOf returns the medical relevance tier for a feature key.
func RelevanceOf(k Key) Relevance {
	if r, ok := relevanceTable[k]; ok {
		return r
	}
	return RelevanceLow
}

// tremorTagged features indicate tremor when anomalous together.
var tremorTagged = map[Key]bool{
	KeyTremorIndex:       true,
	KeyMovementJitter:    true,
	KeyDwellVariability:  true,
	KeyCoordinationIndex: true,
}

// TremorTagged reports whether anomalies on k count toward the tremor flag.
func TremorTagged(k Key) bool { return tremorTagged[k] }

// neuromotorTagged features reflect fine motor control.
var neuromotorTagged = map[Key]bool{
	KeyMeanDwell:         true,
	KeyMeanFlight:        true,
	KeyMovementJitter:    true,
	KeyClickInterval:     true,
	KeyTremorIndex:       true,
	KeyCoordinationIndex: true,
}

// NeuromotorTagged reports whether k is a fine-motor-control feature.
func NeuromotorTagged(k Key) bool { return neuromotorTagged[k] }

// Snapshot is one session's measured feature values. It is produced by
// external extractors and treated as immutable once constructed.
type Snapshot struct {
	Timestamp time.Time                    `json:"timestamp"`
	SessionID string                       `json:"session_id"`
	Features  map[Modality]map[Key]float64 `json:"features"`
	Context   map[string]string            `json:"context,omitempty"`
	Quality   float64                      `json:"quality"`
}

// Value returns the observed value for (m, k) and whether it was observed.
// Unknown keys and absent modalities read as unobserved.
func (s *Snapshot) Value(m Modality, k Key) (float64, bool) {
	feats, ok := s.Features[m]
	if !ok {
		return 0, false
	}
	v, ok := feats[k]
	return v, ok
}

// FeatureCount returns the total number of observed known features.
func (s *Snapshot) FeatureCount() int {
	n := 0
	for m, feats := range s.Features {
		for k := range feats {
			if Known(m, k) {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() Snapshot {
	out := Snapshot{
		Timestamp: s.Timestamp,
		SessionID: s.SessionID,
		Quality:   s.Quality,
	}
	if s.Features != nil {
		out.Features = make(map[Modality]map[Key]float64, len(s.Features))
		for m, feats := range s.Features {
			fm := make(map[Key]float64, len(feats))
			for k, v := range feats {
				fm[k] = v
			}
			out.Features[m] = fm
		}
	}
	if s.Context != nil {
		out.Context = make(map[string]string, len(s.Context))
		for k, v := range s.Context {
			out.Context[k] = v
		}
	}
	return out
}
