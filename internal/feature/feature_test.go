package feature

import (
	"testing"
	"time"
)

// =============================================================================
// Vocabulary Tests
// =============================================================================

func TestModalityValid(t *testing.T) {
	for _, m := range Modalities() {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if Modality("gamepad").Valid() {
		t.Error("unknown modality should be invalid")
	}
}

func TestKeysForCoversAllModalities(t *testing.T) {
	wantCounts := map[Modality]int{
		ModalityKeyboard:  9,
		ModalityMouse:     6,
		ModalityScroll:    4,
		ModalityFocus:     4,
		ModalityComposite: 5,
	}
	for m, want := range wantCounts {
		keys := KeysFor(m)
		if len(keys) != want {
			t.Errorf("%s: %d keys, want %d", m, len(keys), want)
		}
		for _, k := range keys {
			if !Known(m, k) {
				t.Errorf("%s/%s should be known", m, k)
			}
		}
	}
	if KeysFor(Modality("gamepad")) != nil {
		t.Error("unknown modality should have no keys")
	}
}

func TestKnownRejectsCrossModalityKeys(t *testing.T) {
	if Known(ModalityKeyboard, KeyMeanVelocity) {
		t.Error("mouse key should not be known under keyboard")
	}
	if Known(ModalityMouse, KeyMeanDwell) {
		t.Error("keyboard key should not be known under mouse")
	}
}

func TestRelevanceOf(t *testing.T) {
	tests := []struct {
		key  Key
		want Relevance
	}{
		{KeyTremorIndex, RelevanceCritical},
		{KeyMovementJitter, RelevanceCritical},
		{KeyMeanDwell, RelevanceHigh},
		{KeyTypingRate, RelevanceModerate},
		{KeyScrollDepth, RelevanceLow}, // absent from the table
		{Key("unknown_feature"), RelevanceLow},
	}
	for _, tt := range tests {
		if got := RelevanceOf(tt.key); got != tt.want {
			t.Errorf("RelevanceOf(%s) = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestTags(t *testing.T) {
	if !TremorTagged(KeyTremorIndex) || !TremorTagged(KeyMovementJitter) {
		t.Error("tremor index and movement jitter should be tremor-tagged")
	}
	if TremorTagged(KeyScrollSpeed) {
		t.Error("scroll speed should not be tremor-tagged")
	}
	if !NeuromotorTagged(KeyMeanDwell) || !NeuromotorTagged(KeyClickInterval) {
		t.Error("dwell and click interval should be neuromotor-tagged")
	}
	if NeuromotorTagged(KeyIdleRatio) {
		t.Error("idle ratio should not be neuromotor-tagged")
	}
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func testSnapshot() Snapshot {
	return Snapshot{
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		SessionID: "s-1",
		Features: map[Modality]map[Key]float64{
			ModalityKeyboard: {
				KeyMeanDwell:  95,
				KeyTypingRate: 220,
			},
			ModalityMouse: {
				KeyMeanVelocity:      420,
				Key("unknown_extra"): 1, // unknown keys do not count
			},
		},
		Context: map[string]string{"device": "laptop"},
		Quality: 0.9,
	}
}

func TestSnapshotValue(t *testing.T) {
	s := testSnapshot()

	v, ok := s.Value(ModalityKeyboard, KeyMeanDwell)
	if !ok || v != 95 {
		t.Errorf("got (%v, %v), want (95, true)", v, ok)
	}

	if _, ok := s.Value(ModalityKeyboard, KeyErrorRate); ok {
		t.Error("absent key should read as unobserved")
	}
	if _, ok := s.Value(ModalityScroll, KeyScrollSpeed); ok {
		t.Error("absent modality should read as unobserved")
	}
}

func TestSnapshotFeatureCount(t *testing.T) {
	s := testSnapshot()
	if got := s.FeatureCount(); got != 3 {
		t.Errorf("FeatureCount = %d, want 3 (unknown keys excluded)", got)
	}
}

func TestSnapshotClone(t *testing.T) {
	s := testSnapshot()
	c := s.Clone()

	c.Features[ModalityKeyboard][KeyMeanDwell] = 999
	c.Context["device"] = "phone"

	if v, _ := s.Value(ModalityKeyboard, KeyMeanDwell); v != 95 {
		t.Error("mutating the clone changed the original features")
	}
	if s.Context["device"] != "laptop" {
		t.Error("mutating the clone changed the original context")
	}
}

// =============================================================================
// Buffer Tests
// =============================================================================

func TestBufferEviction(t *testing.T) {
	b := NewBuffer(3)
	for i := 0; i < 5; i++ {
		b.Append(Snapshot{SessionID: string(rune('a' + i))})
	}

	if b.Len() != 3 {
		t.Fatalf("Len = %d, want 3", b.Len())
	}
	all := b.All()
	want := []string{"c", "d", "e"}
	for i, s := range all {
		if s.SessionID != want[i] {
			t.Errorf("position %d: %s, want %s", i, s.SessionID, want[i])
		}
	}
}

func TestBufferDefaults(t *testing.T) {
	b := NewBuffer(0)
	if b.Capacity() != DefaultBufferCapacity {
		t.Errorf("Capacity = %d, want %d", b.Capacity(), DefaultBufferCapacity)
	}
	if b.Latest() != nil {
		t.Error("empty buffer should have no latest snapshot")
	}
}

func TestBufferFilterAndLatest(t *testing.T) {
	b := NewBuffer(10)
	for i := 0; i < 6; i++ {
		b.Append(Snapshot{SessionID: "s", Quality: float64(i) / 10})
	}

	highQuality := b.Filter(func(s *Snapshot) bool { return s.Quality >= 0.3 })
	if len(highQuality) != 3 {
		t.Errorf("filtered %d snapshots, want 3", len(highQuality))
	}

	latest := b.Latest()
	if latest == nil || latest.Quality != 0.5 {
		t.Errorf("Latest = %+v, want quality 0.5", latest)
	}
}

func TestBufferAllIsACopy(t *testing.T) {
	b := NewBuffer(5)
	b.Append(Snapshot{SessionID: "x"})

	all := b.All()
	all[0].SessionID = "mutated"

	if b.Latest().SessionID != "x" {
		t.Error("mutating All() result changed the buffer")
	}
}
