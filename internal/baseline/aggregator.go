package baseline

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"driftd/internal/feature"
	"driftd/internal/stats"
)

// Sentinel errors returned by aggregator operations. Each carries a
// machine-readable reason code via ReasonCode.
var (
	// ErrInsufficientData means too few quality-passing snapshots exist
	// for an initial build. Recoverable: retry after more snapshots.
	ErrInsufficientData = errors.New("insufficient data for baseline")

	// ErrInsufficientRecentData means an adaptive update was attempted
	// before enough post-baseline snapshots accumulated.
	ErrInsufficientRecentData = errors.New("insufficient recent data for update")

	// ErrNoSnapshotData means no snapshots exist at all for the subject.
	ErrNoSnapshotData = errors.New("no snapshot data for subject")

	// ErrUpdateFailed wraps an unexpected failure during re-aggregation.
	ErrUpdateFailed = errors.New("baseline update failed")
)

// ReasonCode maps an aggregator error to its machine-readable reason code.
// Unknown errors map to "update_failed"; nil maps to "".
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInsufficientRecentData):
		return "insufficient_recent_data"
	case errors.Is(err, ErrNoSnapshotData):
		return "no_snapshot_data"
	default:
		return "update_failed"
	}
}

// subjectState holds the aggregator's per-subject mutable state.
type subjectState struct {
	buffer  *feature.Buffer
	profile *Profile

	// coveredThrough is the newest snapshot timestamp folded into the
	// current profile. Update treats only snapshots after it as recent,
	// which keeps adaptive updates correct when replaying historical data.
	coveredThrough time.Time
}

// Aggregator builds and adapts per-subject baseline profiles from bounded
// snapshot buffers. Safe for concurrent use across subjects; operations on
// the same subject are serialized by the caller (see the monitor package).
type Aggregator struct {
	mu       sync.RWMutex
	cfg      Config
	subjects map[string]*subjectState
	log      *slog.Logger
}

// NewAggregator creates an aggregator with the given configuration. A nil
// logger falls back to slog.Default.
func NewAggregator(cfg Config, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	return &Aggregator{
		cfg:      cfg,
		subjects: make(map[string]*subjectState),
		log:      log.With("component", "baseline"),
	}
}

// Reconfigure swaps the aggregator tunables. Apply between ticks; buffer
// capacity changes only affect subjects created afterwards.
func (a *Aggregator) Reconfigure(cfg Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
}

func (a *Aggregator) state(subject string) *subjectState {
	a.mu.Lock()
	defer a.mu.Unlock()
	st, ok := a.subjects[subject]
	if !ok {
		st = &subjectState{buffer: feature.NewBuffer(a.cfg.BufferCapacity)}
		a.subjects[subject] = st
	}
	return st
}

// Profile returns the subject's current profile, or nil if none exists yet.
func (a *Aggregator) Profile(subject string) *Profile {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if st, ok := a.subjects[subject]; ok {
		return st.profile
	}
	return nil
}

// SnapshotCount returns the number of buffered snapshots for the subject.
func (a *Aggregator) SnapshotCount(subject string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if st, ok := a.subjects[subject]; ok {
		return st.buffer.Len()
	}
	return 0
}

// AddSnapshot appends a snapshot to the subject's buffer. When no profile
// exists and the buffer crosses the configured minimum, an initial build is
// attempted; a build that still lacks quality-passing data is logged and
// retried on a later append. Returns the profile if one was (re)built.
func (a *Aggregator) AddSnapshot(subject string, snap feature.Snapshot) *Profile {
	st := a.state(subject)
	st.buffer.Append(snap)

	if st.profile != nil || st.buffer.Len() < a.cfg.MinSnapshots {
		return nil
	}

	profile, err := a.CreateInitial(subject)
	if err != nil {
		a.log.Debug("initial baseline deferred",
			"subject", subject,
			"reason", ReasonCode(err),
			"buffered", st.buffer.Len())
		return nil
	}
	return profile
}

// CreateInitial builds the subject's first baseline from quality-passing
// buffered snapshots. Fails with ErrInsufficientData when fewer than
// MinSnapshots pass, or when fewer than QualityPassFraction·MinSnapshots
// meet the quality floor.
func (a *Aggregator) CreateInitial(subject string) (*Profile, error) {
	st := a.state(subject)

	if st.buffer.Len() == 0 {
		return nil, ErrNoSnapshotData
	}

	passing := st.buffer.Filter(func(s *feature.Snapshot) bool {
		return s.Quality >= a.cfg.InitialQualityThreshold
	})
	required := int(math.Ceil(float64(a.cfg.MinSnapshots) * a.cfg.QualityPassFraction))
	if st.buffer.Len() < a.cfg.MinSnapshots || len(passing) < required {
		return nil, ErrInsufficientData
	}

	profile := a.aggregate(subject, passing, nil, MethodInitial)
	st.profile = profile
	st.coveredThrough = newestTimestamp(passing)

	a.log.Info("initial baseline created",
		"subject", subject,
		"samples", profile.Statistics.SampleCount,
		"confidence", profile.Statistics.Confidence,
		"stability", profile.Statistics.Stability)
	return profile, nil
}

// Update re-derives the subject's baseline adaptively. Snapshots newer than
// the current baseline with quality at or above UpdateQualityThreshold are
// combined with the full history under exponential recency decay. When no
// baseline exists yet, Update delegates to CreateInitial.
func (a *Aggregator) Update(subject string) (*UpdateReport, error) {
	st := a.state(subject)

	if st.profile == nil {
		profile, err := a.CreateInitial(subject)
		if err != nil {
			return nil, err
		}
		return &UpdateReport{
			Profile:       profile,
			SnapshotsUsed: profile.Statistics.SampleCount,
		}, nil
	}

	prev := st.profile
	covered := st.coveredThrough
	recent := st.buffer.Filter(func(s *feature.Snapshot) bool {
		return s.Timestamp.After(covered) && s.Quality >= a.cfg.UpdateQualityThreshold
	})
	if len(recent) < a.cfg.MinRecentSnapshots {
		return nil, ErrInsufficientRecentData
	}

	all := st.buffer.Filter(func(s *feature.Snapshot) bool {
		return s.Quality >= a.cfg.UpdateQualityThreshold
	})
	if len(all) == 0 {
		return nil, ErrNoSnapshotData
	}

	weights := a.decayWeights(all)
	profile := a.aggregate(subject, all, weights, MethodAdaptive)
	profile.ID = prev.ID
	profile.CreatedAt = prev.CreatedAt

	report := &UpdateReport{
		Profile:            profile,
		PreviousConfidence: prev.Statistics.Confidence,
		ConfidenceDelta:    profile.Statistics.Confidence - prev.Statistics.Confidence,
		PreviousStability:  prev.Statistics.Stability,
		StabilityDelta:     profile.Statistics.Stability - prev.Statistics.Stability,
		SnapshotsUsed:      len(all),
		SignificantChanges: a.significantChanges(prev, profile),
	}

	st.profile = profile
	st.coveredThrough = newestTimestamp(all)
	a.log.Info("baseline updated",
		"subject", subject,
		"samples", len(all),
		"recent", len(recent),
		"confidence_delta", report.ConfidenceDelta,
		"significant_changes", len(report.SignificantChanges))
	return report, nil
}

// newestTimestamp returns the latest snapshot timestamp in snaps.
func newestTimestamp(snaps []feature.Snapshot) time.Time {
	var newest time.Time
	for _, s := range snaps {
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}
	return newest
}

// decayWeights assigns each snapshot a recency weight exp(-age/horizon),
// with age measured in days from the newest snapshot.
func (a *Aggregator) decayWeights(snaps []feature.Snapshot) []float64 {
	horizon := a.cfg.DecayHorizonDays
	if horizon <= 0 {
		horizon = 30
	}
	newest := snaps[0].Timestamp
	for _, s := range snaps {
		if s.Timestamp.After(newest) {
			newest = s.Timestamp
		}
	}
	weights := make([]float64, len(snaps))
	for i, s := range snaps {
		ageDays := newest.Sub(s.Timestamp).Hours() / 24
		weights[i] = math.Exp(-ageDays / horizon)
	}
	return weights
}

// aggregate turns a snapshot set into a complete profile. When weights is
// nil all snapshots count equally and trimmed means are used; with weights,
// estimates are recency-weighted.
func (a *Aggregator) aggregate(subject string, snaps []feature.Snapshot, weights []float64, method Method) *Profile {
	now := time.Now().UTC()
	profile := &Profile{
		ID:             uuid.NewString(),
		SubjectID:      subject,
		CreatedAt:      now,
		UpdatedAt:      now,
		PointEstimates: make(map[feature.Modality]map[feature.Key]float64),
		Variability:    make(map[feature.Modality]map[feature.Key]Variability),
		Method:         method,
	}

	coverage := make(map[feature.Modality]map[feature.Key]bool)
	totalKnown := 0
	covered := 0

	for _, m := range feature.Modalities() {
		coverage[m] = make(map[feature.Key]bool)
		for _, k := range feature.KeysFor(m) {
			totalKnown++
			values, valueWeights := collect(snaps, weights, m, k)
			coverage[m][k] = false
			if len(values) < a.cfg.MinSamplesPerFeature {
				continue
			}

			var estimate float64
			if valueWeights == nil {
				estimate = stats.TrimmedMean(values, a.cfg.TrimFraction)
			} else {
				estimate = stats.WeightedMean(values, valueWeights)
			}

			mean := stats.Mean(values)
			std := stats.StdDev(values)
			lower := mean - a.cfg.SigmaBound*std
			if lower < 0 {
				lower = 0
			}

			if profile.PointEstimates[m] == nil {
				profile.PointEstimates[m] = make(map[feature.Key]float64)
				profile.Variability[m] = make(map[feature.Key]Variability)
			}
			profile.PointEstimates[m][k] = estimate
			profile.Variability[m][k] = Variability{
				Mean:        mean,
				Std:         std,
				LowerBound:  lower,
				UpperBound:  mean + a.cfg.SigmaBound*std,
				SampleCount: len(values),
			}
			coverage[m][k] = true
			covered++
		}
	}

	qualitySum := 0.0
	sessions := make(map[string]bool)
	for _, s := range snaps {
		qualitySum += s.Quality
		if s.SessionID != "" {
			sessions[s.SessionID] = true
		}
	}
	meanQuality := qualitySum / float64(len(snaps))
	coverageRatio := 0.0
	if totalKnown > 0 {
		coverageRatio = float64(covered) / float64(totalKnown)
	}

	profile.Statistics = Statistics{
		SampleCount:  len(snaps),
		SessionCount: len(sessions),
		Confidence:   confidence(meanQuality, coverageRatio, len(snaps)),
		Stability:    a.stability(snaps),
		Coverage:     coverage,
	}
	profile.Temporal = temporal(snaps)
	profile.Statistics.TotalDuration = time.Duration(profile.Temporal.MeanSessionMinutes*float64(len(sessions))) * time.Minute
	profile.Environment = aggregateContext(snaps)
	profile.DataQuality = qualityTier(profile.Statistics)
	profile.MedicalRelevance = profileRelevance(coverage)

	return profile
}

// collect gathers the observed values (and matching weights) for one feature.
func collect(snaps []feature.Snapshot, weights []float64, m feature.Modality, k feature.Key) ([]float64, []float64) {
	var values []float64
	var valueWeights []float64
	for i := range snaps {
		if v, ok := snaps[i].Value(m, k); ok {
			values = append(values, v)
			if weights != nil {
				valueWeights = append(valueWeights, weights[i])
			}
		}
	}
	if weights == nil {
		return values, nil
	}
	return values, valueWeights
}

// confidence combines mean snapshot quality (0.4), feature coverage (0.35),
// and a sample-count sigmoid centered at 50 (0.25).
func confidence(meanQuality, coverageRatio float64, sampleCount int) float64 {
	sizeFactor := stats.Sigmoid(float64(sampleCount), 50, 0.1)
	return stats.Clamp01(0.4*meanQuality + 0.35*coverageRatio + 0.25*sizeFactor)
}

// stabilityFeatures are the representative cross-modal features compared
// first-half against second-half to estimate behavioral stability.
var stabilityFeatures = []struct {
	m feature.Modality
	k feature.Key
}{
	{feature.ModalityKeyboard, feature.KeyMeanDwell},
	{feature.ModalityKeyboard, feature.KeyTypingRate},
	{feature.ModalityMouse, feature.KeyMeanVelocity},
	{feature.ModalityFocus, feature.KeySwitchRate},
	{feature.ModalityComposite, feature.KeyRhythmConsistency},
}

// stability compares first-half and second-half aggregates over the
// representative features: max(0, 1 − 2·|Δ/firstHalf|) averaged. Defaults
// to 0.5 below 10 snapshots.
func (a *Aggregator) stability(snaps []feature.Snapshot) float64 {
	if len(snaps) < 10 {
		return 0.5
	}

	ordered := make([]feature.Snapshot, len(snaps))
	copy(ordered, snaps)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	mid := len(ordered) / 2
	first, second := ordered[:mid], ordered[mid:]

	var total float64
	var counted int
	for _, sf := range stabilityFeatures {
		fv, _ := collect(first, nil, sf.m, sf.k)
		sv, _ := collect(second, nil, sf.m, sf.k)
		if len(fv) == 0 || len(sv) == 0 {
			continue
		}
		fm, sm := stats.Mean(fv), stats.Mean(sv)
		if fm == 0 {
			continue
		}
		delta := math.Abs((sm - fm) / fm)
		total += math.Max(0, 1-2*delta)
		counted++
	}
	if counted == 0 {
		return 0.5
	}
	return total / float64(counted)
}

// temporal derives activity histograms and session-length statistics.
func temporal(snaps []feature.Snapshot) Temporal {
	var t Temporal
	type span struct{ first, last time.Time }
	sessions := make(map[string]*span)

	for _, s := range snaps {
		t.HourlyActivity[s.Timestamp.Hour()]++
		t.WeekdayActivity[int(s.Timestamp.Weekday())]++
		if s.SessionID == "" {
			continue
		}
		sp, ok := sessions[s.SessionID]
		if !ok {
			sessions[s.SessionID] = &span{first: s.Timestamp, last: s.Timestamp}
			continue
		}
		if s.Timestamp.Before(sp.first) {
			sp.first = s.Timestamp
		}
		if s.Timestamp.After(sp.last) {
			sp.last = s.Timestamp
		}
	}

	var lengths []float64
	for _, sp := range sessions {
		lengths = append(lengths, sp.last.Sub(sp.first).Minutes())
	}
	t.MeanSessionMinutes = stats.Mean(lengths)
	t.MedianSessionMinutes = stats.Median(lengths)

	t.OptimalWindowStart, t.OptimalWindowEnd = optimalWindow(t.HourlyActivity)
	return t
}

// optimalWindow finds the 4-hour window with the most activity.
func optimalWindow(hourly [24]int) (start, end int) {
	const windowHours = 4
	best, bestStart := -1, 0
	for s := 0; s < 24; s++ {
		total := 0
		for i := 0; i < windowHours; i++ {
			total += hourly[(s+i)%24]
		}
		if total > best {
			best, bestStart = total, s
		}
	}
	return bestStart, (bestStart + windowHours) % 24
}

// aggregateContext keeps the most frequent value observed per context key.
func aggregateContext(snaps []feature.Snapshot) map[string]string {
	counts := make(map[string]map[string]int)
	for _, s := range snaps {
		for k, v := range s.Context {
			if counts[k] == nil {
				counts[k] = make(map[string]int)
			}
			counts[k][v]++
		}
	}
	if len(counts) == 0 {
		return nil
	}
	out := make(map[string]string, len(counts))
	for k, values := range counts {
		bestVal, bestCount := "", -1
		for v, c := range values {
			if c > bestCount || (c == bestCount && v < bestVal) {
				bestVal, bestCount = v, c
			}
		}
		out[k] = bestVal
	}
	return out
}

// qualityTier grades the profile from its confidence, stability, and size.
func qualityTier(s Statistics) QualityTier {
	switch {
	case s.Confidence >= 0.8 && s.Stability >= 0.7 && s.SampleCount >= 50:
		return QualityExcellent
	case s.Confidence >= 0.65 && s.Stability >= 0.55 && s.SampleCount >= 30:
		return QualityGood
	case s.Confidence >= 0.5 && s.SampleCount >= 20:
		return QualityAcceptable
	default:
		return QualityPoor
	}
}

// profileRelevance grades the profile by coverage of medically relevant
// features.
func profileRelevance(coverage map[feature.Modality]map[feature.Key]bool) feature.Relevance {
	var critical, high, total int
	for _, keys := range coverage {
		for k, covered := range keys {
			if !covered {
				continue
			}
			total++
			switch feature.RelevanceOf(k) {
			case feature.RelevanceCritical:
				critical++
			case feature.RelevanceHigh:
				high++
			}
		}
	}
	switch {
	case critical >= 2:
		return feature.RelevanceCritical
	case high >= 3:
		return feature.RelevanceHigh
	case total >= 5:
		return feature.RelevanceModerate
	default:
		return feature.RelevanceLow
	}
}

// significantChanges lists features whose relative shift between profiles
// exceeds the per-feature threshold.
func (a *Aggregator) significantChanges(prev, next *Profile) []FeatureShift {
	var shifts []FeatureShift
	for _, m := range feature.Modalities() {
		prevFeats := prev.PointEstimates[m]
		nextFeats := next.PointEstimates[m]
		if prevFeats == nil || nextFeats == nil {
			continue
		}
		for _, k := range feature.KeysFor(m) {
			before, ok1 := prevFeats[k]
			after, ok2 := nextFeats[k]
			if !ok1 || !ok2 || before == 0 {
				continue
			}
			rel := math.Abs((after - before) / before)
			threshold := a.cfg.shiftThreshold(k)
			if rel > threshold {
				shifts = append(shifts, FeatureShift{
					Modality:      m,
					Key:           k,
					Previous:      before,
					Current:       after,
					RelativeShift: rel,
					Threshold:     threshold,
				})
			}
		}
	}
	sort.Slice(shifts, func(i, j int) bool {
		return shifts[i].RelativeShift > shifts[j].RelativeShift
	})
	return shifts
}
