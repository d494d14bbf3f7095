// Package speaker clusters audio segments into persistent per-call speaker
// identities. Fingerprints are lightweight acoustic summaries, so this is
// best-effort similarity clustering, not biometric verification.
package speaker

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/callsift/callsift/acoustic"
)

// Similarity weights and the match threshold for profile reuse.
const (
	simWeightPitch  = 0.4
	simWeightEnergy = 0.3
	simWeightRate   = 0.3
	matchThreshold  = 0.6

	// per-dimension closeness scales
	pitchScaleHz   = 150.0
	energyScale    = 0.3
	rateScale      = 0.5
	newProfileConf = 0.8

	// fraud EMA blend: 0.7 retained, 0.3 new observation
	emaRetained = 0.7
	emaNew      = 0.3
)

// Fingerprint is the per-segment acoustic summary used for matching.
type Fingerprint struct {
	Pitch        float64 `json:"pitch"` // Hz
	PitchRange   float64 `json:"pitchRange"`
	Energy       float64 `json:"energy"` // raw RMS
	SpeechRate   float64 `json:"speechRate"`
	VoiceQuality float64 `json:"voiceQuality"`
}

// Segment records one stretch of audio assigned to a profile.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Transcript string  `json:"transcript,omitempty"`
}

// Profile is one clustered speaker identity. Profiles live for the whole
// call and are cleared, not freed, between calls.
type Profile struct {
	ID              string
	Segments        []Segment
	SpeakingTime    float64
	TurnCount       int
	MatchConfidence float64 // running average
	FraudEMA        float64

	avg     Fingerprint
	samples int
}

// Snapshot is the externally visible view of a profile.
type Snapshot struct {
	ID              string  `json:"id"`
	SpeakingTime    float64 `json:"speakingTime"`
	TurnCount       int     `json:"turnCount"`
	MatchConfidence float64 `json:"matchConfidence"`
	FraudEMA        float64 `json:"fraudProbability"`
}

// Tracker assigns segments to profiles for a single call session.
type Tracker struct {
	sampleRate int
	profiles   []*Profile
	active     string
	nextID     int
	log        *logrus.Entry
}

// NewTracker creates a tracker for segments at the given sample rate.
func NewTracker(sampleRate int) *Tracker {
	return &Tracker{
		sampleRate: sampleRate,
		log:        logrus.WithField("component", "speaker"),
	}
}

// Reset clears all profiles and the active speaker for the next call.
func (t *Tracker) Reset() {
	t.profiles = t.profiles[:0]
	t.active = ""
	t.nextID = 0
}

// ProcessSegment fingerprints the segment, resolves it to an existing or
// new profile, and updates that profile's fraud estimate. It returns the
// resolved id and whether the active speaker changed. Segments without
// measurable speech resolve to an empty id.
func (t *Tracker) ProcessSegment(samples []float64, start, end float64, transcript string) (string, bool) {
	fp := t.fingerprint(samples)
	if fp.Energy < 1e-4 && fp.Pitch == 0 {
		return "", false
	}

	profile, sim := t.bestMatch(fp)
	if profile == nil {
		t.nextID++
		profile = &Profile{
			ID:              fmt.Sprintf("speaker_%d", t.nextID),
			MatchConfidence: newProfileConf,
			avg:             fp,
			samples:         1,
		}
		t.profiles = append(t.profiles, profile)
		t.log.WithFields(logrus.Fields{"speaker": profile.ID, "pitch": fp.Pitch}).Debug("new speaker profile")
	} else {
		n := float64(profile.samples)
		profile.avg = Fingerprint{
			Pitch:        (profile.avg.Pitch*n + fp.Pitch) / (n + 1),
			PitchRange:   (profile.avg.PitchRange*n + fp.PitchRange) / (n + 1),
			Energy:       (profile.avg.Energy*n + fp.Energy) / (n + 1),
			SpeechRate:   (profile.avg.SpeechRate*n + fp.SpeechRate) / (n + 1),
			VoiceQuality: (profile.avg.VoiceQuality*n + fp.VoiceQuality) / (n + 1),
		}
		profile.MatchConfidence = (profile.MatchConfidence*n + sim) / (n + 1)
		profile.samples++
	}

	prev := t.active
	changed := prev != "" && prev != profile.ID
	if prev != profile.ID {
		profile.TurnCount++
	}
	t.active = profile.ID

	profile.Segments = append(profile.Segments, Segment{Start: start, End: end, Transcript: transcript})
	if end > start {
		profile.SpeakingTime += end - start
	}

	segScore := t.segmentFraudScore(fp, transcript)
	profile.FraudEMA = emaRetained*profile.FraudEMA + emaNew*segScore

	if changed {
		t.log.WithFields(logrus.Fields{"from": prev, "to": profile.ID}).Debug("speaker change")
	}
	return profile.ID, changed
}

// fingerprint derives the matching features from raw audio using the same
// deterministic pitch estimator as the acoustic extractor.
func (t *Tracker) fingerprint(samples []float64) Fingerprint {
	pitch, rng := acoustic.PitchStats(samples, t.sampleRate)
	return Fingerprint{
		Pitch:        pitch,
		PitchRange:   rng,
		Energy:       acoustic.RMS(samples),
		SpeechRate:   acoustic.SpeechRate(samples, t.sampleRate),
		VoiceQuality: acoustic.VoiceQuality(samples, t.sampleRate),
	}
}

// bestMatch returns the most similar profile above the match threshold.
func (t *Tracker) bestMatch(fp Fingerprint) (*Profile, float64) {
	var best *Profile
	bestSim := 0.0
	for _, p := range t.profiles {
		sim := similarity(fp, p.avg)
		if sim > bestSim {
			best, bestSim = p, sim
		}
	}
	if bestSim < matchThreshold {
		return nil, 0
	}
	return best, bestSim
}

func similarity(a, b Fingerprint) float64 {
	return simWeightPitch*closeness(a.Pitch, b.Pitch, pitchScaleHz) +
		simWeightEnergy*closeness(a.Energy, b.Energy, energyScale) +
		simWeightRate*closeness(a.SpeechRate, b.SpeechRate, rateScale)
}

func closeness(a, b, scale float64) float64 {
	d := 1 - math.Abs(a-b)/scale
	if d < 0 {
		return 0
	}
	return d
}

// Keyword groups for per-segment fraud heuristics.
var fraudKeywords = map[string][]string{
	"urgency":   {"immediately", "urgent", "hurry", "right now", "quickly"},
	"financial": {"money", "bank", "account", "payment", "gift card", "wire", "transfer", "bitcoin"},
	"authority": {"irs", "fbi", "police", "government", "officer", "agent", "microsoft"},
	"pii":       {"social security", "password", "pin", "verification code", "date of birth"},
}

// segmentFraudScore combines transcript keyword hits with acoustic
// outliers into a bounded per-segment estimate.
func (t *Tracker) segmentFraudScore(fp Fingerprint, transcript string) float64 {
	score := 0.0
	if transcript != "" {
		lower := strings.ToLower(transcript)
		for _, words := range fraudKeywords {
			for _, w := range words {
				if strings.Contains(lower, w) {
					score += 0.25
					break
				}
			}
		}
	}
	if fp.SpeechRate > 0.8 {
		score += 0.15
	}
	if fp.Energy > 0.4 {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	return score
}

// ActiveID returns the currently active speaker id, or empty.
func (t *Tracker) ActiveID() string { return t.active }

// FraudEstimate returns a profile's current fraud EMA, 0 for unknown ids.
func (t *Tracker) FraudEstimate(id string) float64 {
	for _, p := range t.profiles {
		if p.ID == id {
			return p.FraudEMA
		}
	}
	return 0
}

// Profiles returns a snapshot of the current roster.
func (t *Tracker) Profiles() []Snapshot {
	out := make([]Snapshot, 0, len(t.profiles))
	for _, p := range t.profiles {
		out = append(out, Snapshot{
			ID:              p.ID,
			SpeakingTime:    p.SpeakingTime,
			TurnCount:       p.TurnCount,
			MatchConfidence: p.MatchConfidence,
			FraudEMA:        p.FraudEMA,
		})
	}
	return out
}

// Dominant returns the id of the speaker with the most speaking time.
func (t *Tracker) Dominant() string {
	best := ""
	bestTime := -1.0
	for _, p := range t.profiles {
		if p.SpeakingTime > bestTime {
			best, bestTime = p.ID, p.SpeakingTime
		}
	}
	return best
}

// AverageConfidence returns the mean running match confidence across the
// roster, 0 when empty.
func (t *Tracker) AverageConfidence() float64 {
	if len(t.profiles) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range t.profiles {
		sum += p.MatchConfidence
	}
	return sum / float64(len(t.profiles))
}
