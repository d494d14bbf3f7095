// Package metadata maintains side-channel audio quality signals for one
// call: rolling per-channel measurements, short-lived stress markers and a
// contextual adjustment applied to the fused risk score.
package metadata

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

// Stress marker kinds.
const (
	MarkerVolumeSpike = "volume_spike"
	MarkerPitchBreak  = "pitch_break"
	MarkerHesitation  = "hesitation"
)

// Channel names tracked by the feed.
const (
	ChannelNoiseFloor   = "noise_floor"
	ChannelAmplitude    = "amplitude"
	ChannelSNR          = "snr"
	ChannelClipping     = "clipping"
	ChannelSilenceRatio = "silence_ratio"
)

const (
	channelCap    = 100
	averageWindow = 20
	markerWindow  = 5.0 // seconds
	markerLength  = 0.5

	clipLevel     = 0.99
	silenceLevel  = 0.02
	zcrBreakLevel = 0.3
)

// Marker is one detected stress event. Markers expire after markerWindow
// seconds of call time.
type Marker struct {
	Kind      string  `json:"kind"`
	Intensity float64 `json:"intensity"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration"`
}

type entry struct {
	value float64
	at    float64
}

// Aggregate is the feed's rolled-up view at query time.
type Aggregate struct {
	Channels  map[string]float64 `json:"channels"`
	Markers   []Marker           `json:"markers"`
	Clipping  bool               `json:"clipping"`
	Integrity float64            `json:"integrity"`
}

// Feed accumulates metadata for one session. Not safe for concurrent use.
type Feed struct {
	channels map[string][]entry
	markers  []Marker
	clipped  bool
	log      *logrus.Entry
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	f := &Feed{log: logrus.WithField("component", "metadata")}
	f.Reset()
	return f
}

// Reset clears every channel buffer and the marker window.
func (f *Feed) Reset() {
	f.channels = make(map[string][]entry)
	f.markers = f.markers[:0]
	f.clipped = false
}

// ProcessAudioChunk derives quality measurements and stress markers from
// one raw chunk. timestamp is call time in seconds at the chunk start.
func (f *Feed) ProcessAudioChunk(samples []float64, timestamp float64) {
	if len(samples) == 0 {
		return
	}

	mags := make([]float64, len(samples))
	sumSq := 0.0
	peak := 0.0
	silent := 0
	clippedSamples := 0
	crossings := 0
	for i, s := range samples {
		a := math.Abs(s)
		mags[i] = a
		sumSq += s * s
		if a > peak {
			peak = a
		}
		if a < silenceLevel {
			silent++
		}
		if a > clipLevel {
			clippedSamples++
		}
		if i > 0 && (samples[i-1] >= 0) != (s >= 0) {
			crossings++
		}
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	meanMag := 0.0
	for _, a := range mags {
		meanMag += a
	}
	meanMag /= float64(len(mags))

	noiseFloor := clamp01(bottomFraction(mags, 0.2) * 5)
	amplitude := clamp01(rms * 3)
	silenceRatio := float64(silent) / float64(len(samples))
	clipRatio := float64(clippedSamples) / float64(len(samples))
	zcr := 0.0
	if len(samples) > 1 {
		zcr = float64(crossings) / float64(len(samples)-1)
	}
	snr := clamp01(rms / math.Max(bottomFraction(mags, 0.2), 1e-6) / 10)

	f.ingest(ChannelNoiseFloor, noiseFloor, timestamp)
	f.ingest(ChannelAmplitude, amplitude, timestamp)
	f.ingest(ChannelSNR, snr, timestamp)
	f.ingest(ChannelClipping, clipRatio, timestamp)
	f.ingest(ChannelSilenceRatio, silenceRatio, timestamp)
	f.clipped = clippedSamples > 0

	if meanMag > 0 && peak > 3*meanMag && peak > 0.5 {
		f.addMarker(Marker{Kind: MarkerVolumeSpike, Intensity: clamp01(peak / (3 * meanMag) / 2), Timestamp: timestamp, Duration: markerLength})
	}
	if zcr > zcrBreakLevel {
		f.addMarker(Marker{Kind: MarkerPitchBreak, Intensity: clamp01(zcr), Timestamp: timestamp, Duration: markerLength})
	}
	if silenceRatio > 0.3 && silenceRatio < 0.7 {
		f.addMarker(Marker{Kind: MarkerHesitation, Intensity: silenceRatio, Timestamp: timestamp, Duration: markerLength})
	}
	f.pruneMarkers(timestamp)
}

// ingest appends a measurement, evicting oldest-first past the cap.
func (f *Feed) ingest(channel string, value, at float64) {
	buf := append(f.channels[channel], entry{value: value, at: at})
	if len(buf) > channelCap {
		buf = buf[len(buf)-channelCap:]
	}
	f.channels[channel] = buf
}

func (f *Feed) addMarker(m Marker) {
	f.markers = append(f.markers, m)
	f.log.WithFields(logrus.Fields{"kind": m.Kind, "intensity": m.Intensity}).Debug("stress marker")
}

func (f *Feed) pruneMarkers(now float64) {
	kept := f.markers[:0]
	for _, m := range f.markers {
		if now-m.Timestamp <= markerWindow {
			kept = append(kept, m)
		}
	}
	f.markers = kept
}

// Aggregated returns weighted recent averages per channel, the live
// marker list and the quality indicators.
func (f *Feed) Aggregated() Aggregate {
	agg := Aggregate{Channels: make(map[string]float64, len(f.channels)), Clipping: f.clipped}
	for name, buf := range f.channels {
		agg.Channels[name] = weightedRecent(buf)
	}
	agg.Markers = append(agg.Markers, f.markers...)
	agg.Integrity = f.Integrity()
	return agg
}

// Integrity blends the SNR estimate with inverse clipping and inverse
// silence. An empty feed reports full integrity.
func (f *Feed) Integrity() float64 {
	if len(f.channels[ChannelSNR]) == 0 {
		return 1
	}
	snr := weightedRecent(f.channels[ChannelSNR])
	clip := weightedRecent(f.channels[ChannelClipping])
	silence := weightedRecent(f.channels[ChannelSilenceRatio])
	return clamp01(0.5*snr + 0.25*(1-clip) + 0.25*(1-silence))
}

// MarkerCount returns the number of live stress markers.
func (f *Feed) MarkerCount() int { return len(f.markers) }

// ApplyContextualWeighting nudges a fused probability using the current
// metadata: more markers push up, poor integrity pulls down trust, a loud
// noise floor pushes up. Deltas are scaled by a contextual weight blending
// integrity, the fusion confidence and inverse noise.
func (f *Feed) ApplyContextualWeighting(base, confidence float64) float64 {
	integrity := f.Integrity()
	noise := weightedRecent(f.channels[ChannelNoiseFloor])

	delta := 0.0
	if len(f.markers) > 3 {
		delta += 0.1
	}
	if integrity < 0.5 {
		delta -= 0.05
	}
	if noise > 0.6 {
		delta += 0.05
	}
	weight := (integrity + confidence + (1 - noise)) / 3
	return clamp01(base + delta*weight)
}

// weightedRecent averages the newest entries with linearly increasing
// weight toward the most recent.
func weightedRecent(buf []entry) float64 {
	if len(buf) == 0 {
		return 0
	}
	if len(buf) > averageWindow {
		buf = buf[len(buf)-averageWindow:]
	}
	sum, wsum := 0.0, 0.0
	for i, e := range buf {
		w := float64(i + 1)
		sum += e.value * w
		wsum += w
	}
	return sum / wsum
}

// bottomFraction returns the mean of the smallest frac share of values.
func bottomFraction(values []float64, frac float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := int(float64(len(sorted)) * frac)
	if n < 1 {
		n = 1
	}
	sum := 0.0
	for _, v := range sorted[:n] {
		sum += v
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
