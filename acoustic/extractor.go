// Package acoustic turns raw mono PCM chunks into normalized low-level voice
// features: pitch statistics, energy dynamics, voice-stress proxies, spectral
// shape and a coarse background-noise class. Every continuous output is
// clamped to [0,1] against fixed per-feature bounds so downstream thresholds
// stay meaningful.
package acoustic

import "math"

// Background noise classes.
const (
	NoiseClean      = "clean"
	NoiseOffice     = "office"
	NoiseOutdoor    = "outdoor"
	NoiseCallCenter = "call_center"
	NoiseUnknown    = "unknown"
)

// DefaultWindowSize bounds the direct spectral transform.
const DefaultWindowSize = 2048

const energyFrameLen = 512

// Fixed normalization bounds. Values outside a bound clamp to the edge.
const (
	boundPitchMeanLo  = 50.0
	boundPitchMeanHi  = 500.0
	boundPitchVarHi   = 8000.0
	boundPitchRangeHi = 300.0
	boundPitchSlopeHi = 100.0 // Hz per second, symmetric
	boundEnergyMeanHi = 0.5
	boundEnergyVarHi  = 0.05
	boundSpikesHi     = 0.2 // fraction of frames
	boundDynRangeHi   = 0.5
	boundJitterHi     = 0.08
	boundShimmerHi    = 0.4
	boundCentroidHi   = 4000.0
	boundRolloffHi    = 12000.0
	boundRateHi       = 8.0 // syllable peaks per second
	boundZCRHi        = 0.5

	silenceRMS = 0.01
)

// Features is one chunk's acoustic snapshot. All scalar fields are
// normalized to [0,1]; NoiseClass is one of the Noise* constants.
type Features struct {
	PitchMean     float64 `json:"pitchMean"`
	PitchVariance float64 `json:"pitchVariance"`
	PitchRange    float64 `json:"pitchRange"`
	PitchSlope    float64 `json:"pitchSlope"`

	EnergyMean     float64 `json:"energyMean"`
	EnergyVariance float64 `json:"energyVariance"`
	EnergySpikes   float64 `json:"energySpikes"`
	DynamicRange   float64 `json:"dynamicRange"`

	VoiceStress float64 `json:"voiceStress"`
	Jitter      float64 `json:"jitter"`
	Shimmer     float64 `json:"shimmer"`
	HNR         float64 `json:"hnr"`

	SpectralCentroid float64 `json:"spectralCentroid"`
	SpectralFlatness float64 `json:"spectralFlatness"`
	SpectralRolloff  float64 `json:"spectralRolloff"`
	SpectralFlux     float64 `json:"spectralFlux"`

	SpeechRate       float64 `json:"speechRate"`
	PauseRatio       float64 `json:"pauseRatio"`
	ZeroCrossingRate float64 `json:"zeroCrossingRate"`

	BackgroundEntropy float64 `json:"backgroundEntropy"`
	NoiseClass        string  `json:"noiseClass"`

	StressScore  float64 `json:"overallStressScore"`
	QualityScore float64 `json:"audioQualityScore"`
}

// Voiced reports whether the chunk carried any measurable signal. Fusion
// drops the audio contribution entirely for unvoiced chunks.
func (f Features) Voiced() bool { return f.EnergyMean > 0 }

// Extractor computes Features from raw samples. It is stateless apart from
// the previous chunk's spectrum, kept for the spectral-flux delta.
type Extractor struct {
	sampleRate   int
	windowSize   int
	prevSpectrum []float64
}

// NewExtractor creates an extractor for the given sample rate. A windowSize
// of 0 selects DefaultWindowSize.
func NewExtractor(sampleRate, windowSize int) *Extractor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Extractor{sampleRate: sampleRate, windowSize: windowSize}
}

// Reset clears the previous-spectrum slot.
func (e *Extractor) Reset() { e.prevSpectrum = nil }

// Extract computes the full feature set for one chunk. Short or silent
// buffers degrade to zeroed features and a clean noise class, never an error.
func (e *Extractor) Extract(samples []float64) Features {
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	if len(samples) == 0 || peak == 0 {
		// No signal at all: spectral flux must still see an empty previous
		// spectrum next chunk, so drop it here.
		e.prevSpectrum = nil
		return Features{NoiseClass: NoiseClean}
	}

	f := Features{}

	// Pitch track and voice quality.
	contour := pitchContour(samples, e.sampleRate)
	mean, variance, rng, slope := contourStats(contour, e.sampleRate)
	hnr := contourHNR(contour)
	jitter := contourJitter(contour)
	if len(contour) > 0 {
		f.PitchMean = normalize(mean, boundPitchMeanLo, boundPitchMeanHi)
		f.PitchVariance = normalize(variance, 0, boundPitchVarHi)
		f.PitchRange = normalize(rng, 0, boundPitchRangeHi)
		f.PitchSlope = normalize(slope, -boundPitchSlopeHi, boundPitchSlopeHi)
	}
	f.HNR = clamp01(hnr)
	f.Jitter = normalize(jitter, 0, boundJitterHi)

	// Frame energies.
	energies := frameRMS(samples, energyFrameLen)
	eMean, eVar, spikes, dynRange := energyStats(energies)
	f.EnergyMean = normalize(eMean, 0, boundEnergyMeanHi)
	f.EnergyVariance = normalize(eVar, 0, boundEnergyVarHi)
	f.EnergySpikes = normalize(spikes, 0, boundSpikesHi)
	f.DynamicRange = normalize(dynRange, 0, boundDynRangeHi)
	f.Shimmer = normalize(frameShimmer(energies), 0, boundShimmerHi)

	f.VoiceStress = clamp01(0.4*f.Jitter + 0.3*f.Shimmer + 0.3*(1-f.HNR))

	// Spectral shape over a bounded window.
	mags := magnitudeSpectrum(samples, e.windowSize)
	n := len(samples)
	if n > e.windowSize {
		n = e.windowSize
	}
	binHz := 0.0
	if n > 0 {
		binHz = float64(e.sampleRate) / float64(n)
	}
	f.SpectralCentroid = normalize(spectralCentroid(mags, binHz), 0, boundCentroidHi)
	f.SpectralFlatness = clamp01(spectralFlatness(mags))
	f.SpectralRolloff = normalize(spectralRolloff(mags, binHz), 0, boundRolloffHi)
	f.SpectralFlux = spectralFlux(mags, e.prevSpectrum)
	e.prevSpectrum = mags

	// Temporal texture.
	dur := float64(len(samples)) / float64(e.sampleRate)
	f.SpeechRate = normalize(float64(envelopePeaks(energies))/math.Max(dur, 1e-6), 0, boundRateHi)
	f.PauseRatio = clamp01(silentFraction(energies))
	f.ZeroCrossingRate = normalize(zeroCrossingRate(samples), 0, boundZCRHi)

	// Background.
	entropy := spectralEntropy(mags)
	low, mid, high := bandRatios(mags, binHz)
	f.BackgroundEntropy = entropy
	f.NoiseClass = classifyNoise(entropy, low, mid, high)

	f.StressScore = clamp01(0.3*f.VoiceStress + 0.2*f.EnergyVariance +
		0.2*f.PitchVariance + 0.15*f.SpeechRate + 0.15*f.EnergySpikes)
	f.QualityScore = clamp01(0.35*f.HNR + 0.25*f.DynamicRange +
		0.2*(1-f.PauseRatio) + 0.2*(1-f.BackgroundEntropy))

	return f
}

// SpeechRate estimates syllable-like energy peaks per second for a segment,
// normalized against the same bound as Features.SpeechRate. Used for speaker
// fingerprinting.
func SpeechRate(samples []float64, sampleRate int) float64 {
	if sampleRate <= 0 || len(samples) == 0 {
		return 0
	}
	energies := frameRMS(samples, energyFrameLen)
	dur := float64(len(samples)) / float64(sampleRate)
	return normalize(float64(envelopePeaks(energies))/math.Max(dur, 1e-6), 0, boundRateHi)
}

// classifyNoise maps spectral entropy and band-energy shares to a coarse
// background class. Thresholds are fixed; evaluation order matters.
func classifyNoise(entropy, low, mid, high float64) string {
	switch {
	case entropy < 0.55:
		return NoiseClean
	case mid > 0.6 && entropy < 0.85:
		return NoiseCallCenter
	case low > 0.45:
		return NoiseOffice
	case high > 0.25 && entropy >= 0.85:
		return NoiseOutdoor
	case entropy > 0.9:
		return NoiseUnknown
	}
	return NoiseUnknown
}

// frameRMS computes per-frame RMS over fixed-length frames; a short trailing
// frame is included if at least half full.
func frameRMS(samples []float64, frameLen int) []float64 {
	if frameLen <= 0 || len(samples) == 0 {
		return nil
	}
	var out []float64
	for start := 0; start < len(samples); start += frameLen {
		end := start + frameLen
		if end > len(samples) {
			if len(samples)-start < frameLen/2 && len(out) > 0 {
				break
			}
			end = len(samples)
		}
		out = append(out, RMS(samples[start:end]))
	}
	return out
}

func energyStats(energies []float64) (mean, variance, spikeFrac, dynRange float64) {
	if len(energies) == 0 {
		return 0, 0, 0, 0
	}
	lo, hi := energies[0], energies[0]
	for _, e := range energies {
		mean += e
		if e < lo {
			lo = e
		}
		if e > hi {
			hi = e
		}
	}
	mean /= float64(len(energies))
	for _, e := range energies {
		d := e - mean
		variance += d * d
	}
	variance /= float64(len(energies))

	std := math.Sqrt(variance)
	spikes := 0
	for _, e := range energies {
		if e > mean+2*std {
			spikes++
		}
	}
	return mean, variance, float64(spikes) / float64(len(energies)), hi - lo
}

// frameShimmer is the mean absolute frame-to-frame energy deviation divided
// by the mean energy.
func frameShimmer(energies []float64) float64 {
	if len(energies) < 2 {
		return 0
	}
	mean := 0.0
	for _, e := range energies {
		mean += e
	}
	mean /= float64(len(energies))
	if mean == 0 {
		return 0
	}
	dev := 0.0
	for i := 1; i < len(energies); i++ {
		dev += math.Abs(energies[i] - energies[i-1])
	}
	return dev / float64(len(energies)-1) / mean
}

// envelopePeaks counts syllable-like local maxima in the energy envelope.
func envelopePeaks(energies []float64) int {
	if len(energies) < 3 {
		return 0
	}
	mean := 0.0
	for _, e := range energies {
		mean += e
	}
	mean /= float64(len(energies))
	thr := 1.2 * mean

	peaks := 0
	for i := 1; i < len(energies)-1; i++ {
		if energies[i] > thr && energies[i] > energies[i-1] && energies[i] >= energies[i+1] {
			peaks++
		}
	}
	return peaks
}

func silentFraction(energies []float64) float64 {
	if len(energies) == 0 {
		return 0
	}
	silent := 0
	for _, e := range energies {
		if e < silenceRMS {
			silent++
		}
	}
	return float64(silent) / float64(len(energies))
}

func zeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] >= 0) != (samples[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}

// normalize maps v from [min,max] onto [0,1], clamping at the edges.
func normalize(v, min, max float64) float64 {
	if max <= min {
		return 0
	}
	return clamp01((v - min) / (max - min))
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
