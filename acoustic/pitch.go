package acoustic

import "math"

const (
	pitchFrameMs = 25
	pitchHopMs   = 10
	pitchMinHz   = 50.0
	pitchMaxHz   = 500.0

	// minimum normalized autocorrelation peak for a frame to count as voiced
	voicingFloor = 0.25
)

// pitchFrame is one voiced frame of the pitch track.
type pitchFrame struct {
	hz   float64
	peak float64 // normalized autocorrelation peak, HNR proxy
}

// pitchContour estimates a per-frame pitch track using autocorrelation over
// 25 ms frames at a 10 ms hop, searching lags between 50 and 500 Hz.
// Frames without a plausible peak are dropped, so the contour may be empty.
func pitchContour(samples []float64, sampleRate int) []pitchFrame {
	frame := sampleRate * pitchFrameMs / 1000
	hop := sampleRate * pitchHopMs / 1000
	if frame <= 0 || hop <= 0 || len(samples) < frame {
		return nil
	}

	minLag := int(float64(sampleRate) / pitchMaxHz)
	maxLag := int(float64(sampleRate) / pitchMinHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= frame {
		maxLag = frame - 1
	}

	var out []pitchFrame
	for start := 0; start+frame <= len(samples); start += hop {
		w := samples[start : start+frame]

		energy := 0.0
		for _, s := range w {
			energy += s * s
		}
		if energy < 1e-8 {
			continue
		}

		bestLag := 0
		bestCorr := 0.0
		for lag := minLag; lag <= maxLag; lag++ {
			corr := 0.0
			for i := 0; i+lag < len(w); i++ {
				corr += w[i] * w[i+lag]
			}
			corr /= energy
			if corr > bestCorr {
				bestCorr = corr
				bestLag = lag
			}
		}
		if bestLag == 0 || bestCorr < voicingFloor {
			continue
		}

		hz := float64(sampleRate) / float64(bestLag)
		if hz < pitchMinHz || hz > pitchMaxHz {
			continue
		}
		out = append(out, pitchFrame{hz: hz, peak: bestCorr})
	}
	return out
}

// contourStats derives mean, variance, range and per-second slope from a
// pitch contour. An empty contour yields all zeros.
func contourStats(contour []pitchFrame, sampleRate int) (mean, variance, rng, slope float64) {
	if len(contour) == 0 {
		return 0, 0, 0, 0
	}

	lo, hi := contour[0].hz, contour[0].hz
	for _, f := range contour {
		mean += f.hz
		if f.hz < lo {
			lo = f.hz
		}
		if f.hz > hi {
			hi = f.hz
		}
	}
	mean /= float64(len(contour))
	rng = hi - lo

	for _, f := range contour {
		d := f.hz - mean
		variance += d * d
	}
	variance /= float64(len(contour))

	if len(contour) > 1 {
		// least-squares slope over frame index, scaled to Hz per second
		n := float64(len(contour))
		var sx, sy, sxx, sxy float64
		for i, f := range contour {
			x := float64(i)
			sx += x
			sy += f.hz
			sxx += x * x
			sxy += x * f.hz
		}
		denom := n*sxx - sx*sx
		if denom > 0 {
			perFrame := (n*sxy - sx*sy) / denom
			framesPerSec := 1000.0 / float64(pitchHopMs)
			slope = perFrame * framesPerSec
		}
	}
	return mean, variance, rng, slope
}

// contourJitter is the mean absolute frame-to-frame pitch deviation divided
// by the mean pitch.
func contourJitter(contour []pitchFrame) float64 {
	if len(contour) < 2 {
		return 0
	}
	mean := 0.0
	for _, f := range contour {
		mean += f.hz
	}
	mean /= float64(len(contour))
	if mean == 0 {
		return 0
	}
	dev := 0.0
	for i := 1; i < len(contour); i++ {
		dev += math.Abs(contour[i].hz - contour[i-1].hz)
	}
	return dev / float64(len(contour)-1) / mean
}

// contourHNR averages the normalized autocorrelation peaks of the voiced
// frames, a cheap harmonic-to-noise proxy in [0,1].
func contourHNR(contour []pitchFrame) float64 {
	if len(contour) == 0 {
		return 0
	}
	sum := 0.0
	for _, f := range contour {
		sum += f.peak
	}
	return sum / float64(len(contour))
}

// PitchStats returns the mean pitch and pitch range (Hz) of a segment, or
// zeros when no voiced frames are found. Used for speaker fingerprinting.
func PitchStats(samples []float64, sampleRate int) (mean, rng float64) {
	contour := pitchContour(samples, sampleRate)
	mean, _, rng, _ = contourStats(contour, sampleRate)
	return mean, rng
}

// VoiceQuality returns the mean voicing strength of a segment in [0,1].
func VoiceQuality(samples []float64, sampleRate int) float64 {
	return contourHNR(pitchContour(samples, sampleRate))
}

// RMS computes the root-mean-square level of a buffer.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
