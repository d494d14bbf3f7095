package acoustic

import "math"

// Telephony-ish band edges used for background classification.
const (
	bandLowHz  = 300.0
	bandMidHz  = 3400.0
	rolloffPct = 0.95
)

// magnitudeSpectrum computes a direct discrete transform over at most
// windowSize samples and returns the single-sided magnitude spectrum.
// O(n²) but bounded by the window, which keeps it affordable per chunk.
func magnitudeSpectrum(samples []float64, windowSize int) []float64 {
	n := len(samples)
	if n > windowSize {
		n = windowSize
	}
	if n < 2 {
		return nil
	}
	bins := n/2 + 1
	mags := make([]float64, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		for i := 0; i < n; i++ {
			phase := -2 * math.Pi * float64(k) * float64(i) / float64(n)
			re += samples[i] * math.Cos(phase)
			im += samples[i] * math.Sin(phase)
		}
		mags[k] = math.Hypot(re, im) / float64(n)
	}
	return mags
}

// spectralCentroid returns the magnitude-weighted mean frequency in Hz.
func spectralCentroid(mags []float64, binHz float64) float64 {
	var num, den float64
	for k, m := range mags {
		num += float64(k) * binHz * m
		den += m
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// spectralFlatness is the geometric over arithmetic mean of the magnitudes.
func spectralFlatness(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}
	var logSum, sum float64
	for _, m := range mags {
		sum += m
		logSum += math.Log(m + 1e-12)
	}
	arith := sum / float64(len(mags))
	if arith <= 1e-12 {
		return 0
	}
	geo := math.Exp(logSum / float64(len(mags)))
	return geo / arith
}

// spectralRolloff returns the frequency below which 95% of the spectral
// energy lies.
func spectralRolloff(mags []float64, binHz float64) float64 {
	total := 0.0
	for _, m := range mags {
		total += m * m
	}
	if total == 0 {
		return 0
	}
	target := rolloffPct * total
	cum := 0.0
	for k, m := range mags {
		cum += m * m
		if cum >= target {
			return float64(k) * binHz
		}
	}
	return float64(len(mags)-1) * binHz
}

// spectralFlux measures the normalized magnitude change versus the previous
// spectrum; 0 when there is no previous spectrum.
func spectralFlux(cur, prev []float64) float64 {
	if len(prev) == 0 || len(cur) == 0 {
		return 0
	}
	n := len(cur)
	if len(prev) < n {
		n = len(prev)
	}
	var diff, total float64
	for k := 0; k < n; k++ {
		diff += math.Abs(cur[k] - prev[k])
		total += cur[k]
	}
	if total == 0 {
		return 0
	}
	return clamp01(diff / total)
}

// spectralEntropy is the Shannon entropy of the normalized power spectrum,
// scaled to [0,1] by the log of the bin count.
func spectralEntropy(mags []float64) float64 {
	if len(mags) < 2 {
		return 0
	}
	total := 0.0
	for _, m := range mags {
		total += m * m
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, m := range mags {
		p := m * m / total
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return clamp01(h / math.Log(float64(len(mags))))
}

// bandRatios splits spectral energy into low (<300 Hz), mid (300-3400 Hz)
// and high (>3400 Hz) shares.
func bandRatios(mags []float64, binHz float64) (low, mid, high float64) {
	var lowE, midE, highE, total float64
	for k, m := range mags {
		e := m * m
		f := float64(k) * binHz
		switch {
		case f < bandLowHz:
			lowE += e
		case f <= bandMidHz:
			midE += e
		default:
			highE += e
		}
		total += e
	}
	if total == 0 {
		return 0, 0, 0
	}
	return lowE / total, midE / total, highE / total
}
