package features

import (
	"math"
	"sort"
)

const (
	pitchMinHz     = 150.0
	pitchMaxHz     = 4000.0
	pitchThreshold = 0.1
	// tuningResolution is the histogram bin width in fractions of a bin.
	tuningResolution = 0.01
)

// estimateTuning returns the offset, in fractions of a chroma bin, between the
// clip's dominant pitches and A440 equal temperament. The result lies in
// [-0.5, 0.5). Clips with no detectable pitch are in tune.
func estimateTuning(spec [][]float64, sampleRate, nfft, binsPerOctave int) float64 {
	pitches, mags := trackPitches(spec, sampleRate, nfft)
	if len(pitches) == 0 {
		return 0
	}

	threshold := median(mags)
	var strong []float64
	for i, p := range pitches {
		if mags[i] >= threshold {
			strong = append(strong, p)
		}
	}
	return pitchTuning(strong, binsPerOctave)
}

// trackPitches finds the local spectral peaks between pitchMinHz and
// pitchMaxHz in every frame and refines each one by parabolic interpolation.
// It returns the peak frequencies and interpolated magnitudes.
func trackPitches(spec [][]float64, sampleRate, nfft int) (pitches, mags []float64) {
	fmax := math.Min(pitchMaxHz, float64(sampleRate)/2)
	binHz := float64(sampleRate) / float64(nfft)

	for _, s := range spec {
		n := len(s)
		if n < 3 {
			continue
		}

		peak := 0.0
		for _, v := range s {
			peak = math.Max(peak, math.Abs(v))
		}
		ref := pitchThreshold * peak

		gated := make([]float64, n)
		for k, v := range s {
			if math.Abs(v) > ref {
				gated[k] = math.Abs(v)
			}
		}

		for k := 1; k < n-1; k++ {
			f := float64(k) * binHz
			if f < pitchMinHz || f >= fmax {
				continue
			}
			if !(gated[k] > gated[k-1] && gated[k] >= gated[k+1]) {
				continue
			}

			prev, cur, next := math.Abs(s[k-1]), math.Abs(s[k]), math.Abs(s[k+1])
			a := next + prev - 2*cur
			b := (next - prev) / 2
			shift := 0.0
			if math.Abs(b) < math.Abs(a) {
				shift = -b / a
			}

			pitch := (float64(k) + shift) * binHz
			if pitch <= 0 {
				continue
			}
			pitches = append(pitches, pitch)
			mags = append(mags, cur+0.5*b*shift)
		}
	}
	return pitches, mags
}

// pitchTuning histograms the deviation of each frequency from the nearest
// equal-tempered bin and returns the left edge of the fullest histogram bin.
func pitchTuning(freqs []float64, binsPerOctave int) float64 {
	nBins := int(math.Ceil(1 / tuningResolution))
	counts := make([]int, nBins)
	edge := func(i int) float64 { return float64(i)*(1/float64(nBins)) - 0.5 }

	seen := 0
	for _, f := range freqs {
		if f <= 0 {
			continue
		}
		r := remainder(float64(binsPerOctave)*math.Log2(f/(440.0/16)), 1)
		if r >= 0.5 {
			r--
		}

		i := int((r + 0.5) * float64(nBins))
		if i >= nBins {
			i = nBins - 1
		}
		if i > 0 && r < edge(i) {
			i--
		}
		if i < nBins-1 && r >= edge(i+1) {
			i++
		}
		counts[i]++
		seen++
	}
	if seen == 0 {
		return 0
	}

	best := 0
	for i, c := range counts {
		if c > counts[best] {
			best = i
		}
	}
	return edge(best)
}

func median(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}
