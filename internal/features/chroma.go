package features

import "math"

const (
	chromaCenterOctave = 5.0
	chromaOctaveWidth  = 2.0
)

// chromaFilterBank maps FFT bins onto numChroma pitch classes with Gaussian
// bumps around each class, weighted towards octave 5. Row 0 is C. tuning
// shifts the reference A by that fraction of a bin.
func chromaFilterBank(numChroma, nfft, sampleRate int, tuning float64) [][]float64 {
	n := float64(numChroma)
	a440 := 440.0 * math.Pow(2, tuning/n)

	// Pitch of every bin in chroma units relative to A0.
	freqBins := make([]float64, nfft)
	for i := 1; i < nfft; i++ {
		f := float64(sampleRate) * float64(i) / float64(nfft)
		freqBins[i] = n * math.Log2(f/(a440/16))
	}
	// DC sits 1.5 octaves below the first bin.
	freqBins[0] = freqBins[1] - 1.5*n

	binWidth := make([]float64, nfft)
	for i := 0; i < nfft-1; i++ {
		binWidth[i] = math.Max(freqBins[i+1]-freqBins[i], 1)
	}
	binWidth[nfft-1] = 1

	half := math.Round(n / 2)
	wts := make([][]float64, numChroma)
	for c := range wts {
		row := make([]float64, nfft)
		for i := range row {
			d := remainder(freqBins[i]-float64(c)+half+10*n, n) - half
			row[i] = math.Exp(-0.5 * math.Pow(2*d/binWidth[i], 2))
		}
		wts[c] = row
	}

	for i := 0; i < nfft; i++ {
		norm := 0.0
		for c := range wts {
			norm += wts[c][i] * wts[c][i]
		}
		norm = math.Sqrt(norm)
		octave := math.Exp(-0.5 * math.Pow((freqBins[i]/n-chromaCenterOctave)/chromaOctaveWidth, 2))
		for c := range wts {
			if norm > 0 {
				wts[c][i] /= norm
			}
			wts[c][i] *= octave
		}
	}

	// Rotate so that row 0 is C instead of A, and drop the mirrored bins.
	shift := 3 * (numChroma / 12)
	nBins := nfft/2 + 1
	bank := make([][]float64, numChroma)
	for c := range bank {
		bank[c] = wts[(c+shift)%numChroma][:nBins]
	}
	return bank
}

// remainder is the floored modulus, always in [0, n).
func remainder(x, n float64) float64 {
	r := math.Mod(x, n)
	if r < 0 {
		r += n
	}
	return r
}

// normalizeMax scales every frame so its largest bin is 1. Silent frames are
// left at zero.
func normalizeMax(frames [][]float64) {
	for _, frame := range frames {
		peak := 0.0
		for _, v := range frame {
			peak = math.Max(peak, math.Abs(v))
		}
		if peak <= math.SmallestNonzeroFloat64 {
			continue
		}
		for i := range frame {
			frame[i] /= peak
		}
	}
}
