package features

import "math"

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp     = 200.0 / 3
	melMinLog  = 1000.0
	melMinLogM = melMinLog / melFSp
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(f float64) float64 {
	if f >= melMinLog {
		return melMinLogM + math.Log(f/melMinLog)/melLogStep
	}
	return f / melFSp
}

func melToHz(m float64) float64 {
	if m >= melMinLogM {
		return melMinLog * math.Exp(melLogStep*(m-melMinLogM))
	}
	return melFSp * m
}

// melFilterBank builds numMels triangular filters over the FFT bins, evenly
// spaced on the mel scale between fmin and fmax. Each filter is scaled by
// 2/(bandwidth in Hz) so all bands carry roughly equal energy.
func melFilterBank(numMels, nfft, sampleRate int, fmin, fmax float64) [][]float64 {
	nBins := nfft/2 + 1
	fftFreqs := make([]float64, nBins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}

	minMel, maxMel := hzToMel(fmin), hzToMel(fmax)
	edges := make([]float64, numMels+2)
	for i := range edges {
		edges[i] = melToHz(minMel + (maxMel-minMel)*float64(i)/float64(numMels+1))
	}

	bank := make([][]float64, numMels)
	for m := 0; m < numMels; m++ {
		lowerWidth := edges[m+1] - edges[m]
		upperWidth := edges[m+2] - edges[m+1]
		enorm := 2.0 / (edges[m+2] - edges[m])

		filter := make([]float64, nBins)
		for k, f := range fftFreqs {
			lower := (f - edges[m]) / lowerWidth
			upper := (edges[m+2] - f) / upperWidth
			if w := math.Min(lower, upper); w > 0 {
				filter[k] = w * enorm
			}
		}
		bank[m] = filter
	}
	return bank
}
