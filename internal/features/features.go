// Package features turns a clip into the fixed-length acoustic summary the
// classifier was trained on: the per-coefficient mean of the MFCCs, the mean
// chromagram and the mean mel spectrogram, concatenated in that order.
//
// The transforms follow the usual librosa defaults:
//
//	SampleRate: 22050
//	FFTSize:    2048
//	HopSize:    512 (frames centred, zero padded by FFTSize/2)
//	Window:     periodic Hann
//	NumMFCC:    13  (DCT-II, orthonormal, over log-power mel bands)
//	NumChroma:  12  (starting at C, tuning estimated per clip)
//	NumMels:    128 (Slaney scale and area normalisation, 0 Hz to Nyquist)
//	TopDB:      80
package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"soundguard/internal/audio"
)

const (
	NumMFCC   = 13
	NumChroma = 12
	NumMels   = 128

	// Size is the length of a Vector built with DefaultConfig.
	Size = NumMFCC + NumChroma + NumMels
)

// ErrSampleRate is returned when a clip is not at the extractor's rate.
var ErrSampleRate = errors.New("features: sample rate mismatch")

// Config controls the spectral transforms.
type Config struct {
	SampleRate int     // rate the filter banks are built for
	FFTSize    int     // STFT window length in samples
	HopSize    int     // STFT hop in samples
	NumMFCC    int     // cepstral coefficients kept
	NumChroma  int     // pitch classes
	NumMels    int     // mel bands
	TopDB      float64 // dynamic range kept before the DCT
}

// DefaultConfig returns the configuration the shipped classifier expects.
func DefaultConfig() Config {
	return Config{
		SampleRate: audio.DefaultSampleRate,
		FFTSize:    2048,
		HopSize:    512,
		NumMFCC:    NumMFCC,
		NumChroma:  NumChroma,
		NumMels:    NumMels,
		TopDB:      80,
	}
}

// Vector is an extracted feature vector laid out as MFCC, chroma, mel.
type Vector []float64

// MFCC returns the mean cepstral coefficients.
func (v Vector) MFCC() []float64 { return v[:NumMFCC] }

// Chroma returns the mean chroma bins.
func (v Vector) Chroma() []float64 { return v[NumMFCC : NumMFCC+NumChroma] }

// Mel returns the mean mel bands.
func (v Vector) Mel() []float64 { return v[NumMFCC+NumChroma:] }

// Extractor computes feature vectors. The mel bank, the DCT basis and the
// in-tune chroma bank are built once in New; a clip that is off A440 gets its
// own chroma bank. Extract keeps no state between calls and is safe for
// concurrent use.
type Extractor struct {
	cfg        Config
	window     []float64
	melBank    [][]float64
	chromaBank [][]float64 // tuning 0
	dct        [][]float64
}

// New creates an Extractor for cfg.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:        cfg,
		window:     hannWindow(cfg.FFTSize),
		melBank:    melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, 0, float64(cfg.SampleRate)/2),
		chromaBank: chromaFilterBank(cfg.NumChroma, cfg.FFTSize, cfg.SampleRate, 0),
		dct:        dctMatrix(cfg.NumMFCC, cfg.NumMels),
	}
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Size returns the length of the vectors Extract produces.
func (e *Extractor) Size() int {
	return e.cfg.NumMFCC + e.cfg.NumChroma + e.cfg.NumMels
}

// Extract computes the feature vector of clip. Empty clips yield a single
// zero-padded frame, so the result always has Size() elements.
func (e *Extractor) Extract(clip audio.Clip) (Vector, error) {
	if clip.SampleRate != e.cfg.SampleRate {
		return nil, fmt.Errorf("%w: clip is %d Hz, extractor expects %d Hz",
			ErrSampleRate, clip.SampleRate, e.cfg.SampleRate)
	}

	power := e.powerSpectrogram(clip.Samples)

	mel := applyBank(e.melBank, power)
	mfcc := e.mfcc(mel)
	chroma := applyBank(e.chromaBankFor(power), power)
	normalizeMax(chroma)

	vec := make(Vector, 0, e.Size())
	vec = append(vec, frameMean(mfcc, e.cfg.NumMFCC)...)
	vec = append(vec, frameMean(chroma, e.cfg.NumChroma)...)
	vec = append(vec, frameMean(mel, e.cfg.NumMels)...)
	return vec, nil
}

// chromaBankFor returns the chroma filter bank tuned to the pitches found in
// power.
func (e *Extractor) chromaBankFor(power [][]float64) [][]float64 {
	tuning := estimateTuning(power, e.cfg.SampleRate, e.cfg.FFTSize, e.cfg.NumChroma)
	if tuning == 0 {
		return e.chromaBank
	}
	return chromaFilterBank(e.cfg.NumChroma, e.cfg.FFTSize, e.cfg.SampleRate, tuning)
}

// powerSpectrogram returns |STFT|^2 as [frames][FFTSize/2+1].
func (e *Extractor) powerSpectrogram(y []float64) [][]float64 {
	nfft, hop := e.cfg.FFTSize, e.cfg.HopSize
	pad := nfft / 2

	padded := make([]float64, len(y)+2*pad)
	copy(padded[pad:], y)
	numFrames := 1 + (len(padded)-nfft)/hop

	// fourier.FFT keeps a work buffer, so each call gets its own.
	fft := fourier.NewFFT(nfft)
	frame := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)

	spec := make([][]float64, numFrames)
	for t := 0; t < numFrames; t++ {
		start := t * hop
		floats.MulTo(frame, padded[start:start+nfft], e.window)
		coeffs = fft.Coefficients(coeffs, frame)

		row := make([]float64, len(coeffs))
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			row[k] = re*re + im*im
		}
		spec[t] = row
	}
	return spec
}

// mfcc converts mel power to decibels and projects each frame on the DCT basis.
func (e *Extractor) mfcc(mel [][]float64) [][]float64 {
	logMel := powerToDB(mel, 1e-10, e.cfg.TopDB)
	out := make([][]float64, len(logMel))
	for t, frame := range logMel {
		row := make([]float64, len(e.dct))
		for k, basis := range e.dct {
			row[k] = floats.Dot(basis, frame)
		}
		out[t] = row
	}
	return out
}

// hannWindow returns a periodic Hann window of length n.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// applyBank projects every spectrogram frame on each filter of bank.
func applyBank(bank [][]float64, spec [][]float64) [][]float64 {
	out := make([][]float64, len(spec))
	for t, frame := range spec {
		row := make([]float64, len(bank))
		for m, filter := range bank {
			row[m] = floats.Dot(filter, frame)
		}
		out[t] = row
	}
	return out
}

// frameMean averages the frames of m column-wise.
func frameMean(m [][]float64, cols int) []float64 {
	mean := make([]float64, cols)
	if len(m) == 0 {
		return mean
	}
	for _, row := range m {
		floats.Add(mean, row)
	}
	floats.Scale(1/float64(len(m)), mean)
	return mean
}
