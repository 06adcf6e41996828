// Package audio loads uploaded clips into mono float samples at the rate the
// feature extractor expects.
//
// RIFF/WAVE files are decoded here. Supported encodings are integer PCM with
// 8, 16, 24 or 32 bits per sample and IEEE float with 32 or 64 bits, including
// the WAVE_FORMAT_EXTENSIBLE wrapper. Compressed containers are handed to
// ffmpeg, which writes float WAV back. Multi-channel audio is averaged down to
// a single channel and then resampled with a pure Go resampler.
package audio
