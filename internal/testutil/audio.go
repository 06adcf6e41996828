package testutil

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// WAVFormat describes how EncodeWAV lays out samples.
type WAVFormat struct {
	SampleRate    int
	BitsPerSample int
	Float         bool
	Extensible    bool
}

// PCM16 is 16-bit integer PCM at rate.
func PCM16(rate int) WAVFormat {
	return WAVFormat{SampleRate: rate, BitsPerSample: 16}
}

// Sine returns seconds of a sine wave at freq Hz with amplitude 0.5.
func Sine(freq float64, rate int, seconds float64) []float64 {
	n := int(float64(rate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

// EncodeWAV interleaves the given channels into a RIFF/WAVE file. All
// channels must have the same length.
func EncodeWAV(tb testing.TB, f WAVFormat, channels ...[]float64) []byte {
	tb.Helper()
	if len(channels) == 0 {
		tb.Fatal("EncodeWAV: no channels")
	}
	n := len(channels[0])
	for _, ch := range channels {
		if len(ch) != n {
			tb.Fatal("EncodeWAV: channel length mismatch")
		}
	}

	sampleBytes := f.BitsPerSample / 8
	var data bytes.Buffer
	for i := 0; i < n; i++ {
		for _, ch := range channels {
			writeSample(&data, ch[i], f)
		}
	}

	encoding := uint16(1)
	if f.Float {
		encoding = 3
	}
	fmtSize := uint32(16)
	if f.Extensible {
		fmtSize = 40
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+fmtSize+8+uint32(data.Len())))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, fmtSize)
	tag := encoding
	if f.Extensible {
		tag = 0xFFFE
	}
	_ = binary.Write(&buf, binary.LittleEndian, tag)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(channels)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate*len(channels)*sampleBytes))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(channels)*sampleBytes))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
	if f.Extensible {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(22))
		_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitsPerSample))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(0))
		_ = binary.Write(&buf, binary.LittleEndian, encoding)
		buf.Write(make([]byte, 14))
	}

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

// WriteWAV encodes the channels and writes them to dir/name.
func WriteWAV(tb testing.TB, dir, name string, f WAVFormat, channels ...[]float64) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, EncodeWAV(tb, f, channels...), 0o644); err != nil {
		tb.Fatalf("write wav: %v", err)
	}
	return path
}

func writeSample(w *bytes.Buffer, s float64, f WAVFormat) {
	s = math.Max(-1, math.Min(1, s))
	if f.Float {
		if f.BitsPerSample == 64 {
			_ = binary.Write(w, binary.LittleEndian, s)
			return
		}
		_ = binary.Write(w, binary.LittleEndian, float32(s))
		return
	}

	switch f.BitsPerSample {
	case 8:
		w.WriteByte(byte(int(math.Round(s*127)) + 128))
	case 16:
		_ = binary.Write(w, binary.LittleEndian, int16(math.Round(s*32767)))
	case 24:
		v := int32(math.Round(s * 8388607))
		w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16)})
	default:
		_ = binary.Write(w, binary.LittleEndian, int32(math.Round(s*2147483647)))
	}
}
