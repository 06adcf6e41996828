package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnsupportedFormat is returned for content that is not a decodable WAV file.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

const (
	formatPCM        = 0x0001
	formatFloat      = 0x0003
	formatExtensible = 0xFFFE
)

// Clip is mono audio normalised to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the playing time of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.SampleRate) * float64(time.Second))
}

type wavFormat struct {
	encoding      uint16
	channels      int
	sampleRate    int
	bitsPerSample int
}

func (f wavFormat) frameBytes() int {
	return f.channels * f.bitsPerSample / 8
}

// DecodeWAV parses a RIFF/WAVE file and returns its samples downmixed to mono
// at the file's native sample rate.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedFormat)
	}

	var (
		format  *wavFormat
		payload []byte
		hasData bool
	)

	off := 12
	for off+8 <= len(data) && (format == nil || !hasData) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		off += 8

		end := off + size
		// Streaming writers leave the data size unset; take what is there.
		if size < 0 || end > len(data) || end < off {
			end = len(data)
		}
		body := data[off:end]

		switch id {
		case "fmt ":
			f, err := parseFormat(body)
			if err != nil {
				return Clip{}, err
			}
			format = &f
		case "data":
			payload = body
			hasData = true
		}

		off = end
		if size%2 == 1 {
			off++
		}
	}

	if format == nil {
		return Clip{}, fmt.Errorf("%w: missing fmt chunk", ErrUnsupportedFormat)
	}
	if !hasData {
		return Clip{}, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
	}

	return Clip{
		Samples:    downmix(payload, *format),
		SampleRate: format.sampleRate,
	}, nil
}

func parseFormat(b []byte) (wavFormat, error) {
	if len(b) < 16 {
		return wavFormat{}, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrUnsupportedFormat, len(b))
	}

	f := wavFormat{
		encoding:      binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}
	if f.encoding == formatExtensible {
		if len(b) < 26 {
			return wavFormat{}, fmt.Errorf("%w: extensible fmt chunk too short", ErrUnsupportedFormat)
		}
		f.encoding = binary.LittleEndian.Uint16(b[24:26])
	}

	if f.channels <= 0 {
		return wavFormat{}, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, f.channels)
	}
	if f.sampleRate <= 0 {
		return wavFormat{}, fmt.Errorf("%w: sample rate %d", ErrUnsupportedFormat, f.sampleRate)
	}

	switch {
	case f.encoding == formatPCM && (f.bitsPerSample == 8 || f.bitsPerSample == 16 || f.bitsPerSample == 24 || f.bitsPerSample == 32):
	case f.encoding == formatFloat && (f.bitsPerSample == 32 || f.bitsPerSample == 64):
	default:
		return wavFormat{}, fmt.Errorf("%w: encoding 0x%04x with %d bits per sample",
			ErrUnsupportedFormat, f.encoding, f.bitsPerSample)
	}
	return f, nil
}

// downmix converts interleaved frames to mono by averaging the channels.
// A trailing partial frame is dropped.
func downmix(b []byte, f wavFormat) []float64 {
	frameBytes := f.frameBytes()
	sampleBytes := f.bitsPerSample / 8
	numFrames := len(b) / frameBytes

	out := make([]float64, numFrames)
	for i := 0; i < numFrames; i++ {
		frame := b[i*frameBytes : (i+1)*frameBytes]
		sum := 0.0
		for ch := 0; ch < f.channels; ch++ {
			sum += decodeSample(frame[ch*sampleBytes:(ch+1)*sampleBytes], f)
		}
		out[i] = sum / float64(f.channels)
	}
	return out
}

func decodeSample(b []byte, f wavFormat) float64 {
	if f.encoding == formatFloat {
		if f.bitsPerSample == 32 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}

	switch f.bitsPerSample {
	case 8:
		// 8-bit PCM is unsigned with a midpoint of 128.
		return (float64(b[0]) - 128) / 128
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 24:
		v := int32(uint32(b[0])|uint32(b[1])<<8|uint32(b[2])<<16) << 8 >> 8
		return float64(v) / 8388608
	default:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}
