package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	resampling "github.com/tphakala/go-audio-resampling"
)

// DefaultSampleRate is the rate clips are brought to before feature extraction.
const DefaultSampleRate = 22050

// ErrDecoder is returned when the external decoder fails on a file.
var ErrDecoder = errors.New("audio: decoder failed")

// Loader reads uploaded files into mono clips. WAV files are decoded in
// process; other audio containers (m4a, aac, mp3, ogg, caf, ...) are
// converted to float WAV by ffmpeg first.
type Loader struct {
	// FFmpegPath is the ffmpeg binary. Empty disables the fallback, so only
	// WAV is accepted.
	FFmpegPath string

	// DecodeTimeout bounds a single ffmpeg run. Zero means no limit besides ctx.
	DecodeTimeout time.Duration
}

// Load reads the file at path, downmixes it to mono and resamples it to rate.
// The format is taken from the content, not the file name.
func (l *Loader) Load(ctx context.Context, path string, rate int) (Clip, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return Clip{}, fmt.Errorf("failed to detect audio type: %w", err)
	}

	var clip Clip
	switch {
	case mtype.Is("audio/wav"):
		data, err := os.ReadFile(path)
		if err != nil {
			return Clip{}, fmt.Errorf("failed to read audio file: %w", err)
		}
		clip, err = DecodeWAV(data)
		if err != nil {
			return Clip{}, err
		}
	case l.FFmpegPath != "" && isMedia(mtype):
		clip, err = l.transcode(ctx, path)
		if err != nil {
			return Clip{}, err
		}
	default:
		return Clip{}, fmt.Errorf("%w: detected %s", ErrUnsupportedFormat, mtype.String())
	}

	return Resample(clip, rate)
}

// transcode runs ffmpeg over path and decodes its WAV output. Channels and
// sample rate are left as they are so downmixing and resampling happen in
// one place for every format.
func (l *Loader) transcode(ctx context.Context, path string) (Clip, error) {
	if l.DecodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.DecodeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, l.FFmpegPath,
		"-nostdin", "-v", "error",
		"-i", path,
		"-map", "0:a:0", "-vn",
		"-c:a", "pcm_f32le", "-f", "wav", "pipe:1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return Clip{}, fmt.Errorf("%w: ffmpeg: %w, stderr: %s", ErrDecoder, err, strings.TrimSpace(stderr.String()))
	}

	clip, err := DecodeWAV(stdout.Bytes())
	if err != nil {
		return Clip{}, fmt.Errorf("%w: ffmpeg output: %w", ErrDecoder, err)
	}
	return clip, nil
}

// isMedia reports whether m or one of its parents is an audio or video type.
func isMedia(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") || s == "application/ogg" {
			return true
		}
	}
	return false
}

// Resample converts clip to the given sample rate. The result has exactly
// ceil(n * rate / clip.SampleRate) samples. A clip already at that rate is
// returned unchanged.
func Resample(clip Clip, rate int) (Clip, error) {
	if rate <= 0 {
		return Clip{}, fmt.Errorf("invalid target sample rate %d", rate)
	}
	if clip.SampleRate == rate {
		return clip, nil
	}
	if len(clip.Samples) == 0 {
		return Clip{SampleRate: rate}, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(clip.SampleRate),
		OutputRate: float64(rate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return Clip{}, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(clip.Samples)
	if err != nil {
		return Clip{}, fmt.Errorf("resample error: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return Clip{}, fmt.Errorf("resample flush error: %w", err)
	}

	// Trim or zero pad to the expected length.
	want := int(math.Ceil(float64(len(clip.Samples)) * float64(rate) / float64(clip.SampleRate)))
	samples := make([]float64, want)
	n := copy(samples, out)
	copy(samples[n:], tail)

	return Clip{Samples: samples, SampleRate: rate}, nil
}
