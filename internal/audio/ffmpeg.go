package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"setlist/internal/media/ffprobe"
	"setlist/internal/services"
)

// FFmpegSource extracts windows from any container ffmpeg can read. Each
// Decode runs one ffmpeg process that seeks to the window start and writes a
// mono WAV to stdout.
type FFmpegSource struct {
	path       string
	ffmpeg     string
	ffprobe    string
	sampleRate int

	duration time.Duration
	probed   bool
}

// FFmpegOptions names the binaries and output rate used by FFmpegSource.
type FFmpegOptions struct {
	FFmpegBinary  string
	FFprobeBinary string
	SampleRate    int
}

// NewFFmpegSource prepares a source for path. No process runs until Duration
// or Decode is called.
func NewFFmpegSource(path string, opts FFmpegOptions) *FFmpegSource {
	src := &FFmpegSource{
		path:       path,
		ffmpeg:     strings.TrimSpace(opts.FFmpegBinary),
		ffprobe:    strings.TrimSpace(opts.FFprobeBinary),
		sampleRate: opts.SampleRate,
	}
	if src.ffmpeg == "" {
		src.ffmpeg = "ffmpeg"
	}
	if src.ffprobe == "" {
		src.ffprobe = "ffprobe"
	}
	if src.sampleRate <= 0 {
		src.sampleRate = 44100
	}
	return src
}

// Duration probes the container duration once.
func (s *FFmpegSource) Duration(ctx context.Context) (time.Duration, error) {
	if s.probed {
		return s.duration, nil
	}
	result, err := ffprobe.Inspect(ctx, s.ffprobe, s.path)
	if err != nil {
		return 0, services.Wrap(services.ErrDecode, "ffmpeg", "probe", s.path, err)
	}
	if result.AudioStreamCount() == 0 {
		return 0, services.Wrap(services.ErrDecode, "ffmpeg", "probe", "no audio stream in "+s.path, nil)
	}
	seconds := result.DurationSeconds()
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0, services.Wrap(services.ErrDecode, "ffmpeg", "probe", "unknown duration for "+s.path, nil)
	}
	s.duration = time.Duration(seconds * float64(time.Second)).Truncate(time.Millisecond)
	s.probed = true
	return s.duration, nil
}

// Decode extracts [start, start+length) as mono PCM WAV.
func (s *FFmpegSource) Decode(ctx context.Context, start, length time.Duration) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.ffmpeg, s.args(start, length)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrDecode, "ffmpeg", "extract",
			strings.TrimSpace(stderr.String()), err)
	}
	if stdout.Len() <= wavHeaderLength {
		return nil, services.Wrap(services.ErrDecode, "ffmpeg", "extract",
			fmt.Sprintf("no audio decoded at %s", start), nil)
	}
	return stdout.Bytes(), nil
}

// Close is a no-op; every Decode owns its process.
func (s *FFmpegSource) Close() error {
	return nil
}

func (s *FFmpegSource) args(start, length time.Duration) []string {
	return []string{
		"-v", "error",
		"-nostdin",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(length),
		"-i", s.path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(s.sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-",
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
