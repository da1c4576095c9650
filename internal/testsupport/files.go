package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WAVOptions describes a generated test recording.
type WAVOptions struct {
	Duration   time.Duration
	SampleRate int
	Channels   int
	// Frequency of the generated sine tone in Hz. Zero writes silence.
	Frequency float64
}

// WriteWAV writes a 16-bit PCM WAV file containing a sine tone.
func WriteWAV(t testing.TB, path string, opts WAVOptions) {
	t.Helper()

	if opts.SampleRate <= 0 {
		opts.SampleRate = 8000
	}
	if opts.Channels <= 0 {
		opts.Channels = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	frames := int(opts.Duration.Seconds() * float64(opts.SampleRate))
	data := make([]int, frames*opts.Channels)
	for i := 0; i < frames; i++ {
		var v int
		if opts.Frequency > 0 {
			v = int(8000 * math.Sin(2*math.Pi*opts.Frequency*float64(i)/float64(opts.SampleRate)))
		}
		for c := 0; c < opts.Channels; c++ {
			data[i*opts.Channels+c] = v
		}
	}

	enc := wav.NewEncoder(f, opts.SampleRate, 16, opts.Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: opts.Channels, SampleRate: opts.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize %s: %v", path, err)
	}
}
