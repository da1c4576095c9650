package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"setlist/internal/services"
)

const (
	wavFormatPCM    = 1
	wavChunkFrames  = 8192
	wavHeaderLength = 44
)

// WAVSource decodes PCM WAV files natively. Samples are down-mixed to mono as
// they are read and only the range still needed by upcoming windows is kept in
// memory. Ranges must be requested in non-decreasing start order to avoid
// re-reading the file from the beginning.
type WAVSource struct {
	path string

	file *os.File
	dec  *wav.Decoder

	sampleRate int
	channels   int
	bitDepth   int
	duration   time.Duration

	// buf holds mono samples for frames [bufStart, bufStart+len(buf)).
	buf      []int
	bufStart int64
	eof      bool
	chunk    *goaudio.IntBuffer
}

// OpenWAV opens path and validates its header.
func OpenWAV(path string) (*WAVSource, error) {
	src := &WAVSource{path: path}
	if err := src.open(); err != nil {
		return nil, err
	}
	return src, nil
}

func (s *WAVSource) open() error {
	file, err := os.Open(s.path)
	if err != nil {
		return services.Wrap(services.ErrDecode, "wav", "open", s.path, err)
	}
	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		_ = file.Close()
		return services.Wrap(services.ErrDecode, "wav", "open", "invalid WAV file "+s.path, nil)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		_ = file.Close()
		return services.Wrap(services.ErrDecode, "wav", "open",
			fmt.Sprintf("unsupported WAV encoding %d (PCM only)", dec.WavAudioFormat), nil)
	}
	duration, err := dec.Duration()
	if err != nil {
		_ = file.Close()
		return services.Wrap(services.ErrDecode, "wav", "duration", s.path, err)
	}

	s.file = file
	s.dec = dec
	s.sampleRate = int(dec.SampleRate)
	s.channels = int(dec.NumChans)
	s.bitDepth = int(dec.BitDepth)
	s.duration = duration
	s.buf = s.buf[:0]
	s.bufStart = 0
	s.eof = false
	s.chunk = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: s.channels, SampleRate: s.sampleRate},
		Data:           make([]int, wavChunkFrames*s.channels),
		SourceBitDepth: s.bitDepth,
	}
	return nil
}

// Duration returns the length reported by the WAV header.
func (s *WAVSource) Duration(context.Context) (time.Duration, error) {
	return s.duration, nil
}

// SampleRate returns the source sample rate in Hz.
func (s *WAVSource) SampleRate() int {
	return s.sampleRate
}

// Decode returns a mono WAV encoding of [start, start+length).
func (s *WAVSource) Decode(ctx context.Context, start, length time.Duration) ([]byte, error) {
	if s.dec == nil {
		return nil, services.Wrap(services.ErrDecode, "wav", "decode", "source closed", nil)
	}
	first := s.frameAt(start)
	last := s.frameAt(start + length)
	if last <= first {
		return nil, services.Wrap(services.ErrDecode, "wav", "decode", "empty range", nil)
	}

	if first < s.bufStart {
		// Rewind: reopen and stream forward again.
		_ = s.file.Close()
		if err := s.open(); err != nil {
			return nil, err
		}
	}
	s.discardBefore(first)

	for s.bufStart+int64(len(s.buf)) < last && !s.eof {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.readChunk(); err != nil {
			return nil, services.Wrap(services.ErrDecode, "wav", "read pcm", s.path, err)
		}
		s.discardBefore(first)
	}

	from := first - s.bufStart
	to := min(last-s.bufStart, int64(len(s.buf)))
	if from >= to {
		return nil, services.Wrap(services.ErrDecode, "wav", "decode",
			fmt.Sprintf("no samples at %s", start), nil)
	}
	return encodeMonoWAV(s.buf[from:to], s.sampleRate, s.bitDepth)
}

// Close releases the file handle.
func (s *WAVSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.dec = nil
	return err
}

func (s *WAVSource) frameAt(offset time.Duration) int64 {
	if offset <= 0 {
		return 0
	}
	rate := int64(s.sampleRate)
	whole := int64(offset / time.Second)
	frac := int64(offset % time.Second)
	return whole*rate + frac*rate/int64(time.Second)
}

func (s *WAVSource) readChunk() error {
	n, err := s.dec.PCMBuffer(s.chunk)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n == 0 {
		s.eof = true
		return nil
	}
	frames := n / s.channels
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < s.channels; ch++ {
			sum += s.chunk.Data[i*s.channels+ch]
		}
		s.buf = append(s.buf, sum/s.channels)
	}
	return nil
}

// discardBefore drops buffered frames that precede frame.
func (s *WAVSource) discardBefore(frame int64) {
	drop := frame - s.bufStart
	if drop <= 0 {
		return
	}
	if drop >= int64(len(s.buf)) {
		s.bufStart += int64(len(s.buf))
		s.buf = s.buf[:0]
		return
	}
	n := copy(s.buf, s.buf[drop:])
	s.buf = s.buf[:n]
	s.bufStart = frame
}

func encodeMonoWAV(samples []int, sampleRate, bitDepth int) ([]byte, error) {
	out := &memWriteSeeker{buf: make([]byte, 0, wavHeaderLength+len(samples)*bitDepth/8)}
	enc := wav.NewEncoder(out, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.buf, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the WAV encoder needs to
// patch header sizes after writing samples.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if end := m.pos + len(p); end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, len(m.buf), max(end, 2*cap(m.buf)))
			copy(grown, m.buf)
			m.buf = grown
		}
		m.buf = m.buf[:end]
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("memWriteSeeker: invalid whence")
	}
	if next < 0 {
		return 0, errors.New("memWriteSeeker: negative position")
	}
	m.pos = int(next)
	return next, nil
}
