package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"setlist/internal/services"
)

// Sampler yields the windows of one Source in order. It is single use.
type Sampler struct {
	src    Source
	total  time.Duration
	plan   []Window
	cursor int
}

// NewSampler reads the source duration and lays out windows of the given
// length, spaced by step. A zero step means back-to-back windows; a step
// longer than the window would leave gaps and is rejected.
func NewSampler(ctx context.Context, src Source, window, step time.Duration) (*Sampler, error) {
	if src == nil {
		return nil, errors.New("sampler: nil source")
	}
	if window <= 0 {
		return nil, services.Wrap(services.ErrValidation, "sampler", "configure", "window length must be positive", nil)
	}
	if step == 0 {
		step = window
	}
	if step < 0 || step > window {
		return nil, services.Wrap(services.ErrValidation, "sampler", "configure",
			fmt.Sprintf("step %s must be in (0, %s]", step, window), nil)
	}
	total, err := src.Duration(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "sampler", "probe duration", "", err)
	}
	return &Sampler{src: src, total: total, plan: Plan(total, window, step)}, nil
}

// Count returns the total number of windows.
func (s *Sampler) Count() int {
	return len(s.plan)
}

// Total returns the recording length.
func (s *Sampler) Total() time.Duration {
	return s.total
}

// Remaining returns how many windows have not been yielded yet.
func (s *Sampler) Remaining() int {
	return len(s.plan) - s.cursor
}

// Next decodes and returns the next window, or io.EOF when all windows have
// been yielded. A decode failure still advances the sampler: the returned
// window carries its position and the error wraps services.ErrDecode.
func (s *Sampler) Next(ctx context.Context) (Window, error) {
	if s.cursor >= len(s.plan) {
		return Window{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Window{}, err
	}
	w := s.plan[s.cursor]
	s.cursor++

	data, err := s.src.Decode(ctx, w.Start, w.Duration)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return w, ctxErr
		}
		if !errors.Is(err, services.ErrDecode) {
			err = services.Wrap(services.ErrDecode, "sampler", "decode", w.String(), err)
		}
		return w, err
	}
	if len(data) == 0 {
		return w, services.Wrap(services.ErrDecode, "sampler", "decode", w.String()+": no audio", nil)
	}
	w.Data = data
	return w, nil
}

// Skip advances past the next window without decoding it.
func (s *Sampler) Skip() (Window, bool) {
	if s.cursor >= len(s.plan) {
		return Window{}, false
	}
	w := s.plan[s.cursor]
	s.cursor++
	return w, true
}
