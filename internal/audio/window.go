package audio

import (
	"context"
	"fmt"
	"time"
)

// Window is one slice of a recording. Data holds encoded WAV audio and is nil
// for windows that were skipped or failed to decode.
type Window struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
	Data     []byte
}

// End returns the offset just past the window.
func (w Window) End() time.Duration {
	return w.Start + w.Duration
}

func (w Window) String() string {
	return fmt.Sprintf("window %d [%s, %s)", w.Index, w.Start, w.End())
}

// Source decodes ranges of a recording. Decode must accept ranges that extend
// past the end and return whatever audio exists.
type Source interface {
	Duration(ctx context.Context) (time.Duration, error)
	Decode(ctx context.Context, start, length time.Duration) ([]byte, error)
	Close() error
}

// Plan returns the window layout for a recording of the given total length.
// Starts are spaced by step and every start lies inside the recording; the
// final window is truncated at the end.
func Plan(total, window, step time.Duration) []Window {
	if total <= 0 || window <= 0 {
		return nil
	}
	if step <= 0 {
		step = window
	}
	total = total.Truncate(time.Millisecond)
	windows := make([]Window, 0, int(total/step)+1)
	for start, idx := time.Duration(0), 0; start < total; start, idx = start+step, idx+1 {
		length := window
		if start+length > total {
			length = total - start
		}
		windows = append(windows, Window{Index: idx, Start: start, Duration: length})
	}
	return windows
}
