package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"setlist/internal/audio"
	"setlist/internal/recognition"
)

// windowProgress renders one mpb bar per recording. It implements
// pipeline.Observer; a disabled instance only counts outcomes.
type windowProgress struct {
	out     io.Writer
	enabled bool

	progress   *mpb.Progress
	bar        *mpb.Bar
	lastTick   time.Time
	identified atomic.Int64
}

func newWindowProgress(out io.Writer, enabled bool) *windowProgress {
	return &windowProgress{out: out, enabled: enabled}
}

func (w *windowProgress) RunStarted(path string, windows, _ int) {
	w.identified.Store(0)
	if !w.enabled || windows == 0 {
		return
	}
	w.progress = mpb.New(mpb.WithOutput(w.out), mpb.WithWidth(48))
	w.bar = w.progress.AddBar(int64(windows),
		mpb.PrependDecorators(
			decor.Name(filepath.Base(path)+" "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Name(" "),
			decor.Any(func(decor.Statistics) string {
				return fmt.Sprintf("%d identified ", w.identified.Load())
			}),
			decor.EwmaETA(decor.ET_STYLE_GO, 30),
		),
	)
	w.lastTick = time.Now()
}

func (w *windowProgress) WindowDone(_ audio.Window, outcome recognition.Outcome, resumed bool) {
	if outcome.IsIdentified() {
		w.identified.Add(1)
	}
	if w.bar == nil {
		return
	}
	if resumed {
		w.bar.Increment()
		return
	}
	now := time.Now()
	w.bar.EwmaIncrement(now.Sub(w.lastTick))
	w.lastTick = now
}

// finish stops the bar, leaving it on screen only when the run completed.
func (w *windowProgress) finish(completed bool) {
	if w.progress == nil {
		return
	}
	if !w.bar.Completed() {
		w.bar.Abort(!completed)
	}
	w.progress.Wait()
	w.progress = nil
	w.bar = nil
}
