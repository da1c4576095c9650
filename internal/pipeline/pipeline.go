package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"setlist/internal/audio"
	"setlist/internal/checkpoint"
	"setlist/internal/config"
	"setlist/internal/corrections"
	"setlist/internal/dedup"
	"setlist/internal/logging"
	"setlist/internal/recognition"
	"setlist/internal/retry"
	"setlist/internal/services"
	"setlist/internal/tracklist"
)

// Store is the checkpoint surface a run needs.
type Store interface {
	Load(ctx context.Context, identity checkpoint.SourceIdentity) (*checkpoint.ProgressRecord, error)
	Append(ctx context.Context, identity checkpoint.SourceIdentity, runID string, window checkpoint.WindowRecord) error
	Clear(ctx context.Context, path string) error
	Flush(ctx context.Context) error
	Lock(identity checkpoint.SourceIdentity) (*checkpoint.Lock, error)
}

// SourceOpener opens a recording for sampling.
type SourceOpener func(path string) (audio.Source, error)

// Observer receives progress events. Calls happen on the run goroutine.
type Observer interface {
	// RunStarted is called once the window layout is known.
	RunStarted(path string, windows, resumed int)
	// WindowDone is called for every window, including resumed ones.
	WindowDone(window audio.Window, outcome recognition.Outcome, resumed bool)
}

// Job names one recording to identify.
type Job struct {
	Path string
	// Fresh discards any saved progress instead of resuming it.
	Fresh bool
	// Output persists the finished tracklist. Saved progress is cleared only
	// after it returns nil, so a failed write can be retried without
	// querying the recognition service again.
	Output func(tracklist.Tracklist) error
}

// Result describes how a run ended.
type Result struct {
	Status    services.RunStatus
	Tracklist tracklist.Tracklist
	RunID     string
	Identity  checkpoint.SourceIdentity
	// Windows is the number of windows in the recording.
	Windows int
	// Resumed counts windows taken from saved progress.
	Resumed int
	// Queried counts windows sent to the recognition service in this run.
	Queried int
	// Failed counts windows recorded as unidentified because of an error.
	Failed int
	Err    error
}

// Options wires a Controller.
type Options struct {
	Store       Store
	Adapter     recognition.Adapter
	Retry       *retry.Controller
	Corrections corrections.Lookup
	Open        SourceOpener
	Window      time.Duration
	Step        time.Duration
	Logger      *slog.Logger
	Observer    Observer
}

// Controller runs jobs one after another. It is not safe for concurrent use;
// its retry controller carries pacing state from one job to the next.
type Controller struct {
	store       Store
	adapter     recognition.Adapter
	retry       *retry.Controller
	corrections corrections.Lookup
	open        SourceOpener
	window      time.Duration
	step        time.Duration
	logger      *slog.Logger
	observer    Observer
	progress    *logging.ProgressSampler
	now         func() time.Time
	newRunID    func() string
}

// New validates opts and builds a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: checkpoint store is required")
	}
	if opts.Adapter == nil {
		return nil, errors.New("pipeline: recognition adapter is required")
	}
	if opts.Window <= 0 {
		return nil, services.Wrap(services.ErrValidation, "pipeline", "configure", "window length must be positive", nil)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(retry.DefaultPolicy(), retry.WithLogger(opts.Logger))
	}
	if opts.Corrections == nil {
		opts.Corrections = corrections.Nop{}
	}
	if opts.Open == nil {
		opts.Open = func(path string) (audio.Source, error) {
			return audio.Open(path, audio.FFmpegOptions{})
		}
	}
	return &Controller{
		store:       opts.Store,
		adapter:     opts.Adapter,
		retry:       opts.Retry,
		corrections: opts.Corrections,
		open:        opts.Open,
		window:      opts.Window,
		step:        opts.Step,
		logger:      logging.NewComponentLogger(opts.Logger, "pipeline"),
		observer:    opts.Observer,
		progress:    logging.NewProgressSampler(0),
		now:         time.Now,
		newRunID:    func() string { return uuid.NewString() },
	}, nil
}

// NewFromConfig builds a Controller with the configured window layout,
// pacing policy and audio decoders.
func NewFromConfig(cfg *config.Config, store Store, adapter recognition.Adapter, lookup corrections.Lookup, logger *slog.Logger, observer Observer) (*Controller, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	ffmpegOpts := audio.FFmpegOptions{
		FFmpegBinary:  cfg.FFmpegBinary(),
		FFprobeBinary: cfg.FFprobeBinary(),
		SampleRate:    cfg.Sampling.SampleRate,
	}
	return New(Options{
		Store:       store,
		Adapter:     adapter,
		Retry:       retry.New(retry.PolicyFromConfig(cfg), retry.WithLogger(logging.NewComponentLogger(logger, "retry"))),
		Corrections: lookup,
		Open: func(path string) (audio.Source, error) {
			return audio.Open(path, ffmpegOpts)
		},
		Window:   cfg.WindowLength(),
		Step:     cfg.WindowStep(),
		Logger:   logger,
		Observer: observer,
	})
}

// Run identifies one recording. The returned error is nil only for a
// completed run and always equals Result.Err.
func (c *Controller) Run(ctx context.Context, job Job) (Result, error) {
	res := Result{RunID: c.newRunID()}
	ctx = services.WithRunID(ctx, res.RunID)

	identity, err := checkpoint.IdentityOf(job.Path)
	if err != nil {
		return c.abort(res, services.Wrap(services.ErrValidation, "pipeline", "identify source", job.Path, err))
	}
	res.Identity = identity
	ctx = services.WithSource(ctx, identity.Path)
	logger := logging.WithContext(ctx, c.logger)

	lock, err := c.store.Lock(identity)
	if err != nil {
		return c.abort(res, err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Debug("release source lock", logging.Error(err))
		}
	}()

	record, err := c.loadProgress(ctx, identity, job.Fresh)
	if err != nil {
		return c.abort(res, err)
	}

	src, err := c.open(identity.Path)
	if err != nil {
		return c.abort(res, services.Wrap(services.ErrDecode, "pipeline", "open source", identity.Path, err))
	}
	defer src.Close()

	sampler, err := audio.NewSampler(ctx, src, c.window, c.step)
	if err != nil {
		return c.abort(res, err)
	}
	res.Windows = sampler.Count()
	completed := record.Completed()

	logger.Info("identification started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("windows", res.Windows),
		logging.Int("resumed_windows", len(completed)),
		logging.Duration("duration", sampler.Total()),
		logging.Duration("window_length", c.window))
	if c.observer != nil {
		c.observer.RunStarted(identity.Path, res.Windows, len(completed))
	}

	entries := make([]dedup.Entry, 0, res.Windows)
	for sampler.Remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return c.interrupt(ctx, res, err, logger)
		}

		index := sampler.Count() - sampler.Remaining()
		if saved, ok := completed[index]; ok {
			w, _ := sampler.Skip()
			if saved.Start != w.Start || saved.Duration != w.Duration {
				return c.abort(res, services.Wrap(services.ErrSourceIdentityMismatch, "pipeline", "resume",
					fmt.Sprintf("saved %s does not match current window layout; start fresh to re-sample", w), nil))
			}
			res.Resumed++
			entries = append(entries, dedup.Entry{Start: w.Start, Outcome: saved.Outcome})
			c.report(w, saved.Outcome, true)
			continue
		}

		outcome, done, err := c.processWindow(ctx, sampler, &res)
		if err != nil {
			if !done {
				return c.interrupt(ctx, res, err, logger)
			}
			return c.abort(res, err)
		}
		entries = append(entries, outcome)
		if c.progress.ShouldLog(identity.Path, len(entries), res.Windows) {
			logger.Info("identification progress",
				logging.Int("windows_done", len(entries)),
				logging.Int("windows_total", res.Windows))
		}
	}

	return c.finish(ctx, res, entries, sampler.Total(), job.Output, logger)
}

// processWindow decodes, recognizes and records the next window. done is
// false when the run was cancelled before the window produced a result.
func (c *Controller) processWindow(ctx context.Context, sampler *audio.Sampler, res *Result) (dedup.Entry, bool, error) {
	w, err := sampler.Next(ctx)
	if err != nil && ctx.Err() != nil {
		return dedup.Entry{}, false, ctx.Err()
	}
	wctx := services.WithWindow(ctx, w.Index)
	logger := logging.WithContext(wctx, c.logger)

	var outcome recognition.Outcome
	switch {
	case err != nil && !services.IsWindowLocal(err):
		return dedup.Entry{}, true, err
	case err != nil:
		res.Failed++
		logging.WarnWithContext(logger, "window decode failed", "decode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the recording for corruption"),
			logging.String(logging.FieldImpact, "window recorded as unidentified"))
		outcome = recognition.NoMatch("decode failed: " + err.Error())
	default:
		result := c.retry.Do(wctx, w, c.adapter)
		w.Data = nil
		if result.Cancelled() {
			return dedup.Entry{}, false, result.Err
		}
		res.Queried++
		if result.State == retry.StateFailed {
			if !services.IsWindowLocal(result.Err) {
				return dedup.Entry{}, true, result.Err
			}
			res.Failed++
		}
		outcome = corrections.Apply(c.corrections, result.Recorded())
	}

	// The window is finished; record it even if cancellation arrived
	// during the call.
	record := checkpoint.WindowRecord{Index: w.Index, Start: w.Start, Duration: w.Duration, Outcome: outcome}
	if err := c.store.Append(context.WithoutCancel(wctx), res.Identity, res.RunID, record); err != nil {
		return dedup.Entry{}, true, err
	}
	logger.Debug("window recorded",
		logging.String("outcome", outcome.String()),
		logging.Duration("start", w.Start))
	c.report(w, outcome, false)
	return dedup.Entry{Start: w.Start, Outcome: outcome}, true, nil
}

func (c *Controller) loadProgress(ctx context.Context, identity checkpoint.SourceIdentity, fresh bool) (*checkpoint.ProgressRecord, error) {
	if fresh {
		if err := c.store.Clear(ctx, identity.Path); err != nil {
			return nil, err
		}
		return nil, nil
	}
	record, err := c.store.Load(ctx, identity)
	if err != nil {
		if errors.Is(err, services.ErrSourceIdentityMismatch) {
			return nil, fmt.Errorf("%w (run again without resuming to start over)", err)
		}
		return nil, err
	}
	return record, nil
}

func (c *Controller) finish(ctx context.Context, res Result, entries []dedup.Entry, total time.Duration, output func(tracklist.Tracklist) error, logger *slog.Logger) (Result, error) {
	// Rules learned since the windows were checkpointed apply on replay.
	for i := range entries {
		entries[i].Outcome = corrections.Apply(c.corrections, entries[i].Outcome)
	}
	tl := tracklist.Tracklist{
		SourceFile:  filepath.Base(res.Identity.Path),
		GeneratedOn: c.now().Format(tracklist.GeneratedLayout),
		Duration:    total,
		Tracks:      dedup.Build(entries),
	}
	if err := tracklist.ValidateTimeline(tl); err != nil {
		return c.abort(res, err)
	}
	res.Tracklist = tl

	if output != nil {
		if err := output(tl); err != nil {
			logging.WarnWithContext(logger, "tracklist not written", "output_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the output directory, then run the same command again"),
				logging.String(logging.FieldImpact, "saved progress kept; the rerun makes no recognition calls"))
			return c.abort(res, services.Wrap(services.ErrOutput, "pipeline", "write tracklist", "", err))
		}
	}

	if err := c.store.Clear(context.WithoutCancel(ctx), res.Identity.Path); err != nil {
		return c.abort(res, err)
	}
	res.Status = services.RunCompleted
	logger.Info("identification completed",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.Int("tracks", len(tl.Tracks)),
		logging.Int("identified", tl.Identified()),
		logging.Int("queried_windows", res.Queried),
		logging.Int("resumed_windows", res.Resumed),
		logging.Int("failed_windows", res.Failed))
	return res, nil
}

func (c *Controller) interrupt(ctx context.Context, res Result, cause error, logger *slog.Logger) (Result, error) {
	if err := c.store.Flush(context.WithoutCancel(ctx)); err != nil {
		logging.WarnWithContext(logger, "checkpoint flush failed", "checkpoint_flush_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "progress is still recorded in the write-ahead log"))
	}
	res.Status = services.RunInterrupted
	res.Err = cause
	logger.Info("identification interrupted",
		logging.String(logging.FieldEventType, "run_interrupted"),
		logging.Int("queried_windows", res.Queried),
		logging.Int("resumed_windows", res.Resumed))
	return res, cause
}

func (c *Controller) abort(res Result, err error) (Result, error) {
	res.Status = services.RunStatusFor(err)
	res.Err = err
	if res.Status == services.RunCompleted {
		res.Status = services.RunFatalAbort
	}
	return res, err
}

func (c *Controller) report(w audio.Window, outcome recognition.Outcome, resumed bool) {
	if c.observer != nil {
		c.observer.WindowDone(w, outcome, resumed)
	}
}
