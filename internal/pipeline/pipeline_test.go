package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"setlist/internal/audio"
	"setlist/internal/checkpoint"
	"setlist/internal/corrections"
	"setlist/internal/pipeline"
	"setlist/internal/recognition"
	"setlist/internal/retry"
	"setlist/internal/services"
	"setlist/internal/testsupport"
	"setlist/internal/tracklist"
)

const window = 30 * time.Second

type fakeSource struct {
	total  time.Duration
	failAt map[time.Duration]bool
}

func (f *fakeSource) Duration(context.Context) (time.Duration, error) { return f.total, nil }

func (f *fakeSource) Decode(_ context.Context, start, _ time.Duration) ([]byte, error) {
	if f.failAt[start] {
		return nil, errors.New("bad frame")
	}
	return []byte("RIFF"), nil
}

func (f *fakeSource) Close() error { return nil }

// scriptAdapter names window i after titles[i]; "" means no match.
type scriptAdapter struct {
	titles []string
	calls  []int
	// onCall runs before the outcome is returned.
	onCall func(index int)
	fatal  map[int]bool
}

func (a *scriptAdapter) Identify(_ context.Context, w audio.Window) recognition.Outcome {
	a.calls = append(a.calls, w.Index)
	if a.onCall != nil {
		a.onCall(w.Index)
	}
	if a.fatal[w.Index] {
		return recognition.Fatal("request rejected")
	}
	title := a.titles[w.Index]
	if title == "" {
		return recognition.NoMatch("no result")
	}
	return recognition.Identified(recognition.Match{Artist: "Artist " + title, Title: title})
}

type harness struct {
	t     *testing.T
	store *checkpoint.Store
	path  string
	src   *fakeSource
}

func newHarness(t *testing.T, windows int) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "set.mp3")
	testsupport.WriteFile(t, path, 1024)
	return &harness{
		t:     t,
		store: testsupport.MustOpenStore(t, cfg),
		path:  path,
		src:   &fakeSource{total: time.Duration(windows) * window},
	}
}

func (h *harness) controller(adapter recognition.Adapter, lookup corrections.Lookup, store pipeline.Store) *pipeline.Controller {
	h.t.Helper()
	if store == nil {
		store = h.store
	}
	ctrl, err := pipeline.New(pipeline.Options{
		Store:       store,
		Adapter:     adapter,
		Retry:       retry.New(retry.Policy{MaxAttempts: 3}),
		Corrections: lookup,
		Open:        func(string) (audio.Source, error) { return h.src, nil },
		Window:      window,
	})
	if err != nil {
		h.t.Fatalf("pipeline.New: %v", err)
	}
	return ctrl
}

type trackSummary struct {
	Title string
	At    time.Duration
}

func summarize(tracks []tracklist.Track) []trackSummary {
	out := make([]trackSummary, len(tracks))
	for i, track := range tracks {
		out[i] = trackSummary{Title: track.Title, At: track.Timestamp}
	}
	return out
}

func TestRunCompletesAndClearsProgress(t *testing.T) {
	h := newHarness(t, 6)
	adapter := &scriptAdapter{titles: []string{"X", "X", "X", "Y", "Y", "Y"}}

	res, err := h.controller(adapter, nil, nil).Run(context.Background(), pipeline.Job{Path: h.path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != services.RunCompleted || res.Queried != 6 || res.Windows != 6 {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []trackSummary{{"X", 0}, {"Y", 90 * time.Second}}
	if got := summarize(res.Tracklist.Tracks); !slices.Equal(got, want) {
		t.Fatalf("tracks = %+v, want %+v", got, want)
	}
	if res.Tracklist.SourceFile != "set.mp3" || res.Tracklist.Duration != 180*time.Second {
		t.Fatalf("unexpected tracklist header %+v", res.Tracklist)
	}
	record, err := h.store.Load(context.Background(), res.Identity)
	if err != nil || record != nil {
		t.Fatalf("progress should be cleared, got %+v %v", record, err)
	}
}

func TestResumeSkipsCompletedWindows(t *testing.T) {
	titles := []string{"X", "X", "", "Y", "Y", "Z"}

	reference := newHarness(t, len(titles))
	full, err := reference.controller(&scriptAdapter{titles: titles}, nil, nil).
		Run(context.Background(), pipeline.Job{Path: reference.path})
	if err != nil {
		t.Fatalf("reference run: %v", err)
	}

	h := newHarness(t, len(titles))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := &scriptAdapter{titles: titles, onCall: func(index int) {
		if index == 2 {
			cancel()
		}
	}}
	res, err := h.controller(first, nil, nil).Run(ctx, pipeline.Job{Path: h.path})
	if !errors.Is(err, context.Canceled) || res.Status != services.RunInterrupted {
		t.Fatalf("expected interruption, got %s %v", res.Status, err)
	}
	record, err := h.store.Load(context.Background(), res.Identity)
	if err != nil || record == nil || len(record.Windows) != 3 {
		t.Fatalf("expected 3 durable windows, got %+v %v", record, err)
	}

	second := &scriptAdapter{titles: titles}
	resumed, err := h.controller(second, nil, nil).Run(context.Background(), pipeline.Job{Path: h.path})
	if err != nil {
		t.Fatalf("resumed run: %v", err)
	}
	if !slices.Equal(second.calls, []int{3, 4, 5}) {
		t.Fatalf("resumed run queried %v", second.calls)
	}
	if resumed.Resumed != 3 || resumed.Queried != 3 {
		t.Fatalf("unexpected counters %+v", resumed)
	}
	if got, want := summarize(resumed.Tracklist.Tracks), summarize(full.Tracklist.Tracks); !slices.Equal(got, want) {
		t.Fatalf("resumed tracks %+v differ from uninterrupted %+v", got, want)
	}
}

func TestDecodeErrorDegradesOnlyItsWindow(t *testing.T) {
	h := newHarness(t, 4)
	h.src.failAt = map[time.Duration]bool{window: true}
	adapter := &scriptAdapter{titles: []string{"X", "X", "X", "X"}}

	res, err := h.controller(adapter, nil, nil).Run(context.Background(), pipeline.Job{Path: h.path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if slices.Contains(adapter.calls, 1) {
		t.Fatal("adapter called for undecodable window")
	}
	if res.Failed != 1 || res.Queried != 3 {
		t.Fatalf("unexpected counters %+v", res)
	}
	if got := summarize(res.Tracklist.Tracks); !slices.Equal(got, []trackSummary{{"X", 0}}) {
		t.Fatalf("unexpected tracks %+v", got)
	}
}

func TestFatalRecognitionRecordedAsNoMatch(t *testing.T) {
	h := newHarness(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter := &scriptAdapter{
		titles: []string{"X", "X", "X"},
		fatal:  map[int]bool{0: true},
		onCall: func(int) { cancel() },
	}
	res, _ := h.controller(adapter, nil, nil).Run(ctx, pipeline.Job{Path: h.path})
	if res.Failed != 1 {
		t.Fatalf("expected one failed window, got %+v", res)
	}
	record, err := h.store.Load(context.Background(), res.Identity)
	if err != nil || record == nil || len(record.Windows) != 1 {
		t.Fatalf("unexpected record %+v %v", record, err)
	}
	if got := record.Windows[0].Outcome; got.Kind != recognition.KindNoMatch || got.Reason != "request rejected" {
		t.Fatalf("expected recorded no-match, got %+v", got)
	}
}

type failingStore struct {
	*checkpoint.Store
	failAt int
}

func (f *failingStore) Append(ctx context.Context, id checkpoint.SourceIdentity, runID string, w checkpoint.WindowRecord) error {
	if w.Index == f.failAt {
		return services.Wrap(services.ErrCheckpointIO, "test", "append", "disk full", nil)
	}
	return f.Store.Append(ctx, id, runID, w)
}

func TestCheckpointFailureAborts(t *testing.T) {
	h := newHarness(t, 5)
	adapter := &scriptAdapter{titles: []string{"A", "A", "B", "B", "B"}}
	store := &failingStore{Store: h.store, failAt: 2}

	res, err := h.controller(adapter, nil, store).Run(context.Background(), pipeline.Job{Path: h.path})
	if !errors.Is(err, services.ErrCheckpointIO) || res.Status != services.RunFatalAbort {
		t.Fatalf("expected fatal abort, got %s %v", res.Status, err)
	}
	if len(adapter.calls) != 3 {
		t.Fatalf("run continued after checkpoint failure: %v", adapter.calls)
	}
	record, err := h.store.Load(context.Background(), res.Identity)
	if err != nil || record == nil || len(record.Windows) != 2 {
		t.Fatalf("earlier windows must stay durable, got %+v %v", record, err)
	}
}

func TestConcurrentRunFailsFast(t *testing.T) {
	h := newHarness(t, 2)
	lock, err := h.store.Lock(testsupport.Identity(t, h.path))
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer lock.Release()

	adapter := &scriptAdapter{titles: []string{"A", "A"}}
	res, err := h.controller(adapter, nil, nil).Run(context.Background(), pipeline.Job{Path: h.path})
	if !errors.Is(err, services.ErrSourceBusy) || res.Status != services.RunFatalAbort {
		t.Fatalf("expected busy source, got %s %v", res.Status, err)
	}
	if len(adapter.calls) != 0 {
		t.Fatal("busy run must not query")
	}
}

func TestIdentityMismatchRefusesResume(t *testing.T) {
	h := newHarness(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &scriptAdapter{titles: []string{"A", "A", "A"}, onCall: func(int) { cancel() }}
	if _, err := h.controller(adapter, nil, nil).Run(ctx, pipeline.Job{Path: h.path}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interruption, got %v", err)
	}

	testsupport.WriteFile(t, h.path, 4096)

	res, err := h.controller(&scriptAdapter{titles: []string{"A", "A", "A"}}, nil, nil).
		Run(context.Background(), pipeline.Job{Path: h.path})
	if !errors.Is(err, services.ErrSourceIdentityMismatch) || res.Status != services.RunFatalAbort {
		t.Fatalf("expected identity mismatch, got %s %v", res.Status, err)
	}

	fresh := &scriptAdapter{titles: []string{"A", "A", "A"}}
	res, err = h.controller(fresh, nil, nil).Run(context.Background(), pipeline.Job{Path: h.path, Fresh: true})
	if err != nil || res.Status != services.RunCompleted {
		t.Fatalf("fresh run should complete, got %s %v", res.Status, err)
	}
	if len(fresh.calls) != 3 {
		t.Fatalf("fresh run must query every window, got %v", fresh.calls)
	}
}

func TestCorrectionsAppliedBeforeCheckpoint(t *testing.T) {
	h := newHarness(t, 3)
	rules := corrections.NewStore(filepath.Join(t.TempDir(), "corrections.json"), nil)
	if _, err := rules.Add("DJ Unkown", "Trak", "DJ Unknown", "Track"); err != nil {
		t.Fatal(err)
	}
	adapter := recognition.AdapterFunc(func(context.Context, audio.Window) recognition.Outcome {
		return recognition.Identified(recognition.Match{Artist: "DJ Unkown", Title: "Trak"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	counting := recognition.AdapterFunc(func(c context.Context, w audio.Window) recognition.Outcome {
		calls++
		if calls == 2 {
			cancel()
		}
		return adapter(c, w)
	})
	res, _ := h.controller(counting, rules, nil).Run(ctx, pipeline.Job{Path: h.path})

	record, err := h.store.Load(context.Background(), res.Identity)
	if err != nil || record == nil {
		t.Fatalf("Load: %+v %v", record, err)
	}
	for _, w := range record.Windows {
		m := w.Outcome.Match
		if m.Artist != "DJ Unknown" || m.Title != "Track" || m.OriginalArtist != "DJ Unkown" {
			t.Fatalf("window %d checkpointed uncorrected: %+v", w.Index, m)
		}
	}

	final, err := h.controller(adapter, rules, nil).Run(context.Background(), pipeline.Job{Path: h.path})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if len(final.Tracklist.Tracks) != 1 || final.Tracklist.Tracks[0].Artist != "DJ Unknown" {
		t.Fatalf("unexpected tracks %+v", final.Tracklist.Tracks)
	}
}

func TestChangedWindowLayoutRefusesResume(t *testing.T) {
	h := newHarness(t, 4)
	ctx, cancel := context.WithCancel(context.Background())
	adapter := &scriptAdapter{titles: []string{"A", "A", "A", "A"}, onCall: func(int) { cancel() }}
	if _, err := h.controller(adapter, nil, nil).Run(ctx, pipeline.Job{Path: h.path}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected interruption, got %v", err)
	}

	ctrl, err := pipeline.New(pipeline.Options{
		Store:   h.store,
		Adapter: adapter,
		Open:    func(string) (audio.Source, error) { return h.src, nil },
		Window:  20 * time.Second,
		Retry:   retry.New(retry.Policy{MaxAttempts: 1}),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = ctrl.Run(context.Background(), pipeline.Job{Path: h.path})
	if !errors.Is(err, services.ErrSourceIdentityMismatch) {
		t.Fatalf("expected layout mismatch, got %v", err)
	}
}

type recordingObserver struct {
	started bool
	events  []string
}

func (o *recordingObserver) RunStarted(string, int, int) { o.started = true }

func (o *recordingObserver) WindowDone(w audio.Window, outcome recognition.Outcome, resumed bool) {
	o.events = append(o.events, fmt.Sprintf("%d:%s:%v", w.Index, outcome.Kind, resumed))
}

func TestObserverSeesEveryWindow(t *testing.T) {
	h := newHarness(t, 2)
	obs := &recordingObserver{}
	ctrl, err := pipeline.New(pipeline.Options{
		Store:    h.store,
		Adapter:  &scriptAdapter{titles: []string{"A", ""}},
		Open:     func(string) (audio.Source, error) { return h.src, nil },
		Window:   window,
		Retry:    retry.New(retry.Policy{MaxAttempts: 1}),
		Observer: obs,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.Run(context.Background(), pipeline.Job{Path: h.path}); err != nil {
		t.Fatal(err)
	}
	want := []string{"0:identified:false", "1:no_match:false"}
	if !obs.started || !slices.Equal(obs.events, want) {
		t.Fatalf("observer events %v", obs.events)
	}
}

func TestOutputFailureKeepsProgress(t *testing.T) {
	h := newHarness(t, 4)
	first := &scriptAdapter{titles: []string{"X", "X", "Y", "Y"}}
	writeErr := errors.New("disk full")

	var sawProgress bool
	job := pipeline.Job{Path: h.path, Output: func(tl tracklist.Tracklist) error {
		record, err := h.store.Load(context.Background(), testsupport.Identity(t, h.path))
		sawProgress = err == nil && record != nil && len(record.Windows) == 4
		return writeErr
	}}
	res, err := h.controller(first, nil, nil).Run(context.Background(), job)
	if !errors.Is(err, services.ErrOutput) || !errors.Is(err, writeErr) || res.Status != services.RunFatalAbort {
		t.Fatalf("expected output failure, got %s %v", res.Status, err)
	}
	if !sawProgress {
		t.Fatal("progress must still be saved when the tracklist is handed out")
	}
	record, err := h.store.Load(context.Background(), res.Identity)
	if err != nil || record == nil || len(record.Windows) != 4 {
		t.Fatalf("expected all windows kept after failed write, got %+v %v", record, err)
	}

	second := &scriptAdapter{titles: []string{"X", "X", "Y", "Y"}}
	var written tracklist.Tracklist
	job.Output = func(tl tracklist.Tracklist) error {
		written = tl
		return nil
	}
	res, err = h.controller(second, nil, nil).Run(context.Background(), job)
	if err != nil || res.Status != services.RunCompleted {
		t.Fatalf("rerun should complete, got %s %v", res.Status, err)
	}
	if len(second.calls) != 0 || res.Resumed != 4 {
		t.Fatalf("rerun queried %v (resumed %d)", second.calls, res.Resumed)
	}
	want := []trackSummary{{"X", 0}, {"Y", 60 * time.Second}}
	if got := summarize(written.Tracks); !slices.Equal(got, want) {
		t.Fatalf("written tracks = %+v, want %+v", got, want)
	}
	if record, err := h.store.Load(context.Background(), res.Identity); err != nil || record != nil {
		t.Fatalf("progress should be cleared after a successful write, got %+v %v", record, err)
	}
}
