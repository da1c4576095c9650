package retry

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"setlist/internal/audio"
	"setlist/internal/recognition"
	"setlist/internal/services"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	// cancel, when set, is invoked at the start of the sleep with this index.
	cancelAt int
	cancel   context.CancelFunc
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cancelAt: -1}
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if f.cancel != nil && len(f.sleeps) == f.cancelAt {
		f.cancel()
	}
	f.sleeps = append(f.sleeps, d)
	if err := ctx.Err(); err != nil {
		return err
	}
	f.now = f.now.Add(d)
	return nil
}

type scriptedAdapter struct {
	clock    *fakeClock
	callTime time.Duration
	outcomes []recognition.Outcome
	calls    int
}

func (a *scriptedAdapter) Identify(_ context.Context, _ audio.Window) recognition.Outcome {
	idx := a.calls
	a.calls++
	if a.clock != nil {
		a.clock.now = a.clock.now.Add(a.callTime)
	}
	if idx >= len(a.outcomes) {
		return a.outcomes[len(a.outcomes)-1]
	}
	return a.outcomes[idx]
}

func noJitter(time.Duration) time.Duration { return 0 }

func testPolicy() Policy {
	return Policy{
		Delay:       15 * time.Second,
		BackoffBase: 15 * time.Second,
		Multiplier:  2,
		BackoffMax:  120 * time.Second,
		MaxAttempts: 5,
		JitterRatio: 0.1,
	}
}

func TestBackoffSchedule(t *testing.T) {
	policy := testPolicy()
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 15 * time.Second},
		{1, 15 * time.Second},
		{2, 30 * time.Second},
		{3, 60 * time.Second},
		{4, 120 * time.Second},
		{7, 120 * time.Second},
	}
	for _, tt := range tests {
		if got := policy.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestTransientExhaustsExactlyMaxAttempts(t *testing.T) {
	clock := newFakeClock()
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{recognition.Transient("rate limited", 0)}}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(noJitter))

	start := clock.Now()
	res := ctrl.Do(context.Background(), audio.Window{Index: 0}, adapter)

	if adapter.calls != 5 {
		t.Fatalf("expected 5 calls, got %d", adapter.calls)
	}
	if res.State != StateFailed || res.Attempts != 5 {
		t.Fatalf("unexpected result: state=%s attempts=%d", res.State, res.Attempts)
	}
	wantSleeps := []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second, 120 * time.Second}
	if !slices.Equal(clock.sleeps, wantSleeps) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, wantSleeps)
	}
	if elapsed := clock.Now().Sub(start); elapsed != 225*time.Second {
		t.Fatalf("elapsed = %s, want 225s", elapsed)
	}
	recorded := res.Recorded()
	if recorded.Kind != recognition.KindNoMatch || recorded.Reason != "retries exhausted: rate limited" {
		t.Fatalf("unexpected recorded outcome: %+v", recorded)
	}
	if !errors.Is(res.Err, services.ErrTransientRecognition) || !services.IsWindowLocal(res.Err) {
		t.Fatalf("expected window-local transient error, got %v", res.Err)
	}
}

func TestJitterStaysWithinRatio(t *testing.T) {
	clock := newFakeClock()
	var bounds []time.Duration
	jitter := func(bound time.Duration) time.Duration {
		bounds = append(bounds, bound)
		return bound - time.Millisecond
	}
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{
		recognition.Transient("busy", 0),
		recognition.Identified(recognition.Match{Artist: "A", Title: "B"}),
	}}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(jitter))
	res := ctrl.Do(context.Background(), audio.Window{}, adapter)

	if res.State != StateSuccess {
		t.Fatalf("expected success, got %s", res.State)
	}
	if len(bounds) != 1 || bounds[0] != 1500*time.Millisecond {
		t.Fatalf("unexpected jitter bounds %v", bounds)
	}
	if clock.sleeps[0] != 15*time.Second+1499*time.Millisecond {
		t.Fatalf("unexpected sleep %s", clock.sleeps[0])
	}
}

func TestFatalIsNotRetried(t *testing.T) {
	clock := newFakeClock()
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{recognition.Fatal("invalid token")}}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(noJitter))
	res := ctrl.Do(context.Background(), audio.Window{}, adapter)

	if adapter.calls != 1 {
		t.Fatalf("expected one call, got %d", adapter.calls)
	}
	want := []State{StatePending, StateCalling, StateFailed}
	if !slices.Equal(res.Trace, want) {
		t.Fatalf("trace = %v, want %v", res.Trace, want)
	}
	if got := res.Recorded(); got.Kind != recognition.KindNoMatch || got.Reason != "invalid token" {
		t.Fatalf("unexpected recorded outcome %+v", got)
	}
	if !errors.Is(res.Err, services.ErrFatalRecognition) || !services.IsWindowLocal(res.Err) {
		t.Fatalf("expected window-local fatal error, got %v", res.Err)
	}
}

func TestRetryThenSuccessTrace(t *testing.T) {
	clock := newFakeClock()
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{
		recognition.Transient("timeout", 0),
		recognition.NoMatch("no result"),
	}}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(noJitter))
	res := ctrl.Do(context.Background(), audio.Window{}, adapter)

	want := []State{StatePending, StateCalling, StateRetrying, StateCalling, StateSuccess}
	if !slices.Equal(res.Trace, want) {
		t.Fatalf("trace = %v, want %v", res.Trace, want)
	}
	if res.Recorded().Kind != recognition.KindNoMatch {
		t.Fatalf("expected no-match outcome, got %s", res.Recorded().Kind)
	}
	if res.Err != nil {
		t.Fatalf("successful window carries error %v", res.Err)
	}
}

func TestRetryAfterHintIsCapped(t *testing.T) {
	clock := newFakeClock()
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{
		recognition.Transient("slow down", 10*time.Minute),
		recognition.Identified(recognition.Match{Artist: "A", Title: "B"}),
	}}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(noJitter))
	ctrl.Do(context.Background(), audio.Window{}, adapter)

	if len(clock.sleeps) != 1 || clock.sleeps[0] != 120*time.Second {
		t.Fatalf("expected capped hint, got %v", clock.sleeps)
	}
}

func TestPacingMeasuredFromLastCallEnd(t *testing.T) {
	clock := newFakeClock()
	adapter := &scriptedAdapter{
		clock:    clock,
		callTime: 4 * time.Second,
		outcomes: []recognition.Outcome{recognition.Identified(recognition.Match{Artist: "A", Title: "B"})},
	}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(noJitter))

	ctrl.Do(context.Background(), audio.Window{Index: 0}, adapter)
	if len(clock.sleeps) != 0 {
		t.Fatalf("first window must not wait, slept %v", clock.sleeps)
	}

	clock.now = clock.now.Add(5 * time.Second)
	ctrl.Do(context.Background(), audio.Window{Index: 1}, adapter)
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 10*time.Second {
		t.Fatalf("expected 10s pacing wait, got %v", clock.sleeps)
	}

	clock.now = clock.now.Add(time.Minute)
	ctrl.Do(context.Background(), audio.Window{Index: 2}, adapter)
	if len(clock.sleeps) != 1 {
		t.Fatalf("no wait expected once the delay has passed, got %v", clock.sleeps)
	}
}

func TestCancelDuringBackoff(t *testing.T) {
	clock := newFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.cancel = cancel
	clock.cancelAt = 0

	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{recognition.Transient("busy", 0)}}
	ctrl := New(testPolicy(), WithClock(clock), WithJitter(noJitter))
	res := ctrl.Do(ctx, audio.Window{}, adapter)

	if !res.Cancelled() {
		t.Fatalf("expected cancelled result, got %s", res.State)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Err)
	}
	if adapter.calls != 1 {
		t.Fatalf("expected no call after cancellation, got %d", adapter.calls)
	}
}

func TestCancelledBeforeCallMakesNoCall(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{recognition.NoMatch("")}}
	res := New(testPolicy(), WithClock(newFakeClock())).Do(ctx, audio.Window{}, adapter)
	if !res.Cancelled() || adapter.calls != 0 {
		t.Fatalf("expected cancellation without calls, state=%s calls=%d", res.State, adapter.calls)
	}
}

func TestInFlightCallIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var callErr error
	adapter := recognition.AdapterFunc(func(callCtx context.Context, _ audio.Window) recognition.Outcome {
		cancel()
		callErr = callCtx.Err()
		return recognition.Identified(recognition.Match{Artist: "A", Title: "B"})
	})
	res := New(testPolicy(), WithClock(newFakeClock())).Do(ctx, audio.Window{}, adapter)

	if callErr != nil {
		t.Fatalf("call context was cancelled: %v", callErr)
	}
	if res.State != StateSuccess {
		t.Fatalf("in-flight result should be kept, got %s", res.State)
	}
}

func TestSingleAttemptPolicy(t *testing.T) {
	policy := testPolicy()
	policy.MaxAttempts = 0
	adapter := &scriptedAdapter{outcomes: []recognition.Outcome{recognition.Transient("x", 0)}}
	res := New(policy, WithClock(newFakeClock())).Do(context.Background(), audio.Window{}, adapter)
	if adapter.calls != 1 || res.State != StateFailed {
		t.Fatalf("expected one failed call, got calls=%d state=%s", adapter.calls, res.State)
	}
}
