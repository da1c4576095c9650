package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"setlist/internal/audio"
	"setlist/internal/logging"
	"setlist/internal/recognition"
)

// State is a step in the per-window retry state machine.
type State string

const (
	StatePending  State = "pending"
	StateCalling  State = "calling"
	StateRetrying State = "retrying"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
	// StateCancelled means the run was cancelled while waiting; the window
	// has no result and must not be recorded.
	StateCancelled State = "cancelled"
)

// Clock abstracts time so tests can run the schedule instantly.
type Clock interface {
	Now() time.Time
	// Sleep waits for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Result is the final state of one window.
type Result struct {
	Window audio.Window
	State  State
	// Outcome is the last outcome the adapter returned. It is the zero value
	// when the window was cancelled before any call.
	Outcome  recognition.Outcome
	Attempts int
	// Trace lists every state the window passed through, starting with
	// StatePending.
	Trace []State
	// Err is the cancellation cause for cancelled windows and the
	// marker-tagged recognition error for failed ones.
	Err error
}

// Cancelled reports whether the window was abandoned.
func (r Result) Cancelled() bool {
	return r.State == StateCancelled
}

// Recorded returns the outcome to persist: the adapter's outcome on success
// and a NoMatch carrying the failure reason otherwise.
func (r Result) Recorded() recognition.Outcome {
	if r.State == StateSuccess {
		return r.Outcome
	}
	reason := r.Outcome.Reason
	if r.Outcome.Kind == recognition.KindTransient {
		reason = "retries exhausted: " + reason
	}
	return recognition.NoMatch(reason)
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithJitter replaces the jitter source. fn receives the exclusive upper
// bound and returns a value in [0, bound).
func WithJitter(fn func(bound time.Duration) time.Duration) Option {
	return func(c *Controller) {
		if fn != nil {
			c.jitter = fn
		}
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Controller runs windows through an adapter one at a time. It is not safe
// for concurrent use; a run owns exactly one Controller.
type Controller struct {
	policy Policy
	clock  Clock
	jitter func(time.Duration) time.Duration
	logger *slog.Logger

	lastCallEnd time.Time
	called      bool
}

// New constructs a Controller.
func New(policy Policy, opts ...Option) *Controller {
	c := &Controller{
		policy: policy,
		clock:  realClock{},
		jitter: randomJitter,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func randomJitter(bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(bound)))
}

// Do waits out the pacing gate, then calls adapter for window until it
// succeeds, fails fatally, or exhausts the attempt budget.
func (c *Controller) Do(ctx context.Context, window audio.Window, adapter recognition.Adapter) Result {
	res := Result{Window: window, State: StatePending, Trace: []State{StatePending}}
	logger := logging.WithContext(ctx, c.logger)

	if err := c.pace(ctx); err != nil {
		return res.cancel(err)
	}

	attempts := c.policy.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		res.transition(StateCalling)
		res.Attempts = attempt
		res.Outcome = c.call(ctx, window, adapter)

		switch res.Outcome.Kind {
		case recognition.KindIdentified, recognition.KindNoMatch:
			res.transition(StateSuccess)
			return res
		case recognition.KindFatal:
			res.fail()
			logging.WarnWithContext(logger, "recognition rejected window", "recognition_fatal",
				logging.Int("attempt", attempt),
				logging.Error(res.Err),
				logging.String(logging.FieldErrorHint, "check the recognition token and request limits"),
				logging.String(logging.FieldImpact, "window recorded as unidentified"),
			)
			return res
		}

		if attempt == attempts {
			break
		}
		res.transition(StateRetrying)
		delay := c.delayFor(attempt, res.Outcome.RetryAfter)
		logger.Info("recognition retry scheduled",
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.String("reason", res.Outcome.Reason),
		)
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return res.cancel(err)
		}
	}

	res.fail()
	logging.WarnWithContext(logger, "recognition retries exhausted", "recognition_exhausted",
		logging.Int("attempts", res.Attempts),
		logging.Error(res.Err),
		logging.String(logging.FieldErrorHint, "increase pacing.delay_seconds if the service keeps throttling"),
		logging.String(logging.FieldImpact, "window recorded as unidentified"),
	)
	return res
}

// pace blocks until the inter-call delay since the previous window's last
// call has elapsed.
func (c *Controller) pace(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.called || c.policy.Delay <= 0 {
		return nil
	}
	wait := c.lastCallEnd.Add(c.policy.Delay).Sub(c.clock.Now())
	if wait <= 0 {
		return nil
	}
	return c.clock.Sleep(ctx, wait)
}

// call runs one adapter call on a context that ignores cancellation of ctx.
func (c *Controller) call(ctx context.Context, window audio.Window, adapter recognition.Adapter) recognition.Outcome {
	callCtx := context.WithoutCancel(ctx)
	if c.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, c.policy.CallTimeout)
		defer cancel()
	}
	outcome := adapter.Identify(callCtx, window)
	c.lastCallEnd = c.clock.Now()
	c.called = true
	return outcome
}

// delayFor returns the wait after a transient failure on attempt. A server
// Retry-After hint longer than the computed backoff wins, still capped.
func (c *Controller) delayFor(attempt int, retryAfter time.Duration) time.Duration {
	delay := c.policy.Backoff(attempt)
	if hinted := c.policy.capDelay(retryAfter); hinted > delay {
		delay = hinted
	}
	return delay + c.jitter(c.policy.jitterWindow(delay))
}

func (r *Result) transition(next State) {
	r.State = next
	r.Trace = append(r.Trace, next)
}

func (r *Result) fail() {
	r.transition(StateFailed)
	r.Err = r.Outcome.Err()
}

func (r Result) cancel(err error) Result {
	r.transition(StateCancelled)
	r.Err = err
	return r
}
