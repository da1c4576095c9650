package retry

import (
	"time"

	"setlist/internal/config"
)

const (
	defaultDelay       = 15 * time.Second
	defaultBase        = 15 * time.Second
	defaultMultiplier  = 2.0
	defaultMaxDelay    = 120 * time.Second
	defaultMaxAttempts = 5
	defaultJitterRatio = 0.1
)

// Policy holds the pacing and backoff parameters.
type Policy struct {
	// Delay is the minimum gap between the end of one window's last call and
	// the first call for the next window.
	Delay       time.Duration
	BackoffBase time.Duration
	Multiplier  float64
	BackoffMax  time.Duration
	// MaxAttempts counts every call for a window, including the first.
	MaxAttempts int
	JitterRatio float64
	// CallTimeout bounds a single detached call. Zero leaves the bound to the
	// adapter.
	CallTimeout time.Duration
}

// DefaultPolicy returns the stock pacing policy.
func DefaultPolicy() Policy {
	return Policy{
		Delay:       defaultDelay,
		BackoffBase: defaultBase,
		Multiplier:  defaultMultiplier,
		BackoffMax:  defaultMaxDelay,
		MaxAttempts: defaultMaxAttempts,
		JitterRatio: defaultJitterRatio,
	}
}

// PolicyFromConfig builds a policy from the pacing section.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPolicy()
	}
	return Policy{
		Delay:       cfg.InterCallDelay(),
		BackoffBase: cfg.BackoffBase(),
		Multiplier:  cfg.Pacing.BackoffMultiplier,
		BackoffMax:  cfg.BackoffMax(),
		MaxAttempts: cfg.Pacing.MaxAttempts,
		JitterRatio: cfg.Pacing.JitterRatio,
		CallTimeout: cfg.RecognitionTimeout(),
	}
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the un-jittered wait after the given failed attempt
// (1-based): base, base*multiplier, ... capped at BackoffMax.
func (p Policy) Backoff(attempt int) time.Duration {
	if p.BackoffBase <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.BackoffBase)
	for i := 1; i < attempt; i++ {
		delay *= multiplier
		if p.BackoffMax > 0 && delay >= float64(p.BackoffMax) {
			return p.BackoffMax
		}
	}
	return p.capDelay(time.Duration(delay))
}

func (p Policy) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.BackoffMax > 0 && delay > p.BackoffMax {
		return p.BackoffMax
	}
	return delay
}

// jitterWindow is the exclusive upper bound of the jitter added to delay.
func (p Policy) jitterWindow(delay time.Duration) time.Duration {
	if p.JitterRatio <= 0 || delay <= 0 {
		return 0
	}
	return time.Duration(p.JitterRatio * float64(delay))
}
