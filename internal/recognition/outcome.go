package recognition

import (
	"context"
	"fmt"
	"strings"
	"time"

	"setlist/internal/audio"
	"setlist/internal/services"
)

// Kind classifies the result of one recognition call.
type Kind string

const (
	KindIdentified Kind = "identified"
	KindNoMatch    Kind = "no_match"
	KindTransient  Kind = "transient_error"
	KindFatal      Kind = "fatal_error"
)

// Match is the metadata returned for an identified window. OriginalArtist and
// OriginalTitle are set when a learned correction rewrote the match.
type Match struct {
	Artist         string `json:"artist"`
	Title          string `json:"title"`
	Album          string `json:"album,omitempty"`
	SongURL        string `json:"song_url,omitempty"`
	ArtworkURL     string `json:"artwork_url,omitempty"`
	OriginalArtist string `json:"original_artist,omitempty"`
	OriginalTitle  string `json:"original_title,omitempty"`
}

// Outcome is the result of one recognition attempt for one window.
type Outcome struct {
	Kind  Kind
	Match Match
	// Reason explains NoMatch and error outcomes.
	Reason string
	// RetryAfter is a server-supplied hint for transient errors.
	RetryAfter time.Duration
}

// Identified builds a successful outcome.
func Identified(m Match) Outcome {
	return Outcome{Kind: KindIdentified, Match: m}
}

// NoMatch builds an outcome for a window the service could not name.
func NoMatch(reason string) Outcome {
	return Outcome{Kind: KindNoMatch, Reason: reason}
}

// Transient builds an outcome that is worth retrying.
func Transient(reason string, retryAfter time.Duration) Outcome {
	return Outcome{Kind: KindTransient, Reason: reason, RetryAfter: retryAfter}
}

// Fatal builds an outcome that must not be retried.
func Fatal(reason string) Outcome {
	return Outcome{Kind: KindFatal, Reason: reason}
}

// IsIdentified reports whether the outcome carries a match.
func (o Outcome) IsIdentified() bool {
	return o.Kind == KindIdentified
}

// Err returns the outcome as a marker-tagged error for error kinds and nil
// otherwise.
func (o Outcome) Err() error {
	switch o.Kind {
	case KindTransient:
		return services.Wrap(services.ErrTransientRecognition, "recognition", "identify", o.Reason, nil)
	case KindFatal:
		return services.Wrap(services.ErrFatalRecognition, "recognition", "identify", o.Reason, nil)
	default:
		return nil
	}
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindIdentified:
		return fmt.Sprintf("%s - %s", o.Match.Artist, o.Match.Title)
	case KindNoMatch:
		return "no match"
	default:
		return fmt.Sprintf("%s: %s", o.Kind, strings.TrimSpace(o.Reason))
	}
}

// Adapter performs exactly one recognition call for a window. Implementations
// never retry and never return an error outside the Outcome.
type Adapter interface {
	Identify(ctx context.Context, window audio.Window) Outcome
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, window audio.Window) Outcome

// Identify calls f.
func (f AdapterFunc) Identify(ctx context.Context, window audio.Window) Outcome {
	return f(ctx, window)
}
