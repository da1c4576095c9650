package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"setlist/internal/config"
)

const userAgent = "setlist/0.1.0"

// Event names a run milestone worth telling the user about.
type Event string

const (
	EventRecordingCompleted   Event = "recording_completed"
	EventRecordingInterrupted Event = "recording_interrupted"
	EventRecordingFailed      Event = "recording_failed"
	EventBatchCompleted       Event = "batch_completed"
	EventTest                 Event = "test"
)

// Payload carries the event fields used to build the message.
type Payload map[string]any

// Service publishes run events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

// render returns false for events that are not delivered.
func render(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRecordingCompleted:
		return message{
			title: "Setlist - Tracklist Ready",
			body: fmt.Sprintf("🎧 %s: %d tracks (%d identified)",
				payload.text("recording"), payload.number("tracks"), payload.number("identified")),
			tags: []string{"setlist", "identify", "completed"},
		}, true
	case EventRecordingFailed:
		return message{
			title:    "Setlist - Error",
			body:     fmt.Sprintf("❌ Identification failed for %s: %s", payload.text("recording"), payload.text("error")),
			tags:     []string{"setlist", "error", "alert"},
			priority: "high",
		}, true
	case EventBatchCompleted:
		processed, failed := payload.number("processed"), payload.number("failed")
		duration := payload.duration("duration").Round(time.Second)
		if failed == 0 {
			return message{
				title: "Setlist - Batch Complete",
				body:  fmt.Sprintf("Identified %d recording(s) in %s", processed, duration),
				tags:  []string{"setlist", "batch", "completed"},
			}, true
		}
		return message{
			title: "Setlist - Batch Complete (with errors)",
			body:  fmt.Sprintf("%d succeeded, %d failed in %s", processed, failed, duration),
			tags:  []string{"setlist", "batch", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "Setlist - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"setlist", "test"},
			priority: "low",
		}, true
	default:
		// Interruptions are user initiated.
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if value, ok := p[key]; ok && value != nil {
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return ""
}

func (p Payload) number(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func (p Payload) duration(key string) time.Duration {
	if d, ok := p[key].(time.Duration); ok && d > 0 {
		return d
	}
	return 0
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

// Enabled reports whether svc delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}
