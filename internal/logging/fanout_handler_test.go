package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabledIfAnyEnabled(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be enabled through the second handler")
	}

	h = newFanoutHandler(
		slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn}),
		slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled")
	}
}

func TestFanoutHandlerRespectsPerHandlerLevel(t *testing.T) {
	var console, file bytes.Buffer
	lvl := new(slog.LevelVar)
	h := newFanoutHandler(
		newPrettyHandler(&console, lvl, false),
		slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	slog.New(h).Info("window identified")

	if !strings.Contains(console.String(), "window identified") {
		t.Fatalf("expected console output, got %q", console.String())
	}
	if file.Len() != 0 {
		t.Fatalf("expected warn-level handler to skip info, got %q", file.String())
	}
}

func TestFanoutHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("run_id", "abc")}).WithGroup("match"))
	logger.Info("test", slog.String("artist", "X"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		out := buf.String()
		if !strings.Contains(out, `"run_id":"abc"`) {
			t.Errorf("handler %d missing attr: %s", i, out)
		}
		if !strings.Contains(out, `"match":{"artist":"X"}`) {
			t.Errorf("handler %d missing group: %s", i, out)
		}
	}
}
