package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
)

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestTestNotifySendsAndIdentifyNotifies(t *testing.T) {
	var bodies []string
	var count atomic.Int64
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		if count.Add(1) <= 4 {
			bodies = append(bodies, string(data))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ntfy.Close()

	env := setupCLITestEnv(t)
	appendConfig(t, env.configPath, "\n[notifications]\nntfy_topic = \""+ntfy.URL+"/setlist\"\n")

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")

	audioPath := writeRecording(t, env.baseDir, "notify.wav", 1)
	if _, _, err := runCLI(t, []string{"identify", audioPath}, env.configPath); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if count.Load() != 2 {
		t.Fatalf("expected test and completion notifications, got %d: %q", count.Load(), bodies)
	}
	requireContains(t, bodies[1], "notify.wav: 1 tracks (1 identified)")
}

func appendConfig(t *testing.T, path, extra string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(extra); err != nil {
		t.Fatal(err)
	}
}
