package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"setlist/internal/config"
	"setlist/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	calls      *atomic.Int64
}

// setupCLITestEnv writes a config pointing at a fake recognition service that
// identifies every window as the same track.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	calls := new(atomic.Int64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseMultipartForm(1 << 22); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"result": map[string]any{"artist": "Daft Punk", "title": "One More Time"},
		})
	}))
	t.Cleanup(srv.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithRecognitionURL(srv.URL), testsupport.WithWindow(1, 0))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SETLIST_RECOGNITION_TOKEN", "")

	configPath := filepath.Join(base, "setlist.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, calls: calls}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nstate_dir = %q\noutput_dir = %q\nlog_dir = %q\n\n",
		cfg.Paths.StateDir, cfg.Paths.OutputDir, cfg.Paths.LogDir)
	fmt.Fprintf(&b, "[recognition]\nbase_url = %q\napi_token = %q\ntimeout_seconds = 5\n\n",
		cfg.Recognition.BaseURL, cfg.Recognition.APIToken)
	fmt.Fprintf(&b, "[sampling]\nwindow_seconds = %d\nstep_seconds = %d\n\n",
		cfg.Sampling.WindowSeconds, cfg.Sampling.StepSeconds)
	b.WriteString("[pacing]\ndelay_seconds = 0\nbackoff_base_seconds = 1\nbackoff_max_seconds = 1\nmax_attempts = 2\njitter_ratio = 0.0\n\n")
	fmt.Fprintf(&b, "[corrections]\nenabled = true\npath = %q\n\n", cfg.Corrections.Path)
	b.WriteString("[logging]\nlevel = \"error\"\nretention_days = 0\n")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}
