package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"setlist/internal/checkpoint"
	"setlist/internal/logging"
	"setlist/internal/recognition"
	"setlist/internal/testsupport"
)

func seedProgress(t *testing.T, env *cliTestEnv, audioPath string) {
	t.Helper()
	store, err := checkpoint.Open(env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	identity := testsupport.Identity(t, audioPath)
	record := checkpoint.WindowRecord{
		Index:    0,
		Start:    0,
		Duration: time.Second,
		Outcome:  recognition.Identified(recognition.Match{Artist: "Daft Punk", Title: "Aerodynamic"}),
	}
	if err := store.Append(context.Background(), identity, "seed-run", record); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestProgressListAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	audioPath := writeRecording(t, env.baseDir, "unfinished.wav", 3)
	seedProgress(t, env, audioPath)

	out, _, err := runCLI(t, []string{"progress", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("progress list: %v", err)
	}
	requireContains(t, out, "unfinished.wav")

	out, _, err = runCLI(t, []string{"progress", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("progress list --json: %v", err)
	}
	var summaries []checkpoint.Summary
	if err := json.Unmarshal([]byte(out), &summaries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Windows != 1 || summaries[0].Identified != 1 {
		t.Fatalf("unexpected summaries: %#v", summaries)
	}

	out, _, err = runCLI(t, []string{"progress", "clear", audioPath}, env.configPath)
	if err != nil {
		t.Fatalf("progress clear: %v", err)
	}
	requireContains(t, out, "Cleared progress for "+audioPath)

	out, _, err = runCLI(t, []string{"progress", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("progress list: %v", err)
	}
	requireContains(t, out, "No saved progress")
}

func TestIdentifyResumesSeededProgress(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	audioPath := writeRecording(t, env.baseDir, "resume.wav", 3)
	seedProgress(t, env, audioPath)

	out, _, err := runCLI(t, []string{"identify", "--json", audioPath}, env.configPath)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	var reports []identifyReport
	if err := json.Unmarshal([]byte(out), &reports); err != nil {
		t.Fatalf("decode: %v", err)
	}
	r := reports[0]
	if r.Resumed != 1 || r.Queried != 2 || env.calls.Load() != 2 {
		t.Fatalf("expected 1 resumed and 2 queried windows, got %#v (calls=%d)", r, env.calls.Load())
	}
	if filepath.Base(r.Path) != "resume.wav" {
		t.Fatalf("unexpected path %s", r.Path)
	}
}
