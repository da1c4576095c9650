package main

import (
	"os"
	"path/filepath"
	"testing"
)

func stubTools(t *testing.T, names ...string) {
	t.Helper()
	binDir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	t.Setenv("PATH", binDir)
}

func TestCheckOfflineReportsReady(t *testing.T) {
	env := setupCLITestEnv(t)
	stubTools(t, "ffmpeg", "ffprobe")

	out, _, err := runCLI(t, []string{"check", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Tools ==")
	requireContains(t, out, "FFprobe:")
	requireContains(t, out, "State directory:")
	requireContains(t, out, "Recognition token:")
	requireContains(t, out, "Ready")
}

func TestCheckFailsWithoutTools(t *testing.T) {
	env := setupCLITestEnv(t)
	stubTools(t)

	out, _, err := runCLI(t, []string{"check", "--offline"}, env.configPath)
	if err == nil {
		t.Fatalf("expected failure without ffmpeg\n%s", out)
	}
	requireContains(t, out, "[ERROR]")
}

func TestCheckProbesRecognitionService(t *testing.T) {
	env := setupCLITestEnv(t)
	stubTools(t, "ffmpeg", "ffprobe")

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Recognition service:")
}
