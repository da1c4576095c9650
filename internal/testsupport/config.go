package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"setlist/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Pacing is zeroed so pipelines run without sleeping.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Recognition.APIToken = "test-token"
	cfgVal.Recognition.BaseURL = "http://127.0.0.1:0/"
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Corrections.Path = filepath.Join(base, "corrections.json")
	cfgVal.Pacing.DelaySeconds = 0
	cfgVal.Pacing.BackoffBaseSeconds = 0
	cfgVal.Pacing.JitterRatio = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithToken sets the recognition API token.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Recognition.APIToken = token
	}
}

// WithRecognitionURL points the recognition client at url.
func WithRecognitionURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Recognition.BaseURL = url
	}
}

// WithWindow overrides the window length and step, in seconds.
func WithWindow(windowSeconds, stepSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sampling.WindowSeconds = windowSeconds
		b.cfg.Sampling.StepSeconds = stepSeconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
