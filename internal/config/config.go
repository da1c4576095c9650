package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains state and output directory configuration.
type Paths struct {
	StateDir  string `toml:"state_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Recognition contains configuration for the external recognition service.
type Recognition struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	ReturnFields   string `toml:"return_fields"`
	RateLimitCodes []int  `toml:"rate_limit_codes"`
}

// Sampling controls how a recording is cut into windows.
type Sampling struct {
	WindowSeconds int `toml:"window_seconds"`
	// StepSeconds is the distance between window starts. Zero means
	// back-to-back windows; values below WindowSeconds overlap.
	StepSeconds int `toml:"step_seconds"`
	SampleRate  int `toml:"sample_rate"`
}

// Pacing controls the spacing between recognition calls and the backoff used
// when the service reports a transient failure.
type Pacing struct {
	DelaySeconds       int     `toml:"delay_seconds"`
	BackoffBaseSeconds int     `toml:"backoff_base_seconds"`
	BackoffMultiplier  float64 `toml:"backoff_multiplier"`
	BackoffMaxSeconds  int     `toml:"backoff_max_seconds"`
	MaxAttempts        int     `toml:"max_attempts"`
	JitterRatio        float64 `toml:"jitter_ratio"`
}

// Corrections contains configuration for the learned correction table.
type Corrections struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Notifications contains configuration for run-completion messages.
type Notifications struct {
	// NtfyTopic is the full topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for setlist.
//
// Configuration sections by subsystem:
//   - Paths: progress database, tracklist output, and log directories
//   - Recognition: recognition service endpoint and credentials
//   - Sampling: window length and step
//   - Pacing: inter-call delay and retry backoff
//   - Corrections: learned misidentification fixes
//   - Notifications: ntfy messages when long runs finish
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Recognition   Recognition   `toml:"recognition"`
	Sampling      Sampling      `toml:"sampling"`
	Pacing        Pacing        `toml:"pacing"`
	Corrections   Corrections   `toml:"corrections"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("setlist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. OutputDir is only
// created when configured; an empty value writes tracklists beside the audio.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory %q: %w", c.Paths.OutputDir, err)
		}
	}
	return nil
}

// ProgressDBPath returns the checkpoint database location.
func (c *Config) ProgressDBPath() string {
	return filepath.Join(c.Paths.StateDir, "progress.db")
}

// LockDir returns the directory holding per-source run locks.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// FFmpegBinary returns the ffmpeg executable name used for audio extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// WindowLength returns the sample window length.
func (c *Config) WindowLength() time.Duration {
	return time.Duration(c.Sampling.WindowSeconds) * time.Second
}

// WindowStep returns the distance between window starts.
func (c *Config) WindowStep() time.Duration {
	if c.Sampling.StepSeconds <= 0 {
		return c.WindowLength()
	}
	return time.Duration(c.Sampling.StepSeconds) * time.Second
}

// RecognitionTimeout returns the per-call HTTP timeout.
func (c *Config) RecognitionTimeout() time.Duration {
	return time.Duration(c.Recognition.TimeoutSeconds) * time.Second
}

// InterCallDelay returns the minimum spacing between recognition calls.
func (c *Config) InterCallDelay() time.Duration {
	return time.Duration(c.Pacing.DelaySeconds) * time.Second
}

// BackoffBase returns the first backoff delay.
func (c *Config) BackoffBase() time.Duration {
	return time.Duration(c.Pacing.BackoffBaseSeconds) * time.Second
}

// BackoffMax returns the backoff ceiling.
func (c *Config) BackoffMax() time.Duration {
	return time.Duration(c.Pacing.BackoffMaxSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
