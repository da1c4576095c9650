package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRecognition()
	c.normalizeSampling()
	if err := c.normalizeCorrections(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, defaultLogDirName)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.OutputDir = strings.TrimSpace(c.Paths.OutputDir)
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecognition() {
	c.Recognition.APIToken = strings.TrimSpace(c.Recognition.APIToken)
	if c.Recognition.APIToken == "" {
		if value, ok := os.LookupEnv(recognitionTokenEnv); ok {
			c.Recognition.APIToken = strings.TrimSpace(value)
		}
	}
	c.Recognition.BaseURL = strings.TrimSpace(c.Recognition.BaseURL)
	if c.Recognition.BaseURL == "" {
		c.Recognition.BaseURL = defaultRecognitionBaseURL
	}
	c.Recognition.ReturnFields = strings.TrimSpace(c.Recognition.ReturnFields)
	if c.Recognition.RateLimitCodes == nil {
		c.Recognition.RateLimitCodes = append([]int(nil), defaultRateLimitCodes...)
	}
}

func (c *Config) normalizeSampling() {
	if c.Sampling.StepSeconds < 0 {
		c.Sampling.StepSeconds = 0
	}
	if c.Sampling.SampleRate <= 0 {
		c.Sampling.SampleRate = defaultSampleRate
	}
}

func (c *Config) normalizeCorrections() error {
	var err error
	if strings.TrimSpace(c.Corrections.Path) == "" {
		c.Corrections.Path = defaultCorrectionsPath
	}
	if c.Corrections.Path, err = expandPath(c.Corrections.Path); err != nil {
		return fmt.Errorf("corrections.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
