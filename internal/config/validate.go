package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable. The recognition token is only
// required to identify audio; see ValidateRecognition.
func (c *Config) Validate() error {
	if err := c.validateRecognition(); err != nil {
		return err
	}
	if err := c.validateSampling(); err != nil {
		return err
	}
	if err := c.validatePacing(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

// ValidateRecognition reports whether the recognition service can be called.
func (c *Config) ValidateRecognition() error {
	if strings.TrimSpace(c.Recognition.APIToken) == "" {
		return fmt.Errorf("recognition.api_token is required (or set %s)", recognitionTokenEnv)
	}
	return nil
}

func (c *Config) validateRecognition() error {
	parsed, err := url.Parse(c.Recognition.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("recognition.base_url %q must be an absolute URL", c.Recognition.BaseURL)
	}
	if c.Recognition.TimeoutSeconds <= 0 {
		return errors.New("recognition.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateSampling() error {
	if c.Sampling.WindowSeconds <= 0 {
		return errors.New("sampling.window_seconds must be positive")
	}
	if c.Sampling.StepSeconds > c.Sampling.WindowSeconds {
		return errors.New("sampling.step_seconds must not exceed sampling.window_seconds")
	}
	return nil
}

func (c *Config) validatePacing() error {
	if err := ensurePositiveMap(map[string]int{
		"pacing.backoff_base_seconds": c.Pacing.BackoffBaseSeconds,
		"pacing.backoff_max_seconds":  c.Pacing.BackoffMaxSeconds,
		"pacing.max_attempts":         c.Pacing.MaxAttempts,
	}); err != nil {
		return err
	}
	if c.Pacing.DelaySeconds < 0 {
		return errors.New("pacing.delay_seconds must not be negative")
	}
	if c.Pacing.BackoffMultiplier < 1 {
		return errors.New("pacing.backoff_multiplier must be at least 1")
	}
	if c.Pacing.BackoffMaxSeconds < c.Pacing.BackoffBaseSeconds {
		return errors.New("pacing.backoff_max_seconds must be at least pacing.backoff_base_seconds")
	}
	if c.Pacing.JitterRatio < 0 || c.Pacing.JitterRatio > 1 {
		return errors.New("pacing.jitter_ratio must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be a full topic URL", c.Notifications.NtfyTopic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
