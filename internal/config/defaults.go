package config

const (
	defaultConfigPath         = "~/.config/setlist/config.toml"
	defaultStateDir           = "~/.local/share/setlist"
	defaultLogDirName         = "logs"
	defaultCorrectionsPath    = "~/.config/setlist/corrections.json"
	defaultRecognitionBaseURL = "https://api.audd.io/"
	defaultRecognitionTimeout = 30
	defaultReturnFields       = "apple_music,spotify"
	defaultWindowSeconds      = 30
	defaultSampleRate         = 44100
	defaultDelaySeconds       = 15
	defaultBackoffBaseSeconds = 15
	defaultBackoffMultiplier  = 2.0
	defaultBackoffMaxSeconds  = 120
	defaultMaxAttempts        = 5
	defaultJitterRatio        = 0.1
	defaultNtfyTimeout        = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	recognitionTokenEnv       = "SETLIST_RECOGNITION_TOKEN"
)

// defaultRateLimitCodes are the service error codes that signal throttling
// rather than a rejected request.
var defaultRateLimitCodes = []int{901, 902}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Recognition: Recognition{
			BaseURL:        defaultRecognitionBaseURL,
			TimeoutSeconds: defaultRecognitionTimeout,
			ReturnFields:   defaultReturnFields,
			RateLimitCodes: append([]int(nil), defaultRateLimitCodes...),
		},
		Sampling: Sampling{
			WindowSeconds: defaultWindowSeconds,
			SampleRate:    defaultSampleRate,
		},
		Pacing: Pacing{
			DelaySeconds:       defaultDelaySeconds,
			BackoffBaseSeconds: defaultBackoffBaseSeconds,
			BackoffMultiplier:  defaultBackoffMultiplier,
			BackoffMaxSeconds:  defaultBackoffMaxSeconds,
			MaxAttempts:        defaultMaxAttempts,
			JitterRatio:        defaultJitterRatio,
		},
		Corrections: Corrections{
			Enabled: true,
			Path:    defaultCorrectionsPath,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
