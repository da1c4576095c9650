package preflight

import (
	"context"

	"setlist/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the readiness checks an identification run depends on.
// The network probe is only attempted once a token is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := RunLocal(cfg)
	if CheckRecognitionToken(cfg.Recognition.APIToken).Passed {
		results = append(results, CheckRecognitionEndpoint(ctx, cfg.Recognition.BaseURL))
	}
	return results
}

// RunLocal executes the checks that do not touch the network.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	if cfg.Corrections.Enabled {
		results = append(results, CheckCorrectionsFile(cfg.Corrections.Path))
	}
	results = append(results, CheckRecognitionToken(cfg.Recognition.APIToken))
	return results
}
