// Package services defines shared utilities consumed by the identification
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, source paths, and window indices for
//     logging.
//   - Structured error markers plus the Wrap helper that let callers decide
//     whether a failure is window local or aborts the run.
//
// Use these helpers when wiring new components so failure classification stays
// uniform across the pipeline.
package services
