// Package ffprobe wraps ffprobe's JSON output for the audio metadata the
// sampler needs: stream layout, container duration and sample rate.
//
// Inspect runs the binary; the helper methods on Result turn its string
// fields into numbers, returning 0 for missing values and NaN for values
// that fail to parse.
package ffprobe
