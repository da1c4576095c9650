// Package recognition asks an external audio-fingerprint service to name a
// single sample window.
//
// Adapter is the one-shot contract the pipeline depends on: one call, one
// Outcome, no retries. Outcomes are a closed set (Identified, NoMatch,
// TransientError, FatalError) so callers switch on Kind instead of inspecting
// errors. Client implements Adapter over an AudD-style multipart HTTP API and
// owns the mapping from HTTP statuses and service error codes to those kinds.
package recognition
