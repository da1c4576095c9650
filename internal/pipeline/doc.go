// Package pipeline drives one recording from audio to tracklist.
//
// A run samples the recording into windows, skips windows already present in
// the checkpoint, sends the rest through the retry controller one at a time,
// applies learned corrections and checkpoints each result before moving on.
// When every window is done the outcomes are deduplicated into a tracklist
// and the checkpoint is cleared.
//
// Per-window failures (decode errors, rejected or exhausted recognition
// calls) are recorded as unidentified windows and never stop the run.
// Checkpoint failures, locking conflicts and identity mismatches abort it.
// Cancellation is observed between windows and leaves every completed window
// on disk.
package pipeline
