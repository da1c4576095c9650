// Package retry spaces recognition calls and retries transient failures.
//
// A Controller handles one window at a time. Before it accepts a window it
// waits out the inter-call delay measured from the end of the previous
// window's last call; within a window it retries transient outcomes with
// capped exponential backoff plus jitter, up to a fixed number of calls.
// Sleeps abort on cancellation, but a call already in flight runs to
// completion on a detached context so its result can still be recorded.
package retry
