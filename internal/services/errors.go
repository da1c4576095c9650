package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTransientRecognition   = errors.New("transient recognition failure")
	ErrFatalRecognition       = errors.New("fatal recognition failure")
	ErrDecode                 = errors.New("audio decode error")
	ErrCheckpointIO           = errors.New("checkpoint io error")
	ErrSourceIdentityMismatch = errors.New("source identity mismatch")
	ErrSourceBusy             = errors.New("source busy")
	ErrOutput                 = errors.New("tracklist output error")
	ErrExternalTool           = errors.New("external tool error")
	ErrValidation             = errors.New("validation error")
	ErrConfiguration          = errors.New("configuration error")
	ErrNotFound               = errors.New("not found")
)

// RunStatus is the terminal state of an identification run.
type RunStatus string

const (
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFatalAbort  RunStatus = "fatal_abort"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later status classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// RunStatusFor maps a run-level error to the status reported to the caller.
// Cancellation is an interruption; anything else aborts the run.
func RunStatusFor(err error) RunStatus {
	switch {
	case err == nil:
		return RunCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return RunInterrupted
	default:
		return RunFatalAbort
	}
}

// IsWindowLocal reports whether err only affects a single window and must not
// abort the run.
func IsWindowLocal(err error) bool {
	return errors.Is(err, ErrTransientRecognition) ||
		errors.Is(err, ErrFatalRecognition) ||
		errors.Is(err, ErrDecode)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
