// Package exception provides the custom error type used across the
// reconciliation pipeline. It standardizes errors so they can be categorized
// by retry and skip policies at the stage boundaries.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// PipelineError is a custom error type raised during pipeline processing.
// It holds the module where the error occurred, a message, the wrapped
// original error, and flags indicating whether it is retryable or skippable.
type PipelineError struct {
	// Module indicates the module where the error occurred (e.g., "ingest", "join", "store").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// isSkippable indicates whether this error is skippable.
	isSkippable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// New creates a new PipelineError instance.
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap (may be nil).
// isSkippable: Whether this error is skippable.
// isRetryable: Whether this error is retryable.
func New(module, message string, originalErr error, isSkippable, isRetryable bool) *PipelineError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &PipelineError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new PipelineError with a formatted message and no wrapped
// cause. The resulting error is neither retryable nor skippable.
func Newf(module, format string, a ...interface{}) *PipelineError {
	return New(module, fmt.Sprintf(format, a...), nil, false, false)
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error, enabling errors.Is/errors.As.
func (e *PipelineError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether this error is retryable.
func (e *PipelineError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether this error is skippable.
func (e *PipelineError) IsSkippable() bool {
	return e.isSkippable
}

// IsRetryable reports whether err, or any error in its chain, is a retryable
// PipelineError.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return false
}

// IsSkippable reports whether err, or any error in its chain, is a skippable
// PipelineError.
func IsSkippable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.IsSkippable()
	}
	return false
}
