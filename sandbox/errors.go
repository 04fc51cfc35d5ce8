package sandbox

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrScript indicates the orchestration script raised an uncaught
	// error or failed to parse.
	ErrScript = errors.New("script error")

	// ErrTimeout indicates the run exceeded its wall-clock budget.
	// A timeout is terminal for the run; no retry is attempted.
	ErrTimeout = errors.New("execution budget exceeded")

	// ErrNotFound indicates the script called a capability name that is
	// not in the registry.
	ErrNotFound = errors.New("capability not found")
)

// ScriptError represents an uncaught failure from an orchestration script.
// It includes optional source location information for debugging.
type ScriptError struct {
	// Message describes the error.
	Message string

	// Line is the 1-based line number where the error occurred.
	// Zero indicates the line is unknown.
	Line int

	// Column is the 1-based column number where the error occurred.
	// Zero indicates the column is unknown.
	Column int

	// Err is the underlying error, if any.
	Err error
}

// Error returns the error message, including line and column if available.
func (e *ScriptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d, col %d)", e.Message, e.Line, e.Column)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is and errors.As.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches the target.
// ScriptError matches ErrScript to allow sentinel-style error checking.
func (e *ScriptError) Is(target error) bool {
	return target == ErrScript
}
