package errors

import (
	"errors"
	"fmt"
)

// Exit codes for the CLI surface.
const (
	ExitOK       = 0
	ExitNotFound = 1 // domain failure: not-found, already-exists
	ExitInvalid  = 2 // malformed arguments or input
	ExitFailed   = 3 // execution failure
)

// FatalError aborts a run. Stages return deltas and log diagnostics in
// normal operation; only fatal conditions unwind the orchestrator.
type FatalError struct {
	Reason string // stable prefix recorded in the failure metadata
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatal creates a fatal error with a stable reason prefix.
func NewFatal(reason string, err error) *FatalError {
	return &FatalError{Reason: reason, Err: err}
}

// Fatalf creates a fatal error from a formatted reason.
func Fatalf(reason, format string, args ...any) *FatalError {
	return &FatalError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// FatalReason extracts the stable reason prefix, or "" for non-fatal errors.
func FatalReason(err error) string {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal.Reason
	}
	return ""
}

// Well-known fatal reasons.
const (
	ReasonEmptyPrompt = "EmptyPrompt"
	ReasonEmptyDraft  = "EmptyDraft"
	ReasonCancelled   = "Cancelled"
)

// NotFoundError marks a missing task or history entry (exit code 1).
type NotFoundError struct {
	Kind string // "task" or "history"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound creates a not-found error for the given entity kind and ID.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InputError marks malformed user input or CLI arguments (exit code 2).
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

// NewInputError creates an input error.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// IsInput reports whether err is an InputError.
func IsInput(err error) bool {
	var in *InputError
	return errors.As(err, &in)
}

// ExitCode maps an error to the documented CLI exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsInput(err):
		return ExitInvalid
	case IsNotFound(err):
		return ExitNotFound
	default:
		return ExitFailed
	}
}
