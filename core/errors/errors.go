// Package errors provides the error kinds surfaced by esedb.
//
// Every failure maps to exactly one Kind. Callers branch on the kind with
// errors.Is against the sentinels, or with KindOf; message text is for
// humans only.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per kind
var (
	// ErrInvalidArgument indicates a missing or wrongly typed argument
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupported indicates a recognized but disallowed option
	ErrUnsupported = errors.New("unsupported")
	// ErrInvalidState indicates an operation attempted in the wrong lifecycle state
	ErrInvalidState = errors.New("invalid state")
	// ErrIO indicates the underlying source could not be read or is malformed
	ErrIO = errors.New("i/o failure")
)

// Kind classifies an error.
type Kind int

const (
	// KindUnknown is returned for nil or foreign errors.
	KindUnknown Kind = iota
	// KindInvalidArgument maps to ErrInvalidArgument.
	KindInvalidArgument
	// KindUnsupportedOption maps to ErrUnsupported.
	KindUnsupportedOption
	// KindInvalidState maps to ErrInvalidState.
	KindInvalidState
	// KindIOFailure maps to ErrIO.
	KindIOFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindUnsupportedOption:
		return "UnsupportedOption"
	case KindInvalidState:
		return "InvalidState"
	case KindIOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// KindOf reports the kind of err. Sentinels are checked in a fixed order so an
// error wrapping several of them still classifies deterministically.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrUnsupported):
		return KindUnsupportedOption
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrIO):
		return KindIOFailure
	default:
		return KindUnknown
	}
}

// ArgumentError represents a missing or wrongly typed argument
type ArgumentError struct {
	Op      string // Operation that rejected the argument (e.g., "open")
	Field   string // Argument name
	Message string // Human-readable error message
}

func (e *ArgumentError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArgument
}

// UnsupportedError represents an unsupported option such as an access mode
type UnsupportedError struct {
	Op      string // Operation that rejected the option
	Feature string // Option that is unsupported (e.g., "mode")
	Value   string // Rejected value
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("unsupported %s", e.Feature)
	if e.Value != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Value)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

// StateError represents an operation attempted in the wrong lifecycle state
type StateError struct {
	Op     string // Operation that was attempted
	Reason string // State description (e.g., "already open", "not open")
}

func (e *StateError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return e.Reason
}

func (e *StateError) Unwrap() error {
	return ErrInvalidState
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

// Unwrap exposes both ErrIO and the cause, so os.ErrNotExist and friends
// remain detectable.
func (e *IOError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrIO}
	}
	return []error{ErrIO, e.Err}
}

// Helper functions for creating common errors

// NewArgument creates an ArgumentError
func NewArgument(op, field, message string) *ArgumentError {
	return &ArgumentError{
		Op:      op,
		Field:   field,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(op, feature, value string) *UnsupportedError {
	return &UnsupportedError{
		Op:      op,
		Feature: feature,
		Value:   value,
	}
}

// NewState creates a StateError
func NewState(op, reason string) *StateError {
	return &StateError{
		Op:     op,
		Reason: reason,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}
