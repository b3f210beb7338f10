package dot

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is against the value returned by the binding.
var (
	// ErrUnsupportedPlatform is returned when no DOT artifact exists for the host OS.
	ErrUnsupportedPlatform = errors.New("unsupported operating system")
	// ErrLibraryLoad is returned when the artifact or one of its symbols cannot be loaded.
	ErrLibraryLoad = errors.New("cannot load DOT library")
	// ErrWorkspaceSizing is returned when DOT510 reports a nonzero error code.
	ErrWorkspaceSizing = errors.New("workspace sizing failed")
	// ErrInvalidProblem is returned when the problem vectors disagree in length.
	ErrInvalidProblem = errors.New("invalid problem definition")
	// ErrRunClosed is returned when a finished or closed run is stepped.
	ErrRunClosed = errors.New("run is closed")
)

// Error represents a binding error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// NewErrorf creates a new binding error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsDotError reports whether err is, or wraps, an *Error.
func IsDotError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SizingError carries the IERR code returned by the DOT510 sizing query.
type SizingError struct {
	Code int32
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("DOT510 returned IERR=%d", e.Code)
}

// Is makes errors.Is(err, ErrWorkspaceSizing) hold for any sizing error.
func (e *SizingError) Is(target error) bool {
	return target == ErrWorkspaceSizing
}
