// Package errors provides typed domain errors for archstatus.
//
// Input faults (unreadable or structurally incomplete documents) are
// reported with TypeInput so callers can tell them apart from internal
// failures and reject the input before any rule runs.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Type identifies the category of error.
type Type string

const (
	TypeInput    Type = "INPUT_ERROR"
	TypeParsing  Type = "PARSING_ERROR"
	TypeConfig   Type = "CONFIG_ERROR"
	TypeNotFound Type = "NOT_FOUND"
	TypeInternal Type = "INTERNAL_ERROR"
)

// Error is a domain error with an optional cause and context.
type Error struct {
	Type    Type           `json:"type"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair and returns e.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

func Newf(t Type, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

func Wrap(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// IsType reports whether any error in err's chain is an *Error of type t.
func IsType(err error, t Type) bool {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Cause
	}
	return false
}

// Input creates an input error.
func Input(message string) *Error {
	return New(TypeInput, message)
}

// Inputf creates a formatted input error.
func Inputf(format string, args ...any) *Error {
	return Newf(TypeInput, format, args...)
}

// Parsing wraps a decode failure.
func Parsing(message string, cause error) *Error {
	return Wrap(TypeParsing, message, cause)
}

// Config wraps a configuration failure.
func Config(message string, cause error) *Error {
	return Wrap(TypeConfig, message, cause)
}

// NotFound creates a not found error.
func NotFound(kind, id string) *Error {
	return Newf(TypeNotFound, "%s not found: %s", kind, id)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return Wrap(TypeInternal, message, cause)
}
