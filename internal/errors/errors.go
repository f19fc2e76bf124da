package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType categorizes failures so the CLI and the HTTP server can map them
// to exit messages and status codes.
type ErrorType string

const (
	ErrTypeAPI        ErrorType = "api"
	ErrTypeNetwork    ErrorType = "network"
	ErrTypeValidation ErrorType = "validation"
	ErrTypeConfig     ErrorType = "config"
	ErrTypeNotFound   ErrorType = "not_found"
	ErrTypeConflict   ErrorType = "conflict"
	ErrTypeDatabase   ErrorType = "database"
	ErrTypeFileSystem ErrorType = "filesystem"
	ErrTypeBusy       ErrorType = "busy"
	ErrTypeClosed     ErrorType = "closed"
	ErrTypeInternal   ErrorType = "internal"
)

// Error is a typed error with optional cause and operator-facing suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Field       string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field: %s)", e.Message, e.Field)
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type and message, so package-level
// sentinels work with errors.Is even after being wrapped.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return e.Type == other.Type && e.Message == other.Message && e.Field == other.Field
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type == errType
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// NewConfigError creates a configuration error with suggestions
func NewConfigError(message, field string) *Error {
	err := New(ErrTypeConfig, message)
	err.Field = field

	return err.
		WithSuggestion("Check your configuration file syntax").
		WithSuggestion("Run 'gen-console config' to see the active configuration")
}

// NewValidationError reports a single invalid form field
func NewValidationError(field, message string) *Error {
	err := New(ErrTypeValidation, message)
	err.Field = field

	return err
}

// Suggestions collects the suggestions of every structured error in the chain
func Suggestions(err error) []string {
	var out []string

	for err != nil {
		var structErr *Error
		if !errors.As(err, &structErr) {
			break
		}

		out = append(out, structErr.Suggestions...)
		err = structErr.Cause
	}

	return out
}

// Describe renders an error and its suggestions for terminal output
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString("Error: ")
	b.WriteString(err.Error())

	for _, s := range Suggestions(err) {
		b.WriteString("\n  - ")
		b.WriteString(s)
	}

	return b.String()
}
