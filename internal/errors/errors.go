// Package errors defines the error taxonomy shared by bucketlens components.
package errors

import (
	"errors"
	"fmt"
)

// Base error types
var (
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient provider error")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrGuardrail     = errors.New("guardrail rejection")
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeTransient     ErrorType = "transient"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeGuardrail     ErrorType = "guardrail"
	ErrorTypeProvider      ErrorType = "provider"
)

// Error is a structured error carrying its category and the failed operation.
type Error struct {
	Type     ErrorType
	Op       string // Operation that failed (e.g., "list objects", "chat")
	Resource string // Bucket name if applicable
	Err      error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Resource != "" {
		msg = fmt.Sprintf("%s %s", e.Op, e.Resource)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", msg, e.Type)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Type == ErrorTypeConfiguration
	case ErrTransient:
		return e.Type == ErrorTypeTransient
	case ErrNotFound:
		return e.Type == ErrorTypeNotFound
	case ErrValidation:
		return e.Type == ErrorTypeValidation
	case ErrGuardrail:
		return e.Type == ErrorTypeGuardrail
	}
	return false
}

// Configuration wraps a fatal construction-time error.
func Configuration(op string, err error) error {
	return &Error{Type: ErrorTypeConfiguration, Op: op, Err: err}
}

// Configurationf builds a configuration error from a message.
func Configurationf(op, format string, args ...any) error {
	return Configuration(op, fmt.Errorf(format, args...))
}

// Transient wraps a retryable provider failure.
func Transient(op, resource string, err error) error {
	return &Error{Type: ErrorTypeTransient, Op: op, Resource: resource, Err: err}
}

// NotFound reports a missing resource.
func NotFound(op, resource string, err error) error {
	return &Error{Type: ErrorTypeNotFound, Op: op, Resource: resource, Err: err}
}

// Validation reports malformed input.
func Validation(op string, err error) error {
	return &Error{Type: ErrorTypeValidation, Op: op, Err: err}
}

// Validationf builds a validation error from a message.
func Validationf(op, format string, args ...any) error {
	return Validation(op, fmt.Errorf(format, args...))
}

// Guardrail reports a query refused before reaching the model.
func Guardrail(term string) error {
	return &Error{Type: ErrorTypeGuardrail, Op: "guardrail", Err: fmt.Errorf("mutation intent %q", term)}
}

// Provider wraps a non-retryable provider failure.
func Provider(op, resource string, err error) error {
	return &Error{Type: ErrorTypeProvider, Op: op, Resource: resource, Err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsNotFound reports whether err denotes a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsGuardrail reports whether err is a guardrail rejection.
func IsGuardrail(err error) bool {
	return errors.Is(err, ErrGuardrail)
}
