// Package errs defines transport-agnostic error types shared across layers.
// The HTTP layer maps them to status codes in a single place.
package errs

import (
	"errors"
	"fmt"
)

type ErrorMessage struct {
	Message string
}

func (e *ErrorMessage) Error() string { return e.Message }

type NotFoundError struct {
	ErrorMessage
}

type ValidationError struct {
	ErrorMessage
}

type UnauthorizedError struct {
	ErrorMessage
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{ErrorMessage: ErrorMessage{Message: message}}
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{ErrorMessage: ErrorMessage{Message: message}}
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{ErrorMessage: ErrorMessage{Message: message}}
}

// ExternalServiceError reports a failed call to a third-party dependency.
// Transient marks failures worth retrying (timeouts, 429, 5xx).
type ExternalServiceError struct {
	Service    string
	Operation  string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed (status %d): %v", e.Service, e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// DatabaseError wraps a storage failure with the operation that produced it.
type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// IsTransient reports whether err wraps a transient ExternalServiceError.
func IsTransient(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext) && ext.Transient
}
