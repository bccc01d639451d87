package service

import (
	"errors"
	"fmt"
)

// Common service errors - sentinel errors used across service implementations.
// Callers use errors.Is() to check for them; the API layer maps them to HTTP
// status codes.
var (
	// ErrNilEcosystem is returned when Record is called without an ecosystem.
	ErrNilEcosystem = errors.New("ecosystem cannot be nil")

	// ErrLinkMismatch is returned when a short link points at a different chat
	// than the ecosystem it is recorded with.
	ErrLinkMismatch = errors.New("short link belongs to another chat")
)

// EcosystemServiceError is a custom error type for ecosystem service errors.
type EcosystemServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for EcosystemServiceError.
func (e *EcosystemServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ecosystem service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("ecosystem service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *EcosystemServiceError) Unwrap() error {
	return e.Err
}

// NewEcosystemServiceError creates a new EcosystemServiceError.
func NewEcosystemServiceError(operation, message string, err error) *EcosystemServiceError {
	return &EcosystemServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
