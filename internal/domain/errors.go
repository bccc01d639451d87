// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEcosystem is returned when an ecosystem with the same title
	// already exists.
	ErrDuplicateEcosystem = errors.New("duplicate ecosystem")
)
