package store

import (
	"errors"
	"fmt"
)

// Errors shared by every store implementation. Entity-specific errors wrap
// one of the generic ones so callers can match either.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would violate a uniqueness rule.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when the database rejects a row, for example
	// on a check or not-null constraint.
	ErrInvalidEntity = errors.New("invalid entity")

	ErrEcosystemNotFound = fmt.Errorf("%w: ecosystem", ErrNotFound)
	ErrShortLinkNotFound = fmt.Errorf("%w: short link", ErrNotFound)

	// ErrShortCodeTaken indicates that the short code already points at
	// another ecosystem.
	ErrShortCodeTaken = fmt.Errorf("%w: short code", ErrDuplicate)
)
