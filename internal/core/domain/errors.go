package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown location source type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// Reconciliation Errors.

	// ErrInvariantViolation indicates reconciliation observed state that
	// contradicts the reference bookkeeping. The batch is halted.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrBlockNotFound indicates a block id known to the location tracker
	// is missing from the match index.
	ErrBlockNotFound = fmt.Errorf("content block %w", ErrNotFound)

	// Writer Errors.

	// ErrPriorContentRequired indicates a writer needs the previous canonical
	// content to locate the text it must replace.
	ErrPriorContentRequired = errors.New("prior content required")
)

// InvariantError describes which reconciliation step observed an
// inconsistent state.
type InvariantError struct {
	Op     string
	Detail string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: invariant violation: %s", e.Op, e.Detail)
}

// Is implements errors.Is support.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

// NewInvariantError creates a new InvariantError.
func NewInvariantError(op, format string, args ...any) *InvariantError {
	return &InvariantError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
