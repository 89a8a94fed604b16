package bank

import (
	"errors"
	"fmt"
	"strings"
)

// Row-level error taxonomy. Every one of these is recoverable: the pipeline
// records it against the row and moves on.

// MalformedRowError: the row's headers could not be parsed into the
// structures the question type expects.
type MalformedRowError struct {
	Problems []string
}

func (e *MalformedRowError) Error() string {
	return "malformed row: " + strings.Join(e.Problems, "; ")
}

// ValidationError carries every rule the row violated, not just the first.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid row: " + strings.Join(e.Messages, "; ")
}

// PersistenceError: the store rejected the built record.
type PersistenceError struct {
	Msg string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("persistence: %s: %v", e.Msg, e.Err)
	}
	return "persistence: " + e.Msg
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DuplicateResourceError: a unique-name create race lost to a concurrent
// writer. Retryable for the affected row.
type DuplicateResourceError struct {
	Resource string
	Err      error
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("duplicate resource %s: %v", e.Resource, e.Err)
}

func (e *DuplicateResourceError) Unwrap() error { return e.Err }

// rowMessages flattens any taxonomy error into the per-row report lines.
func rowMessages(err error) []string {
	var malformed *MalformedRowError
	if errors.As(err, &malformed) {
		return malformed.Problems
	}
	var invalid *ValidationError
	if errors.As(err, &invalid) {
		return invalid.Messages
	}
	return []string{err.Error()}
}
