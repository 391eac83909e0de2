package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent error conditions in the termstream domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrAlreadyUploaded is returned when terms are added to a sealed problem.
	ErrAlreadyUploaded = errors.New("termstream: problem already uploaded")

	// ErrInvalidState is returned when an operation is not valid in the
	// problem's current lifecycle state (e.g. Download before Upload).
	ErrInvalidState = errors.New("termstream: invalid state")

	// ErrSerialization is returned when a term or the initial configuration
	// cannot be rendered to JSON.
	ErrSerialization = errors.New("termstream: serialization failed")

	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("termstream: transport failure")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("termstream: invalid configuration")

	// ErrSinkClosed is returned when writing to a finished sink or compressor.
	ErrSinkClosed = errors.New("termstream: sink closed")

	// ErrNotFound is returned by stores when no committed object exists at
	// the requested destination.
	ErrNotFound = errors.New("termstream: object not found")
)

// TransportError wraps a failure reported by a blob sink while appending a
// chunk, committing or aborting an object.
type TransportError struct {
	Op        string
	Container string
	Blob      string
	Err       error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("termstream: %s %s/%s: %v", e.Op, e.Container, e.Blob, e.Err)
}

// Unwrap returns the underlying sink error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransport.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
