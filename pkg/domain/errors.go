package domain

import "errors"

// Common domain errors
var (
	// ErrNotFound is returned when a requested resource is not found
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when trying to create a resource that already exists
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrValidation is returned when input validation fails
	ErrValidation = errors.New("validation error")
	// ErrInvariantViolation is returned when a monetary or consistency invariant
	// would be broken. It is never retried.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrTransient marks transport/IO failures (timeouts, connection resets,
	// upstream 5xx). Only errors wrapping it are retried.
	ErrTransient = errors.New("transient failure")
	// ErrConflict is returned by the remote side when an update races another writer.
	ErrConflict = errors.New("conflict")
	// ErrUnresolvedReference is returned when a foreign key cannot be mapped
	// between local and server identities, usually because the referenced
	// row has not been synced yet.
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// IsTransient reports whether err is classified as a retryable transport failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
