// Package errors provides centralized error definitions for the application.
//
// Naming conventions:
//   - Exported errors (Err*): for errors that callers check with errors.Is
//   - All sentinel errors are defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Vector index errors.
var (
	// ErrIndexNotReady indicates the vector index is not initialized or reachable.
	ErrIndexNotReady = errors.New("vector index not ready")

	// ErrEmbeddingNotFound indicates no embedding exists for the given key.
	ErrEmbeddingNotFound = errors.New("embedding not found")
)

// Provider errors.
var (
	// ErrProviderUnavailable indicates a provider is not configured or disabled.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrSegmentMismatch indicates a batch translation returned the wrong
	// number of segments for the request.
	ErrSegmentMismatch = errors.New("segment count mismatch")
)

// Cache errors.
var (
	// ErrCacheMiss indicates a translation cache entry was not found.
	ErrCacheMiss = errors.New("cache entry not found")
)

// Validation errors.
var (
	// ErrInvalidInput indicates invalid input was provided.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
