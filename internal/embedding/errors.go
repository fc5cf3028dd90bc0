package embedding

import "errors"

var (
	// ErrNotConfigured is returned when no provider API key is configured.
	// It is never retried.
	ErrNotConfigured = errors.New("embedding provider API key not configured")

	// ErrRetriesExhausted wraps the last attempt error once every attempt failed.
	ErrRetriesExhausted = errors.New("failed to generate embeddings")

	// ErrAttemptTimeout marks an attempt cancelled by the per-attempt timer.
	ErrAttemptTimeout = errors.New("embeddings request timed out")

	// ErrInvalidResponse marks a response without usable vectors.
	ErrInvalidResponse = errors.New("invalid response from embeddings API")
)
