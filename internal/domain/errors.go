package domain

import "errors"

var (
	// ErrNotFound signals a missing game.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery signals malformed search parameters (not an empty query, which is a no-op).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrModelUnavailable signals that the embedding model could not be loaded or did not answer.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrMissingEmbedding signals that a game has no stored vector.
	ErrMissingEmbedding = errors.New("missing embedding")
	// ErrIndexUnavailable signals that native vector search is not available on the backend.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
