package embeddings

import "errors"

var (
	// ErrEmbedding is returned when a single embedding request fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrBackendUnavailable is returned when a backend in the chain failed or
	// timed out. The chain recovers from it by advancing to the next backend.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")

	// ErrAllBackendsExhausted is returned when every backend in the chain
	// failed for the current call.
	ErrAllBackendsExhausted = errors.New("all embedding backends exhausted")

	// ErrDimensionMismatch is returned when two vectors of different lengths
	// are compared.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrBatchSize is returned when a batch backend answers with a different
	// number of vectors than texts it was given.
	ErrBatchSize = errors.New("embedding batch size mismatch")
)
