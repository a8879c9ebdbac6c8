package vector

import "errors"

var (
	// ErrNotFound is returned when an owner or vector is not in the store.
	ErrNotFound = errors.New("vector not found")

	// ErrInvalidTag is returned for tags outside the closed set.
	ErrInvalidTag = errors.New("invalid vector tag")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
