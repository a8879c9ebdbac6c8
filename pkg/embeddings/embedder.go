// Package embeddings defines the embedding vector type and the backend
// interfaces every embedding provider implements.
package embeddings

import "context"

// Vector is a fixed-length embedding. Its dimensionality is defined by the
// backend that produced it.
type Vector []float32

// Dimensions returns the vector length.
func (v Vector) Dimensions() int {
	return len(v)
}

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) (Vector, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// BatchEmbedder is implemented by embedders that can embed several texts in a
// single call. Implementations must return exactly one vector per input text,
// in input order.
type BatchEmbedder interface {
	Embedder

	// EmbedBatch converts texts into vector embeddings.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Embedding is a vector together with the identity of what produced it.
type Embedding struct {
	Vector Vector `json:"embedding"`

	// Model is the model that produced Vector.
	Model string `json:"model"`

	// Backend names the chain backend that answered, or "cache".
	Backend string `json:"backend"`

	// Fallback is set when Model is not the configured model. Such vectors
	// live in a different vector space and are never cached or stored.
	Fallback bool `json:"fallback"`
}
