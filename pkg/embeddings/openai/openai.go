// Package openai implements a remote embedding backend for OpenAI-compatible
// embedding APIs.
package openai

import (
	"context"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// DefaultEmbeddingModel is used when no model is configured.
const DefaultEmbeddingModel = string(goopenai.SmallEmbedding3)

// Config holds configuration for the OpenAI embedder.
type Config struct {
	// APIKey authenticates against the API.
	APIKey string

	// BaseURL overrides the API base URL, for OpenAI-compatible servers.
	BaseURL string

	// Model is the embedding model. Defaults to DefaultEmbeddingModel.
	Model string

	// Dimensions requests shortened embeddings when the model supports it.
	Dimensions int

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Embedder calls an OpenAI-compatible embeddings endpoint.
type Embedder struct {
	client     *goopenai.Client
	model      goopenai.EmbeddingModel
	dimensions int
}

// NewEmbedder creates a new OpenAI embedder.
func NewEmbedder(c Config) (*Embedder, error) {
	if c.APIKey == "" && c.BaseURL == "" {
		return nil, fmt.Errorf("openai embedder requires an API key or a base URL")
	}

	cfg := goopenai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	if c.HTTPClient != nil {
		cfg.HTTPClient = c.HTTPClient
	}

	model := c.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(cfg),
		model:      goopenai.EmbeddingModel(model),
		dimensions: c.Dimensions,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts texts into vector embeddings with a single request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	if len(texts) == 0 {
		return []embeddings.Vector{}, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      e.model,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", embeddings.ErrBatchSize, len(resp.Data), len(texts))
	}

	// The API reports each item's input index; do not rely on response order.
	vectors := make([]embeddings.Vector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", embeddings.ErrEmbedding, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: missing embedding for index %d", embeddings.ErrEmbedding, i)
		}
	}

	return vectors, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
