// Package remote implements the embedding backend for a remote GPU-accelerated
// embedding service.
//
// The service exposes two endpoints:
//
//	POST /embed        {"text": "..."}        -> {"embedding": [...]}
//	POST /embed_batch  {"texts": ["...", ...]} -> {"embeddings": [[...], ...]}
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// DefaultTimeout bounds a single request to the service.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the remote embedder.
type Config struct {
	// URL is the service base URL (e.g., "https://embed.example.modal.run").
	URL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Embedder calls the remote embedding service.
type Embedder struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type embedBatchRequest struct {
	Texts []string `json:"texts"`
}

type embedBatchResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewEmbedder creates a new remote embedder.
func NewEmbedder(c Config) (*Embedder, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("remote embedding service URL is required")
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	return &Embedder{
		baseURL:    strings.TrimRight(c.URL, "/"),
		apiKey:     c.APIKey,
		httpClient: httpClient,
	}, nil
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	var resp embedResponse
	if err := e.post(ctx, "/embed", embedRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: invalid response from embedding service: empty embedding", embeddings.ErrEmbedding)
	}

	return resp.Embedding, nil
}

// EmbedBatch converts texts into vector embeddings with a single request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	if len(texts) == 0 {
		return []embeddings.Vector{}, nil
	}

	var resp embedBatchResponse
	if err := e.post(ctx, "/embed_batch", embedBatchRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", embeddings.ErrBatchSize, len(resp.Embeddings), len(texts))
	}

	vectors := make([]embeddings.Vector, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", embeddings.ErrEmbedding, i)
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

func (e *Embedder) post(ctx context.Context, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", embeddings.ErrEmbedding, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", embeddings.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", embeddings.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: embedding service returned status %d: %s", embeddings.ErrEmbedding, resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", embeddings.ErrEmbedding, err)
	}
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
