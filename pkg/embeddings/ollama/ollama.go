// Package ollama implements the local GPU-optimized embedding backend on top
// of Ollama's embedding API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/lazy"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "bge-large"

	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Model describes the model loaded into the Ollama runtime.
type Model struct {
	Name   string
	Family string
}

// Embedder wraps Ollama's embedding API.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
	handle     *lazy.Handle[*Model]
}

// EmbedderConfig holds configuration for the Ollama embedder.
type EmbedderConfig struct {
	// BaseURL is the Ollama API URL (e.g., "http://localhost:11434").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the embedding model to use (e.g., "bge-large", "nomic-embed-text").
	// Defaults to DefaultEmbeddingModel if empty.
	Model string

	// Handle is the shared model handle. Embedders pointed at the same runtime
	// should share one so the model is only loaded once per process.
	// A private handle is created when nil.
	Handle *lazy.Handle[*Model]

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type showRequest struct {
	Model string `json:"model"`
}

type showResponse struct {
	Details struct {
		Family string `json:"family"`
	} `json:"details"`
}

// NewEmbedder creates a new embedder using Ollama's embedding API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 120 * time.Second,
		}
	}

	e := &Embedder{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		handle:     cfg.Handle,
	}
	if e.handle == nil {
		e.handle = NewModelHandle(baseURL, model, httpClient)
	}

	return e, nil
}

// NewModelHandle returns a lazily loaded handle to the named model. Loading asks
// the runtime to describe the model, which fails fast when it is not installed.
func NewModelHandle(baseURL, model string, httpClient *http.Client) *lazy.Handle[*Model] {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return lazy.New(func(ctx context.Context) (*Model, error) {
		var resp showResponse
		if err := post(ctx, httpClient, baseURL+"/api/show", showRequest{Model: model}, &resp); err != nil {
			return nil, fmt.Errorf("loading model %s: %w", model, err)
		}
		return &Model{Name: model, Family: resp.Details.Family}, nil
	})
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	vectors, err := e.embed(ctx, text, 1)
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
	return e.embed(ctx, texts, len(texts))
}

func (e *Embedder) embed(ctx context.Context, input any, want int) ([]embeddings.Vector, error) {
	if _, err := e.handle.Get(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	var resp embedResponse
	if err := post(ctx, e.httpClient, e.baseURL+"/api/embed", embedRequest{Model: e.model, Input: input}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", embeddings.ErrEmbedding)
	}
	if len(resp.Embeddings) != want {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", embeddings.ErrBatchSize, len(resp.Embeddings), want)
	}

	vectors := make([]embeddings.Vector, len(resp.Embeddings))
	for i, v := range resp.Embeddings {
		vectors[i] = v
	}
	return vectors, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

func post(ctx context.Context, client *http.Client, url string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
