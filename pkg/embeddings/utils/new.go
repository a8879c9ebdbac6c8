// Package embeddingutils builds the embedding backend chain from configuration.
package embeddingutils

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings/chain"
	"github.com/papercomputeco/callctx/pkg/embeddings/hashing"
	"github.com/papercomputeco/callctx/pkg/embeddings/ollama"
	"github.com/papercomputeco/callctx/pkg/embeddings/openai"
	"github.com/papercomputeco/callctx/pkg/embeddings/remote"
	"github.com/papercomputeco/callctx/pkg/lazy"
)

// Backend names as reported by chain health.
const (
	BackendRemote   = "remote"
	BackendLocalGPU = "local_gpu"
	BackendCPU      = "cpu"
)

// Remote provider types.
const (
	ProviderGPUService = "gpu-service"
	ProviderOpenAI     = "openai"
)

type NewChainOpts struct {
	// RemoteTarget enables the remote backend when set.
	RemoteTarget   string
	RemoteProvider string
	RemoteAPIKey   string

	// LocalGPU enables the Ollama backend at LocalTarget.
	LocalGPU    bool
	LocalTarget string

	// Model is passed to backends that take a model name and seeds the CPU
	// backend.
	Model      string
	Dimensions uint

	// Timeout bounds each backend attempt.
	Timeout time.Duration

	// OllamaHandle and CPUHandle share loaded models across chains. Private
	// handles are created when nil.
	OllamaHandle *lazy.Handle[*ollama.Model]
	CPUHandle    *lazy.Handle[*hashing.Model]

	Logger *slog.Logger
}

// NewChain builds the backend chain in priority order: remote (when a target
// is set), local GPU (when enabled), then the CPU backend, which is always
// last so the chain can always answer.
func NewChain(o *NewChainOpts) (*chain.Chain, error) {
	var backends []chain.Backend

	if o.RemoteTarget != "" {
		b, err := newRemote(o)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	if o.LocalGPU {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.LocalTarget,
			Model:   o.Model,
			Handle:  o.OllamaHandle,
		})
		if err != nil {
			return nil, fmt.Errorf("creating local GPU embedder: %w", err)
		}
		backends = append(backends, chain.Backend{Name: BackendLocalGPU, Embedder: e, Timeout: o.Timeout, Model: o.Model})
	}

	backends = append(backends, chain.Backend{
		Name: BackendCPU,
		Embedder: hashing.NewEmbedder(hashing.Config{
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
			Handle:     o.CPUHandle,
		}),
		Timeout: o.Timeout,
		Model:   CPUModel(o.Model, len(backends) > 0),
	})

	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name
	}
	o.Logger.Debug("embedding chain configured", "backends", names, "model", o.Model)

	return chain.New(backends, o.Logger)
}

// CPUModel is the model identity of the CPU backend. On its own it stands in
// for model; behind other backends it is a separate lexical vector space.
func CPUModel(model string, fallback bool) string {
	if !fallback {
		return model
	}
	return hashing.DefaultModel + "/" + model
}

func newRemote(o *NewChainOpts) (chain.Backend, error) {
	switch o.RemoteProvider {
	case "", ProviderGPUService:
		e, err := remote.NewEmbedder(remote.Config{
			URL:    o.RemoteTarget,
			APIKey: o.RemoteAPIKey,
		})
		if err != nil {
			return chain.Backend{}, fmt.Errorf("creating remote embedder: %w", err)
		}
		return chain.Backend{Name: BackendRemote, Embedder: e, Timeout: o.Timeout, Model: o.Model}, nil

	case ProviderOpenAI:
		e, err := openai.NewEmbedder(openai.Config{
			APIKey:     o.RemoteAPIKey,
			BaseURL:    o.RemoteTarget,
			Model:      o.Model,
			Dimensions: int(o.Dimensions),
		})
		if err != nil {
			return chain.Backend{}, fmt.Errorf("creating openai embedder: %w", err)
		}
		return chain.Backend{Name: BackendRemote, Embedder: e, Timeout: o.Timeout, Model: o.Model}, nil

	default:
		return chain.Backend{}, fmt.Errorf("unsupported remote embedding provider: %s", o.RemoteProvider)
	}
}
