// Package chain implements the ordered embedding backend chain.
//
// A Chain holds backend descriptors in priority order: a remote GPU service, a
// local GPU-optimized runtime, then a CPU backend that is always available.
// Encoding tries each backend once, in order, and returns the first success.
// A failing backend is skipped for the current call, never retried.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// DefaultTimeout bounds a single backend attempt when the descriptor sets none.
const DefaultTimeout = 30 * time.Second

// ErrNoBatchBackend is returned by EncodeBatch when no backend in the chain
// supports batch embedding.
var ErrNoBatchBackend = errors.New("no backend supports batch embedding")

// Backend is a named embedding backend with its own per-attempt timeout.
type Backend struct {
	// Name identifies the backend in logs and health reports.
	Name string

	// Embedder produces the vectors. Implementing embeddings.BatchEmbedder
	// enables batch attempts.
	Embedder embeddings.Embedder

	// Timeout bounds each attempt. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Model identifies the vector space the backend produces. Empty means the
	// chain's configured model.
	Model string
}

// Result is the transient outcome of one backend attempt.
type Result struct {
	Vector  embeddings.Vector
	Backend string
	Model   string
	Latency time.Duration
	Err     error
}

// BatchResult is the transient outcome of one batch attempt.
type BatchResult struct {
	Vectors []embeddings.Vector
	Backend string
	Model   string
	Latency time.Duration
	Err     error
}

// SupportsBatch reports whether the backend can embed several texts per call.
func (b Backend) SupportsBatch() bool {
	_, ok := b.Embedder.(embeddings.BatchEmbedder)
	return ok
}

// Attempt runs a single embedding attempt bounded by the backend timeout.
func (b Backend) Attempt(ctx context.Context, text string) Result {
	ctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	start := time.Now()
	v, err := b.Embedder.Embed(ctx, text)
	res := Result{Backend: b.Name, Model: b.Model, Latency: time.Since(start)}

	switch {
	case err != nil:
		res.Err = fmt.Errorf("%w: %s: %w", embeddings.ErrBackendUnavailable, b.Name, err)
	case len(v) == 0:
		res.Err = fmt.Errorf("%w: %s: empty vector", embeddings.ErrBackendUnavailable, b.Name)
	default:
		res.Vector = v
	}
	return res
}

// AttemptBatch runs a single batch attempt bounded by the backend timeout.
func (b Backend) AttemptBatch(ctx context.Context, texts []string) BatchResult {
	be, ok := b.Embedder.(embeddings.BatchEmbedder)
	if !ok {
		return BatchResult{Backend: b.Name, Model: b.Model, Err: fmt.Errorf("%w: %s", ErrNoBatchBackend, b.Name)}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	start := time.Now()
	vs, err := be.EmbedBatch(ctx, texts)
	res := BatchResult{Backend: b.Name, Model: b.Model, Latency: time.Since(start)}

	if err == nil && len(vs) != len(texts) {
		err = fmt.Errorf("%w: got %d vectors for %d texts", embeddings.ErrBatchSize, len(vs), len(texts))
	}
	if err == nil {
		for i, v := range vs {
			if len(v) == 0 {
				err = fmt.Errorf("empty vector at index %d", i)
				break
			}
		}
	}

	if err != nil {
		res.Err = fmt.Errorf("%w: %s: %w", embeddings.ErrBackendUnavailable, b.Name, err)
		return res
	}
	res.Vectors = vs
	return res
}

func (b Backend) timeout() time.Duration {
	if b.Timeout <= 0 {
		return DefaultTimeout
	}
	return b.Timeout
}

// Chain is an ordered list of embedding backends.
type Chain struct {
	backends []Backend
	logger   *slog.Logger

	mu     sync.RWMutex
	health map[string]*Health
}

// New creates a chain that tries backends in the given order.
func New(backends []Backend, logger *slog.Logger) (*Chain, error) {
	if len(backends) == 0 {
		return nil, errors.New("embedding chain requires at least one backend")
	}

	health := make(map[string]*Health, len(backends))
	for _, b := range backends {
		if b.Name == "" {
			return nil, errors.New("embedding backend name is required")
		}
		if b.Embedder == nil {
			return nil, fmt.Errorf("embedding backend %q has no embedder", b.Name)
		}
		if _, dup := health[b.Name]; dup {
			return nil, fmt.Errorf("duplicate embedding backend %q", b.Name)
		}
		health[b.Name] = &Health{Name: b.Name, Batch: b.SupportsBatch()}
	}

	return &Chain{
		backends: append([]Backend(nil), backends...),
		logger:   logger,
		health:   health,
	}, nil
}

// Backends returns the backends in fallback order.
func (c *Chain) Backends() []Backend {
	return append([]Backend(nil), c.backends...)
}

// SupportsBatch reports whether any backend supports batch embedding.
func (c *Chain) SupportsBatch() bool {
	for _, b := range c.backends {
		if b.SupportsBatch() {
			return true
		}
	}
	return false
}

// Encode embeds text with the first backend that succeeds. It returns
// embeddings.ErrAllBackendsExhausted when every backend fails.
func (c *Chain) Encode(ctx context.Context, text string) (embeddings.Vector, error) {
	res, err := c.EncodeResult(ctx, text)
	if err != nil {
		return nil, err
	}
	return res.Vector, nil
}

// EncodeResult is Encode returning the successful attempt, so callers can
// tell which backend and model produced the vector.
func (c *Chain) EncodeResult(ctx context.Context, text string) (Result, error) {
	var errs []error

	for _, b := range c.backends {
		res := b.Attempt(ctx, text)
		c.record(res.Backend, res.Latency, res.Err)

		if res.Err == nil {
			c.logger.Debug("embedding generated",
				"backend", res.Backend,
				"dimensions", len(res.Vector),
				"latency", res.Latency,
			)
			return res, nil
		}

		c.logger.Debug("embedding backend failed, trying next",
			"backend", res.Backend,
			"latency", res.Latency,
			"error", res.Err,
		)
		errs = append(errs, res.Err)

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	c.logger.Error("all embedding backends failed", "backends", len(c.backends))
	return Result{}, fmt.Errorf("%w: %w", embeddings.ErrAllBackendsExhausted, errors.Join(errs...))
}

// EncodeBatch embeds texts with the first batch-capable backend that succeeds.
// Backends without batch support are skipped. Callers fall back to per-item
// Encode when this returns an error.
func (c *Chain) EncodeBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	res, err := c.EncodeBatchResult(ctx, texts)
	if err != nil {
		return nil, err
	}
	return res.Vectors, nil
}

// EncodeBatchResult is EncodeBatch returning the successful attempt.
func (c *Chain) EncodeBatchResult(ctx context.Context, texts []string) (BatchResult, error) {
	if len(texts) == 0 {
		return BatchResult{Vectors: []embeddings.Vector{}}, nil
	}

	var errs []error
	for _, b := range c.backends {
		if !b.SupportsBatch() {
			continue
		}

		res := b.AttemptBatch(ctx, texts)
		c.record(res.Backend, res.Latency, res.Err)

		if res.Err == nil {
			c.logger.Debug("batch embeddings generated",
				"backend", res.Backend,
				"count", len(res.Vectors),
				"latency", res.Latency,
			)
			return res, nil
		}

		c.logger.Debug("batch embedding backend failed, trying next",
			"backend", res.Backend,
			"count", len(texts),
			"error", res.Err,
		)
		errs = append(errs, res.Err)

		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	if len(errs) == 0 {
		return BatchResult{}, ErrNoBatchBackend
	}
	return BatchResult{}, fmt.Errorf("%w: %w", embeddings.ErrAllBackendsExhausted, errors.Join(errs...))
}

// Close closes every backend embedder.
func (c *Chain) Close() error {
	var errs []error
	for _, b := range c.backends {
		if err := b.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}
