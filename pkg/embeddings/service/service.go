// Package service is the embedding entry point used by the rest of callctx.
//
// A Service combines the best-effort cache with the backend chain. Single
// texts go through Generate, batches through GenerateBatch, which serves
// cached items directly and generates the rest in as few backend calls as the
// chain allows.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/papercomputeco/callctx/pkg/cache"
	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/embeddings/chain"
)

// Encoder generates vectors through an ordered backend chain.
type Encoder interface {
	EncodeResult(ctx context.Context, text string) (chain.Result, error)
	EncodeBatchResult(ctx context.Context, texts []string) (chain.BatchResult, error)
	SupportsBatch() bool
	Health() []chain.Health
	Close() error
}

// Config configures a Service.
type Config struct {
	Encoder Encoder
	Cache   *cache.Store

	// Model identifies the embedding model and is part of every cache key.
	Model string

	Logger *slog.Logger
}

// Service generates embeddings with caching and backend fallback.
type Service struct {
	encoder Encoder
	cache   *cache.Store
	model   string
	logger  *slog.Logger
}

// New creates a service. A nil cache disables caching.
func New(c Config) *Service {
	store := c.Cache
	if store == nil {
		store = cache.Disabled(c.Logger)
	}
	return &Service{
		encoder: c.Encoder,
		cache:   store,
		model:   c.Model,
		logger:  c.Logger,
	}
}

// Model returns the configured model identifier.
func (s *Service) Model() string {
	return s.model
}

// BackendCache names the source of cache hits.
const BackendCache = "cache"

// Generate returns the embedding of text. With useCache set, a cached vector
// is returned when present and a freshly generated one is written back.
// Cache failures never fail the call; an exhausted backend chain does.
func (s *Service) Generate(ctx context.Context, text string, useCache bool) (embeddings.Vector, error) {
	e, err := s.Embed(ctx, text, useCache)
	if err != nil {
		return nil, err
	}
	return e.Vector, nil
}

// Embed is Generate reporting which model produced the vector. Vectors from
// a fallback model are returned but never written to the cache.
func (s *Service) Embed(ctx context.Context, text string, useCache bool) (embeddings.Embedding, error) {
	key := s.cache.Key(s.model, text)

	if useCache {
		if v, ok := s.cache.Get(ctx, key); ok {
			s.logger.Debug("embedding cache hit", "key", key)
			return embeddings.Embedding{Vector: v, Model: s.model, Backend: BackendCache}, nil
		}
	}

	res, err := s.encoder.EncodeResult(ctx, text)
	if err != nil {
		return embeddings.Embedding{}, err
	}

	e := s.embedding(res.Vector, res.Model, res.Backend)
	if useCache && !e.Fallback {
		s.cache.Set(ctx, key, e.Vector, 0)
	}
	return e, nil
}

// GenerateBatch returns one embedding per text, in input order.
//
// Cached texts are served from the cache. The remaining texts are generated
// with a single batch call when a backend supports it, falling back to one
// Encode per text otherwise. Texts that normalize to the same cache key are
// generated once and written once.
func (s *Service) GenerateBatch(ctx context.Context, texts []string, useCache bool) ([]embeddings.Vector, error) {
	es, err := s.EmbedBatch(ctx, texts, useCache)
	if err != nil {
		return nil, err
	}
	out := make([]embeddings.Vector, len(es))
	for i, e := range es {
		out[i] = e.Vector
	}
	return out, nil
}

// EmbedBatch is GenerateBatch reporting which model produced each vector.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, useCache bool) ([]embeddings.Embedding, error) {
	out := make([]embeddings.Embedding, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	// pending maps a cache key to the input positions waiting on it; order
	// keeps the first occurrence of each key so generation is deterministic.
	pending := make(map[string][]int, len(texts))
	var (
		order   []string
		missing []string
	)

	for i, text := range texts {
		key := s.cache.Key(s.model, text)
		if idx, seen := pending[key]; seen {
			pending[key] = append(idx, i)
			continue
		}
		pending[key] = []int{i}
		order = append(order, key)
	}

	hits := 0
	for _, key := range order {
		idx := pending[key]
		if useCache {
			if v, ok := s.cache.Get(ctx, key); ok {
				for _, i := range idx {
					out[i] = embeddings.Embedding{Vector: v, Model: s.model, Backend: BackendCache}
				}
				delete(pending, key)
				hits++
				continue
			}
		}
		missing = append(missing, key)
	}

	s.logger.Debug("batch embedding cache lookup",
		"texts", len(texts),
		"unique", len(order),
		"hits", hits,
		"misses", len(missing),
	)

	if len(missing) == 0 {
		return out, nil
	}

	missingTexts := make([]string, len(missing))
	for j, key := range missing {
		missingTexts[j] = texts[pending[key][0]]
	}

	generated, err := s.generateMissing(ctx, missingTexts)
	if err != nil {
		return nil, err
	}

	for j, key := range missing {
		e := generated[j]
		for _, i := range pending[key] {
			out[i] = e
		}
		if useCache && !e.Fallback {
			s.cache.Set(ctx, key, e.Vector, 0)
		}
	}
	return out, nil
}

func (s *Service) generateMissing(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	out := make([]embeddings.Embedding, len(texts))

	if s.encoder.SupportsBatch() {
		res, err := s.encoder.EncodeBatchResult(ctx, texts)
		if err == nil {
			for i, v := range res.Vectors {
				out[i] = s.embedding(v, res.Model, res.Backend)
			}
			return out, nil
		}
		s.logger.Debug("batch generation failed, falling back to single encodes",
			"count", len(texts),
			"error", err,
		)
	}

	for i, text := range texts {
		res, err := s.encoder.EncodeResult(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = s.embedding(res.Vector, res.Model, res.Backend)
	}
	return out, nil
}

func (s *Service) embedding(v embeddings.Vector, model, backend string) embeddings.Embedding {
	if model == "" {
		model = s.model
	}
	e := embeddings.Embedding{
		Vector:   v,
		Model:    model,
		Backend:  backend,
		Fallback: model != s.model,
	}
	if e.Fallback {
		s.logger.Debug("embedding produced by fallback model, not caching",
			"backend", backend,
			"model", model,
			"configured_model", s.model,
		)
	}
	return e
}

// Stats reports cache state and per-backend health.
func (s *Service) Stats(ctx context.Context) Stats {
	cs := s.cache.Stats(ctx)
	return Stats{
		Model:        s.model,
		CacheEnabled: cs.Enabled,
		TotalKeys:    cs.TotalKeys,
		Cache:        cs,
		Backends:     s.encoder.Health(),
	}
}

// ClearCache removes cached embeddings under prefix, or under the cache
// namespace when prefix is empty.
func (s *Service) ClearCache(ctx context.Context, prefix string) int64 {
	return s.cache.ClearNamespace(ctx, prefix)
}

// Close releases the backends and the cache connection.
func (s *Service) Close() error {
	return errors.Join(s.encoder.Close(), s.cache.Close())
}
