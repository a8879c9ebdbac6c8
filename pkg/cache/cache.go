// Package cache provides the best-effort embedding cache.
//
// A Store sits in front of a Backend that is opened lazily on first use. Any
// backend failure degrades to a miss on read and a no-op on write: the cache
// never turns an embedding request into an error.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/lazy"
)

const (
	// DefaultNamespace prefixes every embedding cache key.
	DefaultNamespace = "embedding:"

	// DefaultTTL is how long cached vectors live.
	DefaultTTL = 24 * time.Hour

	// DefaultOpTimeout bounds a single backend operation.
	DefaultOpTimeout = 2 * time.Second
)

// ErrUnavailable reports that the cache backend cannot serve requests.
var ErrUnavailable = errors.New("cache unavailable")

// Backend is a key/value store for vectors with per-entry expiry.
type Backend interface {
	// Get returns the vector under key. Expired entries are reported absent.
	Get(ctx context.Context, key string) (embeddings.Vector, bool, error)

	// Set stores vec under key, replacing any previous entry. A ttl <= 0
	// stores the entry without expiry.
	Set(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) error

	// DeletePrefix removes every entry whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)

	// Count returns the number of live entries whose key starts with prefix.
	Count(ctx context.Context, prefix string) (int64, error)

	// Close releases the backend.
	Close() error
}

// Options configures a Store.
type Options struct {
	// Namespace prefixes derived keys. Defaults to DefaultNamespace.
	Namespace string

	// TTL is applied when Set is called with a zero ttl. Defaults to DefaultTTL.
	TTL time.Duration

	// OpTimeout bounds each backend call. Defaults to DefaultOpTimeout.
	OpTimeout time.Duration
}

// Store is the cache used by the embedding service.
type Store struct {
	handle  *lazy.Handle[Backend]
	opts    Options
	logger  *slog.Logger
	backend string

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
	errs   atomic.Int64
}

// New creates a store over a lazily opened backend. A nil handle yields a
// disabled store.
func New(name string, handle *lazy.Handle[Backend], opts Options, logger *slog.Logger) *Store {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	return &Store{
		handle:  handle,
		opts:    opts,
		logger:  logger,
		backend: name,
	}
}

// Disabled returns a store that always misses and never writes.
func Disabled(logger *slog.Logger) *Store {
	return New("disabled", nil, Options{}, logger)
}

// Enabled reports whether a backend is configured.
func (s *Store) Enabled() bool {
	return s.handle != nil
}

// Namespace returns the key prefix of this store.
func (s *Store) Namespace() string {
	return s.opts.Namespace
}

// TTL returns the default entry lifetime.
func (s *Store) TTL() time.Duration {
	return s.opts.TTL
}

// Key derives the cache key for text embedded with model.
func (s *Store) Key(model, text string) string {
	return Key(s.opts.Namespace, model, text)
}

// Get returns the cached vector under key. Backend failures are reported as
// a miss.
func (s *Store) Get(ctx context.Context, key string) (embeddings.Vector, bool) {
	b, err := s.open(ctx)
	if err != nil {
		s.misses.Add(1)
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	v, ok, err := b.Get(ctx, key)
	if err != nil {
		s.errs.Add(1)
		s.misses.Add(1)
		s.logger.Debug("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok || len(v) == 0 {
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	return v, true
}

// Set stores vec under key for ttl, or the store's default TTL when ttl is
// zero. It reports whether the write reached the backend.
func (s *Store) Set(ctx context.Context, key string, vec embeddings.Vector, ttl time.Duration) bool {
	if len(vec) == 0 {
		return false
	}

	b, err := s.open(ctx)
	if err != nil {
		return false
	}
	if ttl <= 0 {
		ttl = s.opts.TTL
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	if err := b.Set(ctx, key, vec, ttl); err != nil {
		s.errs.Add(1)
		s.logger.Debug("cache write failed", "key", key, "error", err)
		return false
	}

	s.writes.Add(1)
	return true
}

// ClearNamespace removes every entry whose key starts with prefix and returns
// how many were removed. An empty prefix clears the store's namespace.
func (s *Store) ClearNamespace(ctx context.Context, prefix string) int64 {
	if prefix == "" {
		prefix = s.opts.Namespace
	}

	b, err := s.open(ctx)
	if err != nil {
		return 0
	}

	n, err := b.DeletePrefix(ctx, prefix)
	if err != nil {
		s.errs.Add(1)
		s.logger.Warn("cache clear failed", "prefix", prefix, "error", err)
		return 0
	}

	s.logger.Info("cache cleared", "prefix", prefix, "removed", n)
	return n
}

// Stats reports the cache state. It never fails.
func (s *Store) Stats(ctx context.Context) Stats {
	st := Stats{
		Enabled:    s.Enabled(),
		Backend:    s.backend,
		Namespace:  s.opts.Namespace,
		TTLSeconds: int64(s.opts.TTL / time.Second),
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Writes:     s.writes.Load(),
		Errors:     s.errs.Load(),
	}
	if !st.Enabled {
		st.Health = HealthDisabled
		return st
	}

	b, err := s.open(ctx)
	if err != nil {
		st.Errors = s.errs.Load()
		st.Health = HealthUnavailable
		return st
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	n, err := b.Count(ctx, s.opts.Namespace)
	if err != nil {
		s.errs.Add(1)
		s.logger.Debug("cache count failed", "error", err)
		st.Errors = s.errs.Load()
		st.Health = HealthUnavailable
		return st
	}

	st.TotalKeys = n
	st.Health = HealthOK
	return st
}

// Close releases the backend if it was opened.
func (s *Store) Close() error {
	if s.handle == nil {
		return nil
	}
	return s.handle.Close()
}

func (s *Store) open(ctx context.Context) (Backend, error) {
	if s.handle == nil {
		return nil, ErrUnavailable
	}

	b, err := s.handle.Get(ctx)
	if err != nil {
		s.errs.Add(1)
		s.logger.Debug("cache backend unavailable", "backend", s.backend, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return b, nil
}
