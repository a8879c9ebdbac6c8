// Package memory provides an in-process cache backend with per-entry expiry.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// DefaultCleanupInterval is how often expired entries are purged.
const DefaultCleanupInterval = time.Minute

type entry struct {
	vec       embeddings.Vector
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Backend is a thread-safe map of vectors with expiry. Expired entries are
// dropped on read and by a background janitor.
type Backend struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a backend and starts its janitor. A cleanupInterval <= 0 uses
// DefaultCleanupInterval.
func New(cleanupInterval time.Duration, opts ...Option) *Backend {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	b := &Backend{
		items: make(map[string]entry),
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.janitor(cleanupInterval)
	return b
}

func (b *Backend) Get(_ context.Context, key string) (embeddings.Vector, bool, error) {
	b.mu.RLock()
	e, ok := b.items[key]
	b.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	if e.expired(b.now()) {
		b.mu.Lock()
		if cur, still := b.items[key]; still && cur.expired(b.now()) {
			delete(b.items, key)
		}
		b.mu.Unlock()
		return nil, false, nil
	}

	return append(embeddings.Vector(nil), e.vec...), true, nil
}

func (b *Backend) Set(_ context.Context, key string, vec embeddings.Vector, ttl time.Duration) error {
	e := entry{vec: append(embeddings.Vector(nil), vec...)}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}

	b.mu.Lock()
	b.items[key] = e
	b.mu.Unlock()
	return nil
}

func (b *Backend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var n int64
	for k := range b.items {
		if strings.HasPrefix(k, prefix) {
			delete(b.items, k)
			n++
		}
	}
	return n, nil
}

func (b *Backend) Count(_ context.Context, prefix string) (int64, error) {
	now := b.now()

	b.mu.RLock()
	defer b.mu.RUnlock()

	var n int64
	for k, e := range b.items {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			n++
		}
	}
	return n, nil
}

// Close stops the janitor. The backend keeps answering afterwards.
func (b *Backend) Close() error {
	b.once.Do(func() {
		close(b.stop)
		<-b.done
	})
	return nil
}

func (b *Backend) janitor(interval time.Duration) {
	defer close(b.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.purge()
		case <-b.stop:
			return
		}
	}
}

func (b *Backend) purge() {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	for k, e := range b.items {
		if e.expired(now) {
			delete(b.items, k)
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}
