// Package lazy provides a process-wide, lazily initialized shared handle.
//
// A Handle is constructed once at startup and injected into every component
// that needs the underlying resource (a loaded embedding model, a cache
// connection). The resource itself is only built on first use. Concurrent
// first callers block on a single initialization; a failed initialization is
// not memoized, so the next caller tries again.
package lazy

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// InitFunc builds the shared resource.
type InitFunc[T any] func(ctx context.Context) (T, error)

// Handle is a shared, lazily initialized resource of type T.
// The zero value is not usable; construct with New.
type Handle[T any] struct {
	init  InitFunc[T]
	mu    sync.Mutex
	value atomic.Pointer[T]
	loads atomic.Int64
}

// New returns a Handle that calls init on first use.
func New[T any](init InitFunc[T]) *Handle[T] {
	return &Handle[T]{init: init}
}

// Get returns the resource, initializing it if this is the first successful call.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	if v := h.value.Load(); v != nil {
		return *v, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if v := h.value.Load(); v != nil {
		return *v, nil
	}

	v, err := h.init(ctx)
	h.loads.Add(1)
	if err != nil {
		var zero T
		return zero, err
	}

	h.value.Store(&v)
	return v, nil
}

// Loaded reports whether the resource has been initialized.
func (h *Handle[T]) Loaded() bool {
	return h.value.Load() != nil
}

// Loads returns how many times the init function has run (successful or not).
func (h *Handle[T]) Loads() int64 {
	return h.loads.Load()
}

// Close releases the resource if it was initialized and implements io.Closer.
// It is meant for process shutdown only.
func (h *Handle[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	v := h.value.Swap(nil)
	if v == nil {
		return nil
	}
	if c, ok := any(*v).(io.Closer); ok {
		return c.Close()
	}
	return nil
}
