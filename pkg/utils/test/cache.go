package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// ErrMockCache is returned by a MockCacheBackend configured to fail.
var ErrMockCache = errors.New("mock cache failure")

// MockCacheBackend is an in-memory cache backend without expiry that can be
// told to fail.
type MockCacheBackend struct {
	mu      sync.Mutex
	entries map[string]embeddings.Vector
	ttls    map[string]time.Duration
	gets    int
	sets    int

	// Fail causes every operation to fail.
	Fail bool
}

func NewMockCacheBackend() *MockCacheBackend {
	return &MockCacheBackend{
		entries: make(map[string]embeddings.Vector),
		ttls:    make(map[string]time.Duration),
	}
}

func (m *MockCacheBackend) Get(_ context.Context, key string) (embeddings.Vector, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.Fail {
		return nil, false, ErrMockCache
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MockCacheBackend) Set(_ context.Context, key string, vec embeddings.Vector, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.Fail {
		return ErrMockCache
	}
	m.entries[key] = vec
	m.ttls[key] = ttl
	return nil
}

func (m *MockCacheBackend) DeletePrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return 0, ErrMockCache
	}
	var n int64
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MockCacheBackend) Count(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return 0, ErrMockCache
	}
	var n int64
	for k := range m.entries {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n, nil
}

func (m *MockCacheBackend) Close() error {
	return nil
}

// Keys returns the stored keys.
func (m *MockCacheBackend) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}

// TTL returns the ttl the key was last written with.
func (m *MockCacheBackend) TTL(key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ttls[key]
}

// Sets returns how many Set calls were made.
func (m *MockCacheBackend) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}

// Gets returns how many Get calls were made.
func (m *MockCacheBackend) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}
