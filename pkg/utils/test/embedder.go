package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// ErrMockEmbedder is returned by a MockEmbedder configured to fail.
var ErrMockEmbedder = errors.New("mock embedding failure")

// MockEmbedder is a test embedder that returns predictable embeddings
// and records how it was called.
type MockEmbedder struct {
	Embeddings map[string]embeddings.Vector

	// Default is returned for texts not present in Embeddings.
	Default embeddings.Vector

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// FailAll causes every call to fail.
	FailAll bool

	// Delay is slept before answering, honoring context cancellation.
	Delay time.Duration

	mu         sync.Mutex
	calls      []string
	batchCalls [][]string
	closed     bool
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string]embeddings.Vector),
		Default:    embeddings.Vector{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.lookup(text)
}

func (m *MockEmbedder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns the texts passed to Embed, in call order.
func (m *MockEmbedder) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Closed reports whether Close was called.
func (m *MockEmbedder) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockEmbedder) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockEmbedder) lookup(text string) (embeddings.Vector, error) {
	if m.FailAll || (m.FailOn != "" && text == m.FailOn) {
		return nil, fmt.Errorf("%w for: %s", ErrMockEmbedder, text)
	}
	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}
	return m.Default, nil
}

// MockBatchEmbedder is a MockEmbedder that also embeds batches.
type MockBatchEmbedder struct {
	*MockEmbedder

	// FailBatch causes EmbedBatch to fail while Embed keeps working.
	FailBatch bool

	// Short drops the last vector from every batch response.
	Short bool
}

func NewMockBatchEmbedder() *MockBatchEmbedder {
	return &MockBatchEmbedder{MockEmbedder: NewMockEmbedder()}
}

func (m *MockBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	m.mu.Lock()
	m.batchCalls = append(m.batchCalls, append([]string(nil), texts...))
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.FailBatch {
		return nil, fmt.Errorf("%w: batch of %d", ErrMockEmbedder, len(texts))
	}

	out := make([]embeddings.Vector, 0, len(texts))
	for _, t := range texts {
		v, err := m.lookup(t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if m.Short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// BatchCalls returns the inputs passed to EmbedBatch, in call order.
func (m *MockBatchEmbedder) BatchCalls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.batchCalls))
	for i, c := range m.batchCalls {
		out[i] = append([]string(nil), c...)
	}
	return out
}
