package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/vector"
	"github.com/papercomputeco/callctx/pkg/vector/inmemory"
)

// ErrMockVectorStore is returned by a MockVectorStore configured to fail.
var ErrMockVectorStore = errors.New("mock vector store failure")

// MockVectorStore is an in-memory vector store that can be told to fail and
// records stored vectors.
type MockVectorStore struct {
	*inmemory.Driver

	// FailCandidates causes FetchCandidates to fail.
	FailCandidates bool

	// FailStore causes StoreVector to fail.
	FailStore bool

	mu     sync.Mutex
	stored []StoredVector
}

// StoredVector is one recorded StoreVector call.
type StoredVector struct {
	OwnerID string
	Tag     vector.Tag
	Vector  embeddings.Vector
}

func NewMockVectorStore() *MockVectorStore {
	return &MockVectorStore{Driver: inmemory.NewDriver()}
}

func (m *MockVectorStore) StoreVector(ctx context.Context, ownerID string, vec embeddings.Vector, tag vector.Tag) error {
	if m.FailStore {
		return ErrMockVectorStore
	}
	if err := m.Driver.StoreVector(ctx, ownerID, vec, tag); err != nil {
		return err
	}

	m.mu.Lock()
	m.stored = append(m.stored, StoredVector{OwnerID: ownerID, Tag: tag, Vector: vec})
	m.mu.Unlock()
	return nil
}

func (m *MockVectorStore) FetchCandidates(ctx context.Context, scope string, tag vector.Tag, limit int) ([]vector.Candidate, error) {
	if m.FailCandidates {
		return nil, ErrMockVectorStore
	}
	return m.Driver.FetchCandidates(ctx, scope, tag, limit)
}

// Stored returns the recorded StoreVector calls.
func (m *MockVectorStore) Stored() []StoredVector {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoredVector(nil), m.stored...)
}
