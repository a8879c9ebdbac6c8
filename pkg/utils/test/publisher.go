package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/callctx/pkg/eventstream"
)

// ErrMockPublisher is returned by MockPublisher when Fail is set.
var ErrMockPublisher = errors.New("mock publisher failure")

// MockPublisher records published events.
type MockPublisher struct {
	Fail bool

	mu     sync.Mutex
	events []*eventstream.VectorStoredEvent
	closed bool
}

func (m *MockPublisher) PublishVectorStored(_ context.Context, event *eventstream.VectorStoredEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if m.Fail {
		return ErrMockPublisher
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns a copy of the recorded events.
func (m *MockPublisher) Events() []*eventstream.VectorStoredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*eventstream.VectorStoredEvent(nil), m.events...)
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
