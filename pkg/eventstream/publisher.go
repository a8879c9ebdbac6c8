package eventstream

import "context"

// Publisher publishes vector events to an event stream backend.
type Publisher interface {
	PublishVectorStored(ctx context.Context, event *VectorStoredEvent) error
	Close() error
}
