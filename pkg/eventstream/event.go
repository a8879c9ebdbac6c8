package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeVectorStored is emitted after an owner's vectors are stored.
	EventTypeVectorStored = "callctx.vector.stored"
)

// VectorStoredEvent is a transport-neutral event payload announcing that an
// owner's vectors are available for retrieval.
type VectorStoredEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	OwnerID       string    `json:"owner_id"`
	Scope         string    `json:"scope"`
	Tags          []string  `json:"tags"`
	Model         string    `json:"model"`
	Dimensions    int       `json:"dimensions"`
}

// NewVectorStoredEvent fills the envelope fields of a VectorStoredEvent.
func NewVectorStoredEvent(ownerID, scope, model string, dims int, tags []string) *VectorStoredEvent {
	return &VectorStoredEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeVectorStored,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		OwnerID:       ownerID,
		Scope:         scope,
		Tags:          tags,
		Model:         model,
		Dimensions:    dims,
	}
}
