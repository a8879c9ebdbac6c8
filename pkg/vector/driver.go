// Package vector provides the per-owner vector store used for context
// retrieval.
//
// An owner is an item whose history can be retrieved (a call, an email). It
// is registered with its scope (the customer it belongs to) before any vector
// exists, so candidate lists include owners that were never embedded.
package vector

import (
	"context"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// Owner is a stored item that vectors hang off.
type Owner struct {
	// ID uniquely identifies the owner.
	ID string `json:"owner_id"`

	// Scope groups owners for retrieval, typically a customer identifier.
	Scope string `json:"scope"`

	// Text is the full content, such as a call transcript.
	Text string `json:"text,omitempty"`

	// Summary is an optional short form of Text.
	Summary string `json:"summary,omitempty"`

	// CreatedAt orders candidates by recency.
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is an owner together with its vector for one tag. Vector is nil
// when the owner has no vector for that tag.
type Candidate struct {
	Owner
	Vector embeddings.Vector `json:"-"`
}

// Store persists owners and their vectors.
type Store interface {
	// PutOwner registers or updates an owner. Existing vectors are kept.
	PutOwner(ctx context.Context, owner Owner) error

	// StoreVector stores vec for the owner under tag, replacing any previous
	// vector. Returns ErrNotFound if the owner is unknown.
	StoreVector(ctx context.Context, ownerID string, vec embeddings.Vector, tag Tag) error

	// FetchVector returns the owner's vector under tag, or ErrNotFound.
	FetchVector(ctx context.Context, ownerID string, tag Tag) (embeddings.Vector, error)

	// FetchCandidates returns up to limit owners in scope, newest first, each
	// with its vector under tag when one exists.
	FetchCandidates(ctx context.Context, scope string, tag Tag, limit int) ([]Candidate, error)

	// Close releases any resources held by the store.
	Close() error
}
