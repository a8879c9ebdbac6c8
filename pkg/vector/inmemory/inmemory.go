// Package inmemory provides a map-backed vector store for tests and
// single-process use.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/vector"
)

type record struct {
	owner   vector.Owner
	vectors map[vector.Tag]embeddings.Vector
}

// Driver implements vector.Store using in-memory maps.
type Driver struct {
	mu sync.RWMutex

	// owners is keyed by owner ID
	owners map[string]*record
}

// NewDriver creates a new in-memory vector store.
func NewDriver() *Driver {
	return &Driver{
		owners: make(map[string]*record),
	}
}

func (d *Driver) PutOwner(_ context.Context, owner vector.Owner) error {
	if owner.ID == "" {
		return errors.New("owner ID is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if r, ok := d.owners[owner.ID]; ok {
		r.owner = owner
		return nil
	}
	d.owners[owner.ID] = &record{
		owner:   owner,
		vectors: make(map[vector.Tag]embeddings.Vector),
	}
	return nil
}

func (d *Driver) StoreVector(_ context.Context, ownerID string, vec embeddings.Vector, tag vector.Tag) error {
	if !tag.Valid() {
		return fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.owners[ownerID]
	if !ok {
		return fmt.Errorf("%w: owner %s", vector.ErrNotFound, ownerID)
	}
	r.vectors[tag] = append(embeddings.Vector(nil), vec...)
	return nil
}

func (d *Driver) FetchVector(_ context.Context, ownerID string, tag vector.Tag) (embeddings.Vector, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.owners[ownerID]
	if !ok {
		return nil, fmt.Errorf("%w: owner %s", vector.ErrNotFound, ownerID)
	}
	v, ok := r.vectors[tag]
	if !ok {
		return nil, fmt.Errorf("%w: owner %s tag %s", vector.ErrNotFound, ownerID, tag)
	}
	return append(embeddings.Vector(nil), v...), nil
}

func (d *Driver) FetchCandidates(_ context.Context, scope string, tag vector.Tag, limit int) ([]vector.Candidate, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("%w: %q", vector.ErrInvalidTag, tag)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]vector.Candidate, 0)
	for _, r := range d.owners {
		if r.owner.Scope != scope {
			continue
		}
		c := vector.Candidate{Owner: r.owner}
		if v, ok := r.vectors[tag]; ok {
			c.Vector = append(embeddings.Vector(nil), v...)
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (d *Driver) Close() error {
	return nil
}
