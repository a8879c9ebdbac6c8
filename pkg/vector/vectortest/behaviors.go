// Package vectortest holds the shared behavior suite every vector.Store
// implementation runs.
package vectortest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/vector"
)

// Dimensions is the vector size used by every behavior.
const Dimensions = 3

// StoreBehaviors registers specs exercising a vector.Store built by newStore.
// It must be called from inside a ginkgo container.
func StoreBehaviors(newStore func() vector.Store) {
	var (
		ctx   context.Context
		store vector.Store
		base  time.Time
	)

	owner := func(id, scope string, age time.Duration) vector.Owner {
		return vector.Owner{
			ID:        id,
			Scope:     scope,
			Text:      "transcript of " + id,
			Summary:   "summary of " + id,
			CreatedAt: base.Add(-age),
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
		store = newStore()
	})

	AfterEach(func() {
		if store != nil {
			Expect(store.Close()).To(Succeed())
		}
	})

	It("stores and fetches vectors per tag", func() {
		Expect(store.PutOwner(ctx, owner("call-1", "cust-1", 0))).To(Succeed())
		Expect(store.StoreVector(ctx, "call-1", embeddings.Vector{1, 0, 0}, vector.TagFull)).To(Succeed())
		Expect(store.StoreVector(ctx, "call-1", embeddings.Vector{0, 1, 0}, vector.TagSummary)).To(Succeed())

		full, err := store.FetchVector(ctx, "call-1", vector.TagFull)
		Expect(err).NotTo(HaveOccurred())
		Expect(full).To(Equal(embeddings.Vector{1, 0, 0}))

		summary, err := store.FetchVector(ctx, "call-1", vector.TagSummary)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(embeddings.Vector{0, 1, 0}))
	})

	It("replaces a vector on a second store", func() {
		Expect(store.PutOwner(ctx, owner("call-1", "cust-1", 0))).To(Succeed())
		Expect(store.StoreVector(ctx, "call-1", embeddings.Vector{1, 0, 0}, vector.TagFull)).To(Succeed())
		Expect(store.StoreVector(ctx, "call-1", embeddings.Vector{0, 1, 0}, vector.TagFull)).To(Succeed())

		v, err := store.FetchVector(ctx, "call-1", vector.TagFull)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(embeddings.Vector{0, 1, 0}))
	})

	It("returns ErrNotFound for missing owners and vectors", func() {
		_, err := store.FetchVector(ctx, "nobody", vector.TagFull)
		Expect(err).To(MatchError(vector.ErrNotFound))

		Expect(store.PutOwner(ctx, owner("call-1", "cust-1", 0))).To(Succeed())
		_, err = store.FetchVector(ctx, "call-1", vector.TagSummary)
		Expect(err).To(MatchError(vector.ErrNotFound))

		err = store.StoreVector(ctx, "nobody", embeddings.Vector{1, 0, 0}, vector.TagFull)
		Expect(err).To(MatchError(vector.ErrNotFound))
	})

	It("rejects tags outside the closed set", func() {
		Expect(store.PutOwner(ctx, owner("call-1", "cust-1", 0))).To(Succeed())
		err := store.StoreVector(ctx, "call-1", embeddings.Vector{1, 0, 0}, vector.Tag("title"))
		Expect(err).To(MatchError(vector.ErrInvalidTag))
	})

	It("keeps vectors when an owner is updated", func() {
		Expect(store.PutOwner(ctx, owner("call-1", "cust-1", 0))).To(Succeed())
		Expect(store.StoreVector(ctx, "call-1", embeddings.Vector{1, 0, 0}, vector.TagFull)).To(Succeed())

		updated := owner("call-1", "cust-1", 0)
		updated.Summary = "new summary"
		Expect(store.PutOwner(ctx, updated)).To(Succeed())

		v, err := store.FetchVector(ctx, "call-1", vector.TagFull)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(embeddings.Vector{1, 0, 0}))

		cs, err := store.FetchCandidates(ctx, "cust-1", vector.TagFull, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs).To(HaveLen(1))
		Expect(cs[0].Summary).To(Equal("new summary"))
	})

	It("fetches candidates in scope newest first, including owners without vectors", func() {
		Expect(store.PutOwner(ctx, owner("old", "cust-1", 48*time.Hour))).To(Succeed())
		Expect(store.PutOwner(ctx, owner("new", "cust-1", time.Hour))).To(Succeed())
		Expect(store.PutOwner(ctx, owner("mid", "cust-1", 24*time.Hour))).To(Succeed())
		Expect(store.PutOwner(ctx, owner("other", "cust-2", 0))).To(Succeed())
		Expect(store.StoreVector(ctx, "mid", embeddings.Vector{0.5, 0.5, 0}, vector.TagFull)).To(Succeed())
		Expect(store.StoreVector(ctx, "new", embeddings.Vector{0, 0, 0.25}, vector.TagSummary)).To(Succeed())

		cs, err := store.FetchCandidates(ctx, "cust-1", vector.TagFull, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs).To(HaveLen(3))

		Expect(cs[0].ID).To(Equal("new"))
		Expect(cs[0].Vector).To(BeNil())
		Expect(cs[1].ID).To(Equal("mid"))
		Expect(cs[1].Vector).To(Equal(embeddings.Vector{0.5, 0.5, 0}))
		Expect(cs[1].Text).To(Equal("transcript of mid"))
		Expect(cs[1].CreatedAt.Equal(base.Add(-24 * time.Hour))).To(BeTrue())
		Expect(cs[2].ID).To(Equal("old"))
	})

	It("limits candidates to the most recent", func() {
		for i, id := range []string{"a", "b", "c", "d"} {
			Expect(store.PutOwner(ctx, owner(id, "cust-1", time.Duration(i)*time.Hour))).To(Succeed())
		}

		cs, err := store.FetchCandidates(ctx, "cust-1", vector.TagFull, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs).To(HaveLen(2))
		Expect(cs[0].ID).To(Equal("a"))
		Expect(cs[1].ID).To(Equal("b"))
	})

	It("returns no candidates for an unknown scope", func() {
		cs, err := store.FetchCandidates(ctx, "nobody", vector.TagFull, 20)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs).To(BeEmpty())
	})
}
