package hashing_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/embeddings/hashing"
)

func norm(v embeddings.Vector) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b embeddings.Vector) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

var _ = Describe("Embedder", func() {
	var (
		e   *hashing.Embedder
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		e = hashing.NewEmbedder(hashing.Config{Dimensions: 256})
	})

	It("produces vectors of the configured dimensionality", func() {
		v, err := e.Embed(ctx, "auto insurance renewal quote")
		Expect(err).NotTo(HaveOccurred())
		Expect(v.Dimensions()).To(Equal(256))
	})

	It("produces unit-length vectors", func() {
		v, _ := e.Embed(ctx, "the customer asked about a commercial policy")
		Expect(norm(v)).To(BeNumerically("~", 1.0, 1e-5))
	})

	It("is deterministic across embedder instances", func() {
		other := hashing.NewEmbedder(hashing.Config{Dimensions: 256})
		a, _ := e.Embed(ctx, "workers comp premium for a bakery")
		b, _ := other.Embed(ctx, "workers comp premium for a bakery")
		Expect(a).To(Equal(b))
	})

	It("changes the vector space when the model identifier changes", func() {
		other := hashing.NewEmbedder(hashing.Config{Model: "hashing-v2", Dimensions: 256})
		a, _ := e.Embed(ctx, "general liability")
		b, _ := other.Embed(ctx, "general liability")
		Expect(a).NotTo(Equal(b))
	})

	It("scores related texts higher than unrelated ones", func() {
		q, _ := e.Embed(ctx, "renewal quote for commercial auto insurance")
		related, _ := e.Embed(ctx, "they want a commercial auto insurance renewal quote next week")
		unrelated, _ := e.Embed(ctx, "the bakery opens at seven with fresh sourdough")
		Expect(dot(q, related)).To(BeNumerically(">", dot(q, unrelated)))
	})

	It("returns a zero vector for text without tokens", func() {
		v, err := e.Embed(ctx, "  ... ")
		Expect(err).NotTo(HaveOccurred())
		Expect(norm(v)).To(BeZero())
	})

	It("embeds batches in input order", func() {
		vs, err := e.EmbedBatch(ctx, []string{"alpha policy", "beta claim"})
		Expect(err).NotTo(HaveOccurred())
		a, _ := e.Embed(ctx, "alpha policy")
		b, _ := e.Embed(ctx, "beta claim")
		Expect(vs).To(Equal([]embeddings.Vector{a, b}))
	})

	It("shares one model load across embedders using the same handle", func() {
		handle := hashing.NewModelHandle("", 64)
		e1 := hashing.NewEmbedder(hashing.Config{Handle: handle})
		e2 := hashing.NewEmbedder(hashing.Config{Handle: handle})
		_, _ = e1.Embed(ctx, "one")
		_, _ = e2.Embed(ctx, "two")
		Expect(handle.Loads()).To(Equal(int64(1)))
	})
})
