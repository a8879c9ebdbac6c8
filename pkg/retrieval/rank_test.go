package retrieval_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/retrieval"
)

func ts(n int) time.Time {
	return time.Unix(int64(n), 0)
}

func ids(ranked []retrieval.Ranked) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.OwnerID
	}
	return out
}

var _ = Describe("Cosine", func() {
	It("is 1 for identical directions", func() {
		s, err := retrieval.Cosine(embeddings.Vector{1, 2, 3}, embeddings.Vector{2, 4, 6})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNumerically("~", 1, 1e-6))
	})

	It("is -1 for opposite directions", func() {
		s, err := retrieval.Cosine(embeddings.Vector{1, 0}, embeddings.Vector{-1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNumerically("~", -1, 1e-6))
	})

	It("is 0 for a zero vector instead of dividing by zero", func() {
		s, err := retrieval.Cosine(embeddings.Vector{0, 0}, embeddings.Vector{1, 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(0.0))
	})

	It("rejects vectors of different length", func() {
		_, err := retrieval.Cosine(embeddings.Vector{1, 0}, embeddings.Vector{1, 0, 0})
		Expect(err).To(MatchError(embeddings.ErrDimensionMismatch))
	})
})

var _ = Describe("Rank", func() {
	query := embeddings.Vector{1, 0}

	// A scores 0.9, B scores 0.4, C has no vector.
	candidates := []retrieval.Candidate{
		{OwnerID: "C", Text: "c", Timestamp: ts(10)},
		{OwnerID: "B", Text: "b", Vector: embeddings.Vector{0.4, 0.9165151}, Timestamp: ts(5)},
		{OwnerID: "A", Text: "a", Vector: embeddings.Vector{0.9, 0.43588989}, Timestamp: ts(3)},
	}

	It("keeps the best scores when top_k is smaller than the candidate set", func() {
		ranked := retrieval.Rank(query, candidates, 2)
		Expect(ids(ranked)).To(Equal([]string{"A", "B"}))
		Expect(ranked[0].Score).To(BeNumerically("~", 0.9, 1e-3))
		Expect(ranked[1].Score).To(BeNumerically("~", 0.4, 1e-3))
	})

	It("keeps vectorless candidates below scored ones", func() {
		ranked := retrieval.Rank(query, candidates, 3)
		Expect(ids(ranked)).To(Equal([]string{"A", "B", "C"}))
		Expect(ranked[2].Score).To(Equal(0.0))
		Expect(ranked[2].Scored).To(BeFalse())
	})

	It("returns the most recent items with score 0 when nothing has a vector", func() {
		bare := []retrieval.Candidate{
			{OwnerID: "old", Timestamp: ts(1)},
			{OwnerID: "new", Timestamp: ts(9)},
			{OwnerID: "mid", Timestamp: ts(5)},
		}
		ranked := retrieval.Rank(query, bare, 2)
		Expect(ids(ranked)).To(Equal([]string{"new", "mid"}))
		for _, r := range ranked {
			Expect(r.Score).To(Equal(0.0))
		}
	})

	It("returns fewer than top_k when there are fewer candidates", func() {
		Expect(retrieval.Rank(query, candidates[:1], 5)).To(HaveLen(1))
	})

	It("scores mismatched vectors 0 without dropping them", func() {
		mixed := []retrieval.Candidate{
			{OwnerID: "wide", Vector: embeddings.Vector{1, 0, 0}, Timestamp: ts(2)},
			{OwnerID: "ok", Vector: embeddings.Vector{1, 0}, Timestamp: ts(1)},
		}
		ranked := retrieval.Rank(query, mixed, 5)
		Expect(ids(ranked)).To(Equal([]string{"ok", "wide"}))
		Expect(ranked[1].Score).To(Equal(0.0))
		Expect(retrieval.Mismatched(query, mixed)).To(Equal([]string{"wide"}))
	})

	It("breaks score ties by recency", func() {
		tied := []retrieval.Candidate{
			{OwnerID: "older", Vector: embeddings.Vector{1, 0}, Timestamp: ts(1)},
			{OwnerID: "newer", Vector: embeddings.Vector{1, 0}, Timestamp: ts(2)},
		}
		Expect(ids(retrieval.Rank(query, tied, 2))).To(Equal([]string{"newer", "older"}))
	})

	It("sorts negative similarity below missing vectors", func() {
		neg := []retrieval.Candidate{
			{OwnerID: "opposite", Vector: embeddings.Vector{-1, 0}, Timestamp: ts(5)},
			{OwnerID: "none", Timestamp: ts(1)},
		}
		Expect(ids(retrieval.Rank(query, neg, 2))).To(Equal([]string{"none", "opposite"}))
	})

	It("treats non-finite similarity as unscored and keeps the order stable", func() {
		nan := float32(math.NaN())
		inf := float32(math.Inf(1))
		odd := []retrieval.Candidate{
			{OwnerID: "nan", Vector: embeddings.Vector{nan, 0}, Timestamp: ts(9)},
			{OwnerID: "good", Vector: embeddings.Vector{1, 0}, Timestamp: ts(1)},
			{OwnerID: "inf", Vector: embeddings.Vector{inf, 1}, Timestamp: ts(4)},
			{OwnerID: "none", Timestamp: ts(6)},
		}

		want := []string{"good", "nan", "none", "inf"}
		for i := 0; i < 3; i++ {
			ranked := retrieval.Rank(query, odd, 4)
			Expect(ids(ranked)).To(Equal(want))
			for _, r := range ranked[1:] {
				Expect(r.Scored).To(BeFalse())
				Expect(r.Score).To(Equal(0.0))
			}
		}
	})

	It("does not modify the input", func() {
		in := append([]retrieval.Candidate(nil), candidates...)
		retrieval.Rank(query, in, 2)
		Expect(in).To(Equal(candidates))
	})
})
