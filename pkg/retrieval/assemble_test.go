package retrieval_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/retrieval"
)

// textOfTokens returns text whose estimated cost is exactly tokens.
func textOfTokens(tokens int) string {
	words := tokens * 4 / 3
	Expect(retrieval.EstimateTokens(strings.Repeat("w ", words))).To(Equal(tokens))
	return strings.TrimSpace(strings.Repeat("w ", words))
}

func ranked(costs ...int) []retrieval.Ranked {
	out := make([]retrieval.Ranked, len(costs))
	for i, c := range costs {
		out[i] = retrieval.Ranked{
			OwnerID:   string(rune('a' + i)),
			Text:      textOfTokens(c),
			Timestamp: time.Date(2025, 1, i+1, 9, 30, 0, 0, time.UTC),
		}
	}
	return out
}

var _ = Describe("EstimateTokens", func() {
	It("counts three quarters of a token per word, rounded down", func() {
		Expect(retrieval.EstimateTokens("")).To(Equal(0))
		Expect(retrieval.EstimateTokens("one")).To(Equal(0))
		Expect(retrieval.EstimateTokens("one two three four")).To(Equal(3))
		Expect(retrieval.EstimateTokens("  spaced\tout\nwords  ")).To(Equal(2))
	})
})

var _ = Describe("Assemble", func() {
	It("stops at the first item that would exceed the budget", func() {
		b := retrieval.Assemble(ranked(50, 80, 40), 100, "Call")
		Expect(b.ItemsIncluded).To(Equal(1))
		Expect(b.TokensUsed).To(Equal(50))
		Expect(b.EstimatorVersion).To(Equal(retrieval.EstimatorVersion))
	})

	It("renders provenance markers with a stable separator", func() {
		items := []retrieval.Ranked{
			{Text: "asked about refunds", Timestamp: time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)},
			{Text: "renewed the policy", Timestamp: time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)},
		}
		b := retrieval.Assemble(items, 100, "Call")
		Expect(b.Text).To(Equal(
			"\n[Call on 2025-01-02T09:30:00Z]:\nasked about refunds\n" +
				"\n[Call on 2024-12-01T08:00:00Z]:\nrenewed the policy\n",
		))
		Expect(b.ItemsIncluded).To(Equal(2))
		Expect(b.TokensUsed).To(Equal(4))
	})

	It("uses a default label and marks unknown dates", func() {
		b := retrieval.Assemble([]retrieval.Ranked{{Text: "hello"}}, 10, "")
		Expect(b.Text).To(Equal("\n[Item on unknown date]:\nhello\n"))
	})

	It("includes nothing for a zero budget unless items are free", func() {
		b := retrieval.Assemble(ranked(3, 0), 0, "Call")
		Expect(b.ItemsIncluded).To(Equal(0))
		Expect(b.TokensUsed).To(Equal(0))
		Expect(b.Text).To(BeEmpty())
	})

	It("never exceeds the budget", func() {
		items := ranked(12, 7, 30, 1, 9, 15, 4)
		for budget := 0; budget <= 100; budget++ {
			Expect(retrieval.Assemble(items, budget, "Call").TokensUsed).To(BeNumerically("<=", budget))
		}
	})

	It("includes a prefix that only grows with the budget", func() {
		items := ranked(12, 7, 30, 1, 9, 15, 4)
		prev := retrieval.Assemble(items, 0, "Call")
		for budget := 1; budget <= 100; budget++ {
			cur := retrieval.Assemble(items, budget, "Call")
			Expect(cur.ItemsIncluded).To(BeNumerically(">=", prev.ItemsIncluded))
			Expect(cur.Text).To(HavePrefix(prev.Text))
			prev = cur
		}
	})
})
