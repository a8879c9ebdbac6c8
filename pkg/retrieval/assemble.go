package retrieval

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/callctx/pkg/textutil"
)

const (
	// TokensPerWord converts a word count into an estimated token count.
	// Changing it changes which items fit a budget, so bump EstimatorVersion
	// with it.
	TokensPerWord = 0.75

	// EstimatorVersion identifies the token estimation heuristic.
	EstimatorVersion = 1

	// DefaultLabel names items in provenance markers.
	DefaultLabel = "Item"
)

// Block is an assembled context block.
type Block struct {
	Text             string `json:"text"`
	ItemsIncluded    int    `json:"items_included"`
	TokensUsed       int    `json:"tokens_used"`
	EstimatorVersion int    `json:"estimator_version"`
}

// EstimateTokens returns the estimated token count of text.
func EstimateTokens(text string) int {
	return int(float64(textutil.WordCount(text)) * TokensPerWord)
}

// Assemble includes ranked items in order until the next one would push the
// estimated token count over budget, then stops. Items are never cut and
// never skipped in favor of a smaller later item, so the result always fits
// the budget and a larger budget always includes a superset.
//
// Each included item is rendered as "\n[<label> on <RFC3339 time>]:\n<text>\n".
func Assemble(ranked []Ranked, budget int, label string) Block {
	if label == "" {
		label = DefaultLabel
	}

	b := Block{EstimatorVersion: EstimatorVersion}
	var sb strings.Builder

	for _, r := range ranked {
		cost := EstimateTokens(r.Text)
		if b.TokensUsed+cost > budget {
			break
		}

		fmt.Fprintf(&sb, "\n[%s on %s]:\n%s\n", label, provenanceTime(r.Timestamp), r.Text)
		b.TokensUsed += cost
		b.ItemsIncluded++
	}

	b.Text = sb.String()
	return b
}

func provenanceTime(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.UTC().Format(time.RFC3339)
}
