package retrieval

import (
	"math"
	"sort"
	"time"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// Candidate is one retrievable unit of history.
type Candidate struct {
	OwnerID   string
	Text      string
	Vector    embeddings.Vector
	Timestamp time.Time
}

// Ranked is a candidate with its similarity to the query.
type Ranked struct {
	OwnerID   string    `json:"owner_id"`
	Text      string    `json:"text"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`

	// Scored is false when the candidate had no comparable vector and Score
	// is the zero placeholder.
	Scored bool `json:"scored"`
}

// Rank scores candidates against query and returns the best topK, ordered by
// score descending and then by timestamp descending. Candidates with no
// vector, a vector of another dimensionality, or a vector holding NaN or Inf
// components score 0 and stay in the ranking. A topK <= 0 returns every candidate.
func Rank(query embeddings.Vector, candidates []Candidate, topK int) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{
			OwnerID:   c.OwnerID,
			Text:      c.Text,
			Timestamp: c.Timestamp,
		}
		if len(c.Vector) == 0 || len(query) == 0 {
			continue
		}
		score, err := Cosine(query, c.Vector)
		if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		out[i].Score = score
		out[i].Scored = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	return top(out, topK)
}

// Recent returns the topK most recent candidates with score 0.
func Recent(candidates []Candidate, topK int) []Ranked {
	return Rank(nil, candidates, topK)
}

// Mismatched returns the owner IDs whose vectors cannot be compared with query.
func Mismatched(query embeddings.Vector, candidates []Candidate) []string {
	var ids []string
	for _, c := range candidates {
		if len(c.Vector) > 0 && len(c.Vector) != len(query) {
			ids = append(ids, c.OwnerID)
		}
	}
	return ids
}

func top(ranked []Ranked, topK int) []Ranked {
	if topK > 0 && len(ranked) > topK {
		return ranked[:topK]
	}
	return ranked
}
