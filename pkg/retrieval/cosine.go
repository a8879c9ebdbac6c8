package retrieval

import (
	"fmt"
	"math"

	"github.com/papercomputeco/callctx/pkg/embeddings"
)

// Epsilon keeps cosine similarity finite for all-zero vectors.
const Epsilon = 1e-8

// Cosine returns dot(a, b) / (|a||b| + Epsilon). Vectors of different length
// are rejected with embeddings.ErrDimensionMismatch.
func Cosine(a, b embeddings.Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", embeddings.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + Epsilon), nil
}
