// Package hashing implements the CPU embedding backend of last resort.
//
// It produces lexical embeddings with signed feature hashing of unigrams and
// bigrams, sublinear term-frequency weighting and L2 normalization. It has no
// external dependencies, needs no network, and is fully deterministic: the
// same text and model always yield the same vector in any process.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/lazy"
)

const (
	// DefaultModel names the hashing scheme. It is part of the cache key, so it
	// must change whenever the scheme does.
	DefaultModel = "hashing-v1"

	// DefaultDimensions matches common large sentence-embedding models.
	DefaultDimensions = 1024
)

// Model is the loaded hashing model.
type Model struct {
	Name       string
	Dimensions int
	seed       uint64
	stopwords  map[string]struct{}
}

// Config configures the hashing embedder.
type Config struct {
	// Model is the model identifier. Defaults to DefaultModel.
	Model string

	// Dimensions is the output vector length. Defaults to DefaultDimensions.
	Dimensions int

	// Handle is the shared model handle. A private one is created when nil.
	Handle *lazy.Handle[*Model]
}

// Embedder is the CPU hashing embedder.
type Embedder struct {
	handle *lazy.Handle[*Model]
}

// NewModelHandle returns a lazily built model handle.
func NewModelHandle(model string, dimensions int) *lazy.Handle[*Model] {
	if model == "" {
		model = DefaultModel
	}
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}

	return lazy.New(func(_ context.Context) (*Model, error) {
		h := fnv.New64a()
		h.Write([]byte(model))

		stop := make(map[string]struct{}, len(stopwords))
		for _, w := range stopwords {
			stop[w] = struct{}{}
		}

		return &Model{
			Name:       model,
			Dimensions: dimensions,
			seed:       h.Sum64(),
			stopwords:  stop,
		}, nil
	})
}

// NewEmbedder creates a new hashing embedder.
func NewEmbedder(c Config) *Embedder {
	handle := c.Handle
	if handle == nil {
		handle = NewModelHandle(c.Model, c.Dimensions)
	}
	return &Embedder{handle: handle}
}

// Embed converts text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) (embeddings.Vector, error) {
	m, err := e.handle.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}
	return m.encode(text), nil
}

// EmbedBatch converts texts into vector embeddings.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	m, err := e.handle.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embeddings.ErrEmbedding, err)
	}

	vectors := make([]embeddings.Vector, len(texts))
	for i, t := range texts {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		vectors[i] = m.encode(t)
	}
	return vectors, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

func (m *Model) encode(text string) embeddings.Vector {
	tokens := m.tokenize(text)

	tf := make(map[string]int, len(tokens)*2)
	for i, t := range tokens {
		tf[t]++
		if i > 0 {
			tf[tokens[i-1]+" "+t]++
		}
	}

	acc := make([]float64, m.Dimensions)
	for term, n := range tf {
		idx, sign := m.bucket(term)
		acc[idx] += sign * (1 + math.Log(float64(n)))
	}

	var norm2 float64
	for _, x := range acc {
		norm2 += x * x
	}

	v := make(embeddings.Vector, m.Dimensions)
	if norm2 == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm2)
	for i, x := range acc {
		v[i] = float32(x * inv)
	}
	return v
}

func (m *Model) bucket(term string) (int, float64) {
	h := fnv.New64a()
	var seed [8]byte
	for i := range seed {
		seed[i] = byte(m.seed >> (8 * i))
	}
	h.Write(seed[:])
	h.Write([]byte(term))
	sum := h.Sum64()

	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(m.Dimensions)), sign
}

func (m *Model) tokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := m.stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

var stopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "no", "not", "of", "on", "or", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to", "was", "will",
	"with", "um", "uh",
}

var _ embeddings.BatchEmbedder = (*Embedder)(nil)
