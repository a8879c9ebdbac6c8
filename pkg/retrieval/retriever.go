package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/vector"
)

const (
	DefaultTopK           = 3
	DefaultTokenBudget    = 3000
	DefaultCandidateLimit = 20

	// ExcerptChars bounds the transcript excerpt used when an owner has no
	// summary.
	ExcerptChars = 500

	header = "PAST CONVERSATIONS:\n"
)

// QueryEmbedder embeds query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string, useCache bool) (embeddings.Embedding, error)
}

// Options configures a Retriever.
type Options struct {
	TopK           int
	TokenBudget    int
	CandidateLimit int

	// Tag selects which owner vector queries are compared against.
	// Defaults to vector.TagFull.
	Tag vector.Tag

	// Label names items in provenance markers. Defaults to "Call".
	Label string
}

// Request asks for context about Query within Scope. Zero values fall back
// to the retriever's options.
type Request struct {
	Scope       string `json:"scope"`
	Query       string `json:"query"`
	TopK        int    `json:"top_k,omitempty"`
	TokenBudget int    `json:"token_budget,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Mode says how the ranked items were ordered.
type Mode string

const (
	// ModeSemantic ranked candidates by similarity to the query.
	ModeSemantic Mode = "semantic"

	// ModeRecency ordered candidates by recency only.
	ModeRecency Mode = "recency"

	// ModeEmpty found nothing to rank.
	ModeEmpty Mode = "empty"
)

// Result is the outcome of a retrieval.
type Result struct {
	Block
	Mode   Mode     `json:"mode"`
	Ranked []Ranked `json:"ranked"`
}

// Retriever builds context blocks from a vector store.
type Retriever struct {
	store    vector.Store
	embedder QueryEmbedder
	opts     Options
	logger   *slog.Logger
}

// NewRetriever creates a retriever over store, embedding queries with embedder.
func NewRetriever(store vector.Store, embedder QueryEmbedder, opts Options, logger *slog.Logger) *Retriever {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TokenBudget <= 0 {
		opts.TokenBudget = DefaultTokenBudget
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultCandidateLimit
	}
	if opts.Tag == "" {
		opts.Tag = vector.TagFull
	}
	if opts.Label == "" {
		opts.Label = "Call"
	}
	return &Retriever{
		store:    store,
		embedder: embedder,
		opts:     opts,
		logger:   logger,
	}
}

// Retrieve returns the context block for req. Missing context is never an
// error: a failed store read yields an empty block and a failed query
// embedding yields the most recent items.
func (r *Retriever) Retrieve(ctx context.Context, req Request) (Result, error) {
	if req.Scope == "" {
		return Result{}, errors.New("scope is required")
	}

	topK := orDefault(req.TopK, r.opts.TopK)
	budget := orDefault(req.TokenBudget, r.opts.TokenBudget)
	label := req.Label
	if label == "" {
		label = r.opts.Label
	}

	ranked, mode := r.rank(ctx, req.Scope, req.Query, topK, true)
	if len(ranked) == 0 {
		return Result{Block: Block{EstimatorVersion: EstimatorVersion}, Mode: ModeEmpty, Ranked: []Ranked{}}, nil
	}

	block := Assemble(ranked, budget, label)
	if block.ItemsIncluded < len(ranked) {
		r.logger.Info("token budget reached",
			"scope", req.Scope,
			"included", block.ItemsIncluded,
			"ranked", len(ranked),
		)
	}
	block.Text = header + block.Text +
		fmt.Sprintf("\n(Used ~%d tokens for conversation history)", block.TokensUsed)

	r.logger.Debug("context assembled",
		"scope", req.Scope,
		"mode", mode,
		"items", block.ItemsIncluded,
		"tokens", block.TokensUsed,
	)
	return Result{Block: block, Mode: mode, Ranked: ranked}, nil
}

// Search ranks the scope's history against query and returns the top results
// with their scores, without assembling a block.
func (r *Retriever) Search(ctx context.Context, scope, query string, topK int) ([]Ranked, Mode, error) {
	if scope == "" {
		return nil, ModeEmpty, errors.New("scope is required")
	}
	ranked, mode := r.rank(ctx, scope, query, orDefault(topK, r.opts.TopK), false)
	return ranked, mode, nil
}

// rank fetches candidates and orders them. With shortcut set, a candidate set
// that already fits topK is returned by recency without embedding the query.
func (r *Retriever) rank(ctx context.Context, scope, query string, topK int, shortcut bool) ([]Ranked, Mode) {
	owners, err := r.store.FetchCandidates(ctx, scope, r.opts.Tag, r.opts.CandidateLimit)
	if err != nil {
		r.logger.Warn("fetching candidates failed, proceeding without context",
			"scope", scope,
			"error", err,
		)
		return nil, ModeEmpty
	}
	if len(owners) == 0 {
		return nil, ModeEmpty
	}

	candidates := make([]Candidate, len(owners))
	withVectors := 0
	for i, o := range owners {
		candidates[i] = Candidate{
			OwnerID:   o.ID,
			Text:      Snippet(o.Owner),
			Vector:    o.Vector,
			Timestamp: o.CreatedAt,
		}
		if len(o.Vector) > 0 {
			withVectors++
		}
	}

	if shortcut && len(candidates) <= topK {
		return byRecency(candidates), ModeRecency
	}
	if withVectors == 0 || query == "" {
		return Recent(candidates, topK), ModeRecency
	}

	e, err := r.embedder.Embed(ctx, query, true)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, embeddings.ErrAllBackendsExhausted) {
			level = slog.LevelError
		}
		r.logger.Log(ctx, level, "query embedding failed, falling back to recency",
			"scope", scope,
			"error", err,
		)
		return Recent(candidates, topK), ModeRecency
	}
	if e.Fallback {
		r.logger.Warn("query embedded by a fallback model, falling back to recency",
			"scope", scope,
			"backend", e.Backend,
			"model", e.Model,
		)
		return Recent(candidates, topK), ModeRecency
	}
	q := e.Vector

	if ids := Mismatched(q, candidates); len(ids) > 0 {
		r.logger.Warn("skipping vectors with mismatched dimensions",
			"scope", scope,
			"dimensions", len(q),
			"owners", ids,
		)
	}

	return Rank(q, candidates, topK), ModeSemantic
}

// Snippet is the text shown for an owner: its summary when present, otherwise
// the start of its full text.
func Snippet(o vector.Owner) string {
	if o.Summary != "" {
		return o.Summary
	}
	return truncateRunes(o.Text, ExcerptChars)
}

func byRecency(candidates []Candidate) []Ranked {
	out := make([]Ranked, len(candidates))
	for i, c := range candidates {
		out[i] = Ranked{OwnerID: c.OwnerID, Text: c.Text, Timestamp: c.Timestamp}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
