package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/retrieval"
	"github.com/papercomputeco/callctx/pkg/vector"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EmbedRequest asks for the embedding of one text. UseCache defaults to true.
type EmbedRequest struct {
	Text     string `json:"text"`
	UseCache *bool  `json:"use_cache,omitempty"`
}

// EmbedResponse carries one embedding.
type EmbedResponse struct {
	Embedding  embeddings.Vector `json:"embedding"`
	Dimensions int               `json:"dimensions"`
	Model      string            `json:"model"`
	Backend    string            `json:"backend"`
	Fallback   bool              `json:"fallback,omitempty"`
}

// EmbedBatchRequest asks for the embeddings of several texts.
type EmbedBatchRequest struct {
	Texts    []string `json:"texts"`
	UseCache *bool    `json:"use_cache,omitempty"`
}

// EmbedBatchResponse carries one embedding per input text, in input order.
type EmbedBatchResponse struct {
	Embeddings []embeddings.Vector `json:"embeddings"`
	Count      int                 `json:"count"`
	Model      string              `json:"model"`
}

// IngestRequest registers an owner and queues its text for embedding.
type IngestRequest struct {
	OwnerID   string    `json:"owner_id"`
	Scope     string    `json:"scope"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IngestResponse acknowledges a queued owner.
type IngestResponse struct {
	OwnerID string `json:"owner_id"`
	Status  string `json:"status"`
}

// ClearCacheResponse reports how many cache entries were removed.
type ClearCacheResponse struct {
	Removed int64 `json:"removed"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.deps.Embeddings.Stats(c.UserContext()))
}

// handleClearCache removes cached embeddings under the optional prefix query
// parameter, or the whole cache namespace.
func (s *Server) handleClearCache(c *fiber.Ctx) error {
	prefix := c.Query("prefix")
	removed := s.deps.Embeddings.ClearCache(c.UserContext(), prefix)
	s.logger.Info("embedding cache cleared", "prefix", prefix, "removed", removed)
	return c.JSON(ClearCacheResponse{Removed: removed})
}

func (s *Server) handleEmbed(c *fiber.Ctx) error {
	var req EmbedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	e, err := s.deps.Embeddings.Embed(c.UserContext(), req.Text, useCache(req.UseCache))
	if err != nil {
		return s.embeddingError(c, err)
	}

	return c.JSON(EmbedResponse{
		Embedding:  e.Vector,
		Dimensions: len(e.Vector),
		Model:      e.Model,
		Backend:    e.Backend,
		Fallback:   e.Fallback,
	})
}

func (s *Server) handleEmbedBatch(c *fiber.Ctx) error {
	var req EmbedBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	vs, err := s.deps.Embeddings.GenerateBatch(c.UserContext(), req.Texts, useCache(req.UseCache))
	if err != nil {
		return s.embeddingError(c, err)
	}

	return c.JSON(EmbedBatchResponse{
		Embeddings: vs,
		Count:      len(vs),
		Model:      s.deps.Embeddings.Model(),
	})
}

func (s *Server) handleIngest(c *fiber.Ctx) error {
	if s.deps.Ingester == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "ingestion is not configured"})
	}

	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	switch {
	case req.OwnerID == "":
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "owner_id is required"})
	case req.Scope == "":
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "scope is required"})
	case req.Text == "":
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ok := s.deps.Ingester.Enqueue(ingest.Job{Owner: vector.Owner{
		ID:        req.OwnerID,
		Scope:     req.Scope,
		Text:      req.Text,
		Summary:   req.Summary,
		CreatedAt: createdAt.UTC(),
	}})
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "ingest queue is full"})
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestResponse{OwnerID: req.OwnerID, Status: "queued"})
}

func (s *Server) handleContext(c *fiber.Ctx) error {
	if s.deps.Retriever == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "context retrieval is not configured"})
	}

	var req retrieval.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Scope == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "scope is required"})
	}

	res, err := s.deps.Retriever.Retrieve(c.UserContext(), req)
	if err != nil {
		s.logger.Error("context retrieval failed", "scope", req.Scope, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.JSON(res)
}

func (s *Server) embeddingError(c *fiber.Ctx, err error) error {
	s.logger.Error("embedding generation failed", "error", err)
	if errors.Is(err, embeddings.ErrAllBackendsExhausted) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "all embedding backends are unavailable"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
}

func useCache(v *bool) bool {
	return v == nil || *v
}
