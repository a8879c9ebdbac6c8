package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/retrieval"
)

// EmbeddingService generates embeddings and manages the embedding cache.
type EmbeddingService interface {
	Model() string
	Embed(ctx context.Context, text string, useCache bool) (embeddings.Embedding, error)
	GenerateBatch(ctx context.Context, texts []string, useCache bool) ([]embeddings.Vector, error)
	Stats(ctx context.Context) service.Stats
	ClearCache(ctx context.Context, prefix string) int64
}

// Ingester accepts owners for asynchronous embedding.
type Ingester interface {
	Enqueue(job ingest.Job) bool
}

// ContextRetriever assembles context blocks.
type ContextRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) (retrieval.Result, error)
}

// Deps are the components the server routes to. Ingester, Retriever and MCP
// are optional; their routes answer 503 when unset.
type Deps struct {
	Embeddings EmbeddingService
	Ingester   Ingester
	Retriever  ContextRetriever
	MCP        http.Handler
}

// Server is the API server for callctx.
type Server struct {
	config Config
	deps   Deps
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Embeddings == nil {
		return nil, errors.New("embedding service is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/v1/stats", s.handleStats)
	app.Delete("/v1/cache", s.handleClearCache)
	app.Post("/v1/embeddings", s.handleEmbed)
	app.Post("/v1/embeddings/batch", s.handleEmbedBatch)
	app.Post("/v1/owners", s.handleIngest)
	app.Post("/v1/context", s.handleContext)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Handler exposes the server's routes as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}
