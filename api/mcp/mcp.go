// Package mcp provides an MCP (Model Context Protocol) server exposing
// customer context search to voice agents during a live call.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/callctx/pkg/retrieval"
	"github.com/papercomputeco/callctx/pkg/utils"
)

// Searcher ranks a scope's history against a query.
type Searcher interface {
	Search(ctx context.Context, scope, query string, topK int) ([]retrieval.Ranked, retrieval.Mode, error)
}

type Config struct {
	// Searcher serves the search tool.
	Searcher Searcher

	// Noop builds an MCP server with no tools.
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the search tool.
func NewServer(c Config) (*Server, error) {
	s := &Server{config: c}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "callctx",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Searcher == nil {
			return nil, errors.New("searcher is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        searchToolName,
			Description: searchDescription,
		}, s.handleSearch)
	}

	s.mcpServer = mcpServer
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
