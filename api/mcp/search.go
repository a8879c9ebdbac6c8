package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/callctx/pkg/retrieval"
)

const defaultTopK = 3

var (
	searchToolName    = "search_customer_context"
	searchDescription = "Search a customer's past conversations by meaning. Returns the most relevant conversations for the query with similarity scores, so an agent can look up history on demand during a call."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Scope string `json:"scope" jsonschema:"the customer identifier whose history is searched"`
	Query string `json:"query" jsonschema:"what the customer is asking about"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results to return (default: 3)"`
}

// SearchResult is one matched conversation.
type SearchResult struct {
	OwnerID   string  `json:"owner_id"`
	Score     float64 `json:"score"`
	Scored    bool    `json:"scored"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// SearchOutput represents the output of the search tool.
type SearchOutput struct {
	Scope   string         `json:"scope"`
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	topK := input.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	logger.Debug("MCP search request",
		"scope", input.Scope,
		"query", input.Query,
		"top_k", topK,
	)

	ranked, mode, err := s.config.Searcher.Search(ctx, input.Scope, input.Query, topK)
	if err != nil {
		logger.Error("customer context search failed", "scope", input.Scope, "error", err)
		return errorResult(fmt.Sprintf("Failed to search customer context: %v", err)), SearchOutput{}, nil
	}

	output := buildSearchOutput(input, mode, ranked)

	// Structured output is mirrored as JSON text for clients that only read
	// text content.
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal search output", "error", err)
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err)), SearchOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func buildSearchOutput(input SearchInput, mode retrieval.Mode, ranked []retrieval.Ranked) SearchOutput {
	results := make([]SearchResult, 0, len(ranked))
	for _, r := range ranked {
		res := SearchResult{
			OwnerID: r.OwnerID,
			Score:   r.Score,
			Scored:  r.Scored,
			Text:    r.Text,
		}
		if !r.Timestamp.IsZero() {
			res.Timestamp = r.Timestamp.UTC().Format(time.RFC3339)
		}
		results = append(results, res)
	}

	return SearchOutput{
		Scope:   input.Scope,
		Query:   input.Query,
		Mode:    string(mode),
		Results: results,
		Count:   len(results),
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}
