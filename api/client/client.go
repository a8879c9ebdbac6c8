// Package client is the HTTP client CLI commands use to reach a running
// callctx server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/callctx/api"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
	"github.com/papercomputeco/callctx/pkg/retrieval"
)

const defaultTimeout = 60 * time.Second

// Client calls the callctx API at a base URL.
type Client struct {
	target     *url.URL
	httpClient *http.Client
}

// New returns a client for the server at target, e.g. http://localhost:8081.
func New(target string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(target, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API target URL: %q", target)
	}
	return &Client{
		target:     u,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}, nil
}

// Context asks the server to assemble context for req.
func (c *Client) Context(ctx context.Context, req retrieval.Request) (*retrieval.Result, error) {
	var res retrieval.Result
	if err := c.do(ctx, http.MethodPost, "/v1/context", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ingest queues an owner for embedding.
func (c *Client) Ingest(ctx context.Context, req api.IngestRequest) (*api.IngestResponse, error) {
	var res api.IngestResponse
	if err := c.do(ctx, http.MethodPost, "/v1/owners", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Embed embeds one text on the server.
func (c *Client) Embed(ctx context.Context, req api.EmbedRequest) (*api.EmbedResponse, error) {
	var res api.EmbedResponse
	if err := c.do(ctx, http.MethodPost, "/v1/embeddings", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Stats returns the server's embedding service snapshot.
func (c *Client) Stats(ctx context.Context) (*service.Stats, error) {
	var res service.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ClearCache removes cached embeddings under prefix, or the whole namespace
// when prefix is empty.
func (c *Client) ClearCache(ctx context.Context, prefix string) (int64, error) {
	q := url.Values{}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	var res api.ClearCacheResponse
	if err := c.do(ctx, http.MethodDelete, "/v1/cache", q, nil, &res); err != nil {
		return 0, err
	}
	return res.Removed, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.target
	u.Path = path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to callctx API at %s: %w", c.target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &StatusError{Code: resp.StatusCode, Message: apiErr.Error}
		}
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed (HTTP %d): %s", e.Code, e.Message)
}

// IsUnavailable reports whether err is a 503 from the server.
func IsUnavailable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusServiceUnavailable
}
