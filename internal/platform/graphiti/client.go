// Package graphiti implements the graphengine.Engine interface against a
// graphiti-compatible graph-reasoning service over HTTP.
package graphiti

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lorecraft/graphd/internal/config"
	"github.com/lorecraft/graphd/internal/graphengine"
)

// API paths exposed by the engine service.
const (
	addEpisodePath      = "/episodes"
	updateCommunityPath = "/communities/update"
	queryPath           = "/query"
)

// Client is an HTTP client for the external graph-reasoning engine.
// It is safe for concurrent use and is shared, read-only, by every handler
// invocation.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxConcurrency int
	logger         *slog.Logger
}

// NewClient creates a new engine client from the engine configuration.
func NewClient(cfg config.EngineConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("engine base URL cannot be empty")
	}

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		maxConcurrency: maxConcurrency,
		logger:         logger.With("component", "graphiti_client"),
	}, nil
}

// AddEpisode ingests one unit of content and returns the graph elements it
// created or touched.
func (c *Client) AddEpisode(
	ctx context.Context,
	params graphengine.AddEpisodeParams,
) (*graphengine.AddEpisodeResult, error) {
	var result graphengine.AddEpisodeResult
	if err := c.post(ctx, addEpisodePath, params, &result); err != nil {
		return nil, fmt.Errorf("add episode: %w", err)
	}

	c.logger.Debug("episode ingested",
		"group_id", params.GroupID,
		"episode_uuid", result.Episode.UUID,
		"nodes", len(result.Nodes),
		"edges", len(result.Edges))

	return &result, nil
}

// UpdateCommunity recomputes community membership around a single node.
func (c *Client) UpdateCommunity(ctx context.Context, node graphengine.Node) error {
	req := struct {
		NodeUUID string `json:"node_uuid"`
		GroupID  string `json:"group_id"`
	}{
		NodeUUID: node.UUID,
		GroupID:  node.GroupID,
	}

	if err := c.post(ctx, updateCommunityPath, req, nil); err != nil {
		return fmt.Errorf("update community for node %s: %w", node.UUID, err)
	}
	return nil
}

// ExecuteQuery runs a raw graph query with named parameters.
func (c *Client) ExecuteQuery(
	ctx context.Context,
	query string,
	params map[string]any,
) ([]map[string]any, error) {
	req := struct {
		Query  string         `json:"query"`
		Params map[string]any `json:"params,omitempty"`
	}{
		Query:  query,
		Params: params,
	}

	var resp struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := c.post(ctx, queryPath, req, &resp); err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return resp.Rows, nil
}

// MaxConcurrency reports the engine's configured parallel-call budget.
func (c *Client) MaxConcurrency() int {
	return c.maxConcurrency
}

// post sends a JSON request body to the given path and decodes the JSON
// response into out when out is non-nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+path,
		bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", graphengine.ErrEngineUnavailable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a bounded slice of the body for diagnostics
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, snippet)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ensure Client implements graphengine.Engine
var _ graphengine.Engine = (*Client)(nil)
