// Package memory is a client for the long-term memory service. Memories
// are free-text documents with metadata; search is semantic on the
// service side.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atrium-ai/atrium/internal/logging"
)

const defaultBaseURL = "https://api.supermemory.ai/v3"

// Client talks to the memory service. A nil Client is valid and means
// the service is not configured; all operations degrade gracefully.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a memory client, or nil when no API key is configured.
func New(apiKey, baseURL string) *Client {
	if apiKey == "" {
		logging.Warn().Msg("memory service API key not set, long-term memory disabled")
		return nil
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// AddResult identifies a stored memory.
type AddResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// SearchResult is one memory returned by Search.
type SearchResult struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Score   float64        `json:"score"`
	Meta    map[string]any `json:"metadata"`
}

// Add stores one memory with optional metadata.
func (c *Client) Add(ctx context.Context, content string, metadata map[string]any) (*AddResult, error) {
	if c == nil {
		return nil, fmt.Errorf("memory service not configured")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	var result AddResult
	err := c.post(ctx, "/memories", map[string]any{
		"content":  content,
		"metadata": metadata,
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("add memory: %w", err)
	}
	return &result, nil
}

// Search returns up to limit memories relevant to the query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if c == nil {
		return nil, fmt.Errorf("memory service not configured")
	}
	if limit <= 0 {
		limit = 5
	}

	var response struct {
		Results []SearchResult `json:"results"`
	}
	err := c.post(ctx, "/search", map[string]any{
		"q":     query,
		"limit": limit,
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}
	return response.Results, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	return json.Unmarshal(data, out)
}
