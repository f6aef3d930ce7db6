// Package notion extracts content from a Notion database through the public
// REST API and shapes it into index-ready documents.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	// APIBase is the base URL for the Notion API.
	APIBase = "https://api.notion.com"
	// APIVersion is the Notion-Version header value.
	APIVersion = "2022-06-28"

	// maxPageSize is the maximum page_size the Notion API allows.
	maxPageSize = 100

	defaultTimeout = 30 * time.Second
)

// Client is a lightweight Notion API client.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Used by tests to point the client
// at an httptest server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a new Notion API client.
func New(token string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("notion token is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		token:      token,
		baseURL:    APIBase,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// QueryDatabase returns all pages of a Notion database.
// Pagination is handled automatically.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	var allPages []Page
	startCursor := ""

	for {
		req := QueryDatabaseRequest{PageSize: maxPageSize}
		if startCursor != "" {
			req.StartCursor = startCursor
		}

		reqURL := fmt.Sprintf("%s/v1/databases/%s/query", c.baseURL, url.PathEscape(databaseID))

		var resp QueryDatabaseResponse
		if err := c.makeRequest(ctx, http.MethodPost, reqURL, req, &resp); err != nil {
			return nil, fmt.Errorf("query database failed: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	c.logger.Debug("notion database query completed",
		"database_id", databaseID,
		"page_count", len(allPages))
	return allPages, nil
}

// GetBlockChildren returns the direct child blocks of a block (a page ID
// works too). Pagination is handled automatically; nested blocks are not
// descended into, document text comes from top-level blocks only.
func (c *Client) GetBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var allBlocks []Block
	startCursor := ""

	for {
		reqURL := fmt.Sprintf("%s/v1/blocks/%s/children?page_size=%d",
			c.baseURL, url.PathEscape(blockID), maxPageSize)
		if startCursor != "" {
			reqURL += "&start_cursor=" + url.QueryEscape(startCursor)
		}

		var resp BlockChildrenResponse
		if err := c.makeRequest(ctx, http.MethodGet, reqURL, nil, &resp); err != nil {
			return nil, fmt.Errorf("get block children failed: %w", err)
		}

		allBlocks = append(allBlocks, resp.Results...)

		if !resp.HasMore {
			break
		}
		startCursor = resp.NextCursor
	}

	return allBlocks, nil
}

// makeRequest performs one HTTP request against the Notion API and decodes
// the response into result.
func (c *Client) makeRequest(ctx context.Context, method, url string, body, result any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notion API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
