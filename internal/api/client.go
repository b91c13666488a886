package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "INLINEEDIT_HTTP_TIMEOUT"
	apiKeyEnvKey       = "INLINEEDIT_API_KEY"
	requestIDHeader    = "X-Request-ID"
	// APIKeyHeader authenticates API clients.
	APIKeyHeader = "X-API-Key"
)

// Client is a small HTTP client for the inlineedit server.
type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
}

// NewClient creates a new API client. The API key is read from
// INLINEEDIT_API_KEY.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		apiKey:  strings.TrimSpace(os.Getenv(apiKeyEnvKey)),
	}
}

// WithAPIKey returns a copy of c authenticating with key.
func (c *Client) WithAPIKey(key string) *Client {
	clone := *c
	clone.apiKey = strings.TrimSpace(key)
	return &clone
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// UpdateMultiple submits a batch of inline edits. projectRef scopes the
// update to a project when non-empty.
func (c *Client) UpdateMultiple(ctx context.Context, projectRef string, req UpdateMultipleRequest) (UpdateMultipleResponse, error) {
	var resp UpdateMultipleResponse
	path := "/inline_issues/update_multiple"
	if projectRef = strings.TrimSpace(projectRef); projectRef != "" {
		path = "/projects/" + url.PathEscape(projectRef) + path
	}
	err := c.do(ctx, http.MethodPost, path, nil, req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
			RequestID: resp.Header.Get(requestIDHeader),
		}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Message:   fmt.Sprintf("api error: %s", resp.Status),
		RequestID: resp.Header.Get(requestIDHeader),
	}
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
