package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

const maxErrorBody = 64 << 10

// Client handles HTTP communication with the Anthropic API. Requests are
// attempted once.
type Client struct {
	httpClient *http.Client
	config     Config
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a new Anthropic API client.
func NewClient(config Config, opts ...ClientOption) *Client {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.Version == "" {
		config.Version = "2023-06-01"
	}
	c := &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage sends a message request to the Messages API.
func (c *Client) SendMessage(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.config.DefaultMaxTokens
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "failed to marshal request", err)
	}

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/messages", body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp)
	}

	var result MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "failed to decode response", err)
	}

	return &result, nil
}

// newRequest creates a new HTTP request with the API headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", c.config.Version)

	return req, nil
}

// handleErrorResponse classifies a non-200 response by its status.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = fmt.Sprintf("HTTP %d: %s: %s", resp.StatusCode, errResp.Error.Type, errResp.Error.Message)
	}

	de := errors.WithContext(errors.FromStatus(resp.StatusCode, message), "provider", "anthropic")
	if v := resp.Header.Get("retry-after"); v != "" {
		errors.WithContext(de, "retry_after", v)
	}
	return de
}

// HealthCheck sends a one-token request to verify the key and connectivity.
func (c *Client) HealthCheck(ctx context.Context, modelID string) error {
	if modelID == "" {
		modelID = ModelClaude3Haiku
	}
	_, err := c.SendMessage(ctx, &MessagesRequest{
		Model:     modelID,
		MaxTokens: 1,
		Messages: []Message{
			{Role: RoleUser, Content: []ContentBlock{{Type: "text", Text: "Hi"}}},
		},
	})
	return err
}
