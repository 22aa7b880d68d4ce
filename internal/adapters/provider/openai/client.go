package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Client handles HTTP communication with the OpenAI API.
// It never retries: failures are returned classified for the caller to act on.
type Client struct {
	httpClient *http.Client
	config     Config
}

// ClientOption is a functional option for configuring the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client for the Client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.config.Timeout = timeout
		c.httpClient.Timeout = timeout
	}
}

// WithBaseURL sets the base URL for API requests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.config.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewClient creates a new OpenAI API client with functional options.
func NewClient(config Config, opts ...ClientOption) *Client {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
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

// Chat sends a chat completion request.
func (c *Client) Chat(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, *RateLimitInfo, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, errors.NewError(errors.CodeUpstream, "failed to marshal request", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	rateLimitInfo := parseRateLimitHeaders(resp.Header)

	if resp.StatusCode != http.StatusOK {
		return nil, rateLimitInfo, handleErrorResponse(resp, rateLimitInfo)
	}

	var result ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, rateLimitInfo, errors.NewError(errors.CodeUpstream, "failed to decode response", err)
	}

	return &result, rateLimitInfo, nil
}

// ListModels retrieves the list of available models.
func (c *Client) ListModels(ctx context.Context) (*ModelsResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp, nil)
	}

	var result ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "failed to decode models response", err)
	}

	return &result, nil
}

// do performs a single HTTP request with the API headers set.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if c.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", c.config.Organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "request failed", err)
	}
	return resp, nil
}

// handleErrorResponse classifies a non-200 response by its status.
func handleErrorResponse(resp *http.Response, rl *RateLimitInfo) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		errType := errResp.Error.Type
		if errType == "" {
			errType = "error"
		}
		message = fmt.Sprintf("HTTP %d: %s: %s", resp.StatusCode, errType, errResp.Error.Message)
	}

	de := errors.WithContext(errors.FromStatus(resp.StatusCode, message), "provider", "openai")
	if rl == nil || de.Code != errors.CodeRateLimit {
		return de
	}
	if rl.RemainingRequests >= 0 {
		errors.WithContext(de, "remaining_requests", rl.RemainingRequests)
	}
	if rl.RemainingTokens >= 0 {
		errors.WithContext(de, "remaining_tokens", rl.RemainingTokens)
	}
	if rl.ResetTokens != "" {
		errors.WithContext(de, "reset_tokens", rl.ResetTokens)
	}
	return de
}

// parseRateLimitHeaders extracts rate limit information from response headers.
func parseRateLimitHeaders(headers http.Header) *RateLimitInfo {
	info := &RateLimitInfo{RemainingRequests: -1, RemainingTokens: -1}

	if n, err := strconv.Atoi(headers.Get("x-ratelimit-remaining-requests")); err == nil {
		info.RemainingRequests = n
	}
	if n, err := strconv.Atoi(headers.Get("x-ratelimit-remaining-tokens")); err == nil {
		info.RemainingTokens = n
	}
	info.ResetTokens = headers.Get("x-ratelimit-reset-tokens")

	return info
}

// HealthCheck verifies API connectivity without consuming tokens.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.ListModels(ctx)
	return err
}
