package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

const maxErrorBody = 64 << 10

// Client is an HTTP client for the Ollama API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption is a functional option for configuring the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the client
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new Ollama API client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			// local generation on long pages is slow
			Timeout: 5 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListModels returns all locally pulled models
func (c *Client) ListModels(ctx context.Context) (*TagsResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, EndpointTags, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var tagsResp TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "decoding tags response", err)
	}

	return &tagsResp, nil
}

// Chat performs a non-streaming chat completion request
func (c *Client) Chat(ctx context.Context, chatReq *ChatRequest) (*ChatResponse, error) {
	chatReq.Stream = false

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "marshaling request", err)
	}

	resp, err := c.do(ctx, http.MethodPost, EndpointChat, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "decoding chat response", err)
	}

	return &chatResp, nil
}

// Ping checks if the Ollama server is available
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, EndpointTags, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.NewError(errors.CodeUpstream, "creating request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithContext(
			errors.NewError(errors.CodeUpstream, "ollama unreachable at "+c.baseURL, err),
			"provider", "ollama")
	}
	return resp, nil
}

// parseError classifies a failed response by status
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		message = fmt.Sprintf("status %d: ollama error: %s", resp.StatusCode, errResp.Error)
	}

	return errors.WithContext(errors.FromStatus(resp.StatusCode, message), "provider", "ollama")
}
