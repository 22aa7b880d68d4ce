// Package anthropic adapts the Anthropic Messages API to the provider port.
package anthropic

import (
	"strings"
	"time"
)

// MessageRole represents the role of a message participant.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ContentBlock represents a content block in a message.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message represents a single message in the conversation.
type Message struct {
	Role    MessageRole    `json:"role"`
	Content []ContentBlock `json:"content"`
}

// MessagesRequest is the request body for the Messages API.
type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// Usage contains token usage information from the response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StopReason indicates why the model stopped generating.
type StopReason string

const (
	StopReasonEndTurn   StopReason = "end_turn"
	StopReasonMaxTokens StopReason = "max_tokens"
)

// MessagesResponse is the response body from the Messages API.
type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       MessageRole    `json:"role"`
	Content    []ContentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason StopReason     `json:"stop_reason"`
	Usage      Usage          `json:"usage"`
}

// ErrorResponse represents an error from the API.
type ErrorResponse struct {
	Type  string    `json:"type"`
	Error ErrorInfo `json:"error"`
}

// ErrorInfo contains detailed error information.
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Config contains configuration for the Anthropic client.
type Config struct {
	APIKey  string
	BaseURL string
	Version string
	Timeout time.Duration
	// DefaultMaxTokens is sent when a request leaves max_tokens unset,
	// since the API requires it.
	DefaultMaxTokens int
	// Credential names the key for usage tracking. Defaults to "anthropic".
	Credential string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:           apiKey,
		BaseURL:          "https://api.anthropic.com/v1",
		Version:          "2023-06-01",
		Timeout:          120 * time.Second,
		DefaultMaxTokens: 4096,
	}
}

// Known Claude models.
const (
	ModelClaude3Opus    = "claude-3-opus-20240229"
	ModelClaude35Sonnet = "claude-3-5-sonnet-20241022"
	ModelClaude35Haiku  = "claude-3-5-haiku-20241022"
	ModelClaude3Haiku   = "claude-3-haiku-20240307"
)

// IsSupportedModel reports whether the model ID names a Claude model.
func IsSupportedModel(modelID string) bool {
	return strings.HasPrefix(modelID, "claude-")
}
