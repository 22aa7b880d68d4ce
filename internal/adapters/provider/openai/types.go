// Package openai provides an adapter for the OpenAI Chat Completions API
// and any server that speaks the same protocol.
package openai

import (
	"strings"
	"time"
)

// MessageRole represents the role of a message participant.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in the chat conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatCompletionRequest is the request body for the Chat Completions API.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
}

// ChatCompletionResponse is the response body from the Chat Completions API.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage contains token usage information from the response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorResponse represents an error from the API.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo contains detailed error information.
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ModelsResponse is the response from the models list endpoint.
type ModelsResponse struct {
	Data []Model `json:"data"`
}

// Model represents a model listed by the API.
type Model struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by"`
}

// RateLimitInfo contains rate limit information from response headers.
// Remaining counts are -1 when the header was absent.
type RateLimitInfo struct {
	RemainingRequests int    // x-ratelimit-remaining-requests
	RemainingTokens   int    // x-ratelimit-remaining-tokens
	ResetTokens       string // x-ratelimit-reset-tokens
}

// Config contains configuration for the OpenAI client.
type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Timeout      time.Duration
	// Credential names the key for usage ceilings. Defaults to "openai".
	Credential string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Timeout: 120 * time.Second,
	}
}

// modelPrefixes are the model families served by the OpenAI API.
var modelPrefixes = []string{"gpt-", "o1", "o3", "o4", "chatgpt-"}

// IsSupportedModel reports whether modelID belongs to an OpenAI model family.
func IsSupportedModel(modelID string) bool {
	for _, p := range modelPrefixes {
		if strings.HasPrefix(modelID, p) {
			return true
		}
	}
	return false
}
