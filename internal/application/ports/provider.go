package ports

import (
	"context"
	"time"
)

// ProviderInfo contains provider metadata
type ProviderInfo struct {
	Name        string
	Description string
	BaseURL     string
	IsLocal     bool
	// Credential names the key whose usage is tracked against ceilings.
	Credential string
}

// Message represents a chat message
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// CompletionRequest is the input for LLM completion
type CompletionRequest struct {
	ModelID      string
	Messages     []Message
	MaxTokens    int
	Temperature  float32
	SystemPrompt string
}

// CompletionResponse is the output from LLM completion
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	FinishReason string
	ModelUsed    string
	Duration     time.Duration
}

// HealthStatus for provider health checks
type HealthStatus struct {
	Healthy     bool
	Message     string
	Latency     time.Duration
	LastChecked time.Time
}

// ProviderPort is the model-client collaborator. Complete must report
// credential failures with errors.CodeAuthentication and rate limiting with
// errors.CodeRateLimit; anything else is treated as a generic upstream failure.
type ProviderPort interface {
	Info() ProviderInfo
	SupportsModel(ctx context.Context, modelID string) (bool, error)
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	HealthCheck(ctx context.Context, modelID string) (*HealthStatus, error)
}
