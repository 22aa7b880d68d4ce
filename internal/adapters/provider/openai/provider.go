package openai

import (
	"context"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
)

// Provider implements the ports.ProviderPort interface for OpenAI.
type Provider struct {
	client *Client
	config Config
}

// Ensure Provider implements ProviderPort at compile time.
var _ ports.ProviderPort = (*Provider)(nil)

// NewProvider creates a new OpenAI provider with the given configuration.
func NewProvider(config Config, opts ...ClientOption) *Provider {
	client := NewClient(config, opts...)
	return &Provider{
		client: client,
		config: client.config,
	}
}

// Info returns metadata about this provider.
func (p *Provider) Info() ports.ProviderInfo {
	credential := p.config.Credential
	if credential == "" {
		credential = "openai"
	}
	return ports.ProviderInfo{
		Name:        "openai",
		Description: "OpenAI-compatible Chat Completions API",
		BaseURL:     p.config.BaseURL,
		IsLocal:     false,
		Credential:  credential,
	}
}

// SupportsModel reports whether the model belongs to an OpenAI model family.
func (p *Provider) SupportsModel(_ context.Context, modelID string) (bool, error) {
	return IsSupportedModel(modelID), nil
}

// Complete sends a completion request and returns the response.
func (p *Provider) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	startTime := time.Now()

	resp, _, err := p.client.Chat(ctx, buildRequest(req))
	if err != nil {
		return nil, err
	}

	return buildResponse(resp, startTime), nil
}

// HealthCheck verifies the provider is reachable and the key is accepted.
func (p *Provider) HealthCheck(ctx context.Context, _ string) (*ports.HealthStatus, error) {
	startTime := time.Now()
	err := p.client.HealthCheck(ctx)
	latency := time.Since(startTime)

	if err != nil {
		return &ports.HealthStatus{
			Healthy:     false,
			Message:     err.Error(),
			Latency:     latency,
			LastChecked: time.Now(),
		}, nil
	}

	return &ports.HealthStatus{
		Healthy:     true,
		Message:     "OK",
		Latency:     latency,
		LastChecked: time.Now(),
	}, nil
}

// buildRequest converts a ports.CompletionRequest to a ChatCompletionRequest.
func buildRequest(req ports.CompletionRequest) *ChatCompletionRequest {
	messages := make([]Message, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" && req.SystemPrompt != "" {
			continue
		}
		messages = append(messages, Message{Role: MessageRole(msg.Role), Content: msg.Content})
	}

	out := &ChatCompletionRequest{
		Model:    req.ModelID,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		out.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		out.Temperature = &req.Temperature
	}
	return out
}

// buildResponse converts a ChatCompletionResponse to a ports.CompletionResponse.
func buildResponse(resp *ChatCompletionResponse, startTime time.Time) *ports.CompletionResponse {
	var content, finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = resp.Choices[0].FinishReason
	}

	return &ports.CompletionResponse{
		Content:      content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		FinishReason: finishReason,
		ModelUsed:    resp.Model,
		Duration:     time.Since(startTime),
	}
}
