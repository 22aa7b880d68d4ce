package anthropic

import (
	"context"
	"strings"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
)

// Provider implements the ports.ProviderPort interface for Anthropic Claude.
type Provider struct {
	client *Client
	config Config
}

// Ensure Provider implements ProviderPort at compile time.
var _ ports.ProviderPort = (*Provider)(nil)

// NewProvider creates a new Anthropic provider with the given configuration.
func NewProvider(config Config, opts ...ClientOption) *Provider {
	client := NewClient(config, opts...)
	return &Provider{
		client: client,
		config: client.config,
	}
}

// NewProviderWithAPIKey creates a new Anthropic provider with default configuration.
func NewProviderWithAPIKey(apiKey string) *Provider {
	return NewProvider(DefaultConfig(apiKey))
}

// Info returns metadata about this provider.
func (p *Provider) Info() ports.ProviderInfo {
	credential := p.config.Credential
	if credential == "" {
		credential = "anthropic"
	}
	return ports.ProviderInfo{
		Name:        "anthropic",
		Description: "Anthropic Claude Messages API",
		BaseURL:     p.config.BaseURL,
		IsLocal:     false,
		Credential:  credential,
	}
}

// SupportsModel checks if this provider supports the given model.
func (p *Provider) SupportsModel(_ context.Context, modelID string) (bool, error) {
	return IsSupportedModel(modelID), nil
}

// Complete sends a completion request and returns the response.
func (p *Provider) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	startTime := time.Now()

	resp, err := p.client.SendMessage(ctx, buildRequest(req))
	if err != nil {
		return nil, err
	}

	return buildResponse(resp, startTime), nil
}

// HealthCheck verifies the provider is healthy and responsive.
func (p *Provider) HealthCheck(ctx context.Context, modelID string) (*ports.HealthStatus, error) {
	startTime := time.Now()
	err := p.client.HealthCheck(ctx, modelID)
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

// buildRequest converts a ports.CompletionRequest to a MessagesRequest.
// System messages move to the system field.
func buildRequest(req ports.CompletionRequest) *MessagesRequest {
	out := &MessagesRequest{
		Model:     req.ModelID,
		MaxTokens: req.MaxTokens,
		System:    req.SystemPrompt,
		Messages:  make([]Message, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		if msg.Role == "system" {
			if out.System == "" {
				out.System = msg.Content
			}
			continue
		}
		out.Messages = append(out.Messages, Message{
			Role:    MessageRole(msg.Role),
			Content: []ContentBlock{{Type: "text", Text: msg.Content}},
		})
	}

	if req.Temperature > 0 {
		temp := req.Temperature
		out.Temperature = &temp
	}

	return out
}

// buildResponse converts a MessagesResponse to a ports.CompletionResponse.
func buildResponse(resp *MessagesResponse, startTime time.Time) *ports.CompletionResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &ports.CompletionResponse{
		Content:      content.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		FinishReason: string(resp.StopReason),
		ModelUsed:    resp.Model,
		Duration:     time.Since(startTime),
	}
}
