// Package testutil provides test fixtures and helpers for testing.
package testutil

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/page"
	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
)

// WordCounter counts whitespace-separated words, one token per word.
var WordCounter = provider.TokenEstimatorFunc(func(text string) int {
	return len(strings.Fields(text))
})

// Words returns n space-separated words "w0 w1 ...".
func Words(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("w")
		b.WriteString(strconv.Itoa(i))
	}
	return b.String()
}

// NewTestModel creates a model config with the given context size.
func NewTestModel(maxTokens int) provider.ModelConfig {
	return provider.ModelConfig{ID: "test-model", Provider: "fake", MaxTokens: maxTokens}
}

// NewTestContent creates markdown page content.
func NewTestContent(url, text string) *page.Content {
	return page.NewContent(url, text, page.FormatMarkdown)
}

// FakeProvider implements ports.ProviderPort and records every request.
type FakeProvider struct {
	Name       string
	Credential string

	// CompleteFunc, when set, produces the response for each request.
	CompleteFunc func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error)

	mu       sync.Mutex
	requests []ports.CompletionRequest
	calls    atomic.Int32
}

// NewFakeProvider creates a provider that echoes a fixed answer.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Name: "fake", Credential: "fake-key"}
}

func (f *FakeProvider) Info() ports.ProviderInfo {
	return ports.ProviderInfo{
		Name:        f.Name,
		Description: "Fake provider for testing",
		IsLocal:     true,
		Credential:  f.Credential,
	}
}

func (f *FakeProvider) SupportsModel(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (f *FakeProvider) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	f.calls.Add(1)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.CompleteFunc != nil {
		return f.CompleteFunc(ctx, req)
	}

	return &ports.CompletionResponse{
		Content:      "answer",
		InputTokens:  10,
		OutputTokens: 5,
		FinishReason: "stop",
		ModelUsed:    req.ModelID,
		Duration:     time.Millisecond,
	}, nil
}

func (f *FakeProvider) HealthCheck(_ context.Context, _ string) (*ports.HealthStatus, error) {
	return &ports.HealthStatus{Healthy: true, Message: "OK", LastChecked: time.Now()}, nil
}

// Calls returns how many Complete calls were made.
func (f *FakeProvider) Calls() int {
	return int(f.calls.Load())
}

// Requests returns a copy of the received requests in arrival order.
func (f *FakeProvider) Requests() []ports.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.CompletionRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// LastPrompt returns the user message of a request.
func LastPrompt(req ports.CompletionRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[len(req.Messages)-1].Content
}

// FakeSink implements ports.SinkPort in memory.
type FakeSink struct {
	SaveErr error

	mu      sync.Mutex
	records []*page.Record
	closed  bool
}

func (s *FakeSink) Save(_ context.Context, record *page.Record) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	return nil
}

func (s *FakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Records returns the saved records.
func (s *FakeSink) Records() []*page.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*page.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Closed reports whether Close was called.
func (s *FakeSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
