package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jbctechsolutions/webdistill/internal/application/ports"
	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...ProviderOption) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewProvider(append([]ProviderOption{WithClient(NewClient(WithBaseURL(server.URL)))}, opts...)...)
}

func tagsHandler(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := TagsResponse{}
		for _, n := range names {
			resp.Models = append(resp.Models, ModelInfo{Name: n})
		}
		json.NewEncoder(w).Encode(resp)
	}
}

func TestProvider_Info(t *testing.T) {
	info := NewProviderWithURL("http://gpu-box:11434/").Info()

	if info.Name != "ollama" || !info.IsLocal {
		t.Errorf("unexpected info %+v", info)
	}
	if info.BaseURL != "http://gpu-box:11434" {
		t.Errorf("expected trimmed base url, got %q", info.BaseURL)
	}
	if info.Credential != "ollama" {
		t.Errorf("expected credential 'ollama', got %q", info.Credential)
	}
}

func TestProvider_SupportsModel(t *testing.T) {
	provider := newTestServer(t, tagsHandler("llama3:latest", "mistral:7b"))

	tests := []struct {
		model string
		want  bool
	}{
		{"llama3", true},
		{"llama3:latest", true},
		{"LLAMA3", true},
		{"mistral:7b", true},
		{"mistral", false},
		{"qwen2.5", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			got, err := provider.SupportsModel(context.Background(), tt.model)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SupportsModel(%q) = %v, want %v", tt.model, got, tt.want)
			}
		})
	}
}

func TestProvider_Complete(t *testing.T) {
	var got ChatRequest
	provider := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != EndpointChat {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(ChatResponse{
			Model:           "llama3",
			Message:         ChatMessage{Role: "assistant", Content: "local answer"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 300,
			EvalCount:       12,
		})
	}, WithContextWindow(8192))

	resp, err := provider.Complete(context.Background(), ports.CompletionRequest{
		ModelID:   "llama3",
		Messages:  []ports.Message{{Role: "user", Content: "prompt"}},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Content != "local answer" || resp.InputTokens != 300 || resp.OutputTokens != 12 {
		t.Errorf("unexpected response %+v", resp)
	}
	if got.Stream {
		t.Error("requests must not stream")
	}
	if got.Options == nil || got.Options.NumPredict != 100 || got.Options.NumCtx != 8192 {
		t.Errorf("unexpected options %+v", got.Options)
	}
}

func TestProvider_CompleteErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode errors.ErrorCode
	}{
		{"model missing", http.StatusNotFound, `{"error":"model 'llama9' not found"}`, errors.CodeUpstream},
		{"server error", http.StatusInternalServerError, `{"error":"out of memory"}`, errors.CodeUpstream},
		{"proxy auth", http.StatusUnauthorized, `denied`, errors.CodeAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			provider := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := provider.Complete(context.Background(), ports.CompletionRequest{ModelID: "llama9"})
			if errors.CodeOf(err) != tt.wantCode {
				t.Errorf("expected %s, got %v", tt.wantCode, err)
			}
			if calls != 1 {
				t.Errorf("expected one request, got %d", calls)
			}
		})
	}
}

func TestProvider_Unreachable(t *testing.T) {
	provider := NewProviderWithURL("http://127.0.0.1:1")

	_, err := provider.Complete(context.Background(), ports.CompletionRequest{ModelID: "llama3"})
	if errors.CodeOf(err) != errors.CodeUpstream {
		t.Errorf("expected UPSTREAM, got %v", err)
	}

	status, err := provider.HealthCheck(context.Background(), "")
	if err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if status.Healthy {
		t.Error("expected unhealthy status")
	}
}

func TestProvider_HealthCheck(t *testing.T) {
	provider := newTestServer(t, tagsHandler("llama3:latest"))

	tests := []struct {
		model       string
		wantHealthy bool
	}{
		{"", true},
		{"llama3", true},
		{"mistral", false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			status, err := provider.HealthCheck(context.Background(), tt.model)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if status.Healthy != tt.wantHealthy {
				t.Errorf("Healthy = %v, want %v (%s)", status.Healthy, tt.wantHealthy, status.Message)
			}
		})
	}
}
