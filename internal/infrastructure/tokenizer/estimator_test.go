package tokenizer

import (
	"strings"
	"testing"
)

func TestNewEstimator(t *testing.T) {
	estimator, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error: %v", err)
	}
	if estimator == nil {
		t.Fatal("expected non-nil Estimator")
	}
	if estimator.Encoding() != DefaultEncoding {
		t.Errorf("Encoding() = %q, want %q", estimator.Encoding(), DefaultEncoding)
	}
}

func TestEstimator_CountTokens(t *testing.T) {
	estimator, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error: %v", err)
	}

	tests := []struct {
		name      string
		text      string
		minTokens int
		maxTokens int
	}{
		{
			name:      "empty string",
			text:      "",
			minTokens: 0,
			maxTokens: 0,
		},
		{
			name:      "single word",
			text:      "hello",
			minTokens: 1,
			maxTokens: 2,
		},
		{
			name:      "longer text",
			text:      "The quick brown fox jumps over the lazy dog.",
			minTokens: 8,
			maxTokens: 15,
		},
		{
			name:      "markdown",
			text:      "# Title\n\nSome *emphasis* and a [link](https://example.com).",
			minTokens: 10,
			maxTokens: 30,
		},
		{
			name:      "special token text is plain text",
			text:      "before <|endoftext|> after",
			minTokens: 3,
			maxTokens: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimator.CountTokens(tt.text)
			if got < tt.minTokens || got > tt.maxTokens {
				t.Errorf("CountTokens(%q) = %d, want between %d and %d", tt.text, got, tt.minTokens, tt.maxTokens)
			}
		})
	}
}

func TestEstimator_Deterministic(t *testing.T) {
	estimator, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error: %v", err)
	}

	text := strings.Repeat("Determinism matters for chunk boundaries. ", 50)
	first := estimator.CountTokens(text)
	for i := 0; i < 5; i++ {
		if got := estimator.CountTokens(text); got != first {
			t.Fatalf("count changed between calls: %d vs %d", first, got)
		}
	}
}

func TestEstimator_GrowsWithAppendedWords(t *testing.T) {
	estimator, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error: %v", err)
	}

	words := strings.Fields("one two three four five six seven eight nine ten eleven twelve")
	prev := 0
	var b strings.Builder
	for _, w := range words {
		b.WriteString(w)
		b.WriteString(" ")
		got := estimator.CountTokens(b.String())
		if got < prev {
			t.Fatalf("count decreased from %d to %d at %q", prev, got, b.String())
		}
		prev = got
	}
}

func TestNewEstimatorForModel(t *testing.T) {
	tests := []struct {
		model        string
		wantEncoding string
	}{
		{"gpt-4", "cl100k_base"},
		{"gpt-3.5-turbo", "cl100k_base"},
		{"claude-3-5-sonnet-20241022", DefaultEncoding},
		{"llama3", DefaultEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			est, err := NewEstimatorForModel(tt.model)
			if err != nil {
				t.Fatalf("NewEstimatorForModel() error: %v", err)
			}
			if est.Encoding() != tt.wantEncoding {
				t.Errorf("Encoding() = %q, want %q", est.Encoding(), tt.wantEncoding)
			}
			if est.CountTokens("hello world") == 0 {
				t.Error("expected non-zero count")
			}
		})
	}
}

func TestSimpleEstimator_CountTokens(t *testing.T) {
	estimator := NewSimpleEstimator()

	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		if got := estimator.CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(len=%d) = %d, want %d", len(tt.text), got, tt.want)
		}
	}
}

func TestForModel(t *testing.T) {
	est, err := ForModel("gpt-4o-mini")
	if err != nil {
		t.Fatalf("ForModel() error: %v", err)
	}
	if est.CountTokens("") != 0 {
		t.Error("empty text must count zero")
	}
}
