package page

import (
	"time"

	"github.com/google/uuid"
)

// Usage is token consumption reported for one or more model calls.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewUsage builds a Usage whose total is the sum of prompt and completion tokens.
func NewUsage(prompt, completion int) Usage {
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// Add returns the field-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// IsZero reports whether no tokens were recorded.
func (u Usage) IsZero() bool {
	return u == Usage{}
}

// CallResult is the outcome of one model invocation.
type CallResult struct {
	Answer string
	Usage  Usage
}

// Record is the per-page result handed to the sink.
type Record struct {
	ID                string    `json:"id" jsonschema:"description=Unique record identifier"`
	RunID             string    `json:"run_id" jsonschema:"description=Identifier of the run that produced the record"`
	URL               string    `json:"url" jsonschema:"description=Page URL or source path"`
	Format            Format    `json:"format" jsonschema:"enum=markdown,enum=text,enum=html"`
	Strategy          Strategy  `json:"strategy" jsonschema:"enum=pass-through,enum=truncate,enum=split"`
	ChunkCount        int       `json:"chunk_count"`
	ContentLength     int       `json:"content_length" jsonschema:"description=Original content length in characters"`
	ContentTokens     int       `json:"content_tokens"`
	InstructionTokens int       `json:"instruction_tokens"`
	AnswerTokens      int       `json:"answer_tokens"`
	Usage             Usage     `json:"usage"`
	TotalTokens       int       `json:"total_tokens" jsonschema:"description=Total tokens consumed by every model call for the page"`
	CostUSD           float64   `json:"cost_usd" jsonschema:"description=Estimated spend in USD (0 for local or unpriced models)"`
	Model             string    `json:"model"`
	LimitExceeded     bool      `json:"limit_exceeded" jsonschema:"description=Whether the usage ceiling for the credential was crossed"`
	Answer            string    `json:"answer"`
	RawContent        string    `json:"raw_content"`
	AdaptedContent    string    `json:"adapted_content" jsonschema:"description=Content actually sent to the model"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewRecord creates a record with a fresh id and timestamp.
func NewRecord(runID string, content *Content, model string) *Record {
	return &Record{
		ID:            uuid.New().String(),
		RunID:         runID,
		URL:           content.URL,
		Format:        content.Format,
		ContentLength: content.Length(),
		ContentTokens: content.Tokens,
		Model:         model,
		RawContent:    content.Text,
		CreatedAt:     time.Now().UTC(),
	}
}
