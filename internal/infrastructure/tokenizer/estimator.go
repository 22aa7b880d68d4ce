// Package tokenizer provides token counting infrastructure using tiktoken.
// It implements the domain TokenEstimator interface.
package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jbctechsolutions/webdistill/internal/domain/provider"
)

// DefaultEncoding is used for models tiktoken has no mapping for,
// which includes Claude and local Ollama models.
const DefaultEncoding = "cl100k_base"

// Estimator counts tokens with a tiktoken encoding.
type Estimator struct {
	encoding *tiktoken.Tiktoken
	name     string
	mu       sync.RWMutex
}

// Ensure Estimator implements provider.TokenEstimator.
var _ provider.TokenEstimator = (*Estimator)(nil)

// NewEstimator creates a token estimator using cl100k_base encoding.
func NewEstimator() (*Estimator, error) {
	encoding, err := tiktoken.GetEncoding(DefaultEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", DefaultEncoding, err)
	}

	return &Estimator{
		encoding: encoding,
		name:     DefaultEncoding,
	}, nil
}

// NewEstimatorForModel picks the encoding tiktoken associates with modelID
// and falls back to cl100k_base for unknown model families.
func NewEstimatorForModel(modelID string) (*Estimator, error) {
	name := encodingNameFor(modelID)
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding for %s: %w", name, modelID, err)
	}
	return &Estimator{encoding: encoding, name: name}, nil
}

func encodingNameFor(modelID string) string {
	if enc, ok := tiktoken.MODEL_TO_ENCODING[modelID]; ok {
		return enc
	}
	for prefix, enc := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if strings.HasPrefix(modelID, prefix) {
			return enc
		}
	}
	return DefaultEncoding
}

// Encoding returns the name of the encoding in use.
func (e *Estimator) Encoding() string {
	return e.name
}

// CountTokens returns the token count for the given text.
// This method is thread-safe.
func (e *Estimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	tokens := e.encoding.Encode(text, nil, nil)
	return len(tokens)
}

// SimpleEstimator provides a heuristic token estimator that needs no
// encoding data. Uses ~4 characters per token.
type SimpleEstimator struct{}

// Ensure SimpleEstimator implements provider.TokenEstimator.
var _ provider.TokenEstimator = (*SimpleEstimator)(nil)

// NewSimpleEstimator creates a new simple token estimator.
func NewSimpleEstimator() *SimpleEstimator {
	return &SimpleEstimator{}
}

// CountTokens returns an estimated token count using ~4 characters per token heuristic.
func (e *SimpleEstimator) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// ForModel returns the tiktoken estimator for modelID, or the heuristic
// estimator together with the load error when encoding data is unavailable.
func ForModel(modelID string) (provider.TokenEstimator, error) {
	est, err := NewEstimatorForModel(modelID)
	if err != nil {
		return NewSimpleEstimator(), err
	}
	return est, nil
}
