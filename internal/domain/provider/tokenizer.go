package provider

// TokenEstimator measures the token length of text for one model family.
// Implementations must be deterministic, return 0 for the empty string,
// and never shrink when text is appended.
type TokenEstimator interface {
	// CountTokens returns the estimated token count for the given text.
	CountTokens(text string) int
}

// TokenEstimatorFunc adapts a plain function to TokenEstimator.
type TokenEstimatorFunc func(text string) int

// CountTokens calls f(text).
func (f TokenEstimatorFunc) CountTokens(text string) int {
	return f(text)
}
