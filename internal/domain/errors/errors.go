// Package errors provides domain-specific errors for the webdistill application.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common domain error conditions.
var (
	ErrUnsupportedPolicy = errors.New("unsupported long-content policy")
	ErrPolicyRequired    = errors.New("content exceeds model context and no long-content policy is configured")
	ErrNegativeBudget    = errors.New("instructions leave no token budget for content")
	ErrUnknownModel      = errors.New("unknown model")
	ErrAuthentication    = errors.New("authentication failed")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrUpstream          = errors.New("upstream model call failed")
	ErrEmptyAnswer       = errors.New("model returned an empty answer")
)

// ErrorCode categorizes errors for handling and reporting.
type ErrorCode string

const (
	CodeValidation     ErrorCode = "VALIDATION"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeConfiguration  ErrorCode = "CONFIG"
	CodeAuthentication ErrorCode = "AUTH"
	CodeRateLimit      ErrorCode = "RATE_LIMIT"
	CodeUpstream       ErrorCode = "UPSTREAM"
	CodeExecution      ErrorCode = "EXECUTION"
)

// DistillError wraps errors with additional context for debugging and handling.
type DistillError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns a formatted error string including the code, message, and cause if present.
func (e *DistillError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for use with errors.Is and errors.As.
func (e *DistillError) Unwrap() error {
	return e.Cause
}

// NewError creates a new DistillError with the given code, message, and optional cause.
func NewError(code ErrorCode, message string, cause error) *DistillError {
	return &DistillError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds a key-value pair to the error's context and returns the error.
// This allows for method chaining when adding multiple context values.
func WithContext(err *DistillError, key string, value interface{}) *DistillError {
	if err.Context == nil {
		err.Context = make(map[string]interface{})
	}
	err.Context[key] = value
	return err
}

// Is reports whether err matches target using errors.Is semantics.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target and sets target to that error value.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// CodeOf returns the code of the outermost DistillError in err's chain,
// or an empty code when there is none.
func CodeOf(err error) ErrorCode {
	var de *DistillError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// hasCode walks the whole chain, so a wrapper with a different code
// does not hide an inner classification.
func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var de *DistillError
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Cause
	}
	return false
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return hasCode(err, CodeConfiguration)
}

// IsAuthentication reports whether err is a credential failure.
func IsAuthentication(err error) bool {
	return hasCode(err, CodeAuthentication) || errors.Is(err, ErrAuthentication)
}

// IsRateLimit reports whether err is a rate-limit or quota failure.
func IsRateLimit(err error) bool {
	return hasCode(err, CodeRateLimit) || errors.Is(err, ErrRateLimited)
}

// FromStatus classifies a failed HTTP response from a model API.
// 401 and 403 are credential failures, 429 is rate limiting and every other
// status is a generic upstream failure.
func FromStatus(status int, message string) *DistillError {
	var de *DistillError
	switch status {
	case 401, 403:
		de = NewError(CodeAuthentication, message, ErrAuthentication)
	case 429:
		de = NewError(CodeRateLimit, message, ErrRateLimited)
	default:
		de = NewError(CodeUpstream, message, ErrUpstream)
	}
	return WithContext(de, "status", status)
}
