package page

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jbctechsolutions/webdistill/internal/domain/errors"
)

// Policy is the configured handling for content that does not fit the model context.
// The zero value means no policy was configured.
type Policy string

const (
	PolicyUnset    Policy = ""
	PolicySkip     Policy = "skip"
	PolicyTruncate Policy = "truncate"
	PolicySplit    Policy = "split"
)

// Policies lists the accepted policy values.
func Policies() []Policy {
	return []Policy{PolicySkip, PolicyTruncate, PolicySplit}
}

// ParsePolicy converts a configuration string into a Policy.
// The empty string yields PolicyUnset; unknown values are configuration errors.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if p == PolicyUnset || slices.Contains(Policies(), p) {
		return p, nil
	}
	return p, errors.WithContext(
		errors.NewError(errors.CodeConfiguration, fmt.Sprintf("policy %q is not one of %s", s, PolicyNames()), errors.ErrUnsupportedPolicy),
		"policy", s)
}

// PolicyNames returns the accepted policy values as a comma-separated list.
func PolicyNames() string {
	names := make([]string, 0, len(Policies()))
	for _, p := range Policies() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// Strategy is the admission path chosen for one page.
type Strategy string

const (
	StrategyPassThrough Strategy = "pass-through"
	StrategySkip        Strategy = "skip"
	StrategyTruncate    Strategy = "truncate"
	StrategySplit       Strategy = "split"
)

// SelectStrategy derives the strategy from the content size, the model context
// and the policy. Content that fits always passes through regardless of policy.
func SelectStrategy(contentTokens, maxTokens int, policy Policy) (Strategy, error) {
	if contentTokens <= maxTokens {
		return StrategyPassThrough, nil
	}

	switch policy {
	case PolicySkip:
		return StrategySkip, nil
	case PolicyTruncate:
		return StrategyTruncate, nil
	case PolicySplit:
		return StrategySplit, nil
	case PolicyUnset:
		return "", errors.WithContext(
			errors.NewError(errors.CodeConfiguration,
				fmt.Sprintf("content has %d tokens, model allows %d", contentTokens, maxTokens), errors.ErrPolicyRequired),
			"content_tokens", contentTokens)
	}
	return "", errors.WithContext(
		errors.NewError(errors.CodeConfiguration, fmt.Sprintf("policy %q is not supported", policy), errors.ErrUnsupportedPolicy),
		"policy", string(policy))
}

// ContentBudget is the number of tokens left for content after reserving 10%
// of the context and the instructions. It is negative when the instructions
// alone exceed 90% of the context.
func ContentBudget(maxTokens, instructionTokens int) int {
	return maxTokens*9/10 - instructionTokens
}
