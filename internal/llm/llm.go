// Package llm abstracts the completion call behind a provider interface.
// Anthropic is the default; OpenAI is selectable via configuration.
package llm

import (
	"context"
	"fmt"
)

// Provider produces one text completion from a system instruction and a
// user content string, bounded by maxTokens.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// New selects a provider by name.
func New(provider, apiKey, model string) (Provider, error) {
	switch provider {
	case "", "anthropic":
		return NewAnthropic(apiKey, model), nil
	case "openai":
		return NewOpenAI(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q: must be anthropic or openai", provider)
	}
}
