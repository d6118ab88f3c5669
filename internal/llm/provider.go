// Package llm answers questions over retrieved dataset context with a chat
// completion model.
package llm

import (
	"fmt"
	"strings"
)

// Provider selects the chat completion backend.
type Provider int

const (
	ProviderOpenAI Provider = iota
	ProviderCohere
)

func (p Provider) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderCohere:
		return "cohere"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// ParseProvider maps a configured provider name to a Provider. An empty
// name means OpenAI.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "openai":
		return ProviderOpenAI, nil
	case "cohere":
		return ProviderCohere, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

const (
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultCohereModel = "command-r"

	// CohereBaseURL is Cohere's OpenAI compatible endpoint.
	CohereBaseURL = "https://api.cohere.ai/compatibility/v1/"
)

// ProviderConfig is everything needed to reach one provider. An empty
// BaseURL means the OpenAI default.
type ProviderConfig struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
}

// NewProviderConfig returns the default configuration for provider.
func NewProviderConfig(provider Provider, apiKey string) (ProviderConfig, error) {
	if apiKey == "" {
		return ProviderConfig{}, fmt.Errorf("%w: %s", ErrMissingAPIKey, provider)
	}
	switch provider {
	case ProviderOpenAI:
		return ProviderConfig{Provider: provider, APIKey: apiKey, Model: DefaultOpenAIModel}, nil
	case ProviderCohere:
		return ProviderConfig{Provider: provider, APIKey: apiKey, Model: DefaultCohereModel, BaseURL: CohereBaseURL}, nil
	}
	return ProviderConfig{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
}
