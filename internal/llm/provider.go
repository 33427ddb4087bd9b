package llm

import (
	"fmt"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

// NewClient creates an LLM client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string) (domain.LLMClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for OpenAI provider", domain.ErrConfiguration)
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is required for Anthropic provider", domain.ErrConfiguration)
		}
		return NewAnthropicClient(apiKey), nil

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY is required for Gemini provider", domain.ErrConfiguration)
		}
		return NewGeminiClient(apiKey), nil

	case ProviderCerebras:
		if apiKey == "" {
			return nil, fmt.Errorf("%w: CEREBRAS_API_KEY is required for Cerebras provider", domain.ErrConfiguration)
		}
		return NewCerebrasClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("%w: unknown LLM provider: %s (valid options: openai, anthropic, gemini, cerebras, mock)", domain.ErrConfiguration, provider)
	}
}
