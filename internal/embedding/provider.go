package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// NewClient creates an embedding client based on the provider name. The hash
// provider is deterministic and needs no key, so it also serves offline runs
// and tests. Returns an error if the provider is unknown or the key is empty
// where one is required.
func NewClient(provider, apiKey string) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for the openai embedding provider", domain.ErrConfiguration)
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderHash:
		return NewHashClient(), nil

	default:
		return nil, fmt.Errorf("%w: unknown embedding provider: %s (valid options: openai, hash)", domain.ErrConfiguration, provider)
	}
}
