package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// AIConfigValidator validates AI provider configurations.
// Implementations verify that configurations are valid by testing connectivity
// to the underlying AI services.
type AIConfigValidator interface {
	// ValidateEmbedding pings the configured embedding provider.
	// Returns nil if the provider is reachable or not configured.
	ValidateEmbedding(ctx context.Context, config *domain.EmbeddingSettings) error

	// ValidateLLM pings the configured LLM provider.
	// Returns nil if the provider is reachable or not configured.
	ValidateLLM(ctx context.Context, config *domain.LLMSettings) error
}
