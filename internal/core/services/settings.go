package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMRPM          = "llm.requests_per_minute"
	keyEmbedRPM        = "embedding.requests_per_minute"
	keyChunkSize       = "retrieval.chunk_size"
	keyChunkOverlap    = "retrieval.chunk_overlap"
	keyTopK            = "retrieval.top_k"
	keyIndexDir        = "retrieval.index_dir"
	keyHistoryTurns    = "history.max_turns"
	keyHistoryTokens   = "history.max_tokens"
	keyTemperature     = "generation.temperature"
	keyGenMaxTokens    = "generation.max_tokens"
	defaultOllamaURL   = "http://localhost:11434"
	validationDeadline = 10 * time.Second
)

// EnvLookup resolves environment variables. os.LookupEnv satisfies it.
type EnvLookup func(key string) (string, bool)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   EnvLookup
}

// NewSettingsService creates a new settings service.
// lookupEnv may be nil; when set, it fills API keys the config leaves empty.
func NewSettingsService(
	configStore driven.ConfigStore, aiValidator driven.AIConfigValidator, lookupEnv EnvLookup,
) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   lookupEnv,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),

			RequestsPerMinute: s.getIntAllowZero(keyEmbedRPM, 0),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyLLMAPIKey),

			RequestsPerMinute: s.getIntAllowZero(keyLLMRPM, 0),
		},
		Retrieval: domain.RetrievalSettings{
			ChunkSize:    s.getInt(keyChunkSize, defaults.Retrieval.ChunkSize),
			ChunkOverlap: s.getIntAllowZero(keyChunkOverlap, defaults.Retrieval.ChunkOverlap),
			TopK:         s.getInt(keyTopK, defaults.Retrieval.TopK),
			IndexDir:     s.configStore.GetString(keyIndexDir),
		},
		History: domain.HistorySettings{
			MaxTurns:  s.getIntAllowZero(keyHistoryTurns, defaults.History.MaxTurns),
			MaxTokens: s.getIntAllowZero(keyHistoryTokens, defaults.History.MaxTokens),
		},
		Generation: domain.GenerationSettings{
			Temperature: s.getFloat(keyTemperature, defaults.Generation.Temperature),
			MaxTokens:   s.getInt(keyGenMaxTokens, defaults.Generation.MaxTokens),
		},
	}

	// A model name alone is enough to pick the provider.
	if settings.LLM.Provider == "" && settings.LLM.Model != "" {
		settings.LLM.Provider = domain.InferLLMProvider(settings.LLM.Model)
	}

	settings.LLM.APIKey = s.envFallback(settings.LLM.APIKey, settings.LLM.Provider)
	settings.Embedding.APIKey = s.envFallback(settings.Embedding.APIKey, settings.Embedding.Provider)

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	// Save embedding settings
	if err := s.configStore.Set(keyEmbedProvider, settings.Embedding.Provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, settings.Embedding.Model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if err := s.configStore.Set(keyEmbedBaseURL, settings.Embedding.BaseURL); err != nil {
		return fmt.Errorf("save embedding base_url: %w", err)
	}
	if settings.Embedding.APIKey != "" && !s.isEnvKey(settings.Embedding.APIKey, settings.Embedding.Provider) {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}

	// Save LLM settings
	if err := s.configStore.Set(keyLLMProvider, settings.LLM.Provider.String()); err != nil {
		return fmt.Errorf("save llm provider: %w", err)
	}
	if err := s.configStore.Set(keyLLMModel, settings.LLM.Model); err != nil {
		return fmt.Errorf("save llm model: %w", err)
	}
	if err := s.configStore.Set(keyLLMBaseURL, settings.LLM.BaseURL); err != nil {
		return fmt.Errorf("save llm base_url: %w", err)
	}
	if settings.LLM.APIKey != "" && !s.isEnvKey(settings.LLM.APIKey, settings.LLM.Provider) {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	// Save retrieval, history and generation settings
	numeric := []struct {
		key   string
		value any
	}{
		{keyChunkSize, settings.Retrieval.ChunkSize},
		{keyChunkOverlap, settings.Retrieval.ChunkOverlap},
		{keyTopK, settings.Retrieval.TopK},
		{keyHistoryTurns, settings.History.MaxTurns},
		{keyHistoryTokens, settings.History.MaxTokens},
		{keyTemperature, settings.Generation.Temperature},
		{keyGenMaxTokens, settings.Generation.MaxTokens},
		{keyLLMRPM, settings.LLM.RequestsPerMinute},
		{keyEmbedRPM, settings.Embedding.RequestsPerMinute},
	}
	for _, kv := range numeric {
		if err := s.configStore.Set(kv.key, kv.value); err != nil {
			return fmt.Errorf("save %s: %w", kv.key, err)
		}
	}
	if settings.Retrieval.IndexDir != "" {
		if err := s.configStore.Set(keyIndexDir, settings.Retrieval.IndexDir); err != nil {
			return fmt.Errorf("save %s: %w", keyIndexDir, err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetRetrieval configures chunking and top-k.
func (s *SettingsService) SetRetrieval(chunkSize, chunkOverlap, topK int) error {
	opts := domain.BuildOptions{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
	if err := opts.Validate(); err != nil {
		return err
	}
	if topK < 1 {
		return domain.InvalidArgument("top_k must be >= 1, got %d", topK)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Retrieval.ChunkSize = chunkSize
	settings.Retrieval.ChunkOverlap = chunkOverlap
	settings.Retrieval.TopK = topK

	return s.Save(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), validationDeadline)
	defer cancel()
	return s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), validationDeadline)
	defer cancel()
	return s.aiValidator.ValidateLLM(ctx, &settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicitly stored 0 as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	if val := s.configStore.GetInt(key); val >= 0 {
		return val
	}
	return defaultVal
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) envFallback(apiKey string, provider domain.AIProvider) string {
	if apiKey != "" || s.lookupEnv == nil {
		return apiKey
	}
	name := provider.EnvAPIKey()
	if name == "" {
		return ""
	}
	if v, ok := s.lookupEnv(name); ok {
		return v
	}
	return ""
}

// isEnvKey reports whether apiKey came from the environment, so Save does not copy it to disk.
func (s *SettingsService) isEnvKey(apiKey string, provider domain.AIProvider) bool {
	if s.lookupEnv == nil || provider.EnvAPIKey() == "" {
		return false
	}
	v, ok := s.lookupEnv(provider.EnvAPIKey())
	return ok && v == apiKey
}
