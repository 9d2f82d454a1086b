package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAIProvider_IsValid tests all valid and invalid providers
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{name: "ollama is valid", provider: AIProviderOllama, expected: true},
		{name: "openai is valid", provider: AIProviderOpenAI, expected: true},
		{name: "anthropic is valid", provider: AIProviderAnthropic, expected: true},
		{name: "groq is valid", provider: AIProviderGroq, expected: true},
		{name: "empty string is invalid", provider: AIProvider(""), expected: false},
		{name: "unknown provider is invalid", provider: AIProvider("cohere"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

func TestAIProvider_RequiresAPIKey(t *testing.T) {
	assert.False(t, AIProviderOllama.RequiresAPIKey())
	assert.True(t, AIProviderOpenAI.RequiresAPIKey())
	assert.True(t, AIProviderAnthropic.RequiresAPIKey())
	assert.True(t, AIProviderGroq.RequiresAPIKey())
}

func TestAIProvider_IsLocal(t *testing.T) {
	assert.True(t, AIProviderOllama.IsLocal())
	assert.False(t, AIProviderGroq.IsLocal())
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "Groq (cloud)", AIProviderGroq.Description())
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, unknownDescription, AIProvider("x").Description())
}

func TestAIProvider_EnvAPIKey(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", AIProviderOpenAI.EnvAPIKey())
	assert.Equal(t, "GROQ_API_KEY", AIProviderGroq.EnvAPIKey())
	assert.Equal(t, "ANTHROPIC_API_KEY", AIProviderAnthropic.EnvAPIKey())
	assert.Empty(t, AIProviderOllama.EnvAPIKey())
}

func TestInferLLMProvider(t *testing.T) {
	tests := []struct {
		model    string
		expected AIProvider
	}{
		{"gpt-4o-mini", AIProviderOpenAI},
		{"GPT-4", AIProviderOpenAI},
		{"claude-3-5-sonnet-latest", AIProviderAnthropic},
		{"llama3.2", AIProviderOllama},
		{"gemma:2b", AIProviderOllama},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferLLMProvider(tt.model))
		})
	}
}

// TestEmbeddingSettings_IsConfigured tests configuration detection
func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		expected bool
	}{
		{name: "empty settings", settings: EmbeddingSettings{}, expected: false},
		{name: "ollama without key", settings: EmbeddingSettings{Provider: AIProviderOllama}, expected: true},
		{name: "openai without key", settings: EmbeddingSettings{Provider: AIProviderOpenAI}, expected: false},
		{
			name:     "openai with key",
			settings: EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk-test"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.settings.IsConfigured())
		})
	}
}

func TestLLMSettings_IsConfigured(t *testing.T) {
	assert.False(t, LLMSettings{}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderGroq}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderGroq, APIKey: "gsk"}.IsConfigured())
	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
}

func TestDefaultAppSettings(t *testing.T) {
	settings := DefaultAppSettings()

	assert.False(t, settings.LLM.IsConfigured())
	assert.False(t, settings.Embedding.IsConfigured())
	assert.Equal(t, 1000, settings.Retrieval.ChunkSize)
	assert.Equal(t, 100, settings.Retrieval.ChunkOverlap)
	assert.Equal(t, 4, settings.Retrieval.TopK)
	assert.Equal(t, 10, settings.History.MaxTurns)
	assert.InDelta(t, 0.5, settings.Generation.Temperature, 1e-9)
	assert.Equal(t, 256, settings.Generation.MaxTokens)
	require.NoError(t, settings.Retrieval.BuildOptions().Validate())
}

func TestHistorySettings_RenderLimit(t *testing.T) {
	limit := HistorySettings{MaxTurns: 6, MaxTokens: 500}.RenderLimit()
	assert.Equal(t, RenderLimit{MaxTurns: 6, MaxTokens: 500}, limit)
}

func TestAllLLMProviders(t *testing.T) {
	providers := AllLLMProviders()
	assert.Len(t, providers, 4)
	assert.Contains(t, providers, AIProviderGroq)
	for _, p := range providers {
		assert.NotEmpty(t, DefaultLLMModels()[p], "missing default model for %s", p)
	}
}

func TestAllEmbeddingProviders(t *testing.T) {
	providers := AllEmbeddingProviders()
	assert.Equal(t, []AIProvider{AIProviderOllama, AIProviderOpenAI}, providers)
	for _, p := range providers {
		model := DefaultEmbeddingModels()[p]
		assert.NotZero(t, EmbeddingDimensions()[model], "unknown dimension for %s", model)
	}
}
