package domain

import "strings"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGroq is the Groq cloud API (OpenAI-compatible).
	AIProviderGroq AIProvider = "groq"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderGroq:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic || p == AIProviderGroq
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGroq:
		return "Groq (cloud)"
	default:
		return unknownDescription
	}
}

// EnvAPIKey returns the environment variable conventionally holding this provider's key.
func (p AIProvider) EnvAPIKey() string {
	switch p {
	case AIProviderOpenAI:
		return "OPENAI_API_KEY"
	case AIProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case AIProviderGroq:
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// InferLLMProvider picks a provider from a model name when none is configured.
// GPT models go to OpenAI; everything else is assumed to be served by Ollama.
func InferLLMProvider(model string) AIProvider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"):
		return AIProviderOpenAI
	case strings.HasPrefix(m, "claude-"):
		return AIProviderAnthropic
	default:
		return AIProviderOllama
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// RequestsPerMinute caps calls to the provider. 0 means unlimited.
	RequestsPerMinute int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or a proxy).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic/Groq).
	APIKey string

	// RequestsPerMinute caps calls to the provider. 0 means unlimited.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings holds chunking and query configuration.
type RetrievalSettings struct {
	// ChunkSize is the chunk window in runes.
	ChunkSize int

	// ChunkOverlap is the overlap between adjacent chunks in runes.
	ChunkOverlap int

	// TopK is how many chunks are retrieved per question.
	TopK int

	// IndexDir is the default persisted index directory.
	IndexDir string
}

// BuildOptions returns the chunking parameters.
func (r RetrievalSettings) BuildOptions() BuildOptions {
	return BuildOptions{ChunkSize: r.ChunkSize, ChunkOverlap: r.ChunkOverlap}
}

// HistorySettings bounds how much history is sent to the LLM.
type HistorySettings struct {
	// MaxTurns is the maximum number of turns rendered. 0 means unbounded.
	MaxTurns int

	// MaxTokens is the maximum number of history tokens rendered. 0 means unbounded.
	MaxTokens int
}

// RenderLimit converts the settings into a history render bound.
func (h HistorySettings) RenderLimit() RenderLimit {
	return RenderLimit{MaxTurns: h.MaxTurns, MaxTokens: h.MaxTokens}
}

// GenerationSettings controls answer generation.
type GenerationSettings struct {
	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Retrieval holds chunking and query settings.
	Retrieval RetrievalSettings

	// History holds history rendering limits.
	History HistorySettings

	// Generation holds answer generation settings.
	Generation GenerationSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users set them up via the settings commands.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
		Retrieval: RetrievalSettings{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
			TopK:         4,
		},
		History: HistorySettings{
			MaxTurns: 10,
		},
		Generation: GenerationSettings{
			Temperature: 0.5,
			MaxTokens:   256,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
		AIProviderGroq,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
		AIProviderGroq:      "llama-3.1-8b-instant",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
