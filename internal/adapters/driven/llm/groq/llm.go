// Package groq provides an LLM service adapter for Groq's OpenAI-compatible API,
// built on the official OpenAI Go SDK.
package groq

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/openaicompat"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1/"
	DefaultModel   = "llama-3.1-8b-instant"
	DefaultTimeout = 60 * time.Second

	providerName = "groq"
)

// Config holds configuration for the Groq LLM service.
type Config struct {
	// APIKey is the Groq API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.groq.com/openai/v1/).
	BaseURL string

	// Model is the hosted model to use (default: llama-3.1-8b-instant).
	Model string

	// Timeout is the per-request timeout (default: 60s).
	Timeout time.Duration

	// MaxRetries is how often the SDK retries 429 and 5xx responses.
	// Zero disables retries so rate limits surface to the caller.
	MaxRetries int
}

// LLMService provides LLM operations using Groq.
type LLMService struct {
	client openai.Client
	model  string
}

// NewLLMService creates a new Groq LLM service.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := openaicompat.NewClient(openaicompat.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	})

	return &LLMService{client: client, model: cfg.Model}, nil
}

// Chat conducts a multi-turn conversation.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	return openaicompat.Complete(ctx, s.client, providerName, openaicompat.ChatParams(s.model, messages, opts))
}

// Provider returns "groq".
func (s *LLMService) Provider() string {
	return providerName
}

// ModelName returns the name of the LLM model being used.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the API key by listing models.
func (s *LLMService) Ping(ctx context.Context) error {
	return openaicompat.Ping(ctx, s.client, providerName)
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
