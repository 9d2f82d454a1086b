// Package openaicompat holds the openai-go plumbing shared by adapters for
// OpenAI and OpenAI-compatible APIs: client construction, chat parameters and
// mapping SDK failures onto domain.ProviderError.
package openaicompat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Config describes one API endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// MaxRetries is how often the SDK retries 429 and 5xx responses.
	// Zero disables retries so rate limits surface to the caller.
	MaxRetries int
}

// NewClient builds an SDK client for cfg.
func NewClient(cfg Config) openai.Client {
	return openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		option.WithMaxRetries(cfg.MaxRetries),
	)
}

// ChatParams converts port messages and options into a completion request.
func ChatParams(model string, messages []driven.ChatMessage, opts driven.ChatOptions) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case driven.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case driven.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    msgs,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	return params
}

// Complete runs a chat completion and returns the first choice.
func Complete(ctx context.Context, client openai.Client, provider string, params openai.ChatCompletionNewParams) (string, error) {
	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", WrapError(provider, "chat", err)
	}
	if len(completion.Choices) == 0 {
		return "", &domain.ProviderError{Provider: provider, Op: "chat", Err: errors.New("no choices returned")}
	}
	return completion.Choices[0].Message.Content, nil
}

// Ping lists models, which checks the key without running inference.
func Ping(ctx context.Context, client openai.Client, provider string) error {
	if _, err := client.Models.List(ctx); err != nil {
		return WrapError(provider, "ping", err)
	}
	return nil
}

// WrapError converts SDK errors into provider errors carrying the HTTP status.
func WrapError(provider, op string, err error) error {
	pe := &domain.ProviderError{Provider: provider, Op: op, Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		pe.StatusCode = apiErr.StatusCode
	}
	return pe
}
