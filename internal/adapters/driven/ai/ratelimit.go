package ai

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure the decorators implement the interfaces.
var (
	_ driven.LLMService       = (*RateLimitedLLM)(nil)
	_ driven.EmbeddingService = (*RateLimitedEmbedder)(nil)
)

// newLimiter allows rpm requests per minute with no burst.
func newLimiter(rpm int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// RateLimitedLLM waits on a token bucket before every provider call.
// Waiting honours the caller's context, so a cancelled request never reaches the provider.
type RateLimitedLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// NewRateLimitedLLM wraps svc so it issues at most rpm calls per minute.
// A non-positive rpm returns svc unchanged.
func NewRateLimitedLLM(svc driven.LLMService, rpm int) driven.LLMService {
	if rpm <= 0 || svc == nil {
		return svc
	}
	return &RateLimitedLLM{LLMService: svc, limiter: newLimiter(rpm)}
}

// Chat waits for the limiter, then chats.
func (r *RateLimitedLLM) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.LLMService.Chat(ctx, messages, opts)
}

// RateLimitedEmbedder waits on a token bucket before every embedding call.
// A batch counts as one request.
type RateLimitedEmbedder struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps svc so it issues at most rpm calls per minute.
// A non-positive rpm returns svc unchanged.
func NewRateLimitedEmbedder(svc driven.EmbeddingService, rpm int) driven.EmbeddingService {
	if rpm <= 0 || svc == nil {
		return svc
	}
	return &RateLimitedEmbedder{EmbeddingService: svc, limiter: newLimiter(rpm)}
}

// Embed waits for the limiter, then embeds.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.Embed(ctx, text)
}

// EmbedBatch waits for the limiter, then embeds the batch.
func (r *RateLimitedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.EmbedBatch(ctx, texts)
}
