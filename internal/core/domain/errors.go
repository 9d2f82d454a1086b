package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates malformed caller input (empty session id, k < 1, ...).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyCorpus indicates no document produced at least one chunk.
	ErrEmptyCorpus = errors.New("empty corpus: no chunks produced")

	// ErrIncompatibleIndex indicates a persisted index cannot be used with the current embedder.
	ErrIncompatibleIndex = errors.New("incompatible index")

	// ErrProvider indicates an external LLM or embedding call failed.
	// GenerationError and EmbeddingError both match it.
	ErrProvider = errors.New("provider error")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Retrieval is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)

// ProviderError describes a failed call to an external AI provider.
type ProviderError struct {
	// Provider is the provider identifier (openai, ollama, ...).
	Provider string

	// Op is the operation that failed (chat, embed, ping).
	Op string

	// StatusCode is the HTTP status, or 0 when the request never completed.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is reports ErrProvider and ErrRateLimited (status 429) matches.
func (e *ProviderError) Is(target error) bool {
	if target == ErrProvider {
		return true
	}
	return target == ErrRateLimited && e.StatusCode == 429
}

// GenerationError is returned when the answer step of the pipeline fails.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

func (e *GenerationError) Is(target error) bool { return target == ErrProvider }

// EmbeddingError is returned when embedding a chunk or query fails.
type EmbeddingError struct {
	Cause error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed: %v", e.Cause)
}

func (e *EmbeddingError) Unwrap() error { return e.Cause }

func (e *EmbeddingError) Is(target error) bool { return target == ErrProvider }

// IncompatibleIndexError reports which manifest field disagrees with the current embedder.
type IncompatibleIndexError struct {
	Field     string
	Persisted string
	Current   string
}

func (e *IncompatibleIndexError) Error() string {
	return fmt.Sprintf("incompatible index: %s is %s on disk but %s for the current embedder",
		e.Field, e.Persisted, e.Current)
}

func (e *IncompatibleIndexError) Is(target error) bool { return target == ErrIncompatibleIndex }

// InvalidArgument wraps ErrInvalidArgument with a description.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
