package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// DocumentSource yields the raw documents of a corpus.
type DocumentSource interface {
	// Name identifies the source for logging (a directory, owner/repo, ...).
	Name() string

	// Documents returns every document with extractable text, ordered by ID.
	Documents(ctx context.Context) ([]domain.Document, error)
}

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	// Count returns the number of tokens in text.
	Count(text string) int
}
