package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// IndexService builds, persists and loads retrieval indexes.
type IndexService interface {
	// EnsureIndex loads the persisted index at dir when it is compatible and
	// built from the same corpus, and rebuilds and persists it otherwise.
	EnsureIndex(ctx context.Context, dir string, docs []domain.Document, opts domain.BuildOptions) (domain.Retriever, error)

	// Rebuild unconditionally rebuilds the index at dir.
	Rebuild(ctx context.Context, dir string, docs []domain.Document, opts domain.BuildOptions) (domain.Retriever, error)

	// Open loads the persisted index at dir without consulting any corpus.
	Open(ctx context.Context, dir string) (domain.Retriever, error)

	// Info returns the manifest of the persisted index at dir.
	Info(dir string) (domain.IndexManifest, error)
}
