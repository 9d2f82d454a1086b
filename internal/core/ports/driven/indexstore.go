package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// IndexStore persists retrieval indexes as a directory of files.
type IndexStore interface {
	// Save writes the manifest, chunk metadata and vectors to dir,
	// replacing any previous contents.
	Save(ctx context.Context, dir string, manifest domain.IndexManifest, chunks []domain.DocumentChunk) error

	// ReadManifest reads only the manifest. Returns domain.ErrNotFound when absent.
	ReadManifest(dir string) (domain.IndexManifest, error)

	// Load reads the chunks with their embeddings, in insertion order.
	Load(ctx context.Context, dir string) (domain.IndexManifest, []domain.DocumentChunk, error)
}
