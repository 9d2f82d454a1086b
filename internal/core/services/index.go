package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

var errNoIndexStore = fmt.Errorf("%w: no index store configured", domain.ErrNotFound)

// IndexService builds, persists and loads retrieval indexes.
// Operations on the same directory are serialised; different directories proceed in parallel.
type IndexService struct {
	embedder driven.EmbeddingService
	store    driven.IndexStore
	newIndex VectorIndexFactory
	locks    *pathLocks
}

// NewIndexService creates a new index service.
func NewIndexService(
	embedder driven.EmbeddingService,
	store driven.IndexStore,
	newIndex VectorIndexFactory,
) *IndexService {
	return &IndexService{
		embedder: embedder,
		store:    store,
		newIndex: newIndex,
		locks:    newPathLocks(),
	}
}

// EnsureIndex returns the persisted index at dir when it matches the corpus and
// the current embedder, and rebuilds it otherwise.
func (s *IndexService) EnsureIndex(
	ctx context.Context, dir string, docs []domain.Document, opts domain.BuildOptions,
) (domain.Retriever, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	unlock, err := s.locks.lock(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	logger.Section("Ensure Index")

	if s.store == nil {
		return s.rebuildLocked(ctx, dir, docs, opts)
	}

	manifest, err := s.store.ReadManifest(dir)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Info("No persisted index at %s", dir)
	case err != nil:
		return nil, fmt.Errorf("read manifest: %w", err)
	default:
		reason := staleReason(manifest, docs, opts, s.embedder)
		if reason == "" {
			idx, loadErr := LoadIndex(ctx, s.store, dir, s.embedder, s.newIndex)
			if loadErr == nil {
				logger.Info("Loaded index at %s (%d chunks)", dir, idx.Len())
				return idx, nil
			}
			if !errors.Is(loadErr, domain.ErrIncompatibleIndex) {
				return nil, loadErr
			}
			reason = loadErr.Error()
		}
		logger.Info("Rebuilding index at %s: %s", dir, reason)
	}

	return s.rebuildLocked(ctx, dir, docs, opts)
}

// Rebuild unconditionally rebuilds and persists the index at dir.
func (s *IndexService) Rebuild(
	ctx context.Context, dir string, docs []domain.Document, opts domain.BuildOptions,
) (domain.Retriever, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	unlock, err := s.locks.lock(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.rebuildLocked(ctx, dir, docs, opts)
}

func (s *IndexService) rebuildLocked(
	ctx context.Context, dir string, docs []domain.Document, opts domain.BuildOptions,
) (*RetrievalIndex, error) {
	idx, err := BuildIndex(ctx, docs, opts, s.embedder, s.newIndex)
	if err != nil {
		return nil, err
	}
	if s.store != nil && dir != "" {
		if err := idx.Persist(ctx, s.store, dir); err != nil {
			return nil, err
		}
		logger.Info("Persisted index at %s (%d chunks)", dir, idx.Len())
	}
	return idx, nil
}

// Open loads the persisted index at dir without consulting any corpus.
func (s *IndexService) Open(ctx context.Context, dir string) (domain.Retriever, error) {
	if s.store == nil {
		return nil, errNoIndexStore
	}

	unlock, err := s.locks.lock(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return LoadIndex(ctx, s.store, dir, s.embedder, s.newIndex)
}

// Info returns the manifest of the persisted index at dir.
func (s *IndexService) Info(dir string) (domain.IndexManifest, error) {
	if s.store == nil {
		return domain.IndexManifest{}, errNoIndexStore
	}
	return s.store.ReadManifest(dir)
}

// staleReason explains why a persisted index cannot be reused, or returns "".
func staleReason(
	m domain.IndexManifest, docs []domain.Document, opts domain.BuildOptions, embedder driven.EmbeddingService,
) string {
	switch {
	case m.Version != domain.IndexFormatVersion:
		return fmt.Sprintf("format version %d, want %d", m.Version, domain.IndexFormatVersion)
	case m.BuildOptions() != opts:
		return fmt.Sprintf("chunking changed (%d/%d -> %d/%d)",
			m.ChunkSize, m.ChunkOverlap, opts.ChunkSize, opts.ChunkOverlap)
	case m.Model != "" && m.Model != embedder.ModelName():
		return fmt.Sprintf("embedding model changed (%s -> %s)", m.Model, embedder.ModelName())
	case m.Fingerprint != CorpusFingerprint(docs):
		return "corpus changed"
	default:
		return ""
	}
}

// pathLocks hands out one lock per cleaned directory path.
type pathLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newPathLocks() *pathLocks {
	return &pathLocks{slots: make(map[string]chan struct{})}
}

// lock blocks until the path is free or ctx is done.
func (l *pathLocks) lock(ctx context.Context, path string) (func(), error) {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	key = filepath.Clean(key)

	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
