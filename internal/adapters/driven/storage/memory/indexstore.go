package memory

import (
	"context"
	"path/filepath"
	"slices"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

type storedIndex struct {
	manifest domain.IndexManifest
	chunks   []domain.DocumentChunk
}

// IndexStore keeps persisted indexes in memory, keyed by cleaned directory path.
type IndexStore struct {
	mu      sync.RWMutex
	indexes map[string]storedIndex
	saves   int
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{indexes: make(map[string]storedIndex)}
}

// Save replaces the index stored under dir.
func (s *IndexStore) Save(_ context.Context, dir string, manifest domain.IndexManifest, chunks []domain.DocumentChunk) error {
	copied := make([]domain.DocumentChunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = slices.Clone(c.Embedding)
		copied[i] = c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[filepath.Clean(dir)] = storedIndex{manifest: manifest, chunks: copied}
	s.saves++
	return nil
}

// ReadManifest returns the manifest stored under dir or domain.ErrNotFound.
func (s *IndexStore) ReadManifest(dir string) (domain.IndexManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[filepath.Clean(dir)]
	if !ok {
		return domain.IndexManifest{}, domain.ErrNotFound
	}
	return idx.manifest, nil
}

// Load returns the manifest and a copy of the chunks stored under dir.
func (s *IndexStore) Load(_ context.Context, dir string) (domain.IndexManifest, []domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[filepath.Clean(dir)]
	if !ok {
		return domain.IndexManifest{}, nil, domain.ErrNotFound
	}
	chunks := make([]domain.DocumentChunk, len(idx.chunks))
	for i, c := range idx.chunks {
		c.Embedding = slices.Clone(c.Embedding)
		chunks[i] = c
	}
	return idx.manifest, chunks, nil
}

// Saves returns how many times Save has been called.
func (s *IndexStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
