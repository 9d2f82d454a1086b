package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
	"github.com/custodia-labs/ragchat/internal/postprocessors/chunker"
)

// Ensure RetrievalIndex can be bound to sessions.
var _ domain.Retriever = (*RetrievalIndex)(nil)

// embedBatchSize caps how many chunks are sent per EmbedBatch call.
const embedBatchSize = 64

// VectorIndexFactory creates an empty vector index for the given dimension.
type VectorIndexFactory func(dimension int) (driven.VectorIndex, error)

// RetrievalIndex owns a set of chunks and a vector index over their embeddings.
// Queries may run concurrently; the index is immutable once built or loaded.
type RetrievalIndex struct {
	mu       sync.RWMutex
	manifest domain.IndexManifest
	chunks   []domain.DocumentChunk
	vectors  driven.VectorIndex
	embedder driven.EmbeddingService
}

// BuildIndex splits docs into chunks, embeds every chunk and builds the search structure.
// Returns domain.ErrEmptyCorpus when no chunk is produced.
func BuildIndex(
	ctx context.Context,
	docs []domain.Document,
	opts domain.BuildOptions,
	embedder driven.EmbeddingService,
	newIndex VectorIndexFactory,
) (*RetrievalIndex, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	splitter, err := chunker.New(opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	chunks, err := splitter.ProcessAll(ctx, docs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	logger.Debug("Split %d documents into %d chunks (size=%d, overlap=%d)",
		len(docs), len(chunks), opts.ChunkSize, opts.ChunkOverlap)

	if err := embedChunks(ctx, embedder, chunks); err != nil {
		return nil, err
	}
	logger.Stage("embed chunks", start)

	manifest := domain.IndexManifest{
		Version:      domain.IndexFormatVersion,
		Dimension:    len(chunks[0].Embedding),
		Provider:     embedder.Provider(),
		Model:        embedder.ModelName(),
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
		Chunks:       len(chunks),
		Fingerprint:  CorpusFingerprint(docs),
		CreatedAt:    time.Now().UTC(),
	}

	return assemble(manifest, chunks, embedder, newIndex)
}

// LoadIndex reads a persisted index after checking its manifest against the embedder.
// Returns an *domain.IncompatibleIndexError before touching any vectors when the
// dimension or provider differ.
func LoadIndex(
	ctx context.Context,
	store driven.IndexStore,
	dir string,
	embedder driven.EmbeddingService,
	newIndex VectorIndexFactory,
) (*RetrievalIndex, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	manifest, err := store.ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	if err := manifest.CheckCompatible(embedder.Dimensions(), embedder.Provider()); err != nil {
		return nil, err
	}

	manifest, chunks, err := store.Load(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("load index %s: %w", dir, domain.ErrEmptyCorpus)
	}

	return assemble(manifest, chunks, embedder, newIndex)
}

// assemble creates the vector index and adds every chunk embedding in order.
func assemble(
	manifest domain.IndexManifest,
	chunks []domain.DocumentChunk,
	embedder driven.EmbeddingService,
	newIndex VectorIndexFactory,
) (*RetrievalIndex, error) {
	vectors, err := newIndex(manifest.Dimension)
	if err != nil {
		return nil, fmt.Errorf("create vector index: %w", err)
	}

	for i := range chunks {
		if len(chunks[i].Embedding) != manifest.Dimension {
			return nil, &domain.IncompatibleIndexError{
				Field:     fmt.Sprintf("chunk %d dimension", i),
				Persisted: fmt.Sprint(len(chunks[i].Embedding)),
				Current:   fmt.Sprint(manifest.Dimension),
			}
		}
		chunks[i].Index = i
		if _, err := vectors.Add(chunks[i].Embedding); err != nil {
			return nil, fmt.Errorf("add chunk %d: %w", i, err)
		}
	}

	return &RetrievalIndex{
		manifest: manifest,
		chunks:   chunks,
		vectors:  vectors,
		embedder: embedder,
	}, nil
}

// embedChunks fills in chunk embeddings in batches and enforces a single dimension.
func embedChunks(ctx context.Context, embedder driven.EmbeddingService, chunks []domain.DocumentChunk) error {
	want := embedder.Dimensions()

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		vecs, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return &domain.EmbeddingError{Cause: err}
		}
		if len(vecs) != len(texts) {
			return &domain.EmbeddingError{
				Cause: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs)),
			}
		}

		for i, v := range vecs {
			if want <= 0 {
				want = len(v)
			}
			if len(v) != want || len(v) == 0 {
				return &domain.EmbeddingError{
					Cause: fmt.Errorf("chunk %d: embedding has %d dimensions, want %d", start+i, len(v), want),
				}
			}
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// Query returns at most k chunks most similar to text, best first.
// Ties keep chunk insertion order.
func (r *RetrievalIndex) Query(ctx context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	if k < 1 {
		return nil, domain.InvalidArgument("k must be >= 1, got %d", k)
	}

	q, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &domain.EmbeddingError{Cause: err}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(q) != r.manifest.Dimension {
		return nil, &domain.EmbeddingError{
			Cause: fmt.Errorf("query embedding has %d dimensions, index has %d", len(q), r.manifest.Dimension),
		}
	}

	hits, err := r.vectors.Search(q, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]domain.ScoredChunk, 0, len(hits))
	for _, h := range hits {
		results = append(results, domain.ScoredChunk{Chunk: r.chunks[h.Position], Score: h.Similarity})
	}
	return results, nil
}

// Persist writes the index to dir through store.
func (r *RetrievalIndex) Persist(ctx context.Context, store driven.IndexStore, dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := store.Save(ctx, dir, r.manifest, r.chunks); err != nil {
		return fmt.Errorf("persist index %s: %w", dir, err)
	}
	return nil
}

// Manifest returns the index metadata.
func (r *RetrievalIndex) Manifest() domain.IndexManifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manifest
}

// Chunks returns a copy of the chunks in insertion order.
func (r *RetrievalIndex) Chunks() []domain.DocumentChunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.chunks)
}

// Len returns the number of chunks.
func (r *RetrievalIndex) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks)
}

// CorpusFingerprint returns a stable digest of the documents' ids and text.
// It is the corpus change marker stored in the manifest.
func CorpusFingerprint(docs []domain.Document) string {
	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b domain.Document) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	h := sha256.New()
	for _, d := range sorted {
		h.Write([]byte(d.ID))
		h.Write([]byte{0})
		h.Write([]byte(d.Text))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
