// Package chunker splits documents into overlapping fixed-size windows.
package chunker

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// Processor splits document text into fixed-size chunks.
// Sizes and offsets are counted in runes so multi-byte text is never split mid-character.
type Processor struct {
	chunkSize int
	overlap   int
}

// New creates a processor for the given options.
// Invalid sizes are rejected with domain.ErrInvalidArgument rather than corrected.
func New(o domain.BuildOptions) (*Processor, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &Processor{chunkSize: o.ChunkSize, overlap: o.ChunkOverlap}, nil
}

// Process splits one document into chunks. Chunk Index values are
// positions within the document; callers renumber them for an index.
// Adjacent chunks share exactly overlap runes; the last chunk may be shorter.
func (p *Processor) Process(_ context.Context, doc domain.Document) []domain.DocumentChunk {
	if doc.Text == "" {
		// Empty content produces no chunks
		return nil
	}

	runes := []rune(doc.Text)
	contentLen := len(runes)
	stride := p.chunkSize - p.overlap

	chunks := make([]domain.DocumentChunk, 0, contentLen/stride+1)

	for start := 0; start < contentLen; start += stride {
		end := start + p.chunkSize
		if end > contentLen {
			end = contentLen
		}

		chunks = append(chunks, domain.DocumentChunk{
			Index:    len(chunks),
			SourceID: doc.ID,
			Offsets:  domain.OffsetRange{Start: start, End: end},
			Text:     string(runes[start:end]),
		})

		if end == contentLen {
			break
		}
	}

	return chunks
}

// ProcessAll chunks every document in order and numbers the chunks
// consecutively across the whole corpus.
func (p *Processor) ProcessAll(ctx context.Context, docs []domain.Document) ([]domain.DocumentChunk, error) {
	var all []domain.DocumentChunk
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, c := range p.Process(ctx, doc) {
			c.Index = len(all)
			all = append(all, c)
		}
	}
	return all, nil
}
