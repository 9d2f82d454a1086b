package domain

// Document is a raw corpus document: an identifier and its full text.
// It is what a DocumentSource yields, before chunking.
type Document struct {
	// ID identifies the document within its source (file path, repo path, ...).
	ID string

	// Text is the full extracted text.
	Text string

	// MIMEType is the detected content type of the original file.
	MIMEType string

	// Metadata contains source-specific key-value pairs.
	Metadata map[string]string
}

// OffsetRange is a half-open [Start, End) range of rune offsets into a document.
type OffsetRange struct {
	Start int
	End   int
}

// Len returns the number of runes covered.
func (r OffsetRange) Len() int {
	return r.End - r.Start
}

// DocumentChunk is a bounded slice of a source document used as a retrieval unit.
// Immutable after creation.
type DocumentChunk struct {
	// Index is the insertion position of the chunk within its retrieval index.
	Index int

	// SourceID is the ID of the document the chunk was cut from.
	SourceID string

	// Offsets locates the chunk within the source document.
	Offsets OffsetRange

	// Text is the chunk content.
	Text string

	// Embedding is the vector representation. Every chunk in one index
	// has the same dimensionality.
	Embedding []float32
}

// ScoredChunk pairs a chunk with its similarity to a query.
type ScoredChunk struct {
	Chunk DocumentChunk

	// Score is the cosine similarity, higher is more similar.
	Score float64
}
