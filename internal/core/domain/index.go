package domain

import (
	"strconv"
	"time"
)

// IndexFormatVersion is the on-disk layout version written to manifests.
const IndexFormatVersion = 1

// Default chunking parameters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// BuildOptions configures how a corpus is split into chunks.
type BuildOptions struct {
	// ChunkSize is the window length in runes.
	ChunkSize int

	// ChunkOverlap is how many runes adjacent windows share. Must be < ChunkSize.
	ChunkOverlap int
}

// DefaultBuildOptions returns the default chunking parameters.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{ChunkSize: DefaultChunkSize, ChunkOverlap: DefaultChunkOverlap}
}

// Validate checks 0 <= overlap < size.
func (o BuildOptions) Validate() error {
	if o.ChunkSize < 1 {
		return InvalidArgument("chunk size must be >= 1, got %d", o.ChunkSize)
	}
	if o.ChunkOverlap < 0 {
		return InvalidArgument("chunk overlap must be >= 0, got %d", o.ChunkOverlap)
	}
	if o.ChunkOverlap >= o.ChunkSize {
		return InvalidArgument("chunk overlap (%d) must be smaller than chunk size (%d)",
			o.ChunkOverlap, o.ChunkSize)
	}
	return nil
}

// Stride returns the distance between the starts of adjacent windows.
func (o BuildOptions) Stride() int {
	return o.ChunkSize - o.ChunkOverlap
}

// IndexManifest records what a persisted index was built with.
// Load compares it against the current embedder before reading any vectors.
type IndexManifest struct {
	// Version is the on-disk layout version.
	Version int `toml:"version"`

	// Dimension is the embedding dimensionality shared by every vector.
	Dimension int `toml:"dimension"`

	// Provider identifies the embedding provider (openai, ollama, ...).
	Provider string `toml:"provider"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// ChunkSize is the chunk window used at build time.
	ChunkSize int `toml:"chunk_size"`

	// ChunkOverlap is the overlap used at build time.
	ChunkOverlap int `toml:"chunk_overlap"`

	// Chunks is the number of chunks stored.
	Chunks int `toml:"chunks"`

	// Fingerprint is the corpus change marker.
	Fingerprint string `toml:"fingerprint"`

	// CreatedAt is when the index was built.
	CreatedAt time.Time `toml:"created_at"`
}

// BuildOptions returns the chunking parameters recorded in the manifest.
func (m IndexManifest) BuildOptions() BuildOptions {
	return BuildOptions{ChunkSize: m.ChunkSize, ChunkOverlap: m.ChunkOverlap}
}

// CheckCompatible verifies the manifest matches an embedder's identity.
// An empty persisted provider is accepted for any embedder.
func (m IndexManifest) CheckCompatible(dimension int, provider string) error {
	if m.Dimension != dimension {
		return &IncompatibleIndexError{
			Field:     "dimension",
			Persisted: strconv.Itoa(m.Dimension),
			Current:   strconv.Itoa(dimension),
		}
	}
	if m.Provider != "" && provider != "" && m.Provider != provider {
		return &IncompatibleIndexError{Field: "provider", Persisted: m.Provider, Current: provider}
	}
	return nil
}
