// Package indexdir persists retrieval indexes as a directory of three files:
//
//   - manifest.toml: build metadata, read first and checked before anything else
//   - vectors.bin: chunk embeddings as little-endian float32 rows
//   - chunks.db: a SQLite table of chunk text and source offsets
//
// Rows in vectors.bin and chunks.db share the chunk position as their key.
// Save writes into a sibling temporary directory and swaps it into place,
// so a reader never observes a half-written index.
package indexdir
