// Package domain defines the core business entities for ragchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Session: A conversation identified by an opaque id
//   - HistoryLog: The ordered, append-only turns of a session
//   - DocumentChunk: A retrieval unit cut from a source document
//   - IndexManifest: Compatibility metadata of a persisted index
//   - Answer: The result of one pipeline invocation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
