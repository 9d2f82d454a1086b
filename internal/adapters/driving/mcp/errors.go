// Package mcp provides an MCP (Model Context Protocol) server adapter for ragchat.
// It lets AI assistants ask questions in ragchat sessions and search retrieval indexes.
package mcp

import "errors"

var (
	// ErrMissingAnswerService is returned when the answer service is not provided.
	ErrMissingAnswerService = errors.New("mcp: answer service is required")

	// ErrMissingSessionService is returned when the session service is not provided.
	ErrMissingSessionService = errors.New("mcp: session service is required")

	// ErrNoIndex is returned by search_index when no index directory is known.
	ErrNoIndex = errors.New("mcp: no index directory given and no default configured")
)
