package mcp

import (
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer runs the question answering pipeline.
	Answer driving.AnswerService

	// Sessions owns conversation state.
	Sessions driving.SessionService

	// Index opens persisted retrieval indexes. Optional; without it
	// search_index and index binding are unavailable.
	Index driving.IndexService

	// DefaultIndexDir is used by search_index when the call names no directory.
	DefaultIndexDir string
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Sessions == nil {
		return ErrMissingSessionService
	}
	return nil
}
