// Package tui provides an interactive terminal user interface for ragchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer runs the question answering pipeline.
	Answer driving.AnswerService

	// Sessions owns conversation state.
	Sessions driving.SessionService

	// Index opens persisted indexes for binding. Optional.
	Index driving.IndexService
}

// NewPorts creates a new Ports aggregate with the required services.
func NewPorts(answer driving.AnswerService, sessions driving.SessionService) *Ports {
	return &Ports{
		Answer:   answer,
		Sessions: sessions,
	}
}

// Validate ensures all required ports are set.
// Returns an error if any port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Sessions == nil {
		return ErrMissingSessionService
	}
	return nil
}
