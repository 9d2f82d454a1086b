package chat

import "errors"

// Error definitions for the chat view.
var (
	// ErrNoAnswerService indicates that no answer service was provided.
	ErrNoAnswerService = errors.New("answer service is required")

	// ErrNoSession indicates a question was sent before a session was opened.
	ErrNoSession = errors.New("no session open")
)
