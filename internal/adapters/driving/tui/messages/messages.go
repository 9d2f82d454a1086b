// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewChat is the conversation view of the active session.
	ViewChat
	// ViewSessions lists sessions.
	ViewSessions
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewChat:
		return "chat"
	case ViewSessions:
		return "sessions"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// AnswerCompleted carries the pipeline result for a question.
type AnswerCompleted struct {
	SessionID string
	Question  string
	Answer    *domain.Answer
	Err       error
}

// HistoryLoaded carries a session's turns when the chat view opens it.
type HistoryLoaded struct {
	SessionID string
	Name      string
	Turns     []domain.Turn
	Err       error
}

// SessionsLoaded carries the session listing.
type SessionsLoaded struct {
	Sessions []domain.SessionSummary
	Err      error
}

// SessionSelected asks the app to open a session in the chat view.
type SessionSelected struct {
	ID string
}

// SessionCreated signals a new session exists.
type SessionCreated struct {
	ID  string
	Err error
}

// SessionRenamed signals a session's display name changed.
type SessionRenamed struct {
	ID   string
	Name string
	Err  error
}

// SessionRemoved signals a session was deleted.
type SessionRemoved struct {
	ID  string
	Err error
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}
