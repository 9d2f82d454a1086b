package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// SessionRepository persists sessions and their history.
// The session store writes through to it after every committed change.
type SessionRepository interface {
	// SaveSession inserts or updates a session record.
	SaveSession(ctx context.Context, rec domain.SessionRecord) error

	// GetSession returns a session record or domain.ErrNotFound.
	GetSession(ctx context.Context, id string) (domain.SessionRecord, error)

	// DeleteSession removes a session and all of its turns.
	DeleteSession(ctx context.Context, id string) error

	// ListSessions returns all session records ordered by Position.
	ListSessions(ctx context.Context) ([]domain.SessionRecord, error)

	// AppendTurns appends turns to a session's history in one transaction.
	AppendTurns(ctx context.Context, sessionID string, turns ...domain.Turn) error

	// LoadTurns returns a session's history in insertion order.
	LoadTurns(ctx context.Context, sessionID string) ([]domain.Turn, error)
}
