package driving

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// SessionService owns the mapping from session id to conversation state.
type SessionService interface {
	// GetOrCreate returns the session for id, creating an empty one on first reference.
	// Fails only with domain.ErrInvalidArgument for an empty id.
	GetOrCreate(ctx context.Context, id string) (*domain.Session, error)

	// Get returns an existing session or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// List returns all sessions in insertion order.
	List(ctx context.Context) []domain.SessionSummary

	// Rename changes a session's display name.
	Rename(ctx context.Context, id, name string) error

	// Delete removes a session and its history.
	Delete(ctx context.Context, id string) error

	// Bind attaches a retrieval index to a session. A nil index detaches.
	Bind(ctx context.Context, id string, index domain.Retriever, dir string) error

	// RecordExchange commits a question/answer pair to the session's history.
	// The pair is persisted first and then appended in memory, so a failure
	// leaves the history unchanged.
	RecordExchange(ctx context.Context, session *domain.Session, user, assistant domain.Turn) error
}
