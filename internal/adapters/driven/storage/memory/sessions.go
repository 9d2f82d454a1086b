package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure SessionRepository implements the interface.
var _ driven.SessionRepository = (*SessionRepository)(nil)

// SessionRepository is an in-memory implementation of driven.SessionRepository.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.SessionRecord
	turns    map[string][]domain.Turn
}

// NewSessionRepository creates a new in-memory session repository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]domain.SessionRecord),
		turns:    make(map[string][]domain.Turn),
	}
}

// SaveSession inserts or updates a session record.
func (r *SessionRepository) SaveSession(_ context.Context, rec domain.SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
		rec.Position = existing.Position
	}
	rec.Turns = 0
	r.sessions[rec.ID] = rec
	return nil
}

// GetSession returns a session record or domain.ErrNotFound.
func (r *SessionRepository) GetSession(_ context.Context, id string) (domain.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[id]
	if !ok {
		return domain.SessionRecord{}, domain.ErrNotFound
	}
	rec.Turns = len(r.turns[id])
	return rec, nil
}

// DeleteSession removes a session and its turns.
func (r *SessionRepository) DeleteSession(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.sessions, id)
	delete(r.turns, id)
	return nil
}

// ListSessions returns all records ordered by Position.
func (r *SessionRepository) ListSessions(_ context.Context) ([]domain.SessionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SessionRecord, 0, len(r.sessions))
	for id, rec := range r.sessions {
		rec.Turns = len(r.turns[id])
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b domain.SessionRecord) int {
		return int(a.Position - b.Position)
	})
	return out, nil
}

// AppendTurns appends turns to a session's history.
func (r *SessionRepository) AppendTurns(_ context.Context, sessionID string, turns ...domain.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return domain.ErrNotFound
	}
	r.turns[sessionID] = append(r.turns[sessionID], turns...)
	return nil
}

// LoadTurns returns a copy of a session's history.
func (r *SessionRepository) LoadTurns(_ context.Context, sessionID string) ([]domain.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.turns[sessionID]), nil
}
