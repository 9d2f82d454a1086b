package domain

import (
	"context"
	"sync"
	"time"
)

// Retriever is the query side of a retrieval index that can be bound to a session.
type Retriever interface {
	// Query returns at most k chunks ordered by descending similarity.
	Query(ctx context.Context, text string, k int) ([]ScoredChunk, error)
}

// Session is a single conversation context identified by an opaque id.
// Sessions are owned by the session store; callers hold references only.
type Session struct {
	// ID is the opaque session identifier.
	ID string

	// CreatedAt is when the session was first referenced.
	CreatedAt time.Time

	// History is the session's conversation log.
	History *HistoryLog

	mu       sync.RWMutex
	name     string
	index    Retriever
	indexDir string

	// slot serialises pipeline requests against this session.
	slot chan struct{}
}

// NewSession creates a session with an empty history.
func NewSession(id, name string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		History:   NewHistoryLog(),
		name:      name,
		slot:      make(chan struct{}, 1),
	}
}

// Name returns the display name.
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// SetName changes the display name.
func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Index returns the bound retrieval index, or nil.
func (s *Session) Index() Retriever {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// IndexDir returns the directory of the bound index, if it was loaded from disk.
func (s *Session) IndexDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexDir
}

// Bind attaches a retrieval index. A nil index detaches.
func (s *Session) Bind(index Retriever, dir string) {
	s.mu.Lock()
	s.index = index
	s.indexDir = dir
	if index == nil {
		s.indexDir = ""
	}
	s.mu.Unlock()
}

// SetIndexDir records the location of an index that has not been loaded yet.
func (s *Session) SetIndexDir(dir string) {
	s.mu.Lock()
	s.indexDir = dir
	s.mu.Unlock()
}

// Acquire waits for exclusive use of the session for one request.
// The returned release func must be called exactly once.
func (s *Session) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s.slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Busy reports whether a request currently holds the session.
func (s *Session) Busy() bool {
	return len(s.slot) > 0
}

// Summary returns the listing view of the session.
func (s *Session) Summary() SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionSummary{
		ID:          s.ID,
		DisplayName: s.name,
		CreatedAt:   s.CreatedAt,
		Turns:       s.History.Len(),
		IndexDir:    s.indexDir,
	}
}

// SessionSummary is a read-only listing entry for a session.
type SessionSummary struct {
	// ID is the session identifier.
	ID string

	// DisplayName is the human-readable name ("Chat-1" by default).
	DisplayName string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// Turns is the number of turns in the history.
	Turns int

	// IndexDir is the persisted index bound to the session, if any.
	IndexDir string
}

// SessionRecord is the persisted form of a session, without history.
type SessionRecord struct {
	ID       string
	Name     string
	IndexDir string

	// Position is the insertion sequence number used for stable listing.
	Position int64

	// Turns is the stored history length. It is filled on reads only.
	Turns int

	CreatedAt time.Time
	UpdatedAt time.Time
}
