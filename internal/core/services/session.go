package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure SessionStore implements the interface.
var _ driving.SessionService = (*SessionStore)(nil)

// displayNamePrefix is the prefix of generated session names ("Chat-1", "Chat-2", ...).
const displayNamePrefix = "Chat-"

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// sessionEntry tracks a resident session with its listing and recency order.
type sessionEntry struct {
	session  *domain.Session
	position int64
	lastUsed int64
}

// SessionStore owns the mapping from session id to conversation state.
//
// Without a capacity every session stays resident for the process lifetime.
// With a capacity, the least recently used idle session is evicted from memory
// when a new one would exceed it. Busy sessions are pinned, so residency may
// briefly exceed the capacity. If a repository is configured the evicted
// session is rehydrated from it on next reference, otherwise it is gone.
type SessionStore struct {
	mu       sync.Mutex
	entries  map[string]*sessionEntry
	repo     driven.SessionRepository
	capacity int
	clock    int64
	nextPos  int64
	nextName int
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithRepository enables write-through persistence.
func WithRepository(repo driven.SessionRepository) SessionStoreOption {
	return func(s *SessionStore) {
		s.repo = repo
	}
}

// WithCapacity bounds the number of resident sessions. Zero means unbounded.
func WithCapacity(n int) SessionStoreOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewSessionStore creates an empty session store.
func NewSessionStore(opts ...SessionStoreOption) *SessionStore {
	s := &SessionStore{
		entries:  make(map[string]*sessionEntry),
		nextName: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads persisted sessions and their history from the repository.
// Only the most recently created sessions are kept resident when a capacity is set.
func (s *SessionStore) Restore(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	records, err := s.repo.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.observeRecord(rec)
	}

	start := 0
	if s.capacity > 0 && len(records) > s.capacity {
		start = len(records) - s.capacity
	}
	for _, rec := range records[start:] {
		turns, err := s.repo.LoadTurns(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("load turns for %s: %w", rec.ID, err)
		}
		s.insertLocked(sessionFromRecord(rec, turns), rec.Position)
	}

	logger.Debug("Restored %d sessions (%d resident)", len(records), len(s.entries))
	return nil
}

// GetOrCreate returns the session for id, creating an empty one on first reference.
// The same pointer is returned for as long as the session stays resident.
func (s *SessionStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.InvalidArgument("session id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		s.touchLocked(e)
		return e.session, nil
	}

	if sess, err := s.rehydrateLocked(ctx, id); err == nil {
		return sess, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		logger.Errorf("rehydrate session %s: %v", id, err)
	}

	sess := domain.NewSession(id, displayNamePrefix+strconv.Itoa(s.nextName))
	s.nextName++
	pos := s.nextPos
	s.insertLocked(sess, pos)

	if s.repo != nil {
		if err := s.repo.SaveSession(ctx, recordOf(sess, pos)); err != nil {
			// The in-memory session stays usable; RecordExchange writes the record later.
			logger.Errorf("persist session %s: %v", id, err)
		}
	}

	logger.Debug("Created session %s (%s)", id, sess.Name())
	return sess, nil
}

// Get returns an existing session or domain.ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[id]; ok {
		s.touchLocked(e)
		return e.session, nil
	}
	return s.rehydrateLocked(ctx, id)
}

// List returns all sessions in insertion order, including evicted but persisted ones.
func (s *SessionStore) List(ctx context.Context) []domain.SessionSummary {
	s.mu.Lock()
	type positioned struct {
		pos int64
		sum domain.SessionSummary
	}
	out := make([]positioned, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, positioned{e.position, e.session.Summary()})
	}
	resident := make(map[string]bool, len(s.entries))
	for id := range s.entries {
		resident[id] = true
	}
	repo := s.repo
	s.mu.Unlock()

	if repo != nil {
		records, err := repo.ListSessions(ctx)
		if err != nil {
			logger.Warn("list persisted sessions: %v", err)
		}
		for _, rec := range records {
			if resident[rec.ID] {
				continue
			}
			out = append(out, positioned{rec.Position, domain.SessionSummary{
				ID:          rec.ID,
				DisplayName: rec.Name,
				CreatedAt:   rec.CreatedAt,
				Turns:       rec.Turns,
				IndexDir:    rec.IndexDir,
			}})
		}
	}

	slices.SortFunc(out, func(a, b positioned) int {
		switch {
		case a.pos < b.pos:
			return -1
		case a.pos > b.pos:
			return 1
		default:
			return 0
		}
	})

	summaries := make([]domain.SessionSummary, len(out))
	for i, p := range out {
		summaries[i] = p.sum
	}
	return summaries
}

// Rename changes a session's display name.
func (s *SessionStore) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.InvalidArgument("session name must not be empty")
	}

	sess, pos, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	sess.SetName(name)
	return s.save(ctx, sess, pos)
}

// Bind attaches a retrieval index to a session. A nil index detaches.
func (s *SessionStore) Bind(ctx context.Context, id string, index domain.Retriever, dir string) error {
	sess, pos, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	sess.Bind(index, dir)
	return s.save(ctx, sess, pos)
}

// Delete removes a session and its history. The id may be reused afterwards
// and starts with an empty history.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, resident := s.entries[id]
	if !resident {
		if s.repo == nil {
			return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
		}
		if _, err := s.repo.GetSession(ctx, id); err != nil {
			return fmt.Errorf("session %s: %w", id, err)
		}
	}

	if s.repo != nil {
		if err := s.repo.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("delete session %s: %w", id, err)
		}
	}
	delete(s.entries, id)

	logger.Debug("Deleted session %s", id)
	return nil
}

// RecordExchange persists a question/answer pair and then appends it to the
// session's history. A persistence failure leaves the history unchanged.
// A session whose record was never written is saved before the turns.
func (s *SessionStore) RecordExchange(ctx context.Context, sess *domain.Session, user, assistant domain.Turn) error {
	if s.repo != nil {
		err := s.repo.AppendTurns(ctx, sess.ID, user, assistant)
		if errors.Is(err, domain.ErrNotFound) {
			if err = s.save(ctx, sess, s.positionOf(sess)); err == nil {
				err = s.repo.AppendTurns(ctx, sess.ID, user, assistant)
			}
		}
		if err != nil {
			return fmt.Errorf("persist turns for %s: %w", sess.ID, err)
		}
	}
	sess.History.AppendPair(user, assistant)
	return nil
}

// Len returns the number of resident sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *SessionStore) lookup(ctx context.Context, id string) (*domain.Session, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		if _, err := s.rehydrateLocked(ctx, id); err != nil {
			return nil, 0, err
		}
		e = s.entries[id]
	}
	s.touchLocked(e)
	return e.session, e.position, nil
}

// positionOf returns the listing position of sess, allocating one if it is not resident.
func (s *SessionStore) positionOf(sess *domain.Session) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sess.ID]; ok {
		return e.position
	}
	pos := s.nextPos
	s.nextPos++
	return pos
}

func (s *SessionStore) save(ctx context.Context, sess *domain.Session, pos int64) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveSession(ctx, recordOf(sess, pos)); err != nil {
		return fmt.Errorf("persist session %s: %w", sess.ID, err)
	}
	return nil
}

// rehydrateLocked loads an evicted or restored-later session from the repository.
func (s *SessionStore) rehydrateLocked(ctx context.Context, id string) (*domain.Session, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}

	rec, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	turns, err := s.repo.LoadTurns(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load turns for %s: %w", id, err)
	}

	s.observeRecord(rec)
	sess := sessionFromRecord(rec, turns)
	s.insertLocked(sess, rec.Position)
	logger.Debug("Rehydrated session %s with %d turns", id, len(turns))
	return sess, nil
}

// insertLocked adds a session and evicts the least recently used idle one if over
// capacity. Sessions with a request in flight are never evicted, so a later
// reference cannot rehydrate a second copy with its own request slot.
func (s *SessionStore) insertLocked(sess *domain.Session, pos int64) {
	s.clock++
	s.entries[sess.ID] = &sessionEntry{session: sess, position: pos, lastUsed: s.clock}
	if pos >= s.nextPos {
		s.nextPos = pos + 1
	}

	for s.capacity > 0 && len(s.entries) > s.capacity {
		var victim *sessionEntry
		for _, e := range s.entries {
			if e.session == sess || e.session.Busy() {
				continue
			}
			if victim == nil || e.lastUsed < victim.lastUsed {
				victim = e
			}
		}
		if victim == nil {
			return
		}
		delete(s.entries, victim.session.ID)
		logger.Debug("Evicted session %s", victim.session.ID)
	}
}

func (s *SessionStore) touchLocked(e *sessionEntry) {
	s.clock++
	e.lastUsed = s.clock
}

// observeRecord advances the position and name counters past a persisted record.
func (s *SessionStore) observeRecord(rec domain.SessionRecord) {
	if rec.Position >= s.nextPos {
		s.nextPos = rec.Position + 1
	}
	if n, ok := strings.CutPrefix(rec.Name, displayNamePrefix); ok {
		if v, err := strconv.Atoi(n); err == nil && v >= s.nextName {
			s.nextName = v + 1
		}
	}
}

func sessionFromRecord(rec domain.SessionRecord, turns []domain.Turn) *domain.Session {
	sess := domain.NewSession(rec.ID, rec.Name)
	sess.CreatedAt = rec.CreatedAt
	sess.History = domain.NewHistoryLog(turns...)
	// The index itself is loaded by the caller; only its location is restored.
	sess.SetIndexDir(rec.IndexDir)
	return sess
}

func recordOf(sess *domain.Session, pos int64) domain.SessionRecord {
	return domain.SessionRecord{
		ID:        sess.ID,
		Name:      sess.Name(),
		IndexDir:  sess.IndexDir(),
		Position:  pos,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: time.Now(),
	}
}
