package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// mockSessionService is an in-memory implementation of driving.SessionService.
type mockSessionService struct {
	mu       sync.Mutex
	order    []string
	sessions map[string]*domain.Session
	err      error
}

func newMockSessionService(sessions ...*domain.Session) *mockSessionService {
	m := &mockSessionService{sessions: make(map[string]*domain.Session)}
	for _, s := range sessions {
		m.order = append(m.order, s.ID)
		m.sessions[s.ID] = s
	}
	return m
}

func (m *mockSessionService) GetOrCreate(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := domain.NewSession(id, fmt.Sprintf("Chat-%d", len(m.order)+1))
	m.order = append(m.order, id)
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionService) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (m *mockSessionService) List(_ context.Context) []domain.SessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SessionSummary, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.sessions[id].Summary())
	}
	return out
}

func (m *mockSessionService) Rename(_ context.Context, _, _ string) error {
	return m.err
}

func (m *mockSessionService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockSessionService) Bind(ctx context.Context, id string, index domain.Retriever, dir string) error {
	s, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	s.Bind(index, dir)
	return nil
}

func (m *mockSessionService) RecordExchange(_ context.Context, s *domain.Session, user, assistant domain.Turn) error {
	s.History.AppendPair(user, assistant)
	return nil
}

// mockAnswerService records calls and returns a canned answer.
type mockAnswerService struct {
	answer *domain.Answer
	err    error

	sessionID string
	question  string
}

func (m *mockAnswerService) Ask(_ context.Context, sessionID, question string) (*domain.Answer, error) {
	m.sessionID = sessionID
	m.question = question
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

// mockRetriever returns fixed results.
type mockRetriever struct {
	results []domain.ScoredChunk
	err     error
	lastK   int
}

func (m *mockRetriever) Query(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	if k < len(m.results) {
		return m.results[:k], nil
	}
	return m.results, nil
}

// mockIndexService opens the same retriever for every directory and counts opens.
type mockIndexService struct {
	retriever *mockRetriever
	err       error
	opened    []string
}

func (m *mockIndexService) EnsureIndex(
	context.Context, string, []domain.Document, domain.BuildOptions,
) (domain.Retriever, error) {
	return m.retriever, m.err
}

func (m *mockIndexService) Rebuild(
	context.Context, string, []domain.Document, domain.BuildOptions,
) (domain.Retriever, error) {
	return m.retriever, m.err
}

func (m *mockIndexService) Open(_ context.Context, dir string) (domain.Retriever, error) {
	m.opened = append(m.opened, dir)
	if m.err != nil {
		return nil, m.err
	}
	return m.retriever, nil
}

func (m *mockIndexService) Info(string) (domain.IndexManifest, error) {
	return domain.IndexManifest{}, m.err
}
