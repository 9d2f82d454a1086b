package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func chunk(source string, index int, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.DocumentChunk{Index: index, SourceID: source, Text: text},
		Score: score,
	}
}

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	if ports.Sessions == nil {
		ports.Sessions = newMockSessionService()
	}
	if ports.Answer == nil {
		ports.Answer = &mockAnswerService{answer: &domain.Answer{}}
	}
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns answer with sources and trace", func(t *testing.T) {
		answers := &mockAnswerService{answer: &domain.Answer{
			Question:          "and his brother?",
			RewrittenQuestion: "Who is Bob's brother?",
			Text:              "Carl",
			Chunks:            []domain.ScoredChunk{chunk("family.txt", 0, "Carl is Bob's brother.", 0.9)},
			Trace: []domain.PipelineState{
				domain.StateReceived, domain.StateRewritten, domain.StateRetrieved, domain.StateAnswered,
			},
		}}
		server := newTestServer(t, &Ports{Answer: answers})

		_, out, err := server.handleAsk(ctx, nil, AskInput{SessionID: "s1", Question: "and his brother?"})

		require.NoError(t, err)
		assert.Equal(t, "s1", out.SessionID)
		assert.Equal(t, "Carl", out.Answer)
		assert.Equal(t, "Who is Bob's brother?", out.RewrittenQuestion)
		require.Len(t, out.Sources, 1)
		assert.Equal(t, "family.txt", out.Sources[0].SourceID)
		assert.Equal(t, 0.9, out.Sources[0].Score)
		assert.Equal(t, []string{"received", "rewritten", "retrieved", "answered"}, out.Trace)
		assert.Equal(t, "and his brother?", answers.question)
	})

	t.Run("empty session id creates one", func(t *testing.T) {
		answers := &mockAnswerService{answer: &domain.Answer{Text: "hi"}}
		server := newTestServer(t, &Ports{Answer: answers})

		_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "hello"})

		require.NoError(t, err)
		assert.NotEmpty(t, out.SessionID)
		assert.Equal(t, out.SessionID, answers.sessionID)
	})

	t.Run("index dir binds before asking", func(t *testing.T) {
		sessions := newMockSessionService()
		index := &mockIndexService{retriever: &mockRetriever{}}
		server := newTestServer(t, &Ports{Sessions: sessions, Index: index})

		_, _, err := server.handleAsk(ctx, nil, AskInput{SessionID: "s1", Question: "q", IndexDir: "/idx"})
		require.NoError(t, err)

		sess, err := sessions.Get(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "/idx", sess.IndexDir())
		assert.NotNil(t, sess.Index())
	})

	t.Run("index dir without index service", func(t *testing.T) {
		server := newTestServer(t, &Ports{})

		_, _, err := server.handleAsk(ctx, nil, AskInput{SessionID: "s1", Question: "q", IndexDir: "/idx"})

		assert.Error(t, err)
	})

	t.Run("pipeline error is returned", func(t *testing.T) {
		server := newTestServer(t, &Ports{Answer: &mockAnswerService{err: domain.ErrLLMUnavailable}})

		_, _, err := server.handleAsk(ctx, nil, AskInput{SessionID: "s1", Question: "q"})

		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()
	retriever := &mockRetriever{results: []domain.ScoredChunk{
		chunk("a.md", 0, "alpha", 0.9),
		chunk("a.md", 1, "beta", 0.8),
		chunk("b.md", 0, "gamma", 0.7),
		chunk("b.md", 1, "delta", 0.6),
		chunk("c.md", 0, "epsilon", 0.5),
	}}

	t.Run("returns ranked chunks", func(t *testing.T) {
		server := newTestServer(t, &Ports{Index: &mockIndexService{retriever: retriever}})

		_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "alpha", K: 2, IndexDir: "/idx"})

		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, "alpha", out.Results[0].Text)
		assert.Equal(t, "beta", out.Results[1].Text)
	})

	t.Run("default k", func(t *testing.T) {
		server := newTestServer(t, &Ports{Index: &mockIndexService{retriever: retriever}})

		_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "alpha", IndexDir: "/idx"})

		require.NoError(t, err)
		assert.Equal(t, defaultK, retriever.lastK)
		assert.Equal(t, defaultK, out.Count)
	})

	t.Run("falls back to default index dir", func(t *testing.T) {
		index := &mockIndexService{retriever: retriever}
		server := newTestServer(t, &Ports{Index: index, DefaultIndexDir: "/default"})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "alpha"})

		require.NoError(t, err)
		assert.Equal(t, []string{"/default"}, index.opened)
	})

	t.Run("no index dir", func(t *testing.T) {
		server := newTestServer(t, &Ports{Index: &mockIndexService{retriever: retriever}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "alpha"})

		assert.ErrorIs(t, err, ErrNoIndex)
	})

	t.Run("opens each index once", func(t *testing.T) {
		index := &mockIndexService{retriever: retriever}
		server := newTestServer(t, &Ports{Index: index})

		for range 3 {
			_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "x", IndexDir: "/idx"})
			require.NoError(t, err)
		}

		assert.Equal(t, []string{"/idx"}, index.opened)
	})

	t.Run("incompatible index", func(t *testing.T) {
		index := &mockIndexService{err: &domain.IncompatibleIndexError{Field: "dimension", Persisted: "3", Current: "4"}}
		server := newTestServer(t, &Ports{Index: index})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "x", IndexDir: "/idx"})

		assert.ErrorIs(t, err, domain.ErrIncompatibleIndex)
	})

	t.Run("query error", func(t *testing.T) {
		index := &mockIndexService{retriever: &mockRetriever{err: errors.New("embedding failed")}}
		server := newTestServer(t, &Ports{Index: index})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "x", IndexDir: "/idx"})

		assert.EqualError(t, err, "embedding failed")
	})
}

func TestServer_handleListSessions(t *testing.T) {
	ctx := context.Background()
	first := domain.NewSession("s1", "Chat-1")
	first.History.AppendPair(domain.NewTurn(domain.RoleUser, "q"), domain.NewTurn(domain.RoleAssistant, "a"))
	second := domain.NewSession("s2", "Chat-2")
	second.SetIndexDir("/idx")
	server := newTestServer(t, &Ports{Sessions: newMockSessionService(first, second)})

	_, out, err := server.handleListSessions(ctx, nil, ListSessionsInput{})

	require.NoError(t, err)
	require.Len(t, out.Sessions, 2)
	assert.Equal(t, SessionOutput{ID: "s1", Name: "Chat-1", Turns: 2}, out.Sessions[0])
	assert.Equal(t, SessionOutput{ID: "s2", Name: "Chat-2", IndexDir: "/idx"}, out.Sessions[1])
}

func TestServer_handleHistory(t *testing.T) {
	ctx := context.Background()
	sess := domain.NewSession("s1", "Chat-1")
	sess.History.AppendPair(
		domain.NewTurn(domain.RoleUser, "Who is Alice?"),
		domain.NewTurn(domain.RoleAssistant, "Bob's sister."),
	)
	server := newTestServer(t, &Ports{Sessions: newMockSessionService(sess)})

	t.Run("returns turns in order", func(t *testing.T) {
		_, out, err := server.handleHistory(ctx, nil, HistoryInput{SessionID: "s1"})

		require.NoError(t, err)
		assert.Equal(t, []TurnOutput{
			{Role: "user", Content: "Who is Alice?"},
			{Role: "assistant", Content: "Bob's sister."},
		}, out.Turns)
	})

	t.Run("unknown session", func(t *testing.T) {
		_, _, err := server.handleHistory(ctx, nil, HistoryInput{SessionID: "missing"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
