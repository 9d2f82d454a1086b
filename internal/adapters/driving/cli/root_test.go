package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/services"
)

// mockAnswerService records questions and answers them from a canned reply.
type mockAnswerService struct {
	mu     sync.Mutex
	asked  []string
	answer *domain.Answer
	err    error
}

func (m *mockAnswerService) Ask(_ context.Context, sessionID, question string) (*domain.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append(m.asked, sessionID+": "+question)
	if m.err != nil {
		return nil, m.err
	}
	if m.answer != nil {
		out := *m.answer
		out.Question = question
		return &out, nil
	}
	return &domain.Answer{
		Question: question,
		Text:     "answer to " + question,
		Trace:    []domain.PipelineState{domain.StateReceived, domain.StateRetrieved, domain.StateAnswered},
	}, nil
}

// mockRetriever returns fixed chunks.
type mockRetriever struct {
	chunks []domain.ScoredChunk
	lastK  int
}

func (m *mockRetriever) Query(_ context.Context, _ string, k int) ([]domain.ScoredChunk, error) {
	m.lastK = k
	if k < len(m.chunks) {
		return m.chunks[:k], nil
	}
	return m.chunks, nil
}

// mockIndexService records which directories were built or opened.
type mockIndexService struct {
	retriever *mockRetriever
	manifests map[string]domain.IndexManifest
	ensured   []string
	rebuilt   []string
	opened    []string
	lastDocs  []domain.Document
	lastOpts  domain.BuildOptions
	err       error
}

func newMockIndexService() *mockIndexService {
	return &mockIndexService{
		retriever: &mockRetriever{chunks: []domain.ScoredChunk{
			{Chunk: domain.DocumentChunk{SourceID: "a.txt", Index: 0, Text: "Alice is Bob's sister."}, Score: 0.91},
			{Chunk: domain.DocumentChunk{SourceID: "b.txt", Index: 2, Text: "Bob plays chess."}, Score: 0.42},
		}},
		manifests: make(map[string]domain.IndexManifest),
	}
}

func (m *mockIndexService) build(dir string, docs []domain.Document, opts domain.BuildOptions) {
	m.lastDocs = docs
	m.lastOpts = opts
	m.manifests[dir] = domain.IndexManifest{
		Version: 1, Dimension: 3, Provider: "ollama", Model: "nomic-embed-text",
		ChunkSize: opts.ChunkSize, ChunkOverlap: opts.ChunkOverlap, Chunks: len(docs),
	}
}

func (m *mockIndexService) EnsureIndex(
	_ context.Context, dir string, docs []domain.Document, opts domain.BuildOptions,
) (domain.Retriever, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.ensured = append(m.ensured, dir)
	m.build(dir, docs, opts)
	return m.retriever, nil
}

func (m *mockIndexService) Rebuild(
	_ context.Context, dir string, docs []domain.Document, opts domain.BuildOptions,
) (domain.Retriever, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.rebuilt = append(m.rebuilt, dir)
	m.build(dir, docs, opts)
	return m.retriever, nil
}

func (m *mockIndexService) Open(_ context.Context, dir string) (domain.Retriever, error) {
	m.opened = append(m.opened, dir)
	if _, ok := m.manifests[dir]; !ok {
		return nil, fmt.Errorf("index %s: %w", dir, domain.ErrNotFound)
	}
	return m.retriever, nil
}

func (m *mockIndexService) Info(dir string) (domain.IndexManifest, error) {
	manifest, ok := m.manifests[dir]
	if !ok {
		return domain.IndexManifest{}, fmt.Errorf("index %s: %w", dir, domain.ErrNotFound)
	}
	return manifest, nil
}

// staticSource serves a fixed set of documents.
type staticSource struct {
	name string
	docs []domain.Document
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Documents(context.Context) ([]domain.Document, error) {
	return s.docs, nil
}

// mockSourceOpener hands out static sources and records what was opened.
type mockSourceOpener struct {
	docs      []domain.Document
	roots     []string
	repos     []string
	patterns  string
	githubErr error
}

func (m *mockSourceOpener) Filesystem(root string) driven.DocumentSource {
	m.roots = append(m.roots, root)
	return &staticSource{name: root, docs: m.docs}
}

func (m *mockSourceOpener) GitHub(_ context.Context, spec, patterns string) (driven.DocumentSource, error) {
	if m.githubErr != nil {
		return nil, m.githubErr
	}
	m.repos = append(m.repos, spec)
	m.patterns = patterns
	return &staticSource{name: spec, docs: m.docs}, nil
}

// testServices holds the services injected for a test.
type testServices struct {
	answers  *mockAnswerService
	sessions *services.SessionStore
	index    *mockIndexService
	sources  *mockSourceOpener
	settings *services.SettingsService
}

// setupTestServices injects fresh services and restores the previous ones on cleanup.
func setupTestServices(t *testing.T) *testServices {
	t.Helper()

	ts := &testServices{
		answers:  &mockAnswerService{},
		sessions: services.NewSessionStore(),
		index:    newMockIndexService(),
		sources: &mockSourceOpener{docs: []domain.Document{
			{ID: "a.txt", Text: "Alice is Bob's sister."},
			{ID: "b.txt", Text: "Bob plays chess."},
		}},
		settings: services.NewSettingsService(memory.NewConfigStore(), nil, nil),
	}

	SetServices(Services{
		Settings: ts.settings,
		Sessions: ts.sessions,
		Answer:   ts.answers,
		Index:    ts.index,
		Sources:  ts.sources,
	})
	t.Cleanup(func() { SetServices(Services{}) })
	return ts
}

// resetFlags restores every flag to its default so tests do not leak into each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue) //nolint:errcheck // defaults always parse
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "ragchat", rootCmd.Use)
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"ask", "chat", "session", "index", "settings", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "--verbose", "version")

	require.NoError(t, err)
	assert.True(t, verbose)
}

func TestSetServices(t *testing.T) {
	ts := setupTestServices(t)

	assert.Equal(t, ts.sessions, sessionService)
	assert.Equal(t, ts.answers, answerService)

	SetServices(Services{})
	assert.Nil(t, sessionService)
	assert.Nil(t, answerService)
}

func TestRequireAnswerService(t *testing.T) {
	SetServices(Services{})
	t.Cleanup(func() { SetServices(Services{}) })

	_, err := requireAnswerService()
	assert.EqualError(t, err, "answer service not configured")

	reason := errors.New("no LLM provider configured")
	SetServices(Services{AnswerErr: reason})
	_, err = requireAnswerService()
	assert.Equal(t, reason, err)
}

func TestIndexDirFlag_Fallbacks(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "index", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), defaultIndexDir)

	settings, err := ts.settings.Get()
	require.NoError(t, err)
	settings.Retrieval.IndexDir = "/data/idx"
	require.NoError(t, ts.settings.Save(settings))

	_, err = execute(t, "index", "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/data/idx")
}
