package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestAskCmd_DefaultSession(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "ask", "who", "is", "Alice?")

	require.NoError(t, err)
	assert.Contains(t, out, "answer to who is Alice?")
	assert.Equal(t, []string{"default: who is Alice?"}, ts.answers.asked)

	_, err = ts.sessions.Get(context.Background(), defaultSessionID)
	assert.NoError(t, err)
	assert.Empty(t, ts.index.ensured)
	assert.Empty(t, ts.index.opened)
}

func TestAskCmd_CorpusBuildsAndBinds(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "ask", "--session", "work", "--corpus", "./docs", "--index", "/tmp/idx", "who?")

	require.NoError(t, err)
	assert.Equal(t, []string{"./docs"}, ts.sources.roots)
	assert.Equal(t, []string{"/tmp/idx"}, ts.index.ensured)
	assert.Len(t, ts.index.lastDocs, 2)
	assert.Equal(t, domain.DefaultChunkSize, ts.index.lastOpts.ChunkSize)

	sess, err := ts.sessions.Get(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/idx", sess.IndexDir())
	assert.NotNil(t, sess.Index())
}

func TestAskCmd_Rebuild(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "ask", "--corpus", "./docs", "--rebuild", "who?")

	require.NoError(t, err)
	assert.Equal(t, []string{defaultIndexDir}, ts.index.rebuilt)
	assert.Empty(t, ts.index.ensured)
}

func TestAskCmd_GitHubCorpus(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "ask", "--github", "acme/docs@main", "--patterns", "*.md", "who?")

	require.NoError(t, err)
	assert.Equal(t, []string{"acme/docs@main"}, ts.sources.repos)
	assert.Equal(t, "*.md", ts.sources.patterns)
	assert.Len(t, ts.index.ensured, 1)
}

func TestAskCmd_GitHubError(t *testing.T) {
	ts := setupTestServices(t)
	ts.sources.githubErr = errors.New("bad repo")

	_, err := execute(t, "ask", "--github", "nope", "who?")

	assert.ErrorContains(t, err, "bad repo")
	assert.Empty(t, ts.answers.asked)
}

func TestAskCmd_CorpusFlagsExclusive(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ask", "--corpus", "./docs", "--github", "a/b", "who?")

	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestAskCmd_IndexOnlyOpens(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.manifests["/tmp/idx"] = domain.IndexManifest{Chunks: 2}

	_, err := execute(t, "ask", "--index", "/tmp/idx", "who?")

	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/idx"}, ts.index.opened)
	assert.Empty(t, ts.index.ensured)
}

func TestAskCmd_MissingIndex(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "ask", "--index", "/nowhere", "who?")

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, ts.answers.asked)
}

func TestAskCmd_IncompatibleIndex(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.err = &domain.IncompatibleIndexError{Field: "dimension", Persisted: "768", Current: "1536"}

	_, err := execute(t, "ask", "--corpus", "./docs", "who?")

	assert.ErrorIs(t, err, domain.ErrIncompatibleIndex)
}

func TestAskCmd_AnswerError(t *testing.T) {
	ts := setupTestServices(t)
	ts.answers.err = domain.ErrLLMUnavailable

	_, err := execute(t, "ask", "who?")

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.ErrorContains(t, err, "ask failed")
}

func TestAskCmd_Sources(t *testing.T) {
	ts := setupTestServices(t)
	ts.answers.answer = &domain.Answer{
		RewrittenQuestion: "who is Bob's sister?",
		Text:              "Alice.",
		Chunks: []domain.ScoredChunk{
			{Chunk: domain.DocumentChunk{SourceID: "a.txt", Index: 3, Text: "Alice is\nBob's sister."}, Score: 0.875},
		},
	}

	out, err := execute(t, "ask", "--sources", "and his sister?")

	require.NoError(t, err)
	assert.Contains(t, out, "Alice.")
	assert.Contains(t, out, "Searched for: who is Bob's sister?")
	assert.Contains(t, out, "[1] a.txt #3 (0.875)")
	assert.Contains(t, out, "Alice is Bob's sister.")
}

func TestAskCmd_NoSources(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "ask", "--sources", "hello")

	require.NoError(t, err)
	assert.Contains(t, out, "No sources retrieved.")
}

func TestAskCmd_JSON(t *testing.T) {
	setupTestServices(t)

	out, err := execute(t, "ask", "--json", "--session", "s1", "hello")
	require.NoError(t, err)

	var got answerOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "hello", got.Question)
	assert.Equal(t, "answer to hello", got.Answer)
	assert.Equal(t, []string{"received", "retrieved", "answered"}, got.Trace)
	assert.Empty(t, got.Sources)
}

func TestAskCmd_NotConfigured(t *testing.T) {
	SetServices(Services{AnswerErr: domain.ErrLLMUnavailable})
	t.Cleanup(func() { SetServices(Services{}) })

	_, err := execute(t, "ask", "hello")

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "ask")

	assert.Error(t, err)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", preview("abcdefghijklmnop", 10))
	assert.Equal(t, "", preview("", 10))
}
