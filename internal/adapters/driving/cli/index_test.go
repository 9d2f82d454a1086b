package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

func TestIndexBuild(t *testing.T) {
	ts := setupTestServices(t)

	out, err := execute(t, "index", "build", "--corpus", "./docs", "--index", "/tmp/idx")

	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/idx"}, ts.index.ensured)
	assert.Contains(t, out, "Index ready at /tmp/idx: 2 chunks (ollama/nomic-embed-text, dim 3)")
}

func TestIndexBuild_Rebuild(t *testing.T) {
	ts := setupTestServices(t)

	_, err := execute(t, "index", "build", "--corpus", "./docs", "--rebuild")

	require.NoError(t, err)
	assert.Equal(t, []string{defaultIndexDir}, ts.index.rebuilt)
}

func TestIndexBuild_UsesRetrievalSettings(t *testing.T) {
	ts := setupTestServices(t)
	require.NoError(t, ts.settings.SetRetrieval(500, 50, 3))

	_, err := execute(t, "index", "build", "--corpus", "./docs")

	require.NoError(t, err)
	assert.Equal(t, domain.BuildOptions{ChunkSize: 500, ChunkOverlap: 50}, ts.index.lastOpts)
}

func TestIndexBuild_NoCorpus(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "index", "build")

	assert.ErrorIs(t, err, errNoCorpus)
}

func TestIndexBuild_EmptyCorpus(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.err = domain.ErrEmptyCorpus

	_, err := execute(t, "index", "build", "--corpus", "./empty")

	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestIndexInfo(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.manifests["/tmp/idx"] = domain.IndexManifest{
		Version: 1, Dimension: 768, Provider: "ollama", Model: "nomic-embed-text",
		ChunkSize: 1000, ChunkOverlap: 100, Chunks: 42, Fingerprint: "abc123",
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	out, err := execute(t, "index", "info", "--index", "/tmp/idx")

	require.NoError(t, err)
	assert.Contains(t, out, "Model: nomic-embed-text")
	assert.Contains(t, out, "Dimension: 768")
	assert.Contains(t, out, "Chunk size: 1000 (overlap 100)")
	assert.Contains(t, out, "Chunks: 42")
	assert.Contains(t, out, "2024-05-01T12:00:00Z")
}

func TestIndexInfo_Missing(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "index", "info", "--index", "/nowhere")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexQuery(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.manifests["/tmp/idx"] = domain.IndexManifest{}

	out, err := execute(t, "index", "query", "--index", "/tmp/idx", "-k", "1", "sister")

	require.NoError(t, err)
	assert.Equal(t, 1, ts.index.retriever.lastK)
	assert.Contains(t, out, "[1] a.txt #0 (0.910)")
	assert.NotContains(t, out, "b.txt")
}

func TestIndexQuery_JSON(t *testing.T) {
	ts := setupTestServices(t)
	ts.index.manifests["/tmp/idx"] = domain.IndexManifest{}

	out, err := execute(t, "index", "query", "--index", "/tmp/idx", "--json", "chess")
	require.NoError(t, err)

	var got []sourceOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "b.txt", got[1].SourceID)
	assert.Equal(t, 2, got[1].Index)
}

func TestIndexQuery_InvalidK(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "index", "query", "-k", "0", "x")

	assert.EqualError(t, err, "k must be at least 1")
}

func TestIndexWatch_RequiresCorpus(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "index", "watch")

	assert.EqualError(t, err, "--corpus is required")
}

func TestIndexCmd_NotConfigured(t *testing.T) {
	SetServices(Services{})

	_, err := execute(t, "index", "info")

	assert.EqualError(t, err, "index service not configured")
}
