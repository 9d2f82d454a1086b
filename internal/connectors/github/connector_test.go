package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/normalisers"
	"github.com/custodia-labs/ragchat/internal/normalisers/markdown"
	"github.com/custodia-labs/ragchat/internal/normalisers/plaintext"
)

// fakeRepo serves the repository, tree and blob endpoints for acme/handbook.
type fakeRepo struct {
	blobs      map[string]string // sha -> content
	tree       string
	blobStatus int

	mu       sync.Mutex
	requests []string
}

func (f *fakeRepo) requested(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.requests {
		if p == path {
			return true
		}
	}
	return false
}

func (f *fakeRepo) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.URL.Path)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(HeaderRateRemaining, "4999")
		w.Header().Set(HeaderRateLimit, "5000")

		switch r.URL.Path {
		case "/repos/acme/handbook":
			_, _ = w.Write([]byte(`{"name":"handbook","default_branch":"main"}`))
		case "/repos/acme/handbook/git/trees/main":
			assert.Equal(t, "1", r.URL.Query().Get("recursive"))
			_, _ = w.Write([]byte(f.tree))
		case "/repos/acme/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		default:
			var sha string
			if _, err := fmt.Sscanf(r.URL.Path, "/repos/acme/handbook/git/blobs/%s", &sha); err == nil {
				if f.blobStatus != 0 {
					w.WriteHeader(f.blobStatus)
					_, _ = w.Write([]byte(`{"message":"boom"}`))
					return
				}
				content := base64.StdEncoding.EncodeToString([]byte(f.blobs[sha]))
				_, _ = fmt.Fprintf(w, `{"sha":%q,"encoding":"base64","content":%q}`, sha, content)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

const handbookTree = `{
	"sha": "main",
	"truncated": false,
	"tree": [
		{"path": "README.md", "type": "blob", "sha": "b1", "size": 40},
		{"path": "docs", "type": "tree", "sha": "t1"},
		{"path": "docs/onboarding.txt", "type": "blob", "sha": "b2", "size": 30},
		{"path": "logo.png", "type": "blob", "sha": "b3", "size": 10},
		{"path": "huge.txt", "type": "blob", "sha": "b4", "size": 2000000},
		{"path": ".github/workflow.yml", "type": "blob", "sha": "b5", "size": 10},
		{"path": "vendor/lib/notes.txt", "type": "blob", "sha": "b6", "size": 10}
	]
}`

func newTestSource(t *testing.T, f *fakeRepo, repo Repo, patterns ...string) *Source {
	t.Helper()
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)

	client := NewClient(context.Background(), "ghp-test",
		WithBaseURL(server.URL),
		WithRateLimiter(NewRateLimiterWithRate(1000)),
	)
	registry := normalisers.NewRegistry(plaintext.New(), markdown.New())
	return New(client, repo, registry, patterns...)
}

func TestSource_Documents(t *testing.T) {
	f := &fakeRepo{
		tree: handbookTree,
		blobs: map[string]string{
			"b1": "# Handbook\n\nWelcome to *Acme*.",
			"b2": "Day one: get a laptop.",
		},
	}
	source := newTestSource(t, f, Repo{Owner: "acme", Name: "handbook"})

	docs, err := source.Documents(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "README.md", docs[0].ID)
	assert.Equal(t, "docs/onboarding.txt", docs[1].ID)

	readme := docs[0]
	assert.Contains(t, readme.Text, "Welcome to Acme.")
	assert.Equal(t, "Handbook", readme.Metadata["title"])
	assert.Equal(t, "main", readme.Metadata["ref"])
	assert.Equal(t, "https://github.com/acme/handbook/blob/main/README.md", readme.Metadata["html_url"])

	// Only supported, visible, small files are fetched.
	assert.False(t, f.requested("/repos/acme/handbook/git/blobs/b3"))
	assert.False(t, f.requested("/repos/acme/handbook/git/blobs/b4"))
	assert.False(t, f.requested("/repos/acme/handbook/git/blobs/b5"))
	assert.False(t, f.requested("/repos/acme/handbook/git/blobs/b6"))
}

func TestSource_DocumentsWithRefSkipsRepoLookup(t *testing.T) {
	f := &fakeRepo{tree: handbookTree, blobs: map[string]string{"b1": "# Hi", "b2": "text"}}
	source := newTestSource(t, f, Repo{Owner: "acme", Name: "handbook", Ref: "main"}, "*.txt")

	docs, err := source.Documents(context.Background())

	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "docs/onboarding.txt", docs[0].ID)
	assert.False(t, f.requested("/repos/acme/handbook"))
}

func TestSource_BlobErrorsAreSkipped(t *testing.T) {
	f := &fakeRepo{tree: handbookTree, blobStatus: http.StatusInternalServerError}
	source := newTestSource(t, f, Repo{Owner: "acme", Name: "handbook", Ref: "main"})

	docs, err := source.Documents(context.Background())

	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSource_RepoNotFound(t *testing.T) {
	source := newTestSource(t, &fakeRepo{}, Repo{Owner: "acme", Name: "missing"})

	_, err := source.Documents(context.Background())

	assert.ErrorIs(t, err, ErrRepoNotFound)
	assert.True(t, IsNotFound(err))
}

func TestSource_Name(t *testing.T) {
	s := New(nil, Repo{Owner: "acme", Name: "handbook", Ref: "v1"}, nil)

	assert.Equal(t, "acme/handbook@v1", s.Name())

	var _ driven.DocumentSource = s
}

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in      string
		want    Repo
		wantErr bool
	}{
		{"acme/handbook", Repo{Owner: "acme", Name: "handbook"}, false},
		{"acme/handbook@v2.1", Repo{Owner: "acme", Name: "handbook", Ref: "v2.1"}, false},
		{"https://github.com/acme/handbook.git", Repo{Owner: "acme", Name: "handbook"}, false},
		{"github.com/acme/handbook@main", Repo{Owner: "acme", Name: "handbook", Ref: "main"}, false},
		{"acme", Repo{}, true},
		{"acme/", Repo{}, true},
		{"a/b/c", Repo{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRepo(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRepo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePatterns(t *testing.T) {
	assert.Equal(t, []string{"*.go", "*.md"}, ParsePatterns(" *.go, ,*.md "))
	assert.Empty(t, ParsePatterns(""))
}

func TestMatchesPatterns(t *testing.T) {
	assert.True(t, matchesPatterns("any/file.txt", nil))
	assert.True(t, matchesPatterns("docs/guide.md", []string{"*.md"}))
	assert.True(t, matchesPatterns("docs/guide.md", []string{"docs/*"}))
	assert.False(t, matchesPatterns("main.go", []string{"*.md"}))
}

func TestErrors(t *testing.T) {
	notFound := &APIError{StatusCode: 404, Message: "Not Found"}
	assert.ErrorIs(t, notFound, domain.ErrNotFound)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsUnauthorized(notFound))

	assert.True(t, IsUnauthorized(&APIError{StatusCode: 401}))

	limited := &RateLimitError{Limit: 60}
	assert.ErrorIs(t, limited, domain.ErrRateLimited)
	assert.True(t, IsRateLimited(fmt.Errorf("wrapped: %w", limited)))
}
