package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

type recordedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions"`
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func embeddingBody(data string) string {
	return `{"object":"list","model":"m","usage":{"prompt_tokens":1,"total_tokens":1},"data":[` + data + `]}`
}

func TestNewEmbeddingService_Dimensions(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"default model", Config{APIKey: "k"}, 1536},
		{"large model", Config{APIKey: "k", Model: "text-embedding-3-large"}, 3072},
		{"override", Config{APIKey: "k", Dimensions: 256}, 256},
		{"unknown model", Config{APIKey: "k", Model: "custom"}, fallbackDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewEmbeddingService(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, svc.Dimensions())
		})
	}

	_, err := NewEmbeddingService(Config{})
	assert.Error(t, err)
}

func TestEmbeddingService_EmbedBatchOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultModel, req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Equal(t, 2, req.Dimensions)

		writeJSON(w, http.StatusOK, embeddingBody(`
			{"object":"embedding","index":1,"embedding":[0,1]},
			{"object":"embedding","index":0,"embedding":[1,0]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: server.URL + "/", Dimensions: 2})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, "openai", svc.Provider())
}

func TestEmbeddingService_MissingEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, embeddingBody(`{"object":"embedding","index":0,"embedding":[1]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})

	assert.ErrorIs(t, err, domain.ErrProvider)
}

func TestEmbeddingService_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recordedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Zero(t, req.Dimensions, "ada-002 takes no dimensions override")

		writeJSON(w, http.StatusOK, embeddingBody(`{"object":"embedding","index":0,"embedding":[0.5,0.5]}`))
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: server.URL + "/", Model: "text-embedding-ada-002"})
	require.NoError(t, err)

	vec, err := svc.Embed(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
}

func TestEmbeddingService_EmptyBatch(t *testing.T) {
	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1/"})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbeddingService_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key"}}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "bad", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	err = svc.Ping(context.Background())

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
}

func TestEmbeddingService_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`)
	}))
	defer server.Close()

	svc, err := NewEmbeddingService(Config{APIKey: "k", BaseURL: server.URL + "/"})
	require.NoError(t, err)

	_, err = svc.Embed(context.Background(), "x")

	assert.ErrorIs(t, err, domain.ErrRateLimited)
	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "embed", pe.Op)
}
