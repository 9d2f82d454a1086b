package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

func TestNewLLMService_Defaults(t *testing.T) {
	svc := NewLLMService(LLMConfig{})

	assert.Equal(t, DefaultLLMModel, svc.ModelName())
	assert.Equal(t, "ollama", svc.Provider())
	assert.NoError(t, svc.Close())
}

func TestLLMService_Chat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "llama-test", req.Model)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, "assistant", req.Messages[1].Role)
		require.NotNil(t, req.Options)
		assert.Equal(t, 32, req.Options.NumPredict)
		assert.InDelta(t, 0.2, req.Options.Temperature, 1e-9)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"Bob"},"done":true}`))
	}))
	defer server.Close()

	svc := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "llama-test"})
	out, err := svc.Chat(context.Background(), []driven.ChatMessage{
		{Role: driven.RoleUser, Content: "who?"},
		{Role: driven.RoleAssistant, Content: "who what?"},
		{Role: driven.RoleUser, Content: "the brother"},
	}, driven.ChatOptions{MaxTokens: 32, Temperature: 0.2})

	require.NoError(t, err)
	assert.Equal(t, "Bob", out)
}

func TestLLMService_ModelMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"nope\" not found"}`))
	}))
	defer server.Close()

	_, err := NewLLMService(LLMConfig{BaseURL: server.URL, Model: "nope"}).
		Chat(context.Background(), nil, driven.ChatOptions{})

	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Contains(t, err.Error(), "not found")
}

func TestLLMService_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	assert.NoError(t, NewLLMService(LLMConfig{BaseURL: server.URL}).Ping(context.Background()))
}

func TestLLMService_APIKeySentAsBearer(t *testing.T) {
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	require.NoError(t, NewLLMService(LLMConfig{BaseURL: server.URL, APIKey: "ol-key"}).Ping(context.Background()))
	require.NoError(t, NewLLMService(LLMConfig{BaseURL: server.URL}).Ping(context.Background()))

	assert.Equal(t, []string{"Bearer ol-key", ""}, auth)
}
