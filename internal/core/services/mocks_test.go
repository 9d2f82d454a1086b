package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// --- Mock implementations ---

var (
	catWords = map[string]bool{"cat": true, "cats": true, "mat": true, "kitten": true}
	dogWords = map[string]bool{
		"dog": true, "dogs": true, "loyal": true, "companion": true,
		"companions": true, "pet": true, "pets": true, "puppy": true,
	}
)

// keywordEmbedder implements driven.EmbeddingService with a three axis
// vector: cat words, dog words and a constant bias.
type keywordEmbedder struct {
	dims     int
	provider string
	embedErr error
	batchErr error

	batches atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
	hold    chan struct{}
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{dims: 3, provider: "keyword"}
}

func (m *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch {
		case catWords[w]:
			v[0]++
		case dogWords[w]:
			v[1]++
		}
	}
	v[2] = 0.1
	return v
}

func (m *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batches.Add(1)
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.hold != nil {
		<-m.hold
	}

	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *keywordEmbedder) Dimensions() int { return m.dims }
func (m *keywordEmbedder) Provider() string { return m.provider }
func (m *keywordEmbedder) ModelName() string { return "keyword-v1" }
func (m *keywordEmbedder) Ping(context.Context) error { return nil }
func (m *keywordEmbedder) Close() error { return nil }

// mockLLM implements driven.LLMService with a scripted reply function.
type mockLLM struct {
	mu    sync.Mutex
	calls [][]driven.ChatMessage
	reply func(ctx context.Context, call int, messages []driven.ChatMessage) (string, error)

	active atomic.Int32
	peak   atomic.Int32
}

// newMockLLM answers every call with the given replies in order, repeating the last.
func newMockLLM(replies ...string) *mockLLM {
	return &mockLLM{
		reply: func(_ context.Context, call int, _ []driven.ChatMessage) (string, error) {
			if len(replies) == 0 {
				return "ok", nil
			}
			return replies[min(call, len(replies)-1)], nil
		},
	}
}

func (m *mockLLM) Chat(ctx context.Context, messages []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	return m.reply(ctx, call, messages)
}

func (m *mockLLM) Calls() [][]driven.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]driven.ChatMessage(nil), m.calls...)
}

func (m *mockLLM) Provider() string { return "mock" }
func (m *mockLLM) ModelName() string { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error { return nil }

// recordingRetriever implements domain.Retriever and records query texts.
type recordingRetriever struct {
	mu      sync.Mutex
	queries []string
	results []domain.ScoredChunk
	err     error
}

func (r *recordingRetriever) Query(_ context.Context, text string, k int) ([]domain.ScoredChunk, error) {
	r.mu.Lock()
	r.queries = append(r.queries, text)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.results[:min(k, len(r.results))], nil
}

func (r *recordingRetriever) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func scored(texts ...string) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, len(texts))
	for i, t := range texts {
		out[i] = domain.ScoredChunk{
			Chunk: domain.DocumentChunk{Index: i, SourceID: "doc", Text: t},
			Score: 1 - float64(i)*0.1,
		}
	}
	return out
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockPromptStore) Reload() {}

// failingRepository wraps a repository and fails selected operations.
type failingRepository struct {
	driven.SessionRepository
	appendErr error
	saveErr   error
	getErr    error

	// saveFailures fails that many SaveSession calls with saveErr, then recovers.
	saveFailures int
}

func (f *failingRepository) AppendTurns(ctx context.Context, id string, turns ...domain.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.SessionRepository.AppendTurns(ctx, id, turns...)
}

func (f *failingRepository) SaveSession(ctx context.Context, rec domain.SessionRecord) error {
	if err := f.saveErr; err != nil {
		if f.saveFailures > 0 {
			f.saveFailures--
			if f.saveFailures == 0 {
				f.saveErr = nil
			}
		}
		return err
	}
	return f.SessionRepository.SaveSession(ctx, rec)
}

func (f *failingRepository) GetSession(ctx context.Context, id string) (domain.SessionRecord, error) {
	if f.getErr != nil {
		return domain.SessionRecord{}, f.getErr
	}
	return f.SessionRepository.GetSession(ctx, id)
}

// charCounter implements driven.TokenCounter by counting characters.
type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }
