package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/core/ports/driving"
	"github.com/custodia-labs/ragchat/internal/logger"
)

// Ensure AnswerPipeline implements the interface.
var _ driving.AnswerService = (*AnswerPipeline)(nil)

// contextSeparator joins retrieved chunk texts in the context block.
const contextSeparator = "\n\n"

// AnswerConfig holds the tunables of the answer pipeline.
type AnswerConfig struct {
	// TopK is how many chunks are retrieved per question.
	TopK int

	// History bounds the history rendered into prompts.
	History domain.RenderLimit

	// Temperature and MaxTokens are passed to the answering LLM call.
	Temperature float64
	MaxTokens   int

	// Timeout bounds each LLM call. Zero means no timeout beyond the caller's context.
	Timeout time.Duration
}

// AnswerConfigFromSettings derives the pipeline configuration from application settings.
func AnswerConfigFromSettings(settings *domain.AppSettings) AnswerConfig {
	return AnswerConfig{
		TopK:        settings.Retrieval.TopK,
		History:     settings.History.RenderLimit(),
		Temperature: settings.Generation.Temperature,
		MaxTokens:   settings.Generation.MaxTokens,
	}
}

// AnswerPipeline answers questions within a session:
// received, optionally rewritten, retrieved, then answered or failed.
type AnswerPipeline struct {
	sessions driving.SessionService
	llm      driven.LLMService
	prompts  driven.PromptStore
	counter  driven.TokenCounter
	loader   IndexLoader
	cfg      AnswerConfig
}

// IndexLoader opens the persisted index at dir.
type IndexLoader func(ctx context.Context, dir string) (domain.Retriever, error)

// AnswerOption configures an AnswerPipeline.
type AnswerOption func(*AnswerPipeline)

// WithPromptStore sets the store for customisable prompts.
func WithPromptStore(store driven.PromptStore) AnswerOption {
	return func(p *AnswerPipeline) {
		p.prompts = store
	}
}

// WithTokenCounter sets how history tokens are counted.
func WithTokenCounter(counter driven.TokenCounter) AnswerOption {
	return func(p *AnswerPipeline) {
		p.counter = counter
	}
}

// WithIndexLoader loads a session's persisted index on first use when the
// session names an index directory but has none bound.
func WithIndexLoader(loader IndexLoader) AnswerOption {
	return func(p *AnswerPipeline) {
		p.loader = loader
	}
}

// NewAnswerPipeline creates a new answer pipeline.
func NewAnswerPipeline(
	sessions driving.SessionService,
	llm driven.LLMService,
	cfg AnswerConfig,
	opts ...AnswerOption,
) *AnswerPipeline {
	if cfg.TopK < 1 {
		cfg.TopK = 4
	}
	p := &AnswerPipeline{
		sessions: sessions,
		llm:      llm,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ask runs the pipeline for one question. Requests against the same session
// are processed one at a time. Both turns are committed to history on success;
// on any failure, including cancellation, the history is left unchanged.
func (p *AnswerPipeline) Ask(ctx context.Context, sessionID, question string) (*domain.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.InvalidArgument("question must not be empty")
	}
	if p.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	sess, err := p.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	release, err := sess.Acquire(ctx)
	if err != nil {
		return nil, &domain.GenerationError{Cause: err}
	}
	defer release()

	logger.Section("Answer")
	answer := &domain.Answer{
		Question: question,
		Trace:    []domain.PipelineState{domain.StateReceived},
	}
	logger.Debug("Session %s: received %q", sess.ID, question)

	index, err := p.boundIndex(ctx, sess)
	if err != nil {
		answer.Trace = append(answer.Trace, domain.StateFailed)
		return nil, err
	}
	history := sess.History.RenderForPrompt(p.cfg.History, p.countFunc())

	query := question
	if index != nil && len(history) > 0 {
		if rewritten, ok := p.rewrite(ctx, history, question); ok {
			query = rewritten
			answer.RewrittenQuestion = rewritten
			answer.Trace = append(answer.Trace, domain.StateRewritten)
		}
	}

	var contextBlock string
	if index != nil {
		start := time.Now()
		chunks, err := index.Query(ctx, query, p.cfg.TopK)
		if err != nil {
			answer.Trace = append(answer.Trace, domain.StateFailed)
			logger.Warn("Retrieval failed: %v", err)
			return nil, err
		}
		logger.Stage("retrieve", start)
		answer.Chunks = chunks
		contextBlock = assembleContext(chunks)
		logger.Debug("Retrieved %d chunks (%d chars of context)", len(chunks), len(contextBlock))
	}
	answer.Trace = append(answer.Trace, domain.StateRetrieved)

	messages := p.answerMessages(index != nil, contextBlock, history, question)

	start := time.Now()
	reply, err := p.chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	})
	if err == nil {
		// A reply that arrives after cancellation is discarded.
		err = ctx.Err()
	}
	if err != nil {
		answer.Trace = append(answer.Trace, domain.StateFailed)
		logger.Warn("Generation failed: %v", err)
		return nil, &domain.GenerationError{Cause: err}
	}
	logger.Stage("generate", start)

	reply = strings.TrimSpace(reply)
	user := domain.NewTurn(domain.RoleUser, question)
	assistant := domain.NewTurn(domain.RoleAssistant, reply)

	// The commit decision has been made; finish it even if ctx is cancelled now.
	if err := p.sessions.RecordExchange(context.WithoutCancel(ctx), sess, user, assistant); err != nil {
		answer.Trace = append(answer.Trace, domain.StateFailed)
		return nil, err
	}

	answer.Text = reply
	answer.Trace = append(answer.Trace, domain.StateAnswered)
	return answer, nil
}

// boundIndex returns the session's index, loading it from its directory if needed.
func (p *AnswerPipeline) boundIndex(ctx context.Context, sess *domain.Session) (domain.Retriever, error) {
	if index := sess.Index(); index != nil {
		return index, nil
	}
	dir := sess.IndexDir()
	if dir == "" || p.loader == nil {
		return nil, nil
	}

	index, err := p.loader(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", dir, err)
	}
	sess.Bind(index, dir)
	logger.Debug("Session %s: loaded index %s", sess.ID, dir)
	return index, nil
}

// rewrite asks the LLM for a standalone form of question. Any failure falls
// back to the raw question.
func (p *AnswerPipeline) rewrite(ctx context.Context, history []domain.Turn, question string) (string, bool) {
	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{
		Role:    driven.RoleSystem,
		Content: p.loadPrompt(driven.PromptContextualizeQuestion),
	})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, driven.ChatMessage{Role: driven.RoleUser, Content: question})

	start := time.Now()
	rewritten, err := p.chat(ctx, messages, driven.ChatOptions{
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		logger.Warn("Question rewrite failed, using original: %v", err)
		return "", false
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return "", false
	}

	logger.Stage("rewrite", start)
	logger.Debug("Rewrote %q -> %q", question, rewritten)
	return rewritten, true
}

// answerMessages builds {system, history..., question}. The QA prompt is used
// whenever an index is bound, even if retrieval returned nothing.
func (p *AnswerPipeline) answerMessages(
	withIndex bool, contextBlock string, history []domain.Turn, question string,
) []driven.ChatMessage {
	var system string
	if withIndex {
		tmpl := p.loadPrompt(driven.PromptQASystem)
		if strings.Contains(tmpl, "%s") {
			system = strings.Replace(tmpl, "%s", contextBlock, 1)
		} else {
			system = tmpl + "\n\n" + contextBlock
		}
	} else {
		system = p.loadPrompt(driven.PromptChatSystem)
	}

	messages := make([]driven.ChatMessage, 0, len(history)+2)
	messages = append(messages, driven.ChatMessage{Role: driven.RoleSystem, Content: system})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, driven.ChatMessage{Role: driven.RoleUser, Content: question})
	return messages
}

func (p *AnswerPipeline) chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	return p.llm.Chat(ctx, messages, opts)
}

// loadPrompt loads a prompt from the store, falling back to the built-in template.
func (p *AnswerPipeline) loadPrompt(name string) string {
	if p.prompts != nil {
		if prompt, err := p.prompts.Load(name); err == nil && prompt != "" {
			return prompt
		}
	}
	return driven.DefaultPromptTemplates()[name]
}

func (p *AnswerPipeline) countFunc() func(string) int {
	if p.counter == nil {
		return nil
	}
	return p.counter.Count
}

func historyMessages(history []domain.Turn) []driven.ChatMessage {
	out := make([]driven.ChatMessage, len(history))
	for i, t := range history {
		out[i] = driven.ChatMessage{Role: string(t.Role), Content: t.Content}
	}
	return out
}

// assembleContext concatenates chunk texts in rank order.
func assembleContext(chunks []domain.ScoredChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Text
	}
	return strings.Join(texts, contextSeparator)
}
