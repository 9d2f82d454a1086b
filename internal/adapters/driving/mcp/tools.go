package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// defaultK is how many chunks search_index returns when the call does not say.
const defaultK = 4

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the question to answer"`
	SessionID string `json:"session_id,omitempty" jsonschema:"session to continue; a new session is created when empty"`
	IndexDir  string `json:"index_dir,omitempty" jsonschema:"persisted index directory to bind to the session before asking"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	SessionID         string        `json:"session_id"`
	Answer            string        `json:"answer"`
	RewrittenQuestion string        `json:"rewritten_question,omitempty"`
	Sources           []ChunkOutput `json:"sources,omitempty"`
	Trace             []string      `json:"trace"`
}

// ChunkOutput represents a retrieved chunk.
type ChunkOutput struct {
	SourceID string  `json:"source_id"`
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// SearchInput is the input schema for the search_index tool.
type SearchInput struct {
	Query    string `json:"query" jsonschema:"the text to find similar chunks for"`
	K        int    `json:"k,omitempty" jsonschema:"maximum number of chunks to return (default 4)"`
	IndexDir string `json:"index_dir,omitempty" jsonschema:"persisted index directory (default: configured index)"`
}

// SearchOutput is the output schema for the search_index tool.
type SearchOutput struct {
	Results []ChunkOutput `json:"results"`
	Count   int           `json:"count"`
}

// ListSessionsInput is the (empty) input schema for the list_sessions tool.
type ListSessionsInput struct{}

// ListSessionsOutput is the output schema for the list_sessions tool.
type ListSessionsOutput struct {
	Sessions []SessionOutput `json:"sessions"`
}

// SessionOutput describes one session.
type SessionOutput struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Turns    int    `json:"turns"`
	IndexDir string `json:"index_dir,omitempty"`
}

// HistoryInput is the input schema for the session_history tool.
type HistoryInput struct {
	SessionID string `json:"session_id" jsonschema:"the session whose history to return"`
}

// HistoryOutput is the output schema for the session_history tool.
type HistoryOutput struct {
	SessionID string       `json:"session_id"`
	Turns     []TurnOutput `json:"turns"`
}

// TurnOutput is one history turn.
type TurnOutput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Ask a question in a conversation session, optionally grounded in a retrieval index",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_index",
		Description: "Return the chunks of a retrieval index most similar to a query",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sessions",
		Description: "List conversation sessions in creation order",
	}, s.handleListSessions)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "session_history",
		Description: "Return the full history of a session",
	}, s.handleHistory)
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if input.IndexDir != "" {
		idx, err := s.openIndex(ctx, input.IndexDir)
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("opening index: %w", err)
		}
		if _, err := s.ports.Sessions.GetOrCreate(ctx, sessionID); err != nil {
			return nil, AskOutput{}, err
		}
		if err := s.ports.Sessions.Bind(ctx, sessionID, idx, input.IndexDir); err != nil {
			return nil, AskOutput{}, err
		}
	}

	answer, err := s.ports.Answer.Ask(ctx, sessionID, input.Question)
	if err != nil {
		return nil, AskOutput{}, err
	}

	output := AskOutput{
		SessionID:         sessionID,
		Answer:            answer.Text,
		RewrittenQuestion: answer.RewrittenQuestion,
		Trace:             make([]string, len(answer.Trace)),
	}
	for i, st := range answer.Trace {
		output.Trace[i] = string(st)
	}
	for _, c := range answer.Chunks {
		output.Sources = append(output.Sources, ChunkOutput{
			SourceID: c.Chunk.SourceID,
			Index:    c.Chunk.Index,
			Score:    c.Score,
			Text:     c.Chunk.Text,
		})
	}

	return nil, output, nil
}

// handleSearch handles the search_index tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	k := input.K
	if k <= 0 {
		k = defaultK
	}
	dir := input.IndexDir
	if dir == "" {
		dir = s.ports.DefaultIndexDir
	}
	if dir == "" {
		return nil, SearchOutput{}, ErrNoIndex
	}

	idx, err := s.openIndex(ctx, dir)
	if err != nil {
		return nil, SearchOutput{}, fmt.Errorf("opening index: %w", err)
	}
	results, err := idx.Query(ctx, input.Query, k)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]ChunkOutput, len(results)),
		Count:   len(results),
	}
	for i, r := range results {
		output.Results[i] = ChunkOutput{
			SourceID: r.Chunk.SourceID,
			Index:    r.Chunk.Index,
			Score:    r.Score,
			Text:     r.Chunk.Text,
		}
	}

	return nil, output, nil
}

// handleListSessions handles the list_sessions tool invocation.
func (s *Server) handleListSessions(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListSessionsInput,
) (*mcp.CallToolResult, ListSessionsOutput, error) {
	summaries := s.ports.Sessions.List(ctx)
	output := ListSessionsOutput{Sessions: make([]SessionOutput, len(summaries))}
	for i, sum := range summaries {
		output.Sessions[i] = SessionOutput{
			ID:       sum.ID,
			Name:     sum.DisplayName,
			Turns:    sum.Turns,
			IndexDir: sum.IndexDir,
		}
	}
	return nil, output, nil
}

// handleHistory handles the session_history tool invocation.
func (s *Server) handleHistory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input HistoryInput,
) (*mcp.CallToolResult, HistoryOutput, error) {
	sess, err := s.ports.Sessions.Get(ctx, input.SessionID)
	if err != nil {
		return nil, HistoryOutput{}, err
	}

	turns := sess.History.AsSequence()
	output := HistoryOutput{
		SessionID: sess.ID,
		Turns:     make([]TurnOutput, len(turns)),
	}
	for i, t := range turns {
		output.Turns[i] = TurnOutput{Role: string(t.Role), Content: t.Content}
	}
	return nil, output, nil
}
