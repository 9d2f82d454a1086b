package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for ragchat resources.
	uriScheme = "ragchat://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing sessions.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sessions",
		Name:        "sessions",
		Description: "List of all conversation sessions",
		MIMEType:    "application/json",
	}, s.handleSessionsResource)

	// Template for a session transcript.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sessions/{sessionId}/history",
		Name:        "session-history",
		Description: "Transcript of a conversation session",
		MIMEType:    "text/plain",
	}, s.handleHistoryResource)
}

// handleSessionsResource returns a list of all sessions.
func (s *Server) handleSessionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type sessionInfo struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Turns    int    `json:"turns"`
		IndexDir string `json:"index_dir,omitempty"`
		URI      string `json:"uri"`
	}

	summaries := s.ports.Sessions.List(ctx)
	infos := make([]sessionInfo, len(summaries))
	for i, sum := range summaries {
		infos[i] = sessionInfo{
			ID:       sum.ID,
			Name:     sum.DisplayName,
			Turns:    sum.Turns,
			IndexDir: sum.IndexDir,
			URI:      uriScheme + "sessions/" + sum.ID + "/history",
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling sessions: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleHistoryResource returns a session's history as a plain text transcript.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract sessionId from URI: ragchat://sessions/{sessionId}/history
	sessionID := extractSessionID(req.Params.URI)
	if sessionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	sess, err := s.ports.Sessions.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     transcript(sess.History.AsSequence()),
		}},
	}, nil
}

// transcript renders turns as "role: content" blocks separated by blank lines.
func transcript(turns []domain.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// extractSessionID extracts the session ID from a URI like ragchat://sessions/{sessionId}/history.
func extractSessionID(uri string) string {
	const prefix = uriScheme + "sessions/"
	const suffix = "/history"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
