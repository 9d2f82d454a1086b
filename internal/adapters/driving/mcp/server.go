package mcp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for ragchat.
type Server struct {
	ports  *Ports
	server *mcp.Server

	mu      sync.Mutex
	indexes map[string]domain.Retriever
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "ragchat",
		Version: Version,
	}

	s := &Server{
		ports:   ports,
		server:  mcp.NewServer(impl, nil),
		indexes: make(map[string]domain.Retriever),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// openIndex returns the index at dir, opening it on first use.
func (s *Server) openIndex(ctx context.Context, dir string) (domain.Retriever, error) {
	if s.ports.Index == nil {
		return nil, fmt.Errorf("%w: index service not configured", domain.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.indexes[dir]; ok {
		return idx, nil
	}
	idx, err := s.ports.Index.Open(ctx, dir)
	if err != nil {
		return nil, err
	}
	s.indexes[dir] = idx
	return idx, nil
}
