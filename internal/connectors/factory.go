package connectors

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/connectors/filesystem"
	"github.com/custodia-labs/ragchat/internal/connectors/github"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/normalisers"
	"github.com/custodia-labs/ragchat/internal/normalisers/markdown"
	"github.com/custodia-labs/ragchat/internal/normalisers/pdf"
	"github.com/custodia-labs/ragchat/internal/normalisers/plaintext"
)

// DefaultRegistry returns a registry with every built-in normaliser.
func DefaultRegistry() *normalisers.Registry {
	return normalisers.NewRegistry(plaintext.New(), markdown.New(), pdf.New())
}

// Factory opens document sources by kind, sharing one normaliser registry.
type Factory struct {
	registry      *normalisers.Registry
	githubToken   string
	githubBaseURL string
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithGitHubToken authenticates GitHub requests.
func WithGitHubToken(token string) FactoryOption {
	return func(f *Factory) {
		f.githubToken = token
	}
}

// WithGitHubBaseURL points GitHub sources at another API endpoint (GitHub Enterprise, tests).
func WithGitHubBaseURL(baseURL string) FactoryOption {
	return func(f *Factory) {
		f.githubBaseURL = baseURL
	}
}

// NewFactory creates a source factory. A nil registry uses DefaultRegistry.
func NewFactory(registry *normalisers.Registry, opts ...FactoryOption) *Factory {
	if registry == nil {
		registry = DefaultRegistry()
	}
	f := &Factory{registry: registry}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filesystem returns a source reading the file or directory at root.
func (f *Factory) Filesystem(root string) driven.DocumentSource {
	return filesystem.New(root, f.registry)
}

// GitHub returns a source reading a repository named like "owner/repo[@ref]".
// patterns is a comma-separated list of path globs; empty keeps every file.
func (f *Factory) GitHub(ctx context.Context, spec, patterns string) (driven.DocumentSource, error) {
	repo, err := github.ParseRepo(spec)
	if err != nil {
		return nil, err
	}

	var opts []github.ClientOption
	if f.githubBaseURL != "" {
		opts = append(opts, github.WithBaseURL(f.githubBaseURL))
	}
	client := github.NewClient(ctx, f.githubToken, opts...)

	return github.New(client, repo, f.registry, github.ParsePatterns(patterns)...), nil
}
