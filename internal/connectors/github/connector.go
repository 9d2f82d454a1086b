package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-enry/go-enry/v2"
	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
	"github.com/custodia-labs/ragchat/internal/normalisers"
)

// Ensure Source implements the interface.
var _ driven.DocumentSource = (*Source)(nil)

// MaxFileSize skips blobs over 1MB.
const MaxFileSize = 1 << 20

// Source reads the text files of one repository.
type Source struct {
	client   *Client
	repo     Repo
	registry *normalisers.Registry
	patterns []string
}

// New creates a repository source. Patterns restrict files by glob; none means all.
func New(client *Client, repo Repo, registry *normalisers.Registry, patterns ...string) *Source {
	return &Source{
		client:   client,
		repo:     repo,
		registry: registry,
		patterns: patterns,
	}
}

// Name returns owner/name[@ref].
func (s *Source) Name() string {
	return s.repo.String()
}

// Documents fetches every supported file at the ref, ordered by path.
// Files that cannot be fetched or normalised are logged and skipped.
func (s *Source) Documents(ctx context.Context) ([]domain.Document, error) {
	owner, name, ref := s.repo.Owner, s.repo.Name, s.repo.Ref
	if ref == "" {
		repository, err := s.client.GetRepository(ctx, owner, name)
		if err != nil {
			return nil, err
		}
		ref = repository.GetDefaultBranch()
	}

	tree, err := s.client.GetTree(ctx, owner, name, ref)
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		logger.Warn("Tree for %s is truncated; some files will be missing", s.Name())
	}

	var docs []domain.Document
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := entry.GetPath()
		if !s.wanted(entry) {
			continue
		}
		mimeType := normalisers.DetectMIMEType(path)
		if !s.registry.Supports(mimeType) {
			continue
		}

		content, err := s.fetchBlobContent(ctx, entry.GetSHA())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if IsRateLimited(err) {
				return nil, err
			}
			logger.Warn("Skipping %s: %v", path, err)
			continue
		}
		if mimeType != "application/pdf" && enry.IsBinary(content) {
			continue
		}

		doc, ok := s.normalise(ctx, entry, ref, mimeType, content)
		if ok {
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	logger.Debug("Read %d documents from %s", len(docs), s.Name())
	return docs, nil
}

// wanted filters tree entries to visible blobs within the size limit.
func (s *Source) wanted(entry *gh.TreeEntry) bool {
	if entry.GetType() != "blob" {
		return false
	}
	path := entry.GetPath()
	if entry.GetSize() > MaxFileSize {
		return false
	}
	if enry.IsVendor(path) || hidden(path) {
		return false
	}
	return matchesPatterns(path, s.patterns)
}

func (s *Source) normalise(
	ctx context.Context, entry *gh.TreeEntry, ref, mimeType string, content []byte,
) (domain.Document, bool) {
	owner, name, path := s.repo.Owner, s.repo.Name, entry.GetPath()

	raw := &domain.RawDocument{
		ID:       path,
		URI:      buildFileURI(owner, name, ref, path),
		MIMEType: mimeType,
		Content:  content,
		Metadata: map[string]string{
			"owner":    owner,
			"repo":     name,
			"ref":      ref,
			"path":     path,
			"sha":      entry.GetSHA(),
			"size":     strconv.Itoa(entry.GetSize()),
			"html_url": fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, name, ref, path),
		},
	}

	result, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		logger.Warn("Skipping %s: %v", path, err)
		return domain.Document{}, false
	}
	if strings.TrimSpace(result.Text) == "" {
		return domain.Document{}, false
	}

	raw.Metadata["title"] = result.Title
	if lang := enry.GetLanguage(filepath.Base(path), content); lang != "" {
		raw.Metadata["language"] = lang
	}

	return domain.Document{
		ID:       path,
		Text:     result.Text,
		MIMEType: mimeType,
		Metadata: raw.Metadata,
	}, true
}

// hidden reports whether any path element starts with a dot.
func hidden(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// fetchBlobContent fetches the content of a blob and decodes it.
func (s *Source) fetchBlobContent(ctx context.Context, sha string) ([]byte, error) {
	blob, err := s.client.GetBlob(ctx, s.repo.Owner, s.repo.Name, sha)
	if err != nil {
		return nil, err
	}

	if blob.GetEncoding() == "base64" {
		// GitHub wraps base64 content at 60 columns.
		content := strings.ReplaceAll(blob.GetContent(), "\n", "")
		return base64.StdEncoding.DecodeString(content)
	}

	return []byte(blob.GetContent()), nil
}

// buildFileURI creates a URI for a file.
func buildFileURI(owner, repo, ref, path string) string {
	return fmt.Sprintf("github://%s/%s/blob/%s/%s", owner, repo, ref, path)
}
