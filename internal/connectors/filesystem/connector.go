// Package filesystem provides a document source for local directories and files.
package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-enry/go-enry/v2"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
	"github.com/custodia-labs/ragchat/internal/logger"
	"github.com/custodia-labs/ragchat/internal/normalisers"
)

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

// DefaultMaxFileSize skips files larger than 2 MiB.
const DefaultMaxFileSize = 2 << 20

// Connector reads documents from a directory tree or a single file.
type Connector struct {
	root        string
	registry    *normalisers.Registry
	maxFileSize int64
}

// Option configures a Connector.
type Option func(*Connector)

// WithMaxFileSize overrides the size limit. Zero or less disables it.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) {
		c.maxFileSize = n
	}
}

// New creates a connector rooted at path.
func New(root string, registry *normalisers.Registry, opts ...Option) *Connector {
	c := &Connector{
		root:        root,
		registry:    registry,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the root path.
func (c *Connector) Name() string {
	return c.root
}

// Root returns the root path.
func (c *Connector) Root() string {
	return c.root
}

// Documents walks the root and returns every file with extractable text, ordered by ID.
// IDs are slash-separated paths relative to the root; a single-file root uses its base name.
func (c *Connector) Documents(ctx context.Context) ([]domain.Document, error) {
	info, err := os.Stat(c.root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	if !info.IsDir() {
		doc, ok, err := c.readDocument(ctx, c.root, filepath.Base(c.root), info)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []domain.Document{doc}, nil
	}

	ignore, err := newIgnoreMatcher(c.root)
	if err != nil {
		return nil, err
	}

	var docs []domain.Document
	err = filepath.WalkDir(c.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			logger.Warn("Skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == c.root {
			return nil
		}

		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		if isHidden(rel) || ignore.Ignored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}

		doc, ok, err := c.readDocument(ctx, path, filepath.ToSlash(rel), info)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	logger.Debug("Read %d documents from %s", len(docs), c.root)
	return docs, nil
}

// readDocument loads and normalises one file. ok is false when the file is skipped.
// Only context errors are returned; unreadable files are logged and skipped.
func (c *Connector) readDocument(
	ctx context.Context, path, id string, info fs.FileInfo,
) (doc domain.Document, ok bool, err error) {
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		logger.Debug("Skipping %s: %d bytes exceeds limit", id, info.Size())
		return domain.Document{}, false, nil
	}

	mimeType := normalisers.DetectMIMEType(path)
	if !c.registry.Supports(mimeType) {
		return domain.Document{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Skipping %s: %v", path, err)
		return domain.Document{}, false, nil
	}
	if mimeType != "application/pdf" && enry.IsBinary(content) {
		logger.Debug("Skipping binary file %s", id)
		return domain.Document{}, false, nil
	}

	raw := &domain.RawDocument{
		ID:       id,
		URI:      path,
		MIMEType: mimeType,
		Content:  content,
		Metadata: map[string]string{"path": path},
	}
	result, err := c.registry.Normalise(ctx, raw)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Document{}, false, ctxErr
		}
		logger.Warn("Skipping %s: %v", id, err)
		return domain.Document{}, false, nil
	}
	if strings.TrimSpace(result.Text) == "" {
		return domain.Document{}, false, nil
	}

	raw.Metadata["title"] = result.Title
	if lang := enry.GetLanguage(filepath.Base(path), content); lang != "" {
		raw.Metadata["language"] = lang
	}

	return domain.Document{
		ID:       id,
		Text:     result.Text,
		MIMEType: mimeType,
		Metadata: raw.Metadata,
	}, true, nil
}
