package normalisers

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/ragchat/internal/core/domain"
	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Registry selects the highest-priority normaliser for a MIME type.
type Registry struct {
	byMIME map[string]driven.Normaliser
}

// NewRegistry creates a registry from normalisers.
func NewRegistry(normalisers ...driven.Normaliser) *Registry {
	r := &Registry{byMIME: make(map[string]driven.Normaliser)}
	for _, n := range normalisers {
		r.Register(n)
	}
	return r
}

// Register adds n for each MIME type it supports, replacing lower-priority entries.
func (r *Registry) Register(n driven.Normaliser) {
	for _, mt := range n.SupportedMIMETypes() {
		if existing, ok := r.byMIME[mt]; ok && existing.Priority() >= n.Priority() {
			continue
		}
		r.byMIME[mt] = n
	}
}

// Supports reports whether a normaliser is registered for mimeType.
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.byMIME[mimeType]
	return ok
}

// Normalise extracts text from raw with the matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	n, ok := r.byMIME[raw.MIMEType]
	if !ok {
		return nil, fmt.Errorf("no normaliser for %s", raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}

// extMIMETypes maps file extensions to MIME types for common types not in Go's registry.
var extMIMETypes = map[string]string{
	".md": "text/markdown", ".markdown": "text/markdown",
	".txt": "text/plain", ".pdf": "application/pdf",
	".go": "text/x-go", ".py": "text/x-python", ".rs": "text/x-rust",
	".ts": "text/typescript", ".tsx": "text/typescript-jsx", ".jsx": "text/javascript-jsx",
	".yaml": "text/yaml", ".yml": "text/yaml", ".toml": "text/toml",
	".sh": "text/x-shellscript", ".bash": "text/x-shellscript",
	".sql": "text/x-sql", ".rb": "text/x-ruby", ".java": "text/x-java",
	".c": "text/x-c", ".h": "text/x-c", ".cpp": "text/x-c++",
	".csv": "text/csv", ".json": "application/json", ".xml": "application/xml",
}

// DetectMIMEType determines the MIME type from a file extension.
// Files without an extension are assumed to be plain text.
func DetectMIMEType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "text/plain"
	}

	// Check our custom mappings first (avoids Go's mime returning video/mp2t for .ts)
	if t, ok := extMIMETypes[strings.ToLower(ext)]; ok {
		return t
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType != "" {
		// Strip charset and other parameters.
		if idx := strings.Index(mimeType, ";"); idx != -1 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		return mimeType
	}

	return "application/octet-stream"
}

// TitleFromPath derives a human-readable title from a file name.
func TitleFromPath(uri string) string {
	filename := filepath.Base(uri)
	if ext := filepath.Ext(filename); ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")
	return filename
}
