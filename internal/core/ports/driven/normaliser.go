package driven

import (
	"context"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// Normaliser extracts plain text from raw document content.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority breaks ties when several normalisers accept a MIME type; higher wins.
	Priority() int

	// Normalise extracts the document's text and title.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult is the output of a Normaliser.
type NormaliseResult struct {
	// Text is the extracted plain text.
	Text string

	// Title is a human-readable title derived from the content or file name.
	Title string
}
