// Package tokens measures text in model tokens with tiktoken.
package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/ragchat/internal/core/ports/driven"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// DefaultEncoding is the BPE used by current OpenAI chat models.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens with a tiktoken encoding.
// Without an encoding it counts whitespace-separated words.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the named encoding. The error is informational: the returned
// Counter is always usable and falls back to word counts when loading failed.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &Counter{}, err
	}
	return &Counter{encoding: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c.encoding == nil {
		return len(strings.Fields(text))
	}
	return len(c.encoding.Encode(text, nil, nil))
}
