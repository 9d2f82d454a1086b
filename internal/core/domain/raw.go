package domain

// RawDocument is file content as fetched from a source, before text extraction.
type RawDocument struct {
	// ID identifies the document within its source (relative path, repo path, ...).
	ID string

	// URI is the original location.
	URI string

	// MIMEType is the detected content type.
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains source-specific key-value pairs carried onto the Document.
	Metadata map[string]string
}
