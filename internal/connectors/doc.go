// Package connectors provides implementations of the DocumentSource interface
// for corpus providers. Each connector knows how to fetch documents from a
// specific source type (a local directory, a GitHub repository) and turns
// them into text through the normaliser registry.
package connectors
