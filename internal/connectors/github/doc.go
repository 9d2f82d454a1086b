// Package github implements a document source for GitHub repositories.
//
// The source reads the text files of one repository at one ref. It fetches
// the file list with the recursive Trees API and each file's content with
// the Blobs API, then extracts text through the normaliser registry.
//
// # Authentication
//
// A personal access token is optional. Without one, public repositories can
// be read within GitHub's unauthenticated limit of 60 requests per hour.
// Private repositories need a token with 'repo' scope.
//
// # Rate Limiting
//
// The client implements a dual-strategy rate limiting approach:
//
//  1. Proactive throttling: a token bucket limits requests to approximately
//     1.2 requests per second, staying under the 5,000/hour limit.
//
//  2. Reactive handling: the client tracks X-RateLimit-Remaining and
//     X-RateLimit-Reset headers. When the quota is nearly exhausted it waits
//     until the reset time before continuing.
//
// # Limitations
//
//   - Binary files are not indexed (text and PDF content only)
//   - File size limit: 1MB per file
//   - Truncated trees (very large repositories) are read as far as GitHub returns them
//
// # Example Usage
//
//	spec, _ := github.ParseRepo("golang/go@master")
//	source := github.New(github.NewClient(ctx, token), spec, registry)
//	docs, err := source.Documents(ctx)
package github
