package github

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Repo identifies a repository and an optional ref.
type Repo struct {
	Owner string
	Name  string

	// Ref is a branch, tag or commit SHA. Empty means the default branch.
	Ref string
}

// String formats the repo as owner/name[@ref].
func (r Repo) String() string {
	if r.Ref == "" {
		return r.Owner + "/" + r.Name
	}
	return r.Owner + "/" + r.Name + "@" + r.Ref
}

// ParseRepo parses "owner/name" or "owner/name@ref".
// A "github.com/" or "https://github.com/" prefix is accepted.
func ParseRepo(s string) (Repo, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, ".git")

	var r Repo
	if at := strings.LastIndex(s, "@"); at >= 0 {
		r.Ref = s[at+1:]
		s = s[:at]
	}

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("%w: %q (want owner/name[@ref])", ErrInvalidRepo, s)
	}
	r.Owner, r.Name = parts[0], parts[1]
	return r, nil
}

// ParsePatterns parses a comma-separated glob patterns string.
func ParsePatterns(s string) []string {
	parts := strings.Split(s, ",")
	patterns := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			patterns = append(patterns, part)
		}
	}
	return patterns
}

// matchesPatterns checks if a path matches any of the glob patterns.
// No patterns matches everything.
func matchesPatterns(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
		// Also try matching against full path
		matched, err = filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
