package filesystem

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the project-specific ignore file read alongside .gitignore.
const IgnoreFileName = ".ragchatignore"

// defaultIgnorePatterns excludes dependency and build trees.
var defaultIgnorePatterns = []string{
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	"*.log",
	"*.tmp",
	"*.swp",
	"*~",
}

// ignoreMatcher applies gitignore rules relative to a root directory.
type ignoreMatcher struct {
	root     string
	patterns *gitignore.GitIgnore
}

// newIgnoreMatcher reads .gitignore and .ragchatignore under root.
func newIgnoreMatcher(root string) (*ignoreMatcher, error) {
	var patterns []string
	for _, name := range []string{".gitignore", IgnoreFileName} {
		lines, err := readIgnoreFile(filepath.Join(root, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		patterns = append(patterns, lines...)
	}
	patterns = append(patterns, defaultIgnorePatterns...)

	return &ignoreMatcher{
		root:     root,
		patterns: gitignore.CompileIgnoreLines(patterns...),
	}, nil
}

// Ignored reports whether path (absolute or root-relative) is excluded.
func (m *ignoreMatcher) Ignored(path string) bool {
	if m == nil || m.patterns == nil {
		return false
	}
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(m.root, path)
		if err != nil {
			return false
		}
		path = rel
	}
	return m.patterns.MatchesPath(filepath.ToSlash(path))
}

// readIgnoreFile returns the non-comment lines of an ignore file.
// A missing file yields no patterns.
func readIgnoreFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
