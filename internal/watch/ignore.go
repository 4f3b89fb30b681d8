package watch

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// IgnoreFile lists extra gitignore-style patterns at the store root.
const IgnoreFile = ".repeatignore"

// defaultPatterns are never tables of the store: editor and sync
// droppings, partial downloads and VCS metadata.
var defaultPatterns = []string{
	".git",
	".DS_Store",
	"*.swp",
	"*.swx",
	"*~",
	".#*",
	"*.tmp",
	"*.part",
	"*.lock",
}

// IgnoreFilter decides which store changes are irrelevant.
type IgnoreFilter struct {
	root     string
	patterns []gitignore.Pattern
}

// NewIgnoreFilter creates a filter for root with the default patterns and
// those of root/.repeatignore, if present.
func NewIgnoreFilter(root string) (*IgnoreFilter, error) {
	f := &IgnoreFilter{root: root}

	for _, p := range defaultPatterns {
		f.patterns = append(f.patterns, gitignore.ParsePattern(p, nil))
	}

	file, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		f.patterns = append(f.patterns, gitignore.ParsePattern(line, nil))
	}
	return f, scanner.Err()
}

// ShouldIgnore reports whether a change at path can be skipped. The last
// matching pattern decides, so "!" patterns re-include.
func (f *IgnoreFilter) ShouldIgnore(path string, isDir bool) bool {
	relPath, err := filepath.Rel(f.root, path)
	if err != nil || relPath == "." {
		return false
	}

	parts := strings.Split(filepath.ToSlash(relPath), "/")
	ignored := false
	for _, pattern := range f.patterns {
		switch pattern.Match(parts, isDir) {
		case gitignore.Exclude:
			ignored = true
		case gitignore.Include:
			ignored = false
		}
	}
	return ignored
}
