package contextset

import (
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher matches glob patterns against a root directory and produces
// relative paths of the matching files. Implementations must return a
// deterministic order for a fixed filesystem state.
type Matcher interface {
	Match(root string, pattern string) ([]string, error)
}

// GlobMatcher is the default Matcher. It supports doublestar ("**")
// patterns and returns regular files only, in lexical walk order.
type GlobMatcher struct{}

func (GlobMatcher) Match(root string, pattern string) ([]string, error) {
	fsys := os.DirFS(root)

	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		info, err := fs.Stat(fsys, match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}
	return files, nil
}
