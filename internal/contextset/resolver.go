// Package contextset expands named context sets into concrete file
// lists. Sets select files through glob patterns and compose through
// include references; resolution walks the include graph depth-first,
// detecting cycles and deduplicating files by canonical path while
// preserving first-discovery order.
package contextset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/config"
)

// ResolvedContext is the result of resolving one or more set names: an
// ordered list of distinct absolute file paths. File existence is checked
// at assembly time, not here.
type ResolvedContext struct {
	// SetNames are the top-level names that were requested, in order.
	SetNames []string

	// Files are absolute paths in first-discovery order, deduplicated by
	// canonical path.
	Files []string
}

// Resolver expands set names against a configuration and a glob matcher.
type Resolver struct {
	cfg     *config.Config
	matcher Matcher
	logger  *zap.Logger
}

// NewResolver creates a resolver for the given configuration. A nil
// matcher defaults to GlobMatcher; a nil logger defaults to a no-op.
func NewResolver(cfg *config.Config, matcher Matcher, logger *zap.Logger) *Resolver {
	if matcher == nil {
		matcher = GlobMatcher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cfg:     cfg,
		matcher: matcher,
		logger:  logger,
	}
}

// SplitNames parses a comma-separated set name list into trimmed,
// non-empty names, preserving order.
func SplitNames(names string) []string {
	parts := strings.Split(names, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// resolveState carries the dedup pool shared by every set visited during
// one resolution call.
type resolveState struct {
	seen  map[string]bool
	files []string
}

// Resolve expands the requested set names against root. Requesting
// multiple names is equivalent to resolving a synthetic set that includes
// each of them in order: all contribute to one dedup pool.
//
// Resolution fails with UnknownSetError if any name does not exist and
// with CyclicIncludeError if the include graph contains a cycle reachable
// from a requested set. No partial context is returned on failure.
func (r *Resolver) Resolve(names []string, root string) (*ResolvedContext, error) {
	if root == "" {
		root = r.cfg.BaseDir
	}

	state := &resolveState{seen: make(map[string]bool)}
	for _, name := range names {
		if err := r.expand(name, root, state, nil); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("resolved context sets",
		zap.Strings("sets", names),
		zap.Int("files", len(state.files)),
	)

	return &ResolvedContext{
		SetNames: names,
		Files:    state.files,
	}, nil
}

// expand visits one set: glob patterns first in declared order, then
// includes recursively. stack holds the names currently being visited on
// this recursion path, used to report cycles.
func (r *Resolver) expand(name string, root string, state *resolveState, stack []string) error {
	set := r.cfg.GetSet(name)
	if set == nil {
		return &UnknownSetError{Name: name, Suggestion: r.suggest(name)}
	}

	for _, visiting := range stack {
		if visiting == name {
			return &CyclicIncludeError{Cycle: cycleFrom(stack, name)}
		}
	}
	stack = append(stack, name)

	for _, pattern := range set.Match {
		matches, err := r.matcher.Match(root, pattern)
		if err != nil {
			return fmt.Errorf("glob pattern %q in set '%s': %w", pattern, name, err)
		}
		for _, rel := range matches {
			canonical := filepath.Clean(filepath.Join(root, filepath.FromSlash(rel)))
			if !state.seen[canonical] {
				state.seen[canonical] = true
				state.files = append(state.files, canonical)
			}
		}
	}

	for _, include := range set.Include {
		if err := r.expand(include, root, state, stack); err != nil {
			return err
		}
	}

	return nil
}

// cycleFrom trims the visiting stack to the part forming the cycle and
// closes it with the repeated name.
func cycleFrom(stack []string, name string) []string {
	start := 0
	for i, visiting := range stack {
		if visiting == name {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	cycle = append(cycle, stack[start:]...)
	return append(cycle, name)
}

// suggest returns the closest known set name for an unknown identifier,
// or an empty string when nothing matches.
func (r *Resolver) suggest(name string) string {
	known := lo.Keys(r.cfg.Sets)
	sort.Strings(known)

	matches := fuzzy.Find(name, known)
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}
