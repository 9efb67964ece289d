package contextset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcontext/dcx/internal/config"
)

// writeFiles creates the given relative files under root with small
// placeholder contents.
func writeFiles(t *testing.T, root string, paths ...string) {
	t.Helper()
	for _, rel := range paths {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("content of "+rel+"\n"), 0644))
	}
}

func testConfig(sets map[string]*config.ContextSet) *config.Config {
	for name, set := range sets {
		set.Name = name
	}
	return &config.Config{Sets: sets}
}

func TestResolveSingleSet(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "docs/intro.md", "docs/usage.md", "main.py")

	cfg := testConfig(map[string]*config.ContextSet{
		"docs": {Match: []string{"docs/*.md"}},
	})
	resolver := NewResolver(cfg, nil, nil)

	resolved, err := resolver.Resolve([]string{"docs"}, root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "docs", "intro.md"),
		filepath.Join(root, "docs", "usage.md"),
	}, resolved.Files)
}

func TestResolveMultipleSetsPreservesRequestOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "docs/intro.md", "main.py")

	cfg := testConfig(map[string]*config.ContextSet{
		"docs": {Match: []string{"docs/*.md"}},
		"code": {Match: []string{"*.py"}},
	})
	resolver := NewResolver(cfg, nil, nil)

	resolved, err := resolver.Resolve([]string{"docs", "code"}, root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "docs", "intro.md"),
		filepath.Join(root, "main.py"),
	}, resolved.Files)

	t.Run("reversed request reverses order", func(t *testing.T) {
		resolved, err := resolver.Resolve([]string{"code", "docs"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "main.py"),
			filepath.Join(root, "docs", "intro.md"),
		}, resolved.Files)
	})
}

func TestResolveDeduplicatesFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.md")

	t.Run("same pattern twice in one set", func(t *testing.T) {
		cfg := testConfig(map[string]*config.ContextSet{
			"twice": {Match: []string{"a.md", "a.md"}},
		})
		resolved, err := NewResolver(cfg, nil, nil).Resolve([]string{"twice"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "a.md")}, resolved.Files)
	})

	t.Run("two sets matching the same file", func(t *testing.T) {
		cfg := testConfig(map[string]*config.ContextSet{
			"one": {Match: []string{"a.md"}},
			"two": {Match: []string{"*.md"}},
		})
		resolved, err := NewResolver(cfg, nil, nil).Resolve([]string{"one", "two"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "a.md")}, resolved.Files)
	})
}

func TestResolveFollowsIncludesRecursively(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "x.md", "deep.md", "top.py")

	cfg := testConfig(map[string]*config.ContextSet{
		"base":    {Match: []string{"x.md"}, Include: []string{"deeper"}},
		"deeper":  {Match: []string{"deep.md"}},
		"wrapper": {Match: []string{"*.py"}, Include: []string{"base"}},
	})
	resolver := NewResolver(cfg, nil, nil)

	resolved, err := resolver.Resolve([]string{"wrapper"}, root)
	require.NoError(t, err)
	// Own patterns first, then included sets depth-first.
	assert.Equal(t, []string{
		filepath.Join(root, "top.py"),
		filepath.Join(root, "x.md"),
		filepath.Join(root, "deep.md"),
	}, resolved.Files)
}

func TestResolveEquivalentToSyntheticSet(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "docs/intro.md", "main.py")

	cfg := testConfig(map[string]*config.ContextSet{
		"docs": {Match: []string{"docs/*.md"}},
		"code": {Match: []string{"*.py"}},
		"both": {Include: []string{"docs", "code"}},
	})
	resolver := NewResolver(cfg, nil, nil)

	direct, err := resolver.Resolve([]string{"docs", "code"}, root)
	require.NoError(t, err)
	synthetic, err := resolver.Resolve([]string{"both"}, root)
	require.NoError(t, err)

	assert.Equal(t, synthetic.Files, direct.Files)
}

func TestResolveIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.md", "b.md", "c.md")

	cfg := testConfig(map[string]*config.ContextSet{
		"all": {Match: []string{"*.md"}},
	})
	resolver := NewResolver(cfg, nil, nil)

	first, err := resolver.Resolve([]string{"all"}, root)
	require.NoError(t, err)
	second, err := resolver.Resolve([]string{"all"}, root)
	require.NoError(t, err)
	assert.Equal(t, first.Files, second.Files)
}

func TestResolveUnknownSet(t *testing.T) {
	cfg := testConfig(map[string]*config.ContextSet{
		"code": {Match: []string{"*.go"}},
		"docs": {Match: []string{"*.md"}},
	})
	resolver := NewResolver(cfg, nil, nil)

	_, err := resolver.Resolve([]string{"cod"}, t.TempDir())
	var unknownErr *UnknownSetError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "cod", unknownErr.Name)
	assert.Equal(t, "code", unknownErr.Suggestion)
	assert.Contains(t, err.Error(), "did you mean 'code'")
}

func TestResolveUnknownInclude(t *testing.T) {
	cfg := testConfig(map[string]*config.ContextSet{
		"top": {Include: []string{"ghost"}},
	})
	_, err := NewResolver(cfg, nil, nil).Resolve([]string{"top"}, t.TempDir())
	var unknownErr *UnknownSetError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "ghost", unknownErr.Name)
}

func TestResolveCyclicInclude(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "x.md")

	t.Run("self include through base", func(t *testing.T) {
		cfg := testConfig(map[string]*config.ContextSet{
			"base":    {Match: []string{"x.md"}},
			"wrapper": {Include: []string{"base", "wrapper"}},
		})
		_, err := NewResolver(cfg, nil, nil).Resolve([]string{"wrapper"}, root)
		var cycleErr *CyclicIncludeError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"wrapper", "wrapper"}, cycleErr.Cycle)
		assert.Contains(t, err.Error(), "wrapper")
	})

	t.Run("two set cycle", func(t *testing.T) {
		cfg := testConfig(map[string]*config.ContextSet{
			"a": {Include: []string{"b"}},
			"b": {Include: []string{"a"}},
		})
		_, err := NewResolver(cfg, nil, nil).Resolve([]string{"a"}, root)
		var cycleErr *CyclicIncludeError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Cycle)
	})

	t.Run("direct self include", func(t *testing.T) {
		cfg := testConfig(map[string]*config.ContextSet{
			"selfish": {Include: []string{"selfish"}},
		})
		_, err := NewResolver(cfg, nil, nil).Resolve([]string{"selfish"}, root)
		var cycleErr *CyclicIncludeError
		require.ErrorAs(t, err, &cycleErr)
	})

	t.Run("diamond includes are not a cycle", func(t *testing.T) {
		cfg := testConfig(map[string]*config.ContextSet{
			"shared": {Match: []string{"x.md"}},
			"left":   {Include: []string{"shared"}},
			"right":  {Include: []string{"shared"}},
			"top":    {Include: []string{"left", "right"}},
		})
		resolved, err := NewResolver(cfg, nil, nil).Resolve([]string{"top"}, root)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "x.md")}, resolved.Files)
	})
}

func TestResolveDoublestarPattern(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a/one.md", "a/b/two.md", "a/b/c/three.md", "a/skip.txt")

	cfg := testConfig(map[string]*config.ContextSet{
		"deep": {Match: []string{"a/**/*.md"}},
	})
	resolved, err := NewResolver(cfg, nil, nil).Resolve([]string{"deep"}, root)
	require.NoError(t, err)
	assert.Len(t, resolved.Files, 3)
	for _, file := range resolved.Files {
		assert.Equal(t, ".md", filepath.Ext(file))
	}
}

func TestSplitNames(t *testing.T) {
	assert.Equal(t, []string{"code"}, SplitNames("code"))
	assert.Equal(t, []string{"code", "tests"}, SplitNames("code, tests"))
	assert.Equal(t, []string{"a", "b"}, SplitNames(" a ,, b ,"))
	assert.Empty(t, SplitNames(""))
}
