// Package assemble renders a resolved file list into the textual context
// blob sent to a model. A file that cannot be read is skipped with a
// warning instead of failing the whole assembly.
package assemble

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dotcontext/dcx/internal/tokens"
)

// Options controls how the context blob is rendered.
type Options struct {
	// HideFilenames omits the per-file path header normally prepended to
	// each file's content block.
	HideFilenames bool

	// BaseDir, when set, is used to display file paths relative to the
	// project root instead of absolute.
	BaseDir string
}

// Result is an assembled context blob plus reporting counters.
type Result struct {
	Context       string
	FilesIncluded int
	FilesSkipped  int
	TokenEstimate int
}

// Assembler reads resolved files and concatenates them into one context
// string.
type Assembler struct {
	logger *zap.Logger
}

// NewAssembler creates an assembler. A nil logger defaults to a no-op.
func NewAssembler(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		logger: logger,
	}
}

// Assemble reads each file and renders it as a block, prefixed with a
// "# <path>" header unless opts.HideFilenames is set. Blocks are joined
// by a newline; the separator is stable across runs for the same input.
// Unreadable files are skipped and counted, not fatal.
func (a *Assembler) Assemble(files []string, opts Options) *Result {
	parts := make([]string, 0, len(files))
	result := &Result{}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			result.FilesSkipped++
			a.logger.Warn("skipping unreadable context file",
				zap.String("file", file),
				zap.Error(err),
			)
			continue
		}

		var block strings.Builder
		if !opts.HideFilenames {
			block.WriteString(fmt.Sprintf("# %s\n\n", a.displayPath(file, opts.BaseDir)))
		}
		block.Write(content)
		block.WriteString("\n\n")

		parts = append(parts, block.String())
		result.FilesIncluded++
	}

	result.Context = strings.Join(parts, "\n")
	result.TokenEstimate = tokens.Estimate(result.Context)
	return result
}

func (a *Assembler) displayPath(file string, baseDir string) string {
	if baseDir == "" {
		return file
	}
	rel, err := filepath.Rel(baseDir, file)
	if err != nil {
		return file
	}
	return rel
}

// BuildPrompt wraps a context blob and a user question into the final
// prompt text sent to the provider.
func BuildPrompt(context string, query string) string {
	if context == "" {
		return query
	}
	return fmt.Sprintf(
		"Below is the context from my project files:\n\n%s\n\nMy question is: %s\n\nPlease respond to my question based on the provided context.",
		context, query,
	)
}
