// Package tokens provides rough token-count estimation for context
// reporting. The estimates approximate LLM tokenizers by counting words
// and punctuation and may differ from any specific model's tokenizer.
package tokens

import (
	"fmt"
	"os"
	"regexp"
)

var tokenPattern = regexp.MustCompile(`\b\w+\b|[^\w\s]`)

// Estimate returns an approximate token count for the given text.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(tokenPattern.FindAllString(text, -1))
}

// FileStats holds the size and estimated token count of a single file.
type FileStats struct {
	SizeBytes int64
	Tokens    int
}

// EstimateFile returns size and token estimates for a file. Unreadable
// files report zero values rather than an error since the estimates are
// informational only.
func EstimateFile(path string) FileStats {
	info, err := os.Stat(path)
	if err != nil {
		return FileStats{}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return FileStats{SizeBytes: info.Size()}
	}

	return FileStats{
		SizeBytes: info.Size(),
		Tokens:    Estimate(string(content)),
	}
}

// FormatCount formats a token count for display, e.g. "1.2K" for 1200.
func FormatCount(count int) string {
	switch {
	case count < 1000:
		return fmt.Sprintf("%d", count)
	case count < 1000000:
		return fmt.Sprintf("%.1fK", float64(count)/1000)
	default:
		return fmt.Sprintf("%.1fM", float64(count)/1000000)
	}
}
