package history

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ExportFormat selects how a record is rendered when saved to a file.
type ExportFormat int

const (
	// FormatText writes only the response body.
	FormatText ExportFormat = iota
	// FormatJSON writes the full record as structured JSON.
	FormatJSON
	// FormatMarkdown writes a readable document with metadata and response.
	FormatMarkdown
)

// FormatFromPath picks the export format from the destination file
// extension. Unknown extensions fall back to plain text.
func FormatFromPath(path string) ExportFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatText
	}
}

type exportedRecord struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Sets        string    `json:"sets"`
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Query       string    `json:"query"`
	Response    string    `json:"response"`
	Temperature float64   `json:"temperature"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	FilesCount  int       `json:"files_count"`
	TokenCount  int       `json:"token_count"`
	DurationMs  int64     `json:"duration_ms"`
	Incomplete  bool      `json:"incomplete"`
}

// Export renders the record identified by recordID in the given format.
func (m *HistoryManager) Export(recordID string, format ExportFormat) ([]byte, error) {
	record, err := m.Get(recordID)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON:
		return exportJSON(record)
	case FormatMarkdown:
		return exportMarkdown(record), nil
	default:
		return []byte(record.Response), nil
	}
}

func exportJSON(record *QueryRecord) ([]byte, error) {
	out := exportedRecord{
		ID:          record.RecordID,
		CreatedAt:   record.CreatedAt,
		Sets:        record.SetNames,
		Model:       record.ModelName,
		System:      record.SystemPrompt,
		Query:       record.Query,
		Response:    record.Response,
		Temperature: record.Temperature,
		FilesCount:  record.FilesCount,
		TokenCount:  record.TokenCount,
		DurationMs:  record.DurationMs,
		Incomplete:  record.Incomplete,
	}
	if record.MaxTokens.Valid {
		v := int(record.MaxTokens.Int32)
		out.MaxTokens = &v
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding history entry: %w", err)
	}
	return data, nil
}

func exportMarkdown(record *QueryRecord) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Query: %s\n\n", record.Query)
	fmt.Fprintf(&b, "**ID:** %s\n\n", record.RecordID)
	fmt.Fprintf(&b, "**Date:** %s\n\n", record.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Sets:** %s\n\n", record.SetNames)
	fmt.Fprintf(&b, "**Model:** %s\n\n", record.ModelName)
	if record.Incomplete {
		b.WriteString("**Incomplete:** response was cut short\n\n")
	}
	b.WriteString("## Response\n\n")
	b.WriteString(record.Response)
	if !strings.HasSuffix(record.Response, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String())
}
