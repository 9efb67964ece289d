package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *HistoryManager {
	t.Helper()
	manager, err := NewHistoryManager(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	return manager
}

func TestNewHistoryManager(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "history.db")

	_, err := NewHistoryManager(dbPath)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "history_schema_version"))
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(string(data)))

	// Reopening an existing database must not fail.
	_, err = NewHistoryManager(dbPath)
	require.NoError(t, err)
}

func TestAppendAndGet(t *testing.T) {
	manager := newTestManager(t)

	id, err := manager.Append(&QueryRecord{
		SetNames:    "code,docs",
		ModelName:   "gpt4",
		Query:       "what does this do",
		Response:    "It parses things.",
		Temperature: 0.7,
		MaxTokens:   sql.NullInt32{Int32: 512, Valid: true},
		FilesCount:  3,
		TokenCount:  1200,
		DurationMs:  850,
	})
	require.NoError(t, err)
	assert.Len(t, id, 8)

	record, err := manager.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "code,docs", record.SetNames)
	assert.Equal(t, "gpt4", record.ModelName)
	assert.Equal(t, "It parses things.", record.Response)
	assert.Equal(t, int32(512), record.MaxTokens.Int32)
	assert.False(t, record.Incomplete)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestGetNotFound(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.Get("deadbeef")
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "deadbeef", notFound.RecordID)
	assert.Contains(t, err.Error(), "deadbeef")
}

func TestListOrderAndLimit(t *testing.T) {
	manager := newTestManager(t)

	var ids []string
	for _, q := range []string{"first", "second", "third"} {
		id, err := manager.Append(&QueryRecord{Query: q, ModelName: "gpt4"})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	records, err := manager.List(10)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "third", records[0].Query)
	assert.Equal(t, "second", records[1].Query)
	assert.Equal(t, "first", records[2].Query)
	assert.Equal(t, ids[2], records[0].RecordID)

	records, err = manager.List(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestExport(t *testing.T) {
	manager := newTestManager(t)

	id, err := manager.Append(&QueryRecord{
		SetNames:    "code",
		ModelName:   "claude",
		Query:       "summarize",
		Response:    "A short summary.",
		Temperature: 0.7,
		FilesCount:  2,
		TokenCount:  400,
	})
	require.NoError(t, err)

	t.Run("text contains only the response body", func(t *testing.T) {
		out, err := manager.Export(id, FormatText)
		require.NoError(t, err)
		assert.Equal(t, "A short summary.", string(out))
	})

	t.Run("json round-trips the full record", func(t *testing.T) {
		out, err := manager.Export(id, FormatJSON)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(out, &decoded))
		assert.Equal(t, id, decoded["id"])
		assert.Equal(t, "code", decoded["sets"])
		assert.Equal(t, "claude", decoded["model"])
		assert.Equal(t, "summarize", decoded["query"])
		assert.Equal(t, "A short summary.", decoded["response"])
		assert.NotContains(t, decoded, "max_tokens")
	})

	t.Run("markdown includes metadata and response heading", func(t *testing.T) {
		out, err := manager.Export(id, FormatMarkdown)
		require.NoError(t, err)
		text := string(out)
		assert.Contains(t, text, "# Query: summarize")
		assert.Contains(t, text, "**ID:** "+id)
		assert.Contains(t, text, "**Sets:** code")
		assert.Contains(t, text, "**Model:** claude")
		assert.Contains(t, text, "## Response\n\nA short summary.")
	})

	t.Run("unknown id is a not found error", func(t *testing.T) {
		_, err := manager.Export("nope1234", FormatJSON)
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want ExportFormat
	}{
		{"out.json", FormatJSON},
		{"notes/result.MD", FormatMarkdown},
		{"answer.txt", FormatText},
		{"no_extension", FormatText},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFromPath(tt.path), tt.path)
	}
}
