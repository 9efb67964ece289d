// Package history is the append-only local record of queries and their
// responses. Records are immutable once written and addressable by a
// short id.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type HistoryManager struct {
	db *gorm.DB
}

// QueryRecord is one logged query/response exchange. Incomplete marks
// records whose response was cut short by cancellation or a mid-stream
// failure; the partial text is still preserved.
type QueryRecord struct {
	ID        uint      `gorm:"primarykey"`
	RecordID  string    `gorm:"uniqueIndex;size:16"`
	CreatedAt time.Time `gorm:"index"`

	SetNames     string
	ModelName    string
	SystemPrompt string
	Query        string
	Response     string
	Temperature  float64
	MaxTokens    sql.NullInt32
	FilesCount   int
	TokenCount   int
	DurationMs   int64
	Incomplete   bool
}

// NotFoundError indicates an unknown record id.
type NotFoundError struct {
	RecordID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("history entry with id '%s' not found", e.RecordID)
}

const historySchemaVersion = 1

func NewHistoryManager(dbFilePath string) (*HistoryManager, error) {
	dbFileExists := true
	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		dbFileExists = false
	} else if err != nil {
		return nil, fmt.Errorf("error checking history db: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbFilePath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("error opening history database: %w", err)
	}

	if needsMigration(dbFileExists, db, dbFilePath) {
		if err := db.AutoMigrate(&QueryRecord{}); err != nil {
			return nil, fmt.Errorf("error auto-migrating history schema: %w", err)
		}
		if err := writeSchemaVersion(dbFilePath, historySchemaVersion); err != nil {
			return nil, fmt.Errorf("error writing history schema version: %w", err)
		}
	}

	return &HistoryManager{
		db: db,
	}, nil
}

func needsMigration(dbFileExists bool, db *gorm.DB, dbFilePath string) bool {
	if !dbFileExists {
		return true
	}

	versionMatches, err := schemaVersionMatches(dbFilePath)
	if err != nil || !versionMatches {
		return true
	}

	// If the version marker is present but the table is missing (corruption or
	// manual deletion), re-run migrations to restore the schema.
	return !db.Migrator().HasTable(&QueryRecord{})
}

func writeSchemaVersion(dbFilePath string, version int) error {
	return os.WriteFile(schemaVersionPath(dbFilePath), []byte(strconv.Itoa(version)), 0644)
}

func schemaVersionMatches(dbFilePath string) (bool, error) {
	data, err := os.ReadFile(schemaVersionPath(dbFilePath))
	if err != nil {
		return false, err
	}
	version, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	if version != historySchemaVersion {
		return false, fmt.Errorf("history schema version mismatch: got %d, want %d", version, historySchemaVersion)
	}
	return true, nil
}

func schemaVersionPath(dbFilePath string) string {
	return filepath.Join(filepath.Dir(dbFilePath), "history_schema_version")
}

// newRecordID generates a short id, the first group of a UUID.
func newRecordID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// Append writes a new record and returns its id. Append is the only
// mutation the store supports.
func (m *HistoryManager) Append(record *QueryRecord) (string, error) {
	record.RecordID = newRecordID()

	result := m.db.Create(record)
	if result.Error != nil {
		return "", result.Error
	}
	return record.RecordID, nil
}

// Get retrieves a record by its short id.
func (m *HistoryManager) Get(recordID string) (*QueryRecord, error) {
	var record QueryRecord
	result := m.db.Where("record_id = ?", recordID).First(&record)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{RecordID: recordID}
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

// List returns up to limit records, most recent first. The store is not
// mutated.
func (m *HistoryManager) List(limit int) ([]QueryRecord, error) {
	var records []QueryRecord
	result := m.db.Order("created_at desc, id desc").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}
