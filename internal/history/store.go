// Package history persists focus-change dispatch outcomes to a local
// sqlite database for later inspection. It observes the engine; it never
// influences focus decisions.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultDBName = "history.db"
	defaultDBDir  = ".config/hoverfocus"
)

// FocusChange records one dispatch attempt.
type FocusChange struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	Window    uint32    `gorm:"not null;index" json:"window"`
	Class     string    `json:"class"`
	Success   bool      `gorm:"not null" json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Store wraps the sqlite-backed history database.
type Store struct {
	db *gorm.DB
}

// DefaultDBPath returns the default history database location, creating
// its directory if needed.
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dbDir := filepath.Join(homeDir, defaultDBDir)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return filepath.Join(dbDir, defaultDBName), nil
}

// Open opens (and migrates) the history database. An empty path selects
// the default location.
func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}
	if err := db.AutoMigrate(&FocusChange{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate history schema")
	}

	return &Store{db: db}, nil
}

// Record inserts a focus change.
func (s *Store) Record(change *FocusChange) error {
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}
	if result := s.db.Create(change); result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert focus change")
	}
	return nil
}

// Recent returns the most recent focus changes, newest first.
func (s *Store) Recent(limit int) ([]FocusChange, error) {
	if limit <= 0 {
		limit = 50
	}
	var changes []FocusChange
	result := s.db.Order("timestamp DESC").Limit(limit).Find(&changes)
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query focus changes")
	}
	return changes, nil
}

// Prune deletes focus changes older than the given time and returns how
// many rows went away.
func (s *Store) Prune(before time.Time) (int64, error) {
	result := s.db.Where("timestamp < ?", before).Delete(&FocusChange{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to prune focus changes")
	}
	return result.RowsAffected, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying sql.DB")
	}
	return sqlDB.Close()
}
