package history

import (
	"context"
	"errors"
	"fmt"

	"backup-verifier/core/database"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit is the number of runs List returns when no limit is given.
const DefaultListLimit = 20

// Config holds configuration for the run history.
type Config struct {
	// Enabled persists every run to the configured database.
	Enabled bool `mapstructure:"enabled" default:"false"`
	// AutoMigrate creates or updates the history tables on startup.
	AutoMigrate bool `mapstructure:"auto_migrate" default:"true"`
}

// Store persists runs with GORM.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the history tables.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Run{}, &FileRun{}); err != nil {
		return fmt.Errorf("migrate history tables: %w", err)
	}
	return nil
}

// Verify checks that the history tables carry every column the models
// need. It is used instead of Migrate when migrations are managed
// elsewhere.
func (s *Store) Verify() error {
	for _, model := range []any{&Run{}, &FileRun{}} {
		stmt := &gorm.Statement{DB: s.db}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse history model: %w", err)
		}
		missing, err := database.MissingColumns(s.db, stmt.Schema.Table, stmt.Schema.DBNames)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("history table %s is missing columns %v", stmt.Schema.Table, missing)
		}
	}
	return nil
}

// Save stores run and its file results in one transaction.
func (s *Store) Save(ctx context.Context, run *Run) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Files").Create(run).Error; err != nil {
			return err
		}
		if len(run.Files) == 0 {
			return nil
		}
		return tx.CreateInBatches(run.Files, 500).Error
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// List returns the most recent runs, newest first, without file results.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var runs []Run
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its file results.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("relative_path") }).
		Where("run_id = ?", runID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &run, nil
}
