// Package history persists verification job records so past runs can be
// listed, re-checked and used for duration estimates.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when no record exists for a job ID.
var ErrNotFound = errors.New("job record not found")

// Record is one persisted verification job. Records are created on
// submission and updated on every observed status change; they are never
// deleted except by explicit user action.
type Record struct {
	JobID        string
	ClassHash    string
	ContractName string
	PackageName  string
	Network      string
	Status       string
	ErrorMessage string
	ScarbVersion string
	CairoVersion string
	DojoVersion  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Duration is the wall-clock time between record creation and its last
// update.
func (r *Record) Duration() time.Duration {
	return r.UpdatedAt.Sub(r.CreatedAt)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status  string
	Network string
	Limit   int
}

// Store persists and queries job records. All writes are upserts keyed
// by job ID, so repeated updates for the same job are idempotent.
type Store interface {
	Upsert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, jobID string) (*Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (map[string]int, error)
	// SuccessDurations returns the durations of the most recent limit
	// successfully completed jobs, newest first.
	SuccessDurations(ctx context.Context, limit int) ([]time.Duration, error)

	Close() error
	Migrate(ctx context.Context) error
}

// Config selects and configures the history backend.
type Config struct {
	// Backend is "sqlite" (default) or "postgres".
	Backend string
	// Path is the SQLite database file location; defaults to
	// ~/.starkverify/history.db.
	Path string
	// PostgresURL is the connection string for the postgres backend,
	// used by teams sharing one verification history.
	PostgresURL string
}

// DefaultPath returns the per-user history database location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".starkverify", "history.db")
	}
	return filepath.Join(home, ".starkverify", "history.db")
}

// New creates a store based on configuration.
func New(cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = DefaultPath()
		}
		return NewSQLiteStore(path, logger)
	case "postgres":
		return NewPostgresStore(cfg.PostgresURL, logger)
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}
