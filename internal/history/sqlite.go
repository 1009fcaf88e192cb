package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS verification_jobs (
		job_id TEXT PRIMARY KEY,
		class_hash TEXT NOT NULL,
		contract_name TEXT,
		package_name TEXT,
		network TEXT NOT NULL,
		status TEXT NOT NULL,
		error_message TEXT,
		scarb_version TEXT,
		cairo_version TEXT,
		dojo_version TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status ON verification_jobs(status);
	CREATE INDEX IF NOT EXISTS idx_jobs_network ON verification_jobs(network);
	CREATE INDEX IF NOT EXISTS idx_jobs_created ON verification_jobs(created_at);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Upsert inserts or updates the record for its job ID.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_jobs (
			job_id, class_hash, contract_name, package_name, network,
			status, error_message, scarb_version, cairo_version,
			dojo_version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		rec.JobID, rec.ClassHash, rec.ContractName, rec.PackageName,
		rec.Network, rec.Status, rec.ErrorMessage, rec.ScarbVersion,
		rec.CairoVersion, rec.DojoVersion,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get fetches a record by job ID.
func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, class_hash, contract_name, package_name, network,
		       status, error_message, scarb_version, cairo_version,
		       dojo_version, created_at, updated_at
		FROM verification_jobs WHERE job_id = ?`, jobID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}
	return rec, nil
}

// List returns records matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT job_id, class_hash, contract_name, package_name, network,
		       status, error_message, scarb_version, cairo_version,
		       dojo_version, created_at, updated_at
		FROM verification_jobs`

	var conditions []string
	var args []any
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Network != "" {
		conditions = append(conditions, "network = ?")
		args = append(args, filter.Network)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes records whose creation time is further in the
// past than age, returning the number removed.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age).UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM verification_jobs WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAll removes every record.
func (s *SQLiteStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM verification_jobs")
	if err != nil {
		return 0, fmt.Errorf("deleting all jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns record counts grouped by status.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM verification_jobs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// SuccessDurations returns the durations of the most recently created
// successful jobs, newest first.
func (s *SQLiteStore) SuccessDurations(ctx context.Context, limit int) ([]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, updated_at FROM verification_jobs
		WHERE status = 'Success'
		ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying successful jobs: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var createdAt, updatedAt string
		if err := rows.Scan(&createdAt, &updatedAt); err != nil {
			return nil, err
		}
		created, err1 := time.Parse(time.RFC3339Nano, createdAt)
		updated, err2 := time.Parse(time.RFC3339Nano, updatedAt)
		if err1 != nil || err2 != nil || updated.Before(created) {
			continue
		}
		durations = append(durations, updated.Sub(created))
	}
	return durations, rows.Err()
}

// scannable covers sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var rec Record
	var createdAt, updatedAt string
	err := row.Scan(&rec.JobID, &rec.ClassHash, &rec.ContractName,
		&rec.PackageName, &rec.Network, &rec.Status, &rec.ErrorMessage,
		&rec.ScarbVersion, &rec.CairoVersion, &rec.DojoVersion,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &rec, nil
}
