package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL. Useful when a team
// shares one verification history instead of per-user SQLite files.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
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
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
func (s *PostgresStore) Upsert(ctx context.Context, rec *Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verification_jobs (
			job_id, class_hash, contract_name, package_name, network,
			status, error_message, scarb_version, cairo_version,
			dojo_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`,
		rec.JobID, rec.ClassHash, rec.ContractName, rec.PackageName,
		rec.Network, rec.Status, rec.ErrorMessage, rec.ScarbVersion,
		rec.CairoVersion, rec.DojoVersion,
		rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upserting job %s: %w", rec.JobID, err)
	}
	return nil
}

// Get fetches a record by job ID.
func (s *PostgresStore) Get(ctx context.Context, jobID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, class_hash, contract_name, package_name, network,
		       status, error_message, scarb_version, cairo_version,
		       dojo_version, created_at, updated_at
		FROM verification_jobs WHERE job_id = $1`, jobID)

	var rec Record
	err := row.Scan(&rec.JobID, &rec.ClassHash, &rec.ContractName,
		&rec.PackageName, &rec.Network, &rec.Status, &rec.ErrorMessage,
		&rec.ScarbVersion, &rec.CairoVersion, &rec.DojoVersion,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("getting job %s: %w", jobID, err)
	}
	return &rec, nil
}

// List returns records matching the filter, newest first.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT job_id, class_hash, contract_name, package_name, network,
		       status, error_message, scarb_version, cairo_version,
		       dojo_version, created_at, updated_at
		FROM verification_jobs`

	var conditions []string
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Network != "" {
		args = append(args, filter.Network)
		conditions = append(conditions, fmt.Sprintf("network = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		err := rows.Scan(&rec.JobID, &rec.ClassHash, &rec.ContractName,
			&rec.PackageName, &rec.Network, &rec.Status, &rec.ErrorMessage,
			&rec.ScarbVersion, &rec.CairoVersion, &rec.DojoVersion,
			&rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning job record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes records whose creation time is further in the
// past than age, returning the number removed.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM verification_jobs WHERE created_at < $1",
		time.Now().Add(-age).UTC())
	if err != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAll removes every record.
func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM verification_jobs")
	if err != nil {
		return 0, fmt.Errorf("deleting all jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns record counts grouped by status.
func (s *PostgresStore) Stats(ctx context.Context) (map[string]int, error) {
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
func (s *PostgresStore) SuccessDurations(ctx context.Context, limit int) ([]time.Duration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT created_at, updated_at FROM verification_jobs
		WHERE status = 'Success'
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying successful jobs: %w", err)
	}
	defer rows.Close()

	var durations []time.Duration
	for rows.Next() {
		var created, updated time.Time
		if err := rows.Scan(&created, &updated); err != nil {
			return nil, err
		}
		if updated.Before(created) {
			continue
		}
		durations = append(durations, updated.Sub(created))
	}
	return durations, rows.Err()
}
