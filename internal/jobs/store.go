package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"archivist/internal/config"
)

// ErrNotFound indicates the requested job row does not exist.
var ErrNotFound = errors.New("job not found")

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the archivist database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the shared database handle for the settings and bookmark
// stores, which live in the same file.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Create inserts a new job row. The options snapshot travels as an opaque
// JSON blob. Creation failure must leave no trace of the job anywhere, so
// callers insert before admitting the job to any in-memory structure.
func (s *Store) Create(ctx context.Context, job *Job, optionsJSON string) error {
	if job == nil {
		return errors.New("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, kind, status, identifier, file_name, dest_dir,
            progress, total_bytes, transferred_bytes, rate_bps,
            error_message, options_json, created_at, started_at, completed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		string(job.Kind),
		string(job.Status),
		job.Identifier,
		nullableString(job.FileName),
		nullableString(job.DestDir),
		job.Progress,
		nullableInt64(job.TotalBytes),
		job.TransferredBytes,
		job.RateBPS,
		nullableString(job.ErrorMessage),
		nullableString(optionsJSON),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID fetches a job row by identifier. Returns ErrNotFound when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// MarkRunning writes the pending→running transition in one statement.
func (s *Store) MarkRunning(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(StatusRunning),
		startedAt.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return nil
}

// MarkTerminal writes a terminal transition in one statement: status,
// completion time, final progress fields, and the error message when set.
func (s *Store) MarkTerminal(ctx context.Context, job *Job, completedAt time.Time) error {
	if job == nil {
		return errors.New("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, completed_at = ?,
             progress = ?, total_bytes = ?, transferred_bytes = ?, rate_bps = ?
         WHERE id = ?`,
		string(job.Status),
		nullableString(job.ErrorMessage),
		completedAt.UTC().Format(time.RFC3339Nano),
		job.Progress,
		nullableInt64(job.TotalBytes),
		job.TransferredBytes,
		job.RateBPS,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("mark terminal: %w", err)
	}
	return nil
}

// History returns terminal jobs ordered newest first. A non-positive limit
// falls back to 50.
func (s *Store) History(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE status IN (?, ?, ?)
         ORDER BY created_at DESC LIMIT ?`,
		string(StatusCompleted),
		string(StatusFailed),
		string(StatusCancelled),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkInterrupted fails every row still marked pending or running in one
// bulk update. Such rows can only exist because a previous process
// instance terminated abnormally.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, completed_at = ?
         WHERE status IN (?, ?)`,
		string(StatusFailed),
		InterruptedMessage,
		now,
		string(StatusPending),
		string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal deletes all terminal rows and reports how many were removed.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		string(StatusCompleted),
		string(StatusFailed),
		string(StatusCancelled),
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns a count of jobs grouped by status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, kind, status, identifier, file_name, dest_dir, progress, total_bytes, transferred_bytes, rate_bps, error_message, created_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id           string
		kind         string
		statusStr    string
		identifier   string
		fileName     sql.NullString
		destDir      sql.NullString
		progress     sql.NullFloat64
		totalBytes   sql.NullInt64
		transferred  sql.NullInt64
		rate         sql.NullFloat64
		errorMessage sql.NullString
		createdRaw   sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&kind,
		&statusStr,
		&identifier,
		&fileName,
		&destDir,
		&progress,
		&totalBytes,
		&transferred,
		&rate,
		&errorMessage,
		&createdRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		Kind:             Kind(kind),
		Status:           Status(statusStr),
		Identifier:       identifier,
		FileName:         fileName.String,
		DestDir:          destDir.String,
		Progress:         progress.Float64,
		TransferredBytes: transferred.Int64,
		RateBPS:          rate.Float64,
		ErrorMessage:     errorMessage.String,
	}
	if totalBytes.Valid {
		v := totalBytes.Int64
		job.TotalBytes = &v
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
