package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bkup-go/internal/bk"
	"bkup-go/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements bk.Database using SQLite.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens the database at path and applies pending
// migrations. path can be a file path or ":memory:".
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database (%s): %w", pragma, err)
		}
	}
	return db, nil
}

// Registry operations

func (s *SQLiteDatabase) ListItems() ([]bk.BackupItem, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT path, is_dir FROM items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []bk.BackupItem
	for rows.Next() {
		var item bk.BackupItem
		if err := rows.Scan(&item.Path, &item.IsDir); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteDatabase) InsertItem(item bk.BackupItem, addedAt time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO items (path, is_dir, added_at) VALUES (?, ?, ?)",
		item.Path, item.IsDir, addedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteItem(path string) (bool, error) {
	res, err := s.db.ExecContext(context.Background(), "DELETE FROM items WHERE path = ?", path)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) GetSetting(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(), "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteDatabase) PutSetting(key, value string) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// Job history

func (s *SQLiteDatabase) CreateJob(job *bk.BackupJob) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO jobs (id, destination, item_count, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Destination, len(job.Items), bk.JobRunning, job.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FinishJob(id string, status string, summary bk.Summary, finishedAt time.Time) error {
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE jobs SET
		   status = ?, finished_at = ?,
		   files_copied = ?, folders_created = ?, files_skipped = ?, files_failed = ?, bytes_copied = ?
		 WHERE id = ?`,
		status, finishedAt.UTC(),
		summary.FilesCopied, summary.FoldersCreated, summary.FilesSkipped, summary.FilesFailed, summary.BytesCopied,
		id,
	)
	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing job: %w: %s", bk.ErrNotFound, id)
	}
	return nil
}

func (s *SQLiteDatabase) ListJobs(limit int) ([]*bk.JobRecord, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, destination, item_count, status, started_at, finished_at,
		        files_copied, folders_created, files_skipped, files_failed, bytes_copied
		 FROM jobs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*bk.JobRecord
	for rows.Next() {
		var j bk.JobRecord
		err := rows.Scan(
			&j.ID, &j.Destination, &j.ItemCount, &j.Status, &j.StartedAt, &j.FinishedAt,
			&j.Summary.FilesCopied, &j.Summary.FoldersCreated, &j.Summary.FilesSkipped,
			&j.Summary.FilesFailed, &j.Summary.BytesCopied,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		j.Summary.Destination = j.Destination
		j.Summary.Aborted = j.Status == bk.JobAborted
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// SchemaStatus reports the applied schema version.
func (s *SQLiteDatabase) SchemaStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ bk.Database = (*SQLiteDatabase)(nil)
