package bk

import "time"

// Database provides an interface for metadata storage operations.
type Database interface {
	// Registry operations

	// ListItems returns the selected sources in the order they were added.
	ListItems() ([]BackupItem, error)

	// InsertItem appends a source to the selection.
	InsertItem(item BackupItem, addedAt time.Time) error

	// DeleteItem removes a source. It reports whether a row was removed.
	DeleteItem(path string) (bool, error)

	// GetSetting returns a stored setting; ok is false when it is unset.
	GetSetting(key string) (value string, ok bool, err error)

	// PutSetting stores or replaces a setting.
	PutSetting(key, value string) error

	// Job history operations

	// CreateJob records the start of a run with status JobRunning.
	CreateJob(job *BackupJob) error

	// FinishJob stores the final status and totals of a run.
	FinishJob(id string, status string, summary Summary, finishedAt time.Time) error

	// ListJobs returns the most recent runs, newest first.
	ListJobs(limit int) ([]*JobRecord, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
