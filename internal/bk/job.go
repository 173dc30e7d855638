package bk

import (
	"database/sql"
	"time"
)

// BackupItem is a selected source. Identity is the normalized absolute path.
type BackupItem struct {
	Path  string
	IsDir bool
}

// BackupJob is the immutable snapshot of the registry taken when a run starts.
type BackupJob struct {
	ID          string
	Items       []BackupItem
	Destination string
	CreatedAt   time.Time
}

// Summary reports the totals of a run.
// Every log entry is counted exactly once: FilesCopied + FilesSkipped equals
// the number of entries written. FilesFailed is the subset of FilesSkipped
// that ended in an error.
type Summary struct {
	FilesCopied    int
	FoldersCreated int
	FilesSkipped   int
	FilesFailed    int
	BytesCopied    int64
	Destination    string
	Aborted        bool
}

// Job statuses recorded in the history.
const (
	JobRunning = "running"
	JobSuccess = "success"
	JobAborted = "aborted"
	JobFailed  = "failed"
)

// JobRecord is a persisted run.
type JobRecord struct {
	ID          string
	Destination string
	ItemCount   int
	Status      string
	StartedAt   time.Time
	FinishedAt  sql.NullTime
	Summary     Summary
}
