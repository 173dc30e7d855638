package bk

import "errors"

// Configuration-time errors returned by the Registry.
var (
	ErrDuplicateEntry = errors.New("duplicate entry")
	ErrNotFound       = errors.New("not found")
	ErrInvalidPath    = errors.New("invalid path")
)

// ErrCopyFailed marks a per-file failure during a run. It is recorded in the
// log and never aborts the job.
var ErrCopyFailed = errors.New("copy failed")

var (
	ErrNoDestination = errors.New("no destination set")
	ErrNoItems       = errors.New("no files or folders selected")
	ErrJobRunning    = errors.New("a backup job is already running")
)
