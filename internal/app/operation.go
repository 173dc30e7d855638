package app

import (
	"strings"
	"time"
)

// Operation statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation describes the CLI command an app instance was opened for.
// It is logged when the app opens and again, with its status and duration,
// when it closes.
type Operation struct {
	Name      string
	Args      []string
	Status    string
	Err       error
	StartedAt time.Time
}

// NewOperation creates an operation that succeeds unless Fail is called.
func NewOperation(name string, args []string, now time.Time) *Operation {
	return &Operation{
		Name:      name,
		Args:      args,
		Status:    StatusSuccess,
		StartedAt: now,
	}
}

// Fail marks the operation as failed. The first error is kept.
func (op *Operation) Fail(err error) {
	if err == nil || op.Err != nil {
		return
	}
	op.Status = StatusError
	op.Err = err
}

// LogArgs returns key/value pairs describing the finished operation.
func (op *Operation) LogArgs(now time.Time) []any {
	args := []any{
		"status", op.Status,
		"duration", now.Sub(op.StartedAt).Round(time.Millisecond),
	}
	if len(op.Args) > 0 {
		args = append(args, "args", strings.Join(op.Args, " "))
	}
	if op.Err != nil {
		args = append(args, "error", op.Err)
	}
	return args
}
