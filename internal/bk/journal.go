package bk

import (
	"fmt"
	"strings"
)

// Outcome is the result of one attempted file.
type Outcome string

const (
	OutcomeCopied  Outcome = "copied"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// LogEntry records what happened to one source path during a run.
type LogEntry struct {
	Path    string
	Outcome Outcome
	Reason  string

	// Err is the failure behind an OutcomeError entry. It wraps ErrCopyFailed
	// and is not persisted.
	Err error
}

// String renders the entry as a log line: "<path> - <outcome>[ - <reason>]".
func (e LogEntry) String() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s - %s", e.Path, e.Outcome)
	}
	return fmt.Sprintf("%s - %s - %s", e.Path, e.Outcome, e.Reason)
}

// ParseLogEntry parses a line written by LogEntry.String.
// Paths containing " - " are ambiguous; the outcome is located from the right.
func ParseLogEntry(line string) (LogEntry, error) {
	parts := strings.Split(line, " - ")
	for i := len(parts) - 1; i >= 1; i-- {
		switch o := Outcome(parts[i]); o {
		case OutcomeCopied, OutcomeSkipped, OutcomeError:
			return LogEntry{
				Path:    strings.Join(parts[:i], " - "),
				Outcome: o,
				Reason:  strings.Join(parts[i+1:], " - "),
			}, nil
		}
	}
	return LogEntry{}, fmt.Errorf("malformed log line: %q", line)
}

// Journal is the append-only log of attempted files.
type Journal interface {
	Append(entry LogEntry) error
	Close() error
}

// JournalOpener opens the journal for appending at the start of a run.
type JournalOpener func() (Journal, error)
