// Package journal implements the append-only backup log. Each attempted file
// is one line of the form "<path> - <outcome>[ - <reason>]". Entries from
// every run accumulate; the file is never truncated.
package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bkup-go/internal/bk"
)

// FileJournal appends entries to a log file.
type FileJournal struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

var _ bk.Journal = (*FileJournal)(nil)

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	return &FileJournal{f: f, w: bufio.NewWriter(f)}, nil
}

// Opener returns a bk.JournalOpener for the log at path.
func Opener(path string) bk.JournalOpener {
	return func() (bk.Journal, error) {
		return Open(path)
	}
}

// lineBreaks keeps each entry on a single line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Append writes one entry and flushes it, so the log is current even if
// the process is killed mid-run.
func (j *FileJournal) Append(entry bk.LogEntry) error {
	line := lineBreaks.Replace(entry.String())

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}

// Tail returns the last n lines of the log at path, oldest first. A missing
// log has no lines. n <= 0 returns every line.
func Tail(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return lines, nil
}

// Memory keeps entries in memory. It is useful for testing.
type Memory struct {
	mu      sync.Mutex
	entries []bk.LogEntry
	closed  int
}

var _ bk.Journal = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

// Opener returns an opener that always appends to m.
func (m *Memory) Opener() bk.JournalOpener {
	return func() (bk.Journal, error) { return m, nil }
}

func (m *Memory) Append(entry bk.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Entries returns a copy of everything appended so far.
func (m *Memory) Entries() []bk.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bk.LogEntry(nil), m.entries...)
}

// Closed returns how many times the journal was closed.
func (m *Memory) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
