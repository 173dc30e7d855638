package sink

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"bkup-go/internal/bk"
)

type memoryFile struct {
	data []byte
	meta bk.FileMeta
}

// MemoryDestination keeps copies in memory. It is useful for testing.
// This implementation is safe for concurrent use.
type MemoryDestination struct {
	name  string
	dirs  map[string]bool
	files map[string]memoryFile
	mu    sync.RWMutex
}

// NewMemoryDestination creates an empty in-memory destination.
func NewMemoryDestination(name string) *MemoryDestination {
	return &MemoryDestination{
		name:  name,
		dirs:  make(map[string]bool),
		files: make(map[string]memoryFile),
	}
}

func (m *MemoryDestination) String() string { return "memory://" + m.name }

func (m *MemoryDestination) Validate() error { return nil }

func (m *MemoryDestination) MkdirAll(rel string) (bool, error) {
	rel = filepath.Clean(rel)
	if rel == "." {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[rel]; ok {
		return false, fmt.Errorf("not a directory: %s", rel)
	}
	if m.dirs[rel] {
		return false, nil
	}
	for p := rel; p != "."; p = filepath.Dir(p) {
		m.dirs[p] = true
	}
	return true, nil
}

func (m *MemoryDestination) Unchanged(rel string, meta bk.FileMeta) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[filepath.Clean(rel)]
	if !ok {
		return false, nil
	}
	if meta.Size >= 0 && int64(len(f.data)) != meta.Size {
		return false, nil
	}
	return sameSecond(f.meta.ModTime, meta.ModTime), nil
}

// WriteFile stores the content of r. The parent folder must already exist,
// matching the behaviour of a real filesystem.
func (m *MemoryDestination) WriteFile(rel string, r io.Reader, meta bk.FileMeta) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return int64(len(data)), fmt.Errorf("failed to read content: %w", err)
	}
	if meta.Size >= 0 && int64(len(data)) != meta.Size {
		return int64(len(data)), fmt.Errorf("size mismatch: expected %d bytes, got %d", meta.Size, len(data))
	}

	rel = filepath.Clean(rel)
	m.mu.Lock()
	defer m.mu.Unlock()

	if parent := filepath.Dir(rel); parent != "." && !m.dirs[parent] {
		return int64(len(data)), fmt.Errorf("parent folder missing: %s", parent)
	}
	m.files[rel] = memoryFile{data: data, meta: meta}
	return int64(len(data)), nil
}

// File returns the stored content at rel.
func (m *MemoryDestination) File(rel string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[filepath.Clean(rel)]
	if !ok {
		return nil, false
	}
	return bytes.Clone(f.data), true
}

// Files returns the stored file paths, sorted.
func (m *MemoryDestination) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.files)
}

// Dirs returns the created folder paths, sorted.
func (m *MemoryDestination) Dirs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.dirs)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ bk.Destination = (*MemoryDestination)(nil)
