package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"bkup-go/internal/bk"
)

// DefaultModTime is the modification time given to mock files.
var DefaultModTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool

	// ReadErr is returned when the file is opened, or when a directory's
	// contents are walked.
	ReadErr error
}

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// absolute and use OS separators.
type MockFilesystemManager struct {
	mu    sync.RWMutex
	files map[string]*MockFile
}

// NewMockFilesystemManager creates an empty mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{files: make(map[string]*MockFile)}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addParents(path)
	f := &MockFile{Content: content, Permissions: 0644, ModTime: DefaultModTime}
	m.files[path] = f
	return f
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) *MockFile {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addParents(path)
	return m.addDir(path)
}

// Touch changes a file's content and moves its modification time forward.
func (m *MockFilesystemManager) Touch(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.files[path]
	f.Content = content
	f.ModTime = f.ModTime.Add(time.Minute)
}

// Remove deletes path and everything below it.
func (m *MockFilesystemManager) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := range m.files {
		if bk.IsWithin(p, path) {
			delete(m.files, p)
		}
	}
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		m.addDir(dir)
	}
}

func (m *MockFilesystemManager) addDir(path string) *MockFile {
	if f, ok := m.files[path]; ok {
		return f
	}
	f := &MockFile{Permissions: 0755, ModTime: DefaultModTime, IsDirectory: true}
	m.files[path] = f
	return f
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*bk.Path, error) {
	absPath, err := bk.NormalizePath(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("stat %s: %w", absPath, fs.ErrNotExist)
	}
	return m.path(absPath, file), nil
}

func (m *MockFilesystemManager) path(absPath string, file *MockFile) *bk.Path {
	info := &mockFileInfo{
		name:    filepath.Base(absPath),
		size:    int64(len(file.Content)),
		mode:    file.Permissions,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
	return bk.NewPath(absPath, file.IsDirectory, info)
}

func (m *MockFilesystemManager) Open(path *bk.Path) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	if file.ReadErr != nil {
		return nil, fmt.Errorf("open %s: %w", path, file.ReadErr)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

// Walk visits root and its descendants in the same order as
// filepath.WalkDir. A directory with ReadErr is reported and not descended.
func (m *MockFilesystemManager) Walk(root *bk.Path, fn bk.WalkFunc) error {
	m.mu.RLock()
	type entry struct {
		rel  string
		abs  string
		file *MockFile
	}
	var entries []entry
	for p, f := range m.files {
		if !bk.IsWithin(p, root.String()) {
			continue
		}
		rel, err := filepath.Rel(root.String(), p)
		if err != nil {
			continue
		}
		entries = append(entries, entry{rel: rel, abs: p, file: f})
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		return slices.Compare(splitRel(a.rel), splitRel(b.rel))
	})

	var skipped []string
	for _, e := range entries {
		if slices.ContainsFunc(skipped, func(dir string) bool { return bk.IsWithin(e.rel, dir) }) {
			continue
		}

		if e.file.IsDirectory && e.file.ReadErr != nil {
			if e.rel != "." {
				skipped = append(skipped, e.rel)
			}
			if err := fn(e.rel, nil, e.file.ReadErr); err != nil && !errors.Is(err, bk.SkipDir) {
				return err
			}
			if e.rel == "." {
				return nil
			}
			continue
		}

		err := fn(e.rel, m.path(e.abs, e.file), nil)
		if errors.Is(err, bk.SkipDir) && e.file.IsDirectory {
			if e.rel == "." {
				return nil
			}
			skipped = append(skipped, e.rel)
			continue
		}
		if err != nil && !errors.Is(err, bk.SkipDir) {
			return err
		}
	}
	return nil
}

func splitRel(rel string) []string {
	if rel == "." {
		return nil
	}
	return strings.Split(rel, string(filepath.Separator))
}

type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string { return m.name }
func (m *mockFileInfo) Size() int64  { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode {
	if m.isDir {
		return m.mode | fs.ModeDir
	}
	return m.mode
}
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

var _ bk.FilesystemManager = (*MockFilesystemManager)(nil)
