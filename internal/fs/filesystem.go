package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bkup-go/internal/bk"
)

// IgnoreFileName is the per-directory ignore file consulted by Walk.
const IgnoreFileName = ".bkupignore"

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore []string // patterns applied to every walk
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignore holds patterns from config that apply in addition to any .bkupignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*bk.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Lstat so that symlinks are reported rather than followed.
	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	if err := checkSupported(absPath, info.Mode()); err != nil {
		return nil, err
	}

	return bk.NewPath(absPath, info.IsDir(), info), nil
}

func checkSupported(path string, mode fs.FileMode) error {
	switch {
	case mode&os.ModeSymlink != 0:
		return fmt.Errorf("symlinks not supported: %s", path)
	case mode&os.ModeDevice != 0:
		return fmt.Errorf("device files not supported: %s", path)
	case mode&os.ModeNamedPipe != 0:
		return fmt.Errorf("named pipes not supported: %s", path)
	case mode&os.ModeSocket != 0:
		return fmt.Errorf("sockets not supported: %s", path)
	}
	return nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *bk.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Walk visits root and every regular file and directory below it in lexical
// order. Entries matching the configured patterns or a .bkupignore file are
// skipped; a matching directory is skipped with its contents. A .bkupignore
// applies to the folder holding it and everything below, with patterns
// relative to that folder.
// A symlink to a regular file is visited as that file. Any other entry that
// cannot be copied is passed to fn as an error.
func (m *OSFilesystemManager) Walk(root *bk.Path, fn bk.WalkFunc) error {
	if !root.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root.String())
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root.String(), IgnoreFileName))
	if err != nil {
		return err
	}
	patterns := append(append(append([]string{}, defaultIgnorePatterns...), m.ignore...), filePatterns...)
	rules := ignoreScopes{{dir: ".", matcher: NewIgnoreMatcher(patterns)}}

	return filepath.WalkDir(root.String(), func(p string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(root.String(), p)
		if relErr != nil {
			return fmt.Errorf("calculating relative path: %w", relErr)
		}
		if err != nil {
			return fn(rel, nil, err)
		}

		if rel != "." && rules.match(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return walkSymlink(rel, p, fn)
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return fn(rel, nil, unsupported(p, d.Type()))
		}

		info, err := d.Info()
		if err != nil {
			return fn(rel, nil, fmt.Errorf("stat %s: %w", p, err))
		}

		if d.IsDir() && rel != "." {
			lines, err := ParseIgnoreFile(filepath.Join(p, IgnoreFileName))
			switch {
			case errors.Is(err, fs.ErrPermission):
				// An unreadable folder is reported by WalkDir itself.
			case err != nil:
				if ferr := fn(filepath.Join(rel, IgnoreFileName), nil, err); ferr != nil {
					return ferr
				}
			case len(lines) > 0:
				rules = append(rules, ignoreScope{dir: rel, matcher: NewIgnoreMatcher(lines)})
			}
		}
		return fn(rel, bk.NewPath(p, d.IsDir(), info), nil)
	})
}

// ignoreScope is the matcher of one .bkupignore and the folder it lives in,
// relative to the walk root.
type ignoreScope struct {
	dir     string
	matcher *IgnoreMatcher
}

type ignoreScopes []ignoreScope

func (s ignoreScopes) match(rel string, isDir bool) bool {
	for _, scope := range s {
		sub := rel
		if scope.dir != "." {
			prefix := scope.dir + string(filepath.Separator)
			if !strings.HasPrefix(rel, prefix) {
				continue
			}
			sub = strings.TrimPrefix(rel, prefix)
		}
		if scope.matcher.Match(sub, isDir) {
			return true
		}
	}
	return false
}

// walkSymlink follows a link found during a walk. Linked folders are not
// descended into, so a walk never loops.
func walkSymlink(rel, p string, fn bk.WalkFunc) error {
	info, err := os.Stat(p)
	if err != nil {
		return fn(rel, nil, fmt.Errorf("following symlink: %w", err))
	}
	if info.IsDir() {
		return fn(rel, nil, fmt.Errorf("symlinked folders not followed: %s", p))
	}
	if !info.Mode().IsRegular() {
		return fn(rel, nil, unsupported(p, info.Mode()))
	}
	return fn(rel, bk.NewPath(p, false, info), nil)
}

func unsupported(path string, mode fs.FileMode) error {
	if err := checkSupported(path, mode); err != nil {
		return err
	}
	return fmt.Errorf("unsupported file type: %s", path)
}

// Compile-time check that OSFilesystemManager implements bk.FilesystemManager interface
var _ bk.FilesystemManager = (*OSFilesystemManager)(nil)
