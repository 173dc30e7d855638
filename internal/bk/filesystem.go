package bk

import (
	"io"
	"io/fs"
)

// SkipDir is returned from a WalkFunc to skip the contents of a directory.
var SkipDir = fs.SkipDir

// WalkFunc is called by FilesystemManager.Walk for the root and every entry
// below it. rel is the entry's path relative to the walk root ("." for the
// root itself). When err is non-nil, p is nil and err describes why the entry
// at rel could not be read.
//
// Returning SkipDir from a directory skips its contents. Any other non-nil
// error stops the walk and is returned by Walk.
type WalkFunc func(rel string, p *Path, err error) error

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a symlink, device, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Walk visits root and everything below it in lexical order, directories
	// before their contents. Ignored entries and special files are not visited.
	Walk(root *Path, fn WalkFunc) error
}
