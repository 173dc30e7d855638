package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"bkup-go/internal/bk"
)

// FileSystemDestination mirrors sources under a directory on a local disk or
// a mounted network share.
type FileSystemDestination struct {
	root string
}

// NewFileSystemDestination binds a destination to root. The root is made
// absolute but not created; Validate checks it.
func NewFileSystemDestination(root string) (*FileSystemDestination, error) {
	abs, err := bk.NormalizePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolving destination: %w", err)
	}
	return &FileSystemDestination{root: abs}, nil
}

// String returns the absolute root.
func (d *FileSystemDestination) String() string {
	return d.root
}

// Validate verifies that the root is an existing, writable directory with
// free space left.
func (d *FileSystemDestination) Validate() error {
	info, err := os.Stat(d.root)
	if err != nil {
		return fmt.Errorf("destination not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", d.root)
	}

	tmp, err := os.CreateTemp(d.root, ".bkup-write-*")
	if err != nil {
		return fmt.Errorf("destination is not writable: %w", err)
	}
	tmp.Close()
	os.Remove(tmp.Name())

	free, err := FreeSpace(d.root)
	if err != nil {
		return err
	}
	if free == 0 {
		return fmt.Errorf("destination is full: %s", d.root)
	}
	return nil
}

// MkdirAll creates the directory rel below the root if it is missing.
func (d *FileSystemDestination) MkdirAll(rel string) (bool, error) {
	p := filepath.Join(d.root, rel)
	info, err := os.Stat(p)
	if err == nil {
		if !info.IsDir() {
			return false, fmt.Errorf("not a directory: %s", p)
		}
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	if err := os.MkdirAll(p, 0755); err != nil {
		return false, fmt.Errorf("creating folder: %w", err)
	}
	return true, nil
}

// Unchanged compares the existing copy's size and modification time, at
// one-second precision since network filesystems often store less.
func (d *FileSystemDestination) Unchanged(rel string, meta bk.FileMeta) (bool, error) {
	info, err := os.Stat(filepath.Join(d.root, rel))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if meta.Size >= 0 && info.Size() != meta.Size {
		return false, nil
	}
	return sameSecond(info.ModTime(), meta.ModTime), nil
}

// WriteFile copies r to rel via a temp file and rename, then applies the
// source's permission bits and modification time.
func (d *FileSystemDestination) WriteFile(rel string, r io.Reader, meta bk.FileMeta) (int64, error) {
	destPath := filepath.Join(d.root, rel)

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return written, fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return written, fmt.Errorf("failed to close temp file: %w", err)
	}

	if meta.Size >= 0 && written != meta.Size {
		return written, fmt.Errorf("size mismatch: expected %d bytes, got %d (file changed during copy)", meta.Size, written)
	}

	if meta.Mode != 0 {
		if err := os.Chmod(tmpPath, meta.Mode.Perm()); err != nil {
			return written, fmt.Errorf("setting permissions: %w", err)
		}
	}
	if !meta.ModTime.IsZero() {
		if err := os.Chtimes(tmpPath, meta.ModTime, meta.ModTime); err != nil {
			return written, fmt.Errorf("setting modification time: %w", err)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return written, fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return written, nil
}

func sameSecond(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}

// Compile-time check that FileSystemDestination implements bk.Destination interface
var _ bk.Destination = (*FileSystemDestination)(nil)
