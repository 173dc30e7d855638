package bk

import (
	"context"
	"io"
	"io/fs"
	"time"
)

// FileMeta carries the source attributes a Destination should reproduce.
// Size is -1 when the number of bytes written is not known in advance.
type FileMeta struct {
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// MetaFromInfo builds FileMeta from a source file's stat info.
func MetaFromInfo(info fs.FileInfo) FileMeta {
	return FileMeta{
		Size:    info.Size(),
		Mode:    info.Mode().Perm(),
		ModTime: info.ModTime(),
	}
}

// Destination is the root under which selected sources are mirrored.
// All rel arguments are relative to that root and use OS separators.
type Destination interface {
	// String returns the normalized destination, as stored in the registry.
	String() string

	// Validate checks that the destination exists and accepts writes.
	Validate() error

	// MkdirAll ensures the directory rel exists. created reports whether it
	// was missing before the call.
	MkdirAll(rel string) (created bool, err error)

	// Unchanged reports whether rel already holds a copy with the same size
	// and modification time as meta. A negative meta.Size skips the size check.
	Unchanged(rel string, meta FileMeta) (bool, error)

	// WriteFile stores the content of r at rel and returns the number of
	// bytes read from r. A partial write never replaces an existing copy.
	WriteFile(rel string, r io.Reader, meta FileMeta) (int64, error)
}

// DestinationOpener binds a raw destination string to a Destination.
// It does not validate; callers use Destination.Validate. Remote backends
// use ctx for every request made through the returned Destination.
type DestinationOpener func(ctx context.Context, raw string) (Destination, error)
