package testutil

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"bkup-go/internal/bk"
	"bkup-go/internal/sink"
)

// NewTestDestination creates an empty in-memory destination.
func NewTestDestination() *sink.MemoryDestination {
	return sink.NewMemoryDestination("test")
}

// FailingDestination wraps a Destination and fails writes to chosen paths.
type FailingDestination struct {
	bk.Destination

	mu    sync.Mutex
	fail  map[string]error
	valid error
}

// NewFailingDestination wraps inner.
func NewFailingDestination(inner bk.Destination) *FailingDestination {
	return &FailingDestination{Destination: inner, fail: make(map[string]error)}
}

// FailWrite makes WriteFile of rel return err.
func (d *FailingDestination) FailWrite(rel string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[filepath.Clean(rel)] = err
}

// FailValidate makes Validate return err.
func (d *FailingDestination) FailValidate(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = err
}

func (d *FailingDestination) Validate() error {
	d.mu.Lock()
	err := d.valid
	d.mu.Unlock()
	if err != nil {
		return err
	}
	return d.Destination.Validate()
}

func (d *FailingDestination) WriteFile(rel string, r io.Reader, meta bk.FileMeta) (int64, error) {
	d.mu.Lock()
	err, ok := d.fail[filepath.Clean(rel)]
	d.mu.Unlock()
	if ok {
		return 0, fmt.Errorf("writing %s: %w", rel, err)
	}
	return d.Destination.WriteFile(rel, r, meta)
}

// OpenerFor returns a DestinationOpener that hands out dest for its own
// name and fails for anything else.
func OpenerFor(dest bk.Destination) bk.DestinationOpener {
	return func(_ context.Context, raw string) (bk.Destination, error) {
		if raw != dest.String() {
			return nil, fmt.Errorf("unknown destination: %s", raw)
		}
		return dest, nil
	}
}

// NamedDestination is an in-memory destination whose String is an arbitrary
// name, typically a filesystem path.
type NamedDestination struct {
	*sink.MemoryDestination
	name string
}

func NewNamedDestination(name string) *NamedDestination {
	return &NamedDestination{MemoryDestination: sink.NewMemoryDestination(name), name: name}
}

func (d *NamedDestination) String() string { return d.name }
