package bk

import (
	"context"
	"fmt"
)

const settingDestination = "destination"

// Registry holds the selected sources and the single backup destination.
// Every mutation is written through to the Database so the selection
// survives restarts. It is not safe for concurrent use.
type Registry struct {
	database Database
	fsmgr    FilesystemManager
	open     DestinationOpener
	clock    Clock

	items       []BackupItem
	destination string
}

// LoadRegistry restores the selection previously stored in database.
func LoadRegistry(database Database, fsmgr FilesystemManager, open DestinationOpener, clock Clock) (*Registry, error) {
	items, err := database.ListItems()
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	destination, _, err := database.GetSetting(settingDestination)
	if err != nil {
		return nil, fmt.Errorf("loading destination: %w", err)
	}

	return &Registry{
		database:    database,
		fsmgr:       fsmgr,
		open:        open,
		clock:       clock,
		items:       items,
		destination: destination,
	}, nil
}

// Add selects a file or directory for backup.
// The path must exist; it is stored in normalized absolute form.
func (r *Registry) Add(rawPath string) (BackupItem, error) {
	normalized, err := NormalizePath(rawPath)
	if err != nil {
		return BackupItem{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if r.indexOf(normalized) >= 0 {
		return BackupItem{}, fmt.Errorf("%w: %s", ErrDuplicateEntry, normalized)
	}

	p, err := r.fsmgr.Resolve(normalized)
	if err != nil {
		return BackupItem{}, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	item := BackupItem{Path: p.String(), IsDir: p.IsDir()}
	if r.destination != "" {
		if err := CheckNesting([]BackupItem{item}, r.destination); err != nil {
			return BackupItem{}, err
		}
	}

	if err := r.database.InsertItem(item, r.clock.Now()); err != nil {
		return BackupItem{}, fmt.Errorf("storing item: %w", err)
	}
	r.items = append(r.items, item)
	return item, nil
}

// Remove deselects a source. The path does not need to exist on disk.
func (r *Registry) Remove(rawPath string) error {
	normalized, err := NormalizePath(rawPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}

	i := r.indexOf(normalized)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, normalized)
	}

	if _, err := r.database.DeleteItem(normalized); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	return nil
}

// SetDestination validates and stores the backup destination.
// It returns the normalized destination.
func (r *Registry) SetDestination(rawPath string) (string, error) {
	dest, err := r.open(context.Background(), rawPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if err := dest.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if err := CheckNesting(r.items, dest.String()); err != nil {
		return "", err
	}

	if err := r.database.PutSetting(settingDestination, dest.String()); err != nil {
		return "", fmt.Errorf("storing destination: %w", err)
	}
	r.destination = dest.String()
	return r.destination, nil
}

// Items returns a copy of the selected sources in insertion order.
func (r *Registry) Items() []BackupItem {
	return append([]BackupItem(nil), r.items...)
}

// Destination returns the stored destination, or "" when unset.
func (r *Registry) Destination() string {
	return r.destination
}

// Counts returns the number of selected files and folders.
func (r *Registry) Counts() (files, folders int) {
	for _, item := range r.items {
		if item.IsDir {
			folders++
		} else {
			files++
		}
	}
	return files, folders
}

// Snapshot captures the current selection as a job with the given ID.
func (r *Registry) Snapshot(id string) (*BackupJob, error) {
	if r.destination == "" {
		return nil, ErrNoDestination
	}
	if len(r.items) == 0 {
		return nil, ErrNoItems
	}
	return &BackupJob{
		ID:          id,
		Items:       r.Items(),
		Destination: r.destination,
		CreatedAt:   r.clock.Now(),
	}, nil
}

func (r *Registry) indexOf(path string) int {
	for i, item := range r.items {
		if item.Path == path {
			return i
		}
	}
	return -1
}

// CheckNesting returns ErrInvalidPath when destination is one of the
// directory items or lies inside one.
func CheckNesting(items []BackupItem, destination string) error {
	for _, item := range items {
		if item.IsDir && IsWithin(destination, item.Path) {
			return fmt.Errorf("%w: destination %s is inside source %s", ErrInvalidPath, destination, item.Path)
		}
	}
	return nil
}
