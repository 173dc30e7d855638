package bk

import (
	"context"
	"fmt"
	"sync/atomic"
)

// BkService is the orchestration layer that coordinates the registry, the
// runner and the job history for the CLI.
type BkService struct {
	database Database
	registry *Registry
	runner   *Runner
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	running  atomic.Bool
}

// NewBkService creates a BkService, restoring the stored selection from database.
func NewBkService(database Database, fsmgr FilesystemManager, open DestinationOpener, journal JournalOpener, logger Logger, clock Clock, idgen IDGenerator, incremental bool) (*BkService, error) {
	registry, err := LoadRegistry(database, fsmgr, open, clock)
	if err != nil {
		return nil, err
	}
	return &BkService{
		database: database,
		registry: registry,
		runner:   NewRunner(fsmgr, open, journal, logger, incremental),
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
	}, nil
}

// AddItem selects a file or directory for backup.
func (s *BkService) AddItem(rawPath string) (BackupItem, error) {
	item, err := s.registry.Add(rawPath)
	if err != nil {
		return BackupItem{}, err
	}
	s.logger.Info("item added", "path", item.Path, "dir", item.IsDir)
	return item, nil
}

// RemoveItem deselects a source.
func (s *BkService) RemoveItem(rawPath string) error {
	if err := s.registry.Remove(rawPath); err != nil {
		return err
	}
	s.logger.Info("item removed", "path", rawPath)
	return nil
}

// SetDestination validates and stores the backup destination.
func (s *BkService) SetDestination(rawPath string) (string, error) {
	dest, err := s.registry.SetDestination(rawPath)
	if err != nil {
		return "", err
	}
	s.logger.Info("destination set", "destination", dest)
	return dest, nil
}

// Items returns the selected sources.
func (s *BkService) Items() []BackupItem {
	return s.registry.Items()
}

// Destination returns the stored destination, or "" when unset.
func (s *BkService) Destination() string {
	return s.registry.Destination()
}

// Counts returns the number of selected files and folders.
func (s *BkService) Counts() (files, folders int) {
	return s.registry.Counts()
}

// StartJob snapshots the registry and starts a run. Only one run may be
// active at a time; the slot is released when the execution finishes.
// The run is recorded in the job history.
func (s *BkService) StartJob(ctx context.Context) (*Execution, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrJobRunning
	}

	job, err := s.registry.Snapshot(s.idgen.New())
	if err != nil {
		s.running.Store(false)
		return nil, err
	}

	if err := s.database.CreateJob(job); err != nil {
		s.running.Store(false)
		return nil, fmt.Errorf("recording job: %w", err)
	}

	exec, err := s.runner.Start(ctx, job)
	if err != nil {
		if ferr := s.database.FinishJob(job.ID, JobFailed, Summary{Destination: job.Destination}, s.clock.Now()); ferr != nil {
			s.logger.Error("recording failed job", "job", job.ID, "error", ferr)
		}
		s.running.Store(false)
		return nil, err
	}

	exec.addFinishHook(func(summary Summary) {
		status := JobSuccess
		if summary.Aborted {
			status = JobAborted
		}
		if err := s.database.FinishJob(job.ID, status, summary, s.clock.Now()); err != nil {
			s.logger.Error("recording job result", "job", job.ID, "error", err)
		}
		s.running.Store(false)
	})

	return exec, nil
}

// GetHistory returns the most recent runs, newest first.
func (s *BkService) GetHistory(limit int) ([]*JobRecord, error) {
	jobs, err := s.database.ListJobs(limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}
