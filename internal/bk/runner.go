package bk

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// reasonUnchanged is logged for files skipped by an incremental run.
const reasonUnchanged = "no changes"

// errStopped ends a walk when the consumer stops ranging over events.
var errStopped = errors.New("stopped")

// Progress is emitted once per attempted file.
type Progress struct {
	Item      int // index of the job item being processed
	Items     int // number of job items
	ItemFile  int // files attempted so far within the item, including this one
	ItemFiles int // files found in the item when it was started
	Files     int // files attempted so far in the job
	Target    string
	Entry     LogEntry
}

// Percent returns overall job completion in the range 0-100.
func (p Progress) Percent() int {
	if p.Items == 0 {
		return 100
	}
	frac := 1.0
	if p.ItemFiles > 0 {
		frac = float64(p.ItemFile) / float64(p.ItemFiles)
		if frac > 1 {
			frac = 1
		}
	}
	return int((float64(p.Item) + frac) * 100 / float64(p.Items))
}

// Runner copies the items of a BackupJob to its destination.
type Runner struct {
	fsmgr       FilesystemManager
	open        DestinationOpener
	journal     JournalOpener
	logger      Logger
	incremental bool
}

// NewRunner creates a Runner. With incremental set, files whose destination
// copy has the same size and modification time are skipped.
func NewRunner(fsmgr FilesystemManager, open DestinationOpener, journal JournalOpener, logger Logger, incremental bool) *Runner {
	return &Runner{
		fsmgr:       fsmgr,
		open:        open,
		journal:     journal,
		logger:      logger,
		incremental: incremental,
	}
}

// Start validates the job's destination and opens the log. Nothing is copied
// until the returned Execution's events are consumed. A destination that is
// missing, unwritable, or nested inside a source aborts the job here.
func (r *Runner) Start(ctx context.Context, job *BackupJob) (*Execution, error) {
	dest, err := r.open(ctx, job.Destination)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if err := dest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	if err := CheckNesting(job.Items, dest.String()); err != nil {
		return nil, err
	}

	journal, err := r.journal()
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}

	r.logger.Info("backup started", "job", job.ID, "destination", dest.String(), "items", len(job.Items))

	return &Execution{
		runner:  r,
		ctx:     ctx,
		job:     job,
		dest:    dest,
		journal: journal,
		summary: Summary{Destination: dest.String()},
	}, nil
}

// Execution is a started run. Its events can be consumed once.
type Execution struct {
	runner  *Runner
	ctx     context.Context
	job     *BackupJob
	dest    Destination
	journal Journal

	started  atomic.Bool
	finished sync.Once
	onFinish []func(Summary)

	summary Summary
	files   int
	err     error
}

// Job returns the snapshot being run.
func (e *Execution) Job() *BackupJob {
	return e.job
}

// Events returns the lazy sequence of progress events, one per attempted
// file. Copying happens while the sequence is ranged over. Only the first
// range runs the job; later ranges yield nothing. Stopping early or
// cancelling the context marks the summary as aborted.
func (e *Execution) Events() iter.Seq[Progress] {
	return func(yield func(Progress) bool) {
		if !e.started.CompareAndSwap(false, true) {
			return
		}
		defer e.finish()

		for i, item := range e.job.Items {
			if e.ctx.Err() != nil {
				e.summary.Aborted = true
				return
			}
			if !e.runItem(i, item, yield) {
				e.summary.Aborted = true
				return
			}
		}
	}
}

// Summary returns the totals so far; final once Events has been consumed.
func (e *Execution) Summary() Summary {
	return e.summary
}

// Err returns the first error writing the log, if any.
func (e *Execution) Err() error {
	return e.err
}

// Close releases an execution whose events were never consumed, recording
// it as aborted. It must not be called while Events is being ranged over.
func (e *Execution) Close() error {
	if e.started.CompareAndSwap(false, true) {
		e.summary.Aborted = true
		e.finish()
	}
	return e.err
}

func (e *Execution) addFinishHook(fn func(Summary)) {
	e.onFinish = append(e.onFinish, fn)
}

func (e *Execution) finish() {
	e.finished.Do(func() {
		if err := e.journal.Close(); err != nil && e.err == nil {
			e.err = fmt.Errorf("closing log: %w", err)
		}
		s := e.summary
		e.runner.logger.Info("backup finished",
			"job", e.job.ID,
			"copied", s.FilesCopied,
			"folders", s.FoldersCreated,
			"skipped", s.FilesSkipped,
			"failed", s.FilesFailed,
			"aborted", s.Aborted,
		)
		for _, fn := range e.onFinish {
			fn(s)
		}
	})
}

// runItem processes one job item. It returns false when the run must stop.
func (e *Execution) runItem(i int, item BackupItem, yield func(Progress) bool) bool {
	p, err := e.runner.fsmgr.Resolve(item.Path)
	if err != nil {
		progress := Progress{Item: i, Items: len(e.job.Items), ItemFile: 1, ItemFiles: 1}
		return e.emit(progress, e.failure(item.Path, err), yield)
	}

	if p.IsDir() {
		return e.runDir(i, p, yield)
	}

	target := filepath.Base(p.String())
	progress := Progress{Item: i, Items: len(e.job.Items), ItemFile: 1, ItemFiles: 1, Target: target}
	return e.emit(progress, e.copyFile(p, target), yield)
}

// runDir mirrors root under <destination>/<basename(root)>.
func (e *Execution) runDir(i int, root *Path, yield func(Progress) bool) bool {
	base := filepath.Base(root.String())
	total := e.countFiles(root)
	done := 0

	err := e.runner.fsmgr.Walk(root, func(rel string, p *Path, werr error) error {
		if err := e.ctx.Err(); err != nil {
			return err
		}

		target := filepath.Join(base, rel)
		if werr != nil {
			done++
			progress := Progress{Item: i, Items: len(e.job.Items), ItemFile: done, ItemFiles: max(total, done), Target: target}
			if !e.emit(progress, e.failure(filepath.Join(root.String(), rel), werr), yield) {
				return errStopped
			}
			return nil
		}

		if p.IsDir() {
			created, err := e.dest.MkdirAll(target)
			if err != nil {
				// Files below will fail individually and be logged.
				e.runner.logger.Warn("creating folder failed", "path", target, "error", err)
				return nil
			}
			// The item's own mirror folder is created but not counted.
			if created && rel != "." {
				e.summary.FoldersCreated++
				e.runner.logger.Debug("folder created", "path", target)
			}
			return nil
		}

		done++
		progress := Progress{Item: i, Items: len(e.job.Items), ItemFile: done, ItemFiles: max(total, done), Target: target}
		if !e.emit(progress, e.copyFile(p, target), yield) {
			return errStopped
		}
		return nil
	})

	switch {
	case err == nil:
		return true
	case errors.Is(err, errStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		e.runner.logger.Warn("walking folder failed", "path", root.String(), "error", err)
		return true
	}
}

// countFiles counts the files below root for progress reporting.
func (e *Execution) countFiles(root *Path) int {
	n := 0
	_ = e.runner.fsmgr.Walk(root, func(_ string, p *Path, err error) error {
		if err == nil && !p.IsDir() {
			n++
		}
		return nil
	})
	return n
}

// copyFile copies one source file to target and describes the outcome.
func (e *Execution) copyFile(p *Path, target string) LogEntry {
	meta := MetaFromInfo(p.Info())

	if e.runner.incremental {
		same, err := e.dest.Unchanged(target, meta)
		if err != nil {
			e.runner.logger.Debug("comparing with existing copy failed", "path", target, "error", err)
		} else if same {
			return LogEntry{Path: p.String(), Outcome: OutcomeSkipped, Reason: reasonUnchanged}
		}
	}

	rc, err := e.runner.fsmgr.Open(p)
	if err != nil {
		return e.failure(p.String(), err)
	}
	defer rc.Close()

	n, err := e.dest.WriteFile(target, rc, meta)
	if err != nil {
		return e.failure(p.String(), err)
	}

	e.summary.BytesCopied += n
	return LogEntry{Path: p.String(), Outcome: OutcomeCopied}
}

func (e *Execution) failure(path string, err error) LogEntry {
	return LogEntry{
		Path:    path,
		Outcome: OutcomeError,
		Reason:  err.Error(),
		Err:     fmt.Errorf("%w: %s: %w", ErrCopyFailed, path, err),
	}
}

// emit counts the entry, appends it to the log and hands it to the consumer.
func (e *Execution) emit(progress Progress, entry LogEntry, yield func(Progress) bool) bool {
	switch entry.Outcome {
	case OutcomeCopied:
		e.summary.FilesCopied++
		e.runner.logger.Info("file copied", "path", entry.Path)
	case OutcomeSkipped:
		e.summary.FilesSkipped++
		e.runner.logger.Info("file skipped", "path", entry.Path, "reason", entry.Reason)
	case OutcomeError:
		e.summary.FilesSkipped++
		e.summary.FilesFailed++
		e.runner.logger.Warn("file skipped", "path", entry.Path, "error", entry.Reason)
	}

	if err := e.journal.Append(entry); err != nil {
		e.runner.logger.Error("writing log entry failed", "path", entry.Path, "error", err)
		if e.err == nil {
			e.err = fmt.Errorf("writing log: %w", err)
		}
	}

	e.files++
	progress.Files = e.files
	progress.Entry = entry
	return yield(progress)
}
