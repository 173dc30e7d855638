package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"bkup-go/internal/bk"
	"bkup-go/internal/config"
	"bkup-go/internal/database"
	"bkup-go/internal/encryption"
	"bkup-go/internal/fs"
	"bkup-go/internal/journal"
	"bkup-go/internal/sink"
)

// BkupApp is the application layer between the CLI and BkService.
// It constructs all dependencies from config and owns the database and
// log file until Close.
type BkupApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	service *bk.BkService
	logger  *slog.Logger
	logFile *os.File
	op      *Operation
}

// Options adjust how an app instance is opened.
type Options struct {
	Verbose bool // echo the diagnostic log to stderr at debug level
}

// NewBkupApp creates a fully wired BkupApp for the named CLI command.
// The caller must call Close when done.
func NewBkupApp(cfg *config.Config, command string, args []string, opts Options) (*BkupApp, error) {
	logger, logFile, err := newLogger(cfg.LogDir, command, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	svc, err := bk.NewBkService(
		db,
		fs.NewOSFilesystemManager(cfg.Filesystem.Ignore),
		sink.NewDestinationOpener(cfg.Destination, enc),
		journal.Opener(cfg.JournalPath),
		&slogAdapter{l: logger},
		bk.RealClock{},
		bk.UUIDGenerator{},
		cfg.Incremental,
	)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("loading selection: %w", err)
	}

	op := NewOperation(command, args, time.Now())
	logger.Debug("command started", "args", strings.Join(args, " "))

	return &BkupApp{
		cfg:     cfg,
		db:      db,
		service: svc,
		logger:  logger,
		logFile: logFile,
		op:      op,
	}, nil
}

// Add selects a file or folder for backup.
func (a *BkupApp) Add(rawPath string) (bk.BackupItem, error) {
	item, err := a.service.AddItem(rawPath)
	a.op.Fail(err)
	return item, err
}

// Remove deselects a file or folder.
func (a *BkupApp) Remove(rawPath string) error {
	err := a.service.RemoveItem(rawPath)
	a.op.Fail(err)
	return err
}

// SetDestination validates and stores the destination, returning its
// normalized form.
func (a *BkupApp) SetDestination(raw string) (string, error) {
	dest, err := a.service.SetDestination(raw)
	a.op.Fail(err)
	return dest, err
}

// Destination returns the stored destination, or "" when unset.
func (a *BkupApp) Destination() string {
	return a.service.Destination()
}

// Items returns the selected sources in the order they were added.
func (a *BkupApp) Items() []bk.BackupItem {
	return a.service.Items()
}

// Counts returns the number of selected files and folders.
func (a *BkupApp) Counts() (files, folders int) {
	return a.service.Counts()
}

// FreeSpace reports the free bytes at a local destination. ok is false when
// no destination is set or it is not a local path.
func (a *BkupApp) FreeSpace() (free uint64, ok bool, err error) {
	dest := a.service.Destination()
	if dest == "" || strings.HasPrefix(dest, sink.S3Scheme) {
		return 0, false, nil
	}
	free, err = sink.FreeSpace(dest)
	if err != nil {
		return 0, false, err
	}
	return free, true, nil
}

// StartRun starts a backup of the current selection. Copying happens while
// the returned execution's events are consumed.
func (a *BkupApp) StartRun(ctx context.Context) (*bk.Execution, error) {
	exec, err := a.service.StartJob(ctx)
	a.op.Fail(err)
	return exec, err
}

// History returns the most recent runs, newest first.
func (a *BkupApp) History(limit int) ([]*bk.JobRecord, error) {
	return a.service.GetHistory(limit)
}

// LogTail returns the last n lines of the backup log.
func (a *BkupApp) LogTail(n int) ([]string, error) {
	return journal.Tail(a.cfg.JournalPath, n)
}

// JournalPath returns the location of the backup log.
func (a *BkupApp) JournalPath() string {
	return a.cfg.JournalPath
}

// SchemaVersion returns the applied database schema version.
func (a *BkupApp) SchemaVersion() (uint, error) {
	s, err := a.db.SchemaStatus()
	if err != nil {
		return 0, err
	}
	return s.Current, nil
}

// Fail records err as the outcome of the command.
func (a *BkupApp) Fail(err error) {
	a.op.Fail(err)
}

// Close logs the command's outcome and releases the database and log file.
func (a *BkupApp) Close() error {
	a.logger.Info("command finished", a.op.LogArgs(time.Now())...)

	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if err := a.logFile.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing log file: %w", err)
	}
	return firstErr
}
