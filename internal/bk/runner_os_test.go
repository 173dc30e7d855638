package bk_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"bkup-go/internal/bk"
	"bkup-go/internal/fs"
	"bkup-go/internal/journal"
	"bkup-go/internal/sink"
	"bkup-go/internal/testutil"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// runOnDisk backs up the folder src into dst with the real filesystem
// manager and destination.
func runOnDisk(t *testing.T, src, dst string) (bk.Summary, []bk.LogEntry) {
	t.Helper()
	dest, err := sink.NewFileSystemDestination(dst)
	if err != nil {
		t.Fatal(err)
	}
	log := journal.NewMemory()
	r := bk.NewRunner(fs.NewOSFilesystemManager(nil), testutil.OpenerFor(dest), log.Opener(), bk.NewNopLogger(), false)

	exec, err := r.Start(context.Background(), &bk.BackupJob{
		ID:          "job-1",
		Items:       []bk.BackupItem{{Path: src, IsDir: true}},
		Destination: dest.String(),
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for range exec.Events() {
	}
	return exec.Summary(), log.Entries()
}

func TestRunner_OnDisk_EveryFileIsLogged(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	mustWrite(t, filepath.Join(base, "target.txt"), "linked")
	mustWrite(t, filepath.Join(src, "real.txt"), "real")
	if err := os.Mkdir(dst, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join("..", "target.txt"), filepath.Join(src, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(base, "missing"), filepath.Join(src, "broken")); err != nil {
		t.Fatal(err)
	}

	summary, entries := runOnDisk(t, src, dst)

	if summary.FilesCopied != 2 || summary.FilesSkipped != 1 || summary.FilesFailed != 1 {
		t.Errorf("Summary() = %+v, want 2 copied and 1 failed", summary)
	}
	if len(entries) != 3 {
		t.Fatalf("log has %d entries, want one per file: %v", len(entries), entries)
	}
	if e := entries[0]; e.Path != filepath.Join(src, "broken") || e.Outcome != bk.OutcomeError {
		t.Errorf("broken link entry = %+v", e)
	}

	data, err := os.ReadFile(filepath.Join(dst, "src", "link.txt"))
	if err != nil || string(data) != "linked" {
		t.Errorf("link copy = %q, %v; want the target's content", data, err)
	}
	info, err := os.Lstat(filepath.Join(dst, "src", "link.txt"))
	if err == nil && info.Mode()&os.ModeSymlink != 0 {
		t.Error("link was copied as a symlink, want a regular file")
	}
}

func TestRunner_OnDisk_CreatesOneFolderPerSubfolder(t *testing.T) {
	base := t.TempDir()
	src := filepath.Join(base, "src")
	dst := filepath.Join(base, "dst")
	mustWrite(t, filepath.Join(src, "a", "x"), "x")
	mustWrite(t, filepath.Join(src, "y"), "y")
	if err := os.MkdirAll(filepath.Join(src, "b"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(dst, 0755); err != nil {
		t.Fatal(err)
	}

	summary, entries := runOnDisk(t, src, dst)

	if summary.FoldersCreated != 2 {
		t.Errorf("FoldersCreated = %d, want 2 for 2 subfolders", summary.FoldersCreated)
	}
	if len(entries) != 2 || summary.FilesCopied != 2 {
		t.Errorf("entries = %d, FilesCopied = %d; want 2", len(entries), summary.FilesCopied)
	}
	for _, dir := range []string{"src", "src/a", "src/b"} {
		if info, err := os.Stat(filepath.Join(dst, dir)); err != nil || !info.IsDir() {
			t.Errorf("folder %s not mirrored: %v", dir, err)
		}
	}
}
