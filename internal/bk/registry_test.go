package bk_test

import (
	"errors"
	"reflect"
	"testing"

	"bkup-go/internal/bk"
	"bkup-go/internal/testutil"
)

type registryFixture struct {
	db    bk.Database
	fsmgr *testutil.MockFilesystemManager
	dest  *testutil.NamedDestination
	reg   *bk.Registry
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	f := &registryFixture{
		db:    testutil.NewTestDatabase(t),
		fsmgr: testutil.NewMockFilesystemManager(),
		dest:  testutil.NewNamedDestination("/mnt/backup"),
	}
	f.fsmgr.AddFile("/home/user/notes.txt", []byte("notes"))
	f.fsmgr.AddFile("/home/user/docs/a.txt", []byte("a"))
	f.fsmgr.AddDirectory("/mnt/backup")
	f.reg = f.load(t)
	return f
}

func (f *registryFixture) load(t *testing.T) *bk.Registry {
	t.Helper()
	reg, err := bk.LoadRegistry(f.db, f.fsmgr, testutil.OpenerFor(f.dest), testutil.FixedClock())
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}
	return reg
}

func TestRegistry_Add(t *testing.T) {
	f := newRegistryFixture(t)

	item, err := f.reg.Add("/home/user/docs/")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if item.Path != "/home/user/docs" || !item.IsDir {
		t.Errorf("Add() = %+v, want normalized directory item", item)
	}

	if _, err := f.reg.Add("/home/user/notes.txt"); err != nil {
		t.Fatalf("Add(file) error = %v", err)
	}

	t.Run("duplicate", func(t *testing.T) {
		if _, err := f.reg.Add("/home/user/./docs"); !errors.Is(err, bk.ErrDuplicateEntry) {
			t.Errorf("Add() error = %v, want ErrDuplicateEntry", err)
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := f.reg.Add("/home/user/missing"); !errors.Is(err, bk.ErrInvalidPath) {
			t.Errorf("Add() error = %v, want ErrInvalidPath", err)
		}
	})

	files, folders := f.reg.Counts()
	if files != 1 || folders != 1 {
		t.Errorf("Counts() = %d, %d; want 1, 1", files, folders)
	}

	want := []bk.BackupItem{{Path: "/home/user/docs", IsDir: true}, {Path: "/home/user/notes.txt"}}
	if got := f.reg.Items(); !reflect.DeepEqual(got, want) {
		t.Errorf("Items() = %v, want %v", got, want)
	}
}

func TestRegistry_Remove(t *testing.T) {
	f := newRegistryFixture(t)
	if _, err := f.reg.Add("/home/user/notes.txt"); err != nil {
		t.Fatal(err)
	}

	if err := f.reg.Remove("/home/user/docs"); !errors.Is(err, bk.ErrNotFound) {
		t.Errorf("Remove(unselected) error = %v, want ErrNotFound", err)
	}

	if err := f.reg.Remove("/home/user/notes.txt"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(f.reg.Items()) != 0 {
		t.Errorf("Items() = %v, want empty", f.reg.Items())
	}
	if err := f.reg.Remove("/home/user/notes.txt"); !errors.Is(err, bk.ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Remove_PathGoneFromDisk(t *testing.T) {
	f := newRegistryFixture(t)
	f.fsmgr.AddFile("/tmp/gone.txt", []byte("x"))
	if _, err := f.reg.Add("/tmp/gone.txt"); err != nil {
		t.Fatal(err)
	}

	f.fsmgr.Remove("/tmp/gone.txt")
	if err := f.reg.Remove("/tmp/gone.txt"); err != nil {
		t.Errorf("Remove() error = %v, want nil for a path deleted from disk", err)
	}
}

func TestRegistry_SetDestination(t *testing.T) {
	f := newRegistryFixture(t)

	got, err := f.reg.SetDestination("/mnt/backup")
	if err != nil {
		t.Fatalf("SetDestination() error = %v", err)
	}
	if got != "/mnt/backup" || f.reg.Destination() != "/mnt/backup" {
		t.Errorf("SetDestination() = %q, Destination() = %q", got, f.reg.Destination())
	}

	if _, err := f.reg.SetDestination("/nowhere"); !errors.Is(err, bk.ErrInvalidPath) {
		t.Errorf("SetDestination(unknown) error = %v, want ErrInvalidPath", err)
	}
	if f.reg.Destination() != "/mnt/backup" {
		t.Errorf("failed SetDestination changed destination to %q", f.reg.Destination())
	}
}

func TestRegistry_SetDestination_ValidateFails(t *testing.T) {
	f := newRegistryFixture(t)
	failing := testutil.NewFailingDestination(f.dest)
	failing.FailValidate(errors.New("read-only file system"))

	reg, err := bk.LoadRegistry(f.db, f.fsmgr, testutil.OpenerFor(failing), testutil.FixedClock())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reg.SetDestination("/mnt/backup"); !errors.Is(err, bk.ErrInvalidPath) {
		t.Errorf("SetDestination() error = %v, want ErrInvalidPath", err)
	}
	if reg.Destination() != "" {
		t.Errorf("Destination() = %q, want unset", reg.Destination())
	}
}

func TestRegistry_Nesting(t *testing.T) {
	t.Run("destination inside a selected folder", func(t *testing.T) {
		f := newRegistryFixture(t)
		f.dest = testutil.NewNamedDestination("/home/user/docs/backup")
		reg := f.load(t)

		if _, err := reg.Add("/home/user/docs"); err != nil {
			t.Fatal(err)
		}
		if _, err := reg.SetDestination("/home/user/docs/backup"); !errors.Is(err, bk.ErrInvalidPath) {
			t.Errorf("SetDestination() error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("folder containing the destination", func(t *testing.T) {
		f := newRegistryFixture(t)
		if _, err := f.reg.SetDestination("/mnt/backup"); err != nil {
			t.Fatal(err)
		}
		if _, err := f.reg.Add("/mnt"); !errors.Is(err, bk.ErrInvalidPath) {
			t.Errorf("Add() error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("sibling with common prefix", func(t *testing.T) {
		if err := bk.CheckNesting([]bk.BackupItem{{Path: "/mnt/back", IsDir: true}}, "/mnt/backup"); err != nil {
			t.Errorf("CheckNesting() error = %v, want nil", err)
		}
	})
}

func TestRegistry_PersistsAcrossLoads(t *testing.T) {
	f := newRegistryFixture(t)
	if _, err := f.reg.Add("/home/user/docs"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Add("/home/user/notes.txt"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.SetDestination("/mnt/backup"); err != nil {
		t.Fatal(err)
	}
	if err := f.reg.Remove("/home/user/docs"); err != nil {
		t.Fatal(err)
	}

	reloaded := f.load(t)
	if !reflect.DeepEqual(reloaded.Items(), f.reg.Items()) {
		t.Errorf("reloaded Items() = %v, want %v", reloaded.Items(), f.reg.Items())
	}
	if reloaded.Destination() != "/mnt/backup" {
		t.Errorf("reloaded Destination() = %q", reloaded.Destination())
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	f := newRegistryFixture(t)

	if _, err := f.reg.Snapshot("j"); !errors.Is(err, bk.ErrNoDestination) {
		t.Errorf("Snapshot() error = %v, want ErrNoDestination", err)
	}
	if _, err := f.reg.SetDestination("/mnt/backup"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Snapshot("j"); !errors.Is(err, bk.ErrNoItems) {
		t.Errorf("Snapshot() error = %v, want ErrNoItems", err)
	}

	if _, err := f.reg.Add("/home/user/notes.txt"); err != nil {
		t.Fatal(err)
	}
	job, err := f.reg.Snapshot("j")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	// Later changes do not affect the snapshot.
	if _, err := f.reg.Add("/home/user/docs"); err != nil {
		t.Fatal(err)
	}
	if len(job.Items) != 1 || job.Destination != "/mnt/backup" || job.ID != "j" {
		t.Errorf("Snapshot() = %+v", job)
	}
}
