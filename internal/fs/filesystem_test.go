package fs

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"bkup-go/internal/bk"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	writeFile(t, file, "hello")

	m := NewOSFilesystemManager(nil)

	t.Run("file", func(t *testing.T) {
		p, err := m.Resolve(file)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsDir() {
			t.Error("IsDir() = true, want false")
		}
		if p.Info().Size() != 5 {
			t.Errorf("Size() = %d, want 5", p.Info().Size())
		}
	})

	t.Run("directory", func(t *testing.T) {
		p, err := m.Resolve(dir)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !p.IsDir() {
			t.Error("IsDir() = false, want true")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := m.Resolve(filepath.Join(dir, "missing")); err == nil {
			t.Fatal("Resolve() expected error")
		}
	})

	t.Run("symlink rejected", func(t *testing.T) {
		link := filepath.Join(dir, "link")
		if err := os.Symlink(file, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if _, err := m.Resolve(link); err == nil {
			t.Fatal("Resolve() expected error for symlink")
		}
	})
}

func TestOSFilesystemManager_Open(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	writeFile(t, file, "content")
	m := NewOSFilesystemManager(nil)

	p, _ := m.Resolve(file)
	rc, err := m.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "content" {
		t.Errorf("content = %q, want %q", data, "content")
	}

	d, _ := m.Resolve(dir)
	if _, err := m.Open(d); err == nil {
		t.Error("Open() on directory expected error")
	}
}

func TestOSFilesystemManager_Walk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.txt"), "b")
	writeFile(t, filepath.Join(root, "a", "x.txt"), "x")
	writeFile(t, filepath.Join(root, "a", "debug.log"), "log")
	writeFile(t, filepath.Join(root, "cache", "blob"), "blob")
	writeFile(t, filepath.Join(root, "skip.tmp"), "tmp")
	writeFile(t, filepath.Join(root, IgnoreFileName), "*.tmp\ncache/\n")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	m := NewOSFilesystemManager([]string{"*.log"})
	rootPath, err := m.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	var visited []string
	err = m.Walk(rootPath, func(rel string, p *bk.Path, err error) error {
		if err != nil {
			t.Fatalf("unexpected walk error at %s: %v", rel, err)
		}
		suffix := ""
		if p.IsDir() {
			suffix = "/"
		}
		visited = append(visited, filepath.ToSlash(rel)+suffix)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{"./", "a/", "a/x.txt", "b.txt", "empty/"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}

func TestOSFilesystemManager_Walk_RequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	writeFile(t, file, "a")
	m := NewOSFilesystemManager(nil)
	p, _ := m.Resolve(file)

	if err := m.Walk(p, func(string, *bk.Path, error) error { return nil }); err == nil {
		t.Fatal("Walk() on file expected error")
	}
}

// walkAll collects every entry of a walk, recording errors by relative path.
func walkAll(t *testing.T, m *OSFilesystemManager, root string) (visited []string, failed map[string]error) {
	t.Helper()
	rootPath, err := m.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	failed = make(map[string]error)
	err = m.Walk(rootPath, func(rel string, p *bk.Path, err error) error {
		rel = filepath.ToSlash(rel)
		if err != nil {
			failed[rel] = err
			return nil
		}
		if p.IsDir() {
			rel += "/"
		}
		visited = append(visited, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk() error = %v", err)
	}
	return visited, failed
}

func TestOSFilesystemManager_Walk_Symlinks(t *testing.T) {
	outside := t.TempDir()
	target := filepath.Join(outside, "target.txt")
	writeFile(t, target, "linked content")

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "real.txt"), "real")
	if err := os.Symlink(target, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(outside, "missing"), filepath.Join(root, "broken")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(root, "dirlink")); err != nil {
		t.Fatal(err)
	}

	m := NewOSFilesystemManager(nil)
	visited, failed := walkAll(t, m, root)

	want := []string{"./", "link.txt", "real.txt"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
	for _, rel := range []string{"broken", "dirlink"} {
		if failed[rel] == nil {
			t.Errorf("%s was not reported as an error", rel)
		}
	}

	// The link is visited as its target file.
	rootPath, _ := m.Resolve(root)
	_ = m.Walk(rootPath, func(rel string, p *bk.Path, err error) error {
		if rel != "link.txt" || err != nil {
			return nil
		}
		if p.Info().Size() != int64(len("linked content")) {
			t.Errorf("link size = %d, want target size", p.Info().Size())
		}
		rc, err := m.Open(p)
		if err != nil {
			t.Fatalf("Open(link) error = %v", err)
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if string(data) != "linked content" {
			t.Errorf("link content = %q", data)
		}
		return nil
	})
}

func TestOSFilesystemManager_Walk_NestedIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.bak"), "top level is not affected")
	writeFile(t, filepath.Join(root, "sub", IgnoreFileName), "*.bak\nbuild/\n")
	writeFile(t, filepath.Join(root, "sub", "a.txt"), "a")
	writeFile(t, filepath.Join(root, "sub", "old.bak"), "old")
	writeFile(t, filepath.Join(root, "sub", "deep", "older.bak"), "older")
	writeFile(t, filepath.Join(root, "sub", "build", "out"), "out")
	writeFile(t, filepath.Join(root, "other", "x.bak"), "sibling is not affected")

	visited, failed := walkAll(t, NewOSFilesystemManager(nil), root)
	if len(failed) != 0 {
		t.Fatalf("unexpected walk errors: %v", failed)
	}

	want := []string{"./", "keep.bak", "other/", "other/x.bak", "sub/", "sub/a.txt", "sub/deep/"}
	if !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}
}
