package encryption

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeEncrypted(t *testing.T, e *TestEncryptor, path string, content []byte) {
	t.Helper()
	var buf bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(content), &buf); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestDecryptTree(t *testing.T) {
	t.Parallel()

	e := NewTestEncryptor()
	src := t.TempDir()
	dst := t.TempDir()

	writeEncrypted(t, e, filepath.Join(src, "a.txt.age"), []byte("alpha"))
	writeEncrypted(t, e, filepath.Join(src, "docs", "b.txt.age"), []byte("beta"))
	if err := os.WriteFile(filepath.Join(src, "docs", "broken.age"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "notes.txt"), []byte("plain"), 0644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(src, "a.txt.age"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	dc, _ := e.Unlock("")
	var failed []string
	res, err := DecryptTree(dc, src, dst, func(path string, err error) {
		failed = append(failed, filepath.Base(path))
	})
	if err != nil {
		t.Fatalf("DecryptTree() error = %v", err)
	}
	if res.Decrypted != 2 || res.Failed != 1 {
		t.Errorf("DecryptTree() = %+v, want 2 decrypted and 1 failed", res)
	}
	if len(failed) != 1 || failed[0] != "broken.age" {
		t.Errorf("failed = %v, want [broken.age]", failed)
	}

	for rel, want := range map[string]string{"a.txt": "alpha", filepath.Join("docs", "b.txt"): "beta"} {
		got, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil {
			t.Errorf("ReadFile(%s) error = %v", rel, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", rel, got, want)
		}
	}

	if _, err := os.Stat(filepath.Join(dst, "notes.txt")); !os.IsNotExist(err) {
		t.Error("unencrypted file should not be copied")
	}
	if _, err := os.Stat(filepath.Join(dst, "docs", "broken")); !os.IsNotExist(err) {
		t.Error("failed file should leave nothing behind")
	}

	info, err := os.Stat(filepath.Join(dst, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("ModTime = %v, want %v", info.ModTime(), mtime)
	}
}
