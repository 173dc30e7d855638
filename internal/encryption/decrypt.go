package encryption

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bkup-go/internal/bk"
)

// Suffix is appended to the name of every encrypted copy.
const Suffix = ".age"

// DecryptResult counts the outcome of DecryptTree.
type DecryptResult struct {
	Decrypted int
	Failed    int
}

// DecryptFile writes the plaintext of the encrypted file src to dst.
// dst is written through a temp file so a wrong key never leaves a partial file.
func DecryptFile(dc bk.DecryptionContext, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := dc.Decrypt(in, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}

// DecryptTree restores every *.age file below src into the same layout
// below dst, without the suffix. Other files are ignored. Failures are
// reported to onError and counted; they do not stop the walk.
func DecryptTree(dc bk.DecryptionContext, src, dst string, onError func(path string, err error)) (DecryptResult, error) {
	var res DecryptResult
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			res.Failed++
			onError(path, err)
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dst, rel), 0755)
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(rel, Suffix) {
			return nil
		}

		target := filepath.Join(dst, strings.TrimSuffix(rel, Suffix))
		if err := DecryptFile(dc, path, target); err != nil {
			res.Failed++
			onError(path, err)
			return nil
		}
		res.Decrypted++
		return nil
	})
	return res, err
}
