package sink

import (
	"fmt"
	"io"

	"bkup-go/internal/bk"
	"bkup-go/internal/encryption"
)

// EncryptedSuffix is appended to every file written by an EncryptingDestination.
const EncryptedSuffix = encryption.Suffix

// EncryptingDestination encrypts file content before handing it to the
// wrapped destination. Folders are passed through unchanged.
type EncryptingDestination struct {
	inner bk.Destination
	enc   bk.Encryptor
}

// NewEncryptingDestination wraps inner so that files are stored encrypted.
func NewEncryptingDestination(inner bk.Destination, enc bk.Encryptor) *EncryptingDestination {
	return &EncryptingDestination{inner: inner, enc: enc}
}

func (d *EncryptingDestination) String() string { return d.inner.String() }

func (d *EncryptingDestination) Validate() error {
	if !d.enc.IsConfigured() {
		return fmt.Errorf("encryption is enabled but keys are not set up (run `bkup config init --encrypt`)")
	}
	return d.inner.Validate()
}

func (d *EncryptingDestination) MkdirAll(rel string) (bool, error) {
	return d.inner.MkdirAll(rel)
}

// Unchanged compares modification times only; ciphertext size differs from
// the source.
func (d *EncryptingDestination) Unchanged(rel string, meta bk.FileMeta) (bool, error) {
	meta.Size = -1
	return d.inner.Unchanged(rel+EncryptedSuffix, meta)
}

// WriteFile streams r through the encryptor into rel + ".age" and returns the
// number of plaintext bytes read.
func (d *EncryptingDestination) WriteFile(rel string, r io.Reader, meta bk.FileMeta) (int64, error) {
	plain := &countingReader{r: r}
	pr, pw := io.Pipe()

	encErr := make(chan error, 1)
	go func() {
		err := d.enc.Encrypt(plain, pw)
		pw.CloseWithError(err)
		encErr <- err
	}()

	cipherMeta := meta
	cipherMeta.Size = -1
	_, err := d.inner.WriteFile(rel+EncryptedSuffix, pr, cipherMeta)
	// Unblock the encryptor if the write stopped early.
	pr.CloseWithError(io.ErrClosedPipe)
	if eerr := <-encErr; eerr != nil && err == nil {
		err = fmt.Errorf("encrypting: %w", eerr)
	}
	if err != nil {
		return plain.n, err
	}

	if meta.Size >= 0 && plain.n != meta.Size {
		return plain.n, fmt.Errorf("size mismatch: expected %d bytes, got %d (file changed during copy)", meta.Size, plain.n)
	}
	return plain.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

var _ bk.Destination = (*EncryptingDestination)(nil)
