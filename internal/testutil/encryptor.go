package testutil

import (
	"bkup-go/internal/encryption"
)

// NewTestEncryptor returns the deterministic header-prefixing encryptor.
func NewTestEncryptor() *encryption.TestEncryptor {
	return encryption.NewTestEncryptor()
}
