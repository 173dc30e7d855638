package encryption

import (
	"fmt"

	"bkup-go/internal/bk"
	"bkup-go/internal/config"
)

// NewEncryptorFromConfig returns the configured Encryptor, or nil when
// encryption is disabled.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (bk.Encryptor, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	return NewEncryptor(cfg)
}

// NewEncryptor builds the Encryptor named by cfg.Type regardless of Enabled.
// Key setup and decryption use it before encryption is switched on.
func NewEncryptor(cfg config.EncryptionConfig) (bk.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
