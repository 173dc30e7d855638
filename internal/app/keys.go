package app

import (
	"fmt"

	"bkup-go/internal/config"
	"bkup-go/internal/encryption"
)

// SetupEncryption generates the key pair named in cfg, sealing the private
// key with passphrase.
func SetupEncryption(cfg config.EncryptionConfig, passphrase string) error {
	enc, err := encryption.NewEncryptor(cfg)
	if err != nil {
		return err
	}
	if err := enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	return nil
}

// Decrypt unlocks the private key and restores every encrypted copy below
// src into dst.
func Decrypt(cfg config.EncryptionConfig, passphrase, src, dst string, onError func(path string, err error)) (encryption.DecryptResult, error) {
	enc, err := encryption.NewEncryptor(cfg)
	if err != nil {
		return encryption.DecryptResult{}, err
	}
	if !enc.IsConfigured() {
		return encryption.DecryptResult{}, fmt.Errorf("no encryption keys found (run `bkup config init --encrypt`)")
	}
	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return encryption.DecryptResult{}, err
	}
	return encryption.DecryptTree(dc, src, dst, onError)
}
