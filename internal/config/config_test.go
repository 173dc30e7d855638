package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		HostID:      "test-host-abc",
		BaseDir:     "/home/user/.local/share/bkup",
		LogDir:      "/home/user/.local/share/bkup/log",
		JournalPath: "/home/user/.local/share/bkup/backup.log",
		Incremental: true,
		Destination: DestinationConfig{
			S3Region:       "eu-west-1",
			S3Endpoint:     "http://localhost:9000",
			S3UsePathStyle: true,
		},
		Encryption: EncryptionConfig{
			Enabled:        true,
			PublicKeyPath:  "/home/user/.local/share/bkup/keys/bkup.pub",
			PrivateKeyPath: "/home/user/.local/share/bkup/keys/bkup.key",
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/bkup/db"},
		Filesystem: FilesystemConfig{
			Ignore: []string{"*.log", ".git"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.HostID != original.HostID {
		t.Errorf("HostID = %q, want %q", got.HostID, original.HostID)
	}
	if got.JournalPath != original.JournalPath {
		t.Errorf("JournalPath = %q, want %q", got.JournalPath, original.JournalPath)
	}
	if !got.Incremental {
		t.Error("Incremental = false, want true")
	}
	if got.Destination.S3Region != "eu-west-1" {
		t.Errorf("Destination.S3Region = %q, want %q", got.Destination.S3Region, "eu-west-1")
	}
	if !got.Destination.S3UsePathStyle {
		t.Error("Destination.S3UsePathStyle = false, want true")
	}
	if !got.Encryption.Enabled {
		t.Error("Encryption.Enabled = false, want true")
	}
	if got.Database.DataDir != original.Database.DataDir {
		t.Errorf("Database.DataDir = %q, want %q", got.Database.DataDir, original.Database.DataDir)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("host-1", "/data/bkup")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"HostID", cfg.HostID, "host-1"},
		{"BaseDir", cfg.BaseDir, "/data/bkup"},
		{"LogDir", cfg.LogDir, "/data/bkup/log"},
		{"JournalPath", cfg.JournalPath, "/data/bkup/backup.log"},
		{"Database.Type", cfg.Database.Type, "sqlite"},
		{"Database.DataDir", cfg.Database.DataDir, "/data/bkup/db"},
		{"Encryption.PublicKeyPath", cfg.Encryption.PublicKeyPath, "/data/bkup/keys/bkup.pub"},
		{"Encryption.PrivateKeyPath", cfg.Encryption.PrivateKeyPath, "/data/bkup/keys/bkup.key"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
	if cfg.Encryption.Enabled {
		t.Error("Encryption.Enabled = true, want false by default")
	}
	if cfg.Incremental {
		t.Error("Incremental = true, want full copies by default")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bkup.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("config file mode = %o, want 600", perm)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bkup.toml")
		cfg := NewConfig("h1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		if err := Init(path, cfg); err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "bkup.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.HostID != "read-test" {
			t.Errorf("HostID = %q, want %q", got.HostID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := ReadFromFile("/nonexistent/path/bkup.toml"); err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
