package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that override the default locations.
const (
	EnvConfigPath = "BKUP_CONFIG_PATH"
	EnvHome       = "BKUP_HOME"
)

// Defaults holds the locations used when no config file says otherwise.
type Defaults struct {
	ConfigPath string // ~/.config/bkup.toml
	BaseDir    string // ~/.local/share/bkup
	LogDir     string // <BaseDir>/log
}

// GetDefaults resolves the default locations, honouring BKUP_CONFIG_PATH
// and BKUP_HOME.
func GetDefaults() (Defaults, error) {
	configPath := os.Getenv(EnvConfigPath)
	baseDir := os.Getenv(EnvHome)

	if configPath == "" || baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if configPath == "" {
			configPath = filepath.Join(home, ".config", "bkup.toml")
		}
		if baseDir == "" {
			baseDir = filepath.Join(home, ".local", "share", "bkup")
		}
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}
