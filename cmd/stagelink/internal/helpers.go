package internal

import (
	"os"
	"path/filepath"

	"github.com/tinyland-inc/stagelink/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
)

// GetConfigPath returns the default config file location.
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stagelink", "config.json")
}

// LoadConfig loads the config from the default path, creating it with
// defaults on first run so the operator has a file to edit.
func LoadConfig() (*config.Config, error) {
	path := GetConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
			return nil, err
		}
	}
	return config.LoadConfig(path)
}

// FormatVersion returns the version string with optional git commit.
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += " (" + gitCommit + ")"
	}
	return v
}
