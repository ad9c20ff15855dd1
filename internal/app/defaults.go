package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - JWZ_CONFIG_PATH: config file location (default: ~/.config/jwz.toml)
//   - JWZ_HOME: base directory for jwz data (default: ~/.local/share/jwz)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking JWZ_CONFIG_PATH env var first,
// then falling back to the default ~/.config/jwz.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("JWZ_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "jwz.toml"), nil
}

// getBaseDir returns the base directory for jwz data, checking JWZ_HOME env var first,
// then falling back to the XDG default ~/.local/share/jwz.
func getBaseDir() (string, error) {
	if path := os.Getenv("JWZ_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "jwz"), nil
}
