package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents jwz's ambient, non-functional settings. The core
// Repository never reads this directly; internal/app resolves it into
// concrete constructor arguments (a database.RetryPolicy, a log
// directory, a result limit) before wiring a Store.
type Config struct {
	// StoreDirName is the child-directory name `jwz init` creates
	// (".jwz" or ".zawinski"). Discover does not read it: it always
	// recognizes both names, ".jwz" first.
	StoreDirName string       `toml:"store_dir_name"`
	LogDir       string       `toml:"log_dir"`
	Retry        RetryConfig  `toml:"retry"`
	Search       SearchConfig `toml:"search"`
}

// RetryConfig mirrors database.RetryPolicy's bounds in a form that can
// round-trip through TOML (time.Duration has no native TOML type).
type RetryConfig struct {
	MaxAttempts  int `toml:"max_attempts"`
	MinBackoffMS int `toml:"min_backoff_ms"`
	MaxBackoffMS int `toml:"max_backoff_ms"`
}

// SearchConfig holds defaults the CLI falls back to when a command
// doesn't specify its own limit.
type SearchConfig struct {
	DefaultLimit int `toml:"default_limit"`
}

// MinBackoff and MaxBackoff convert the millisecond fields into
// time.Duration for database.NewRetryPolicy.
func (r RetryConfig) MinBackoff() time.Duration { return time.Duration(r.MinBackoffMS) * time.Millisecond }
func (r RetryConfig) MaxBackoff() time.Duration { return time.Duration(r.MaxBackoffMS) * time.Millisecond }

// Default returns jwz's out-of-the-box configuration: the preferred
// store directory name, a log directory under baseDir, spec.md §5's
// retry bounds (50 attempts, 50-500ms), and a 20-result search default.
func Default(baseDir string) *Config {
	return &Config{
		StoreDirName: ".jwz",
		LogDir:       filepath.Join(baseDir, "log"),
		Retry: RetryConfig{
			MaxAttempts:  50,
			MinBackoffMS: 50,
			MaxBackoffMS: 500,
		},
		Search: SearchConfig{DefaultLimit: 20},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
