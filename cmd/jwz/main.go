// Command jwz is a thin cobra shell over internal/repository. It owns
// argument parsing and output formatting and nothing else. It never
// touches the log file, the index, or the lock directly.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"jwz/internal/app"
	"jwz/internal/config"
	"jwz/internal/repository"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newApp reads the config, discovers the store rooted at or above the
// current directory, and opens a JWZApp. The caller must defer a.Close().
// command identifies the CLI command being run, for the log handler's
// opID column.
func newApp(ctx context.Context, command string) (*app.JWZApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config (run \"jwz config init\" first): %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}

	storeDir, err := repository.Discover(afero.NewOsFs(), cwd)
	if err != nil {
		return nil, fmt.Errorf("finding store (run \"jwz init\" first): %w", err)
	}

	a, err := app.NewJWZApp(ctx, cfg, storeDir, command)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "jwz",
	Short: "Local durable message store with threads, search, and attachments",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.Default(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Store dir name:  %s\n", cfg.StoreDirName)
		fmt.Printf("Log dir:         %s\n", cfg.LogDir)
		fmt.Printf("Retry:           %d attempts, %v-%v backoff\n", cfg.Retry.MaxAttempts, cfg.Retry.MinBackoff(), cfg.Retry.MaxBackoff())
		fmt.Printf("Search limit:    %d\n", cfg.Search.DefaultLimit)
		return nil
	},
}

// init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new store in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			cfg = config.Default(defaults["base_dir"])
		}

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		storeDir := filepath.Join(cwd, cfg.StoreDirName)
		if err := repository.Initialize(afero.NewOsFs(), storeDir); err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}

		fmt.Printf("Initialized store at %s\n", storeDir)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(initCmd)
}
