// Package commands implements the roastery CLI.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/marshallshelly/roastery/cmd/roastery/output"
	"github.com/marshallshelly/roastery/internal/config"
	"github.com/marshallshelly/roastery/internal/logging"
	"github.com/marshallshelly/roastery/pkg/runtime"
)

var (
	dbURL         string
	migrationsDir string
	verbose       bool
	jsonOutput    bool
)

var rootCmd = &cobra.Command{
	Use:   "roastery",
	Short: "Roastery - a directory of specialty coffee roasters",
	Long: `Roastery serves the coffee roaster directory API and manages its database.

Commands:
  serve     Run the HTTP JSON API
  migrate   Generate, apply and roll back schema migrations
  data      Run named one-off data migrations
  seed      Load countries, regions and specialties
  admin     Manage administrator accounts

Configuration is read from the environment (DATABASE_URL, JWT_SECRET, ...).
Global flags override it.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.New(os.Stderr).Error("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (overrides DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations-dir", "./migrations", "Directory for migration files (overrides MIGRATIONS_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// loadConfig reads the environment and applies the global flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, cfg)
	return cfg, nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if cmd.Flags().Changed("migrations-dir") {
		cfg.MigrationsDir = migrationsDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
}

// cliLogger logs to the console for interactive commands; quiet unless
// --verbose is set.
func cliLogger() (*zap.Logger, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	format := "console"
	if jsonOutput {
		format = "json"
	}
	return logging.New(level, format)
}

func openDB(ctx context.Context, cfg *config.Config) (*runtime.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("no database configured: set DATABASE_URL or pass --db")
	}
	db, err := runtime.Connect(ctx, runtime.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func printer(cmd *cobra.Command) *output.Printer {
	return output.New(cmd.OutOrStdout())
}
