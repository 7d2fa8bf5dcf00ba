// Package main provides the CLI entrypoint for shelltray.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/graylag/shelltray/internal/config"
	"github.com/graylag/shelltray/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose     bool
		historyFile string
		configPath  string
	}
	logger *slog.Logger

	historyStore  *store.Store
	tombstoneFile *store.TombstoneFile
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "shelltray",
	Short: "Client for the shelltrayd notification daemon",
	Long: `shelltray is the command line client for shelltrayd.

It sends and closes notifications over D-Bus, queries the persistent
notification history, and manages Do Not Disturb mode.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		historyPath := globalOpts.historyFile
		if historyPath == "" {
			historyPath = config.HistoryPath()
		}

		persistence, err := store.NewJSONLPersistence(historyPath)
		if err != nil {
			return fmt.Errorf("failed to initialize persistence: %w", err)
		}
		historyStore = store.NewStore(persistence)

		tombstoneFile = store.NewTombstoneFile(config.TombstonePath())
		tombstones, err := tombstoneFile.Load()
		if err != nil {
			logger.Warn("failed to load tombstones", "error", err)
		} else if len(tombstones) > 0 {
			historyStore.LoadTombstones(tombstones)
		}

		if err := historyStore.Hydrate(); err != nil {
			logger.Warn("failed to hydrate store from disk", "error", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if tombstoneFile != nil && historyStore != nil {
			tombstones := historyStore.GetTombstones()
			if len(tombstones) > 0 {
				if err := tombstoneFile.Save(tombstones); err != nil {
					logger.Warn("failed to save tombstones", "error", err)
				}
			}
		}

		if historyStore != nil {
			return historyStore.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.historyFile, "history-file", "",
		"Path to history file (default: ~/.local/share/shelltray/history.jsonl)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/shelltray/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
