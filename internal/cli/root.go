// Package cli wires the fitbit2oscar commands: converting exports, listing
// sources, inspecting archives, and serving the converter over MCP.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/config"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source/healthsync"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source/takeout"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/storage"
)

var (
	cfgPath   string
	verbosity int
)

var rootCmd = &cobra.Command{
	Use:   "fitbit2oscar",
	Short: "Convert Fitbit health exports into OSCAR-importable files",
	Long: `fitbit2oscar converts the sleep, oxygen saturation, and heart-rate data
in a Fitbit export into files OSCAR can import: a Dreem-style sleep
session CSV and Viatom pulse-oximeter binaries.

Supported export formats are Google Takeout archives and Health Sync
CSV directories.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log more (-v debug)")
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger on w at the configured level; any -v
// forces debug.
func newLogger(w *os.File, cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level()
	if verbosity > 0 {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newRegistry registers every built-in source handler.
func newRegistry(dateFormat healthsync.DateFormat, log *slog.Logger) (*source.Registry, error) {
	reg := source.NewRegistry()
	if err := reg.Register(takeout.New(log)); err != nil {
		return nil, err
	}
	if err := reg.Register(healthsync.New(dateFormat, log)); err != nil {
		return nil, err
	}
	return reg, nil
}

// openLedger opens the run ledger. A conversion proceeds without history
// when the ledger is disabled or cannot open.
func openLedger(cfg *config.Config, log *slog.Logger) *storage.DB {
	if !cfg.Ledger.Enabled {
		return nil
	}
	db, err := storage.Open(cfg.Ledger.Path)
	if err != nil {
		log.Warn("running without ledger", "path", cfg.Ledger.Path, "error", err)
		return nil
	}
	return db
}
