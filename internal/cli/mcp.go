package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/config"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/mcp"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source/healthsync"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the converter over the Model Context Protocol",
	Long: `Serves MCP on stdin/stdout so an assistant can list sources, inspect
exports, run conversions, and read the run history.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	// Stdout carries the protocol, so logs go to stderr.
	log := newLogger(os.Stderr, cfg)

	ledger := openLedger(cfg, log)
	if ledger != nil {
		defer ledger.Close()
	}

	newReg := func(dateFormat string) (*source.Registry, error) {
		df, err := healthsync.ParseDateFormat(dateFormat)
		if err != nil {
			return nil, err
		}
		return newRegistry(df, log)
	}

	log.Info("serving MCP on stdio", "version", Version)
	return mcp.ServeStdio(mcp.New(newReg, ledger, Version, log))
}
