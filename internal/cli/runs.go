package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/config"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/storage"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent conversion runs",
	Long:  `Lists the ledger's conversion history, newest first.`,
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "maximum runs to show")
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return errs.Inputf("the ledger is disabled; enable it in config to record runs")
	}
	db, err := storage.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-7s %-12s sleep=%d spo2=%d hr=%d skipped=%d",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Status, r.Source, r.Sleep, r.SpO2, r.HeartRate, r.Skipped)
		if r.Error != "" {
			fmt.Printf("  %s", r.Error)
		}
		fmt.Println()
	}
	return nil
}
