package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/config"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/pipeline"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source/healthsync"
)

var (
	convertInput      string
	convertOutput     string
	convertStart      string
	convertEnd        string
	convertDateFormat string
	convertForce      bool
)

var convertCmd = &cobra.Command{
	Use:   "convert [source]",
	Short: "Convert a Fitbit export into OSCAR files",
	Long: `Converts the export under the input directory into a Dreem sleep CSV
and Viatom pulse-oximeter binaries in the output directory.

The source argument picks the export format; without it the configured
source is used. Files the ledger has already seen unchanged are skipped
unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertInput, "input", "i", "", "export directory")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output directory")
	convertCmd.Flags().StringVar(&convertStart, "start", "", "earliest date to convert (YYYY-M-D)")
	convertCmd.Flags().StringVar(&convertEnd, "end", "", "latest date to convert (YYYY-M-D)")
	convertCmd.Flags().StringVar(&convertDateFormat, "date-format", "", "Health Sync filename granularity: DAILY, WEEKLY, or MONTHLY")
	convertCmd.Flags().BoolVar(&convertForce, "force", false, "reconvert files the ledger has already seen")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Input.Source = args[0]
	}
	if convertInput != "" {
		cfg.Input.Path = convertInput
	}
	if convertOutput != "" {
		cfg.Output.Path = convertOutput
	}
	if convertDateFormat != "" {
		cfg.Input.DateFormat = convertDateFormat
	}
	if cfg.Input.Path == "" {
		return errs.Inputf("no export directory; pass --input or set input.path")
	}

	start, end, err := pipeline.Window(convertStart, convertEnd)
	if err != nil {
		return err
	}
	dateFormat, err := healthsync.ParseDateFormat(cfg.Input.DateFormat)
	if err != nil {
		return err
	}

	log := newLogger(os.Stdout, cfg)
	reg, err := newRegistry(dateFormat, log)
	if err != nil {
		return err
	}
	h, err := reg.Get(cfg.Input.Source)
	if err != nil {
		return err
	}

	ledger := openLedger(cfg, log)
	if ledger != nil {
		defer ledger.Close()
	}

	stats, err := pipeline.New(h, ledger, log).Run(cmd.Context(), pipeline.Options{
		InputRoot: cfg.Input.Path,
		OutputDir: cfg.Output.Path,
		Start:     start,
		End:       end,
		Force:     convertForce,
	})
	printStats(log, stats)
	if err != nil {
		return err
	}
	log.Info("conversion complete", "output", cfg.Output.Path)
	return nil
}

func printStats(log *slog.Logger, stats *pipeline.Stats) {
	log.Info("conversion stats",
		"files_located", stats.FilesLocated,
		"files_skipped", stats.FilesSkipped,
		"sleep_sessions", stats.SleepSessions,
		"spo2_readings", stats.SpO2Readings,
		"heart_rate_readings", stats.HeartRateReadings,
		"records_skipped", stats.RecordsSkipped,
		"low_confidence", stats.LowConfidence,
		"filtered_out", stats.FilteredOut,
		"viatom_files", stats.ViatomFiles,
	)
}
