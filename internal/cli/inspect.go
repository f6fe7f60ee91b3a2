package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/config"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/errs"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/models"
	"github.com/ashrobertsdragon/fitbit2oscar/internal/source/healthsync"
)

var inspectInput string

var inspectCmd = &cobra.Command{
	Use:   "inspect <source>",
	Short: "Show what an export directory contains",
	Long: `Locates and counts one export's files and records per data kind
without converting anything.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectInput, "input", "i", "", "export directory")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return err
	}
	if inspectInput != "" {
		cfg.Input.Path = inspectInput
	}
	if cfg.Input.Path == "" {
		return errs.Inputf("no export directory; pass --input or set input.path")
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
	h, err := reg.Get(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Source:   %s\n", h.Name())
	fmt.Printf("Timezone: %s\n", h.Timezone(cfg.Input.Path))
	fmt.Println()
	for _, kind := range models.Kinds() {
		if _, ok := h.Schema().Kinds[kind]; !ok {
			continue
		}
		files, err := h.Locate(cfg.Input.Path, kind)
		if err != nil {
			fmt.Printf("  %-12s %v\n", kind, err)
			continue
		}
		records := 0
		for _, f := range files {
			recs, err := h.Extract(f, kind)
			if err != nil {
				return err
			}
			records += len(recs)
		}
		fmt.Printf("  %-12s %d files, %d records\n", kind, len(files), records)
	}
	return nil
}
