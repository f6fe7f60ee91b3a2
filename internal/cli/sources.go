package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashrobertsdragon/fitbit2oscar/internal/source/healthsync"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List supported export formats",
	Long:  `Lists the export formats fitbit2oscar can convert and the data each provides.`,
	RunE:  runSources,
}

func runSources(cmd *cobra.Command, args []string) error {
	// Registration only validates schemas here, so logging is irrelevant.
	reg, err := newRegistry(healthsync.Daily, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}

	fmt.Println("Supported sources:")
	fmt.Println()
	for _, name := range reg.Names() {
		h, err := reg.Get(name)
		if err != nil {
			return err
		}
		kinds := make([]string, 0, len(h.Schema().Kinds))
		for kind := range h.Schema().Kinds {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		fmt.Printf("  %-14s %s\n", name, strings.Join(kinds, ", "))
	}
	fmt.Println()
	return nil
}
