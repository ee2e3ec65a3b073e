package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/marmos91/mdsessiond/internal/cli/output"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the sessions held by a rank's Session Map",
	Long: `Load the configured rank's Session Map from its object store and print
every session it holds, sorted by entity name.

Examples:
  # Dump as a table
  mdsessionctl dump

  # Dump as JSON
  mdsessionctl dump -o json`,
	RunE: runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	m, f, err := openAndLoad(context.Background())
	if err != nil {
		return err
	}
	defer f.Close(0)

	view := &DumpView{}
	m.Store().Dump(view)

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(view)
}
