// Package commands implements the mdsessionctl subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	configPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "mdsessionctl",
	Short: "Inspect a Session Map rank's persisted object store",
	Long: `mdsessionctl reads a Session Map's persisted object directly from its
configured object-store backend: dump the sessions it holds, show its
version lineage, or force a legacy-format upgrade.

It never talks to a running MDS process; it opens the object store itself,
the same way mdsessiond would on startup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/mdsessiond/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table|json|yaml)")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.Printf("mdsessionctl %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}
