// Package main provides the entry point for the codecouple CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/cmd/codecouple/commands"
	"github.com/sumatoshi-tech/codecouple/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "codecouple",
		Short: "codecouple mines git history for logical coupling between files",
		Long: `codecouple analyzes a repository's commit history to find files and
components that change together more often than chance would predict.

Commands:
  analyze    Run the extraction/changeset/edge/cluster pipeline over a repository
  hotspots   List entities ranked by churn
  coupling   Show coupling partners for one file or folder
  history    Show a file's commit history across its rename/copy lineage
  compare    Diff two clustering snapshots
  snapshot   List, rename or delete clustering snapshots`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewHotspotsCommand())
	rootCmd.AddCommand(commands.NewCouplingCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewCompareCommand())
	rootCmd.AddCommand(commands.NewSnapshotCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "codecouple %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
