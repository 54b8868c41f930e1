package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/internal/query"
)

// NewCompareCommand builds `codecouple compare <from-snapshot> <to-snapshot>`:
// a diff of cluster membership between two clustering snapshots.
func NewCompareCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <from-snapshot-id> <to-snapshot-id>",
		Short: "Diff cluster membership between two clustering snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			diffs, err := api.Compare(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("compare %s..%s: %w", args[0], args[1], err)
			}

			printClusterDiffs(cmd, diffs)

			return nil
		},
	}

	registerStoreFlags(cmd)

	return cmd
}

func printClusterDiffs(cmd *cobra.Command, diffs []query.ClusterDiff) {
	out := cmd.OutOrStdout()

	if len(diffs) == 0 {
		fmt.Fprintln(out, "no cluster membership changes")

		return
	}

	tbl := newTable(out)
	tbl.AppendHeader(table.Row{"entity", "from cluster", "to cluster"})

	for _, d := range diffs {
		from := d.FromName
		if from == "" {
			from = "(none)"
		}

		to := d.ToName
		if to == "" {
			to = "(removed)"
		}

		tbl.AppendRow(table.Row{d.EntityID, from, to})
	}

	tbl.Render()
	fmt.Fprintf(out, "\n%d entities moved clusters\n", len(diffs))
}
