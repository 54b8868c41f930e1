package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// NewSnapshotCommand builds `codecouple snapshot`, with `list`, `rename` and
// `delete` subcommands over stored ClusteringSnapshots.
func NewSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "List, rename or delete clustering snapshots",
	}

	registerStoreFlags(cmd)
	cmd.AddCommand(newSnapshotListCommand())
	cmd.AddCommand(newSnapshotRenameCommand())
	cmd.AddCommand(newSnapshotDeleteCommand())

	return cmd
}

func newSnapshotListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clustering snapshots for a repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			snaps, err := api.Snapshots(ctx, repoIDFlag(cmd))
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}

			printSnapshots(cmd, snaps)

			return nil
		},
	}

	return cmd
}

func newSnapshotRenameCommand() *cobra.Command {
	var tags []string

	cmd := &cobra.Command{
		Use:   "rename <snapshot-id> <name>",
		Short: "Rename a clustering snapshot and optionally retag it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			if err := api.RenameSnapshot(ctx, args[0], args[1], tags); err != nil {
				return fmt.Errorf("rename snapshot %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s -> %s\n", args[0], args[1])

			return nil
		},
	}

	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Replace the snapshot's tags")

	return cmd
}

func newSnapshotDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a clustering snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			if err := api.DeleteSnapshot(ctx, args[0]); err != nil {
				return fmt.Errorf("delete snapshot %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])

			return nil
		},
	}

	return cmd
}

func printSnapshots(cmd *cobra.Command, snaps []model.ClusteringSnapshot) {
	tbl := newTable(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"snapshot id", "name", "algorithm", "clusters", "tags", "created"})

	for _, s := range snaps {
		tbl.AppendRow(table.Row{
			s.SnapshotID, s.Name, s.Algorithm, len(s.Clusters),
			strings.Join(s.Tags, ","), s.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	tbl.Render()
}
