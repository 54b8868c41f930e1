package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/internal/query"
)

// NewHistoryCommand builds `codecouple history <path>`: the full commit
// history of one file, following its rename/copy lineage chain.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <path>",
		Short: "Show a file's commit history across renames and copies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repoID := repoIDFlag(cmd)

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			entity, err := resolveEntity(ctx, api, repoID, args[0])
			if err != nil {
				return err
			}

			hist, err := api.FileHistory(ctx, entity.ID)
			if err != nil {
				return fmt.Errorf("history for %s: %w", entity.QualifiedName, err)
			}

			printFileHistory(cmd, hist)

			return nil
		},
	}

	registerStoreFlags(cmd)

	return cmd
}

func printFileHistory(cmd *cobra.Command, hist query.FileHistory) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s (%d commits, %d lineage links)\n\n", hist.Entity.QualifiedName, len(hist.Commits), len(hist.Lineage))

	if len(hist.Lineage) > 0 {
		lineageTbl := newTable(out)
		lineageTbl.AppendHeader(table.Row{"old path", "new path", "kind", "similarity"})

		for _, l := range hist.Lineage {
			lineageTbl.AppendRow(table.Row{l.OldPath, l.NewPath, l.DetectedKind, fmt.Sprintf("%.2f", l.Similarity)})
		}

		lineageTbl.Render()
		fmt.Fprintln(out)
	}

	commitTbl := newTable(out)
	commitTbl.AppendHeader(table.Row{"commit", "date", "subject"})

	for _, c := range hist.Commits {
		commitTbl.AppendRow(table.Row{
			shortOid(c.Oid), time.Unix(c.AuthorTS, 0).Format("2006-01-02"), c.Subject,
		})
	}

	commitTbl.Render()
}

func shortOid(oid string) string {
	const shortLen = 10
	if len(oid) <= shortLen {
		return oid
	}

	return oid[:shortLen]
}
