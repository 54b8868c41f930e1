package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// NewHotspotsCommand builds `codecouple hotspots`: entities ranked by churn.
func NewHotspotsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "hotspots",
		Short: "List entities ranked by churn (insertions + deletions)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			entities, err := api.Hotspots(ctx, repoIDFlag(cmd), limit)
			if err != nil {
				return fmt.Errorf("hotspots: %w", err)
			}

			printHotspots(cmd, entities)

			return nil
		},
	}

	registerStoreFlags(cmd)
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entities to show")

	return cmd
}

func printHotspots(cmd *cobra.Command, entities []model.Entity) {
	tbl := newTable(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"path", "kind", "commits", "churn", "last changed"})

	for _, e := range entities {
		churn := e.Stats.Insertions + e.Stats.Deletions
		tbl.AppendRow(table.Row{
			e.QualifiedName, e.Kind, e.Stats.TotalCommits, churn, e.Stats.LastChangeAt.Format("2006-01-02"),
		})
	}

	tbl.Render()
}
