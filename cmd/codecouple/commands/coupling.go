package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/query"
)

// NewCouplingCommand builds `codecouple coupling <path>`: the strongest
// coupling partners for a single file, or every component edge when no
// path is given.
func NewCouplingCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "coupling [path]",
		Short: "Show coupling partners for a file, or component-level coupling with no argument",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repoID := repoIDFlag(cmd)

			api, closeFn, err := openQueryAPI(ctx, dataDirFlag(cmd))
			if err != nil {
				return err
			}
			defer closeFn()

			if len(args) == 0 {
				edges, err := api.ComponentCoupling(ctx, repoID)
				if err != nil {
					return fmt.Errorf("component coupling: %w", err)
				}

				printComponentEdges(cmd, edges)

				return nil
			}

			entity, err := resolveEntity(ctx, api, repoID, args[0])
			if err != nil {
				return err
			}

			rels, err := api.Coupling(ctx, repoID, entity.ID, limit)
			if err != nil {
				return fmt.Errorf("coupling for %s: %w", entity.QualifiedName, err)
			}

			return printCoupling(cmd, api, entity, rels)
		},
	}

	registerStoreFlags(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum partners to show")

	return cmd
}

func printCoupling(cmd *cobra.Command, api *query.API, entity model.Entity, rels []model.Relationship) error {
	ctx := cmd.Context()

	tbl := newTable(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"partner", "weight", "support", "pair_count"})

	for _, r := range rels {
		otherID := r.DstID
		if otherID == entity.ID {
			otherID = r.SrcID
		}

		other, ok, err := api.Store.EntityByID(ctx, otherID)
		if err != nil {
			return fmt.Errorf("load partner entity %d: %w", otherID, err)
		}

		partner := fmt.Sprintf("#%d", otherID)
		if ok {
			partner = other.QualifiedName
		}

		tbl.AppendRow(table.Row{partner, fmt.Sprintf("%.3f", r.Weight), r.Metadata.Support, r.Metadata.PairCount})
	}

	tbl.Render()

	return nil
}

func printComponentEdges(cmd *cobra.Command, edges []model.ComponentEdge) {
	tbl := newTable(cmd.OutOrStdout())
	tbl.AppendHeader(table.Row{"component a", "component b", "jaccard", "pair_count"})

	for _, e := range edges {
		tbl.AppendRow(table.Row{
			e.SrcComponent, e.DstComponent, fmt.Sprintf("%.3f", e.ComponentJaccard), e.ComponentPairCount,
		})
	}

	tbl.Render()
}
