package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// ReplaceRelationships deletes every Relationship row for (repoID, any prior
// run) and inserts the given set under runID — edges are rebuilt wholesale
// every run, never patched incrementally (§5 "Edges are rebuilt wholesale
// every run").
func (s *Store) ReplaceRelationships(ctx context.Context, repoID, runID string, rels []model.Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE repo_id = ?`, repoID); err != nil {
		return fmt.Errorf("clear relationships: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO relationships
			(repo_id, run_id, source_type, kind, src_id, dst_id, weight,
			 support, support_src, support_dst, pair_count,
			 p_dst_given_src, p_src_given_dst, jaccard_weighted, decayed_weight)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert relationship: %w", err)
	}
	defer stmt.Close()

	for _, r := range rels {
		_, err := stmt.ExecContext(ctx,
			repoID, runID, string(r.SourceType), string(r.Kind), r.SrcID, r.DstID, r.Weight,
			r.Metadata.Support, r.Metadata.SupportSrc, r.Metadata.SupportDst, r.Metadata.PairCount,
			r.Metadata.PDstGivenSrc, r.Metadata.PSrcGivenDst,
			nullableFloat(r.Metadata.JaccardWeight), nullableFloat(r.Metadata.DecayedWeight),
		)
		if err != nil {
			return fmt.Errorf("insert relationship %d-%d: %w", r.SrcID, r.DstID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit relationships: %w", err)
	}

	return nil
}

// ReplaceComponentEdges mirrors ReplaceRelationships for the component-level
// projection.
func (s *Store) ReplaceComponentEdges(ctx context.Context, repoID, runID string, edges []model.ComponentEdge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM component_edges WHERE repo_id = ?`, repoID); err != nil {
		return fmt.Errorf("clear component_edges: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO component_edges
			(repo_id, run_id, src_component, dst_component, component_pair_count, component_jaccard)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert component_edge: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		_, err := stmt.ExecContext(ctx, repoID, runID, e.SrcComponent, e.DstComponent, e.ComponentPairCount, e.ComponentJaccard)
		if err != nil {
			return fmt.Errorf("insert component_edge %s-%s: %w", e.SrcComponent, e.DstComponent, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit component_edges: %w", err)
	}

	return nil
}

// EntityPaths returns qualified_name for every entity id, for EdgeBuilder's
// component projection step.
func (s *Store) EntityPaths(ctx context.Context, repoID string) (map[int64]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, qualified_name FROM entities WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, fmt.Errorf("query entity paths: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string)

	for rows.Next() {
		var (
			id   int64
			name string
		)

		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan entity path: %w", err)
		}

		out[id] = name
	}

	return out, rows.Err()
}

func nullableFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: *v, Valid: true}
}
