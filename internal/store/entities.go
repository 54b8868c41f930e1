package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// EntityFilter narrows ListEntities: Search matches a substring of
// qualified_name, HeadOnly restricts to entities still present at HEAD.
type EntityFilter struct {
	Search   string
	HeadOnly bool
	Limit    int
	Offset   int
}

// ListEntities returns entities for repoID matching filter, ordered by
// qualified_name for stable pagination.
func (s *Store) ListEntities(ctx context.Context, repoID string, filter EntityFilter) ([]model.Entity, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, repo_id, kind, qualified_name, language, parent_id,
		       total_commits, first_change_at, last_change_at, insertions, deletions,
		       authors_json, exists_at_head
		FROM entities WHERE repo_id = ?
	`
	args := []any{repoID}

	if filter.Search != "" {
		query += ` AND qualified_name LIKE ?`
		args = append(args, "%"+filter.Search+"%")
	}

	if filter.HeadOnly {
		query += ` AND exists_at_head = 1`
	}

	query += ` ORDER BY qualified_name LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// AllEntities returns every entity for repoID, unpaginated — used by the
// Clusterer stage to build its aggregate input, where pagination would
// only complicate a one-shot in-memory pass.
func (s *Store) AllEntities(ctx context.Context, repoID string) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, kind, qualified_name, language, parent_id,
		       total_commits, first_change_at, last_change_at, insertions, deletions,
		       authors_json, exists_at_head
		FROM entities WHERE repo_id = ?
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("list all entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// EntityByID fetches one entity row.
func (s *Store) EntityByID(ctx context.Context, id int64) (model.Entity, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, repo_id, kind, qualified_name, language, parent_id,
		       total_commits, first_change_at, last_change_at, insertions, deletions,
		       authors_json, exists_at_head
		FROM entities WHERE id = ?
	`, id)

	e, err := scanEntityRow(row)
	if err == sql.ErrNoRows {
		return model.Entity{}, false, nil
	}

	if err != nil {
		return model.Entity{}, false, fmt.Errorf("query entity %d: %w", id, err)
	}

	return e, true, nil
}

// Hotspots returns entities for repoID ranked by churn (insertions +
// deletions) descending.
func (s *Store) Hotspots(ctx context.Context, repoID string, limit int) ([]model.Entity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, kind, qualified_name, language, parent_id,
		       total_commits, first_change_at, last_change_at, insertions, deletions,
		       authors_json, exists_at_head
		FROM entities WHERE repo_id = ? AND exists_at_head = 1
		ORDER BY (insertions + deletions) DESC LIMIT ?
	`, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("query hotspots: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func scanEntities(rows *sql.Rows) ([]model.Entity, error) {
	var out []model.Entity

	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}

func scanEntityRow(r rowScanner) (model.Entity, error) {
	var (
		e             model.Entity
		kind          string
		parentID      sql.NullInt64
		firstChangeAt sql.NullTime
		lastChangeAt  sql.NullTime
		authorsJSON   string
		existsAtHead  int
	)

	err := r.Scan(&e.ID, &e.RepoID, &kind, &e.QualifiedName, &e.Language, &parentID,
		&e.Stats.TotalCommits, &firstChangeAt, &lastChangeAt, &e.Stats.Insertions, &e.Stats.Deletions,
		&authorsJSON, &existsAtHead)
	if err != nil {
		return model.Entity{}, err
	}

	e.Kind = model.EntityKind(kind)
	e.ExistsAtHead = existsAtHead != 0

	if parentID.Valid {
		id := parentID.Int64
		e.ParentID = &id
	}

	if firstChangeAt.Valid {
		e.Stats.FirstChangeAt = firstChangeAt.Time
	}

	if lastChangeAt.Valid {
		e.Stats.LastChangeAt = lastChangeAt.Time
	}

	authors := map[string]int{}
	_ = json.Unmarshal([]byte(authorsJSON), &authors)
	e.Stats.Authors = authors

	return e, nil
}

// LineageForEntity returns every FileLineage row where id appears as either
// endpoint, oldest first — the full rename/copy chain for file_history.
func (s *Store) LineageForEntity(ctx context.Context, id int64) ([]model.FileLineage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, old_entity_id, new_entity_id, old_path, new_path, commit_oid, similarity, detected_kind
		FROM file_lineage WHERE old_entity_id = ? OR new_entity_id = ?
		ORDER BY id ASC
	`, id, id)
	if err != nil {
		return nil, fmt.Errorf("query file_lineage for %d: %w", id, err)
	}
	defer rows.Close()

	var out []model.FileLineage

	for rows.Next() {
		var (
			l    model.FileLineage
			kind string
		)

		err := rows.Scan(&l.ID, &l.RepoID, &l.OldEntityID, &l.NewEntityID, &l.OldPath, &l.NewPath,
			&l.CommitOid, &l.Similarity, &kind)
		if err != nil {
			return nil, fmt.Errorf("scan file_lineage: %w", err)
		}

		l.DetectedKind = model.ChangeType(kind)
		out = append(out, l)
	}

	return out, rows.Err()
}

// RelationshipsForEntity returns up to limit Relationship rows touching id
// (100 when limit <= 0), either as src or dst.
func (s *Store) RelationshipsForEntity(ctx context.Context, repoID string, id int64, limit int) ([]model.Relationship, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, run_id, source_type, kind, src_id, dst_id, weight,
		       support, support_src, support_dst, pair_count, p_dst_given_src, p_src_given_dst,
		       jaccard_weighted, decayed_weight
		FROM relationships
		WHERE repo_id = ? AND (src_id = ? OR dst_id = ?)
		ORDER BY weight DESC LIMIT ?
	`, repoID, id, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query relationships for %d: %w", id, err)
	}
	defer rows.Close()

	return scanRelationships(rows)
}

// RelationshipBetween returns the Relationship row for the unordered pair
// (a, b), if any survived min_cooccurrence/top-k filtering.
func (s *Store) RelationshipBetween(ctx context.Context, repoID string, a, b int64) (model.Relationship, bool, error) {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, repo_id, run_id, source_type, kind, src_id, dst_id, weight,
		       support, support_src, support_dst, pair_count, p_dst_given_src, p_src_given_dst,
		       jaccard_weighted, decayed_weight
		FROM relationships WHERE repo_id = ? AND src_id = ? AND dst_id = ?
	`, repoID, lo, hi)

	rel, err := scanRelationshipRow(row)
	if err == sql.ErrNoRows {
		return model.Relationship{}, false, nil
	}

	if err != nil {
		return model.Relationship{}, false, fmt.Errorf("query relationship %d-%d: %w", lo, hi, err)
	}

	return rel, true, nil
}

func scanRelationships(rows *sql.Rows) ([]model.Relationship, error) {
	var out []model.Relationship

	for rows.Next() {
		r, err := scanRelationshipRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

func scanRelationshipRow(r rowScanner) (model.Relationship, error) {
	var (
		rel        model.Relationship
		sourceType string
		kind       string
		jaccardW   sql.NullFloat64
		decayedW   sql.NullFloat64
	)

	err := r.Scan(&rel.ID, &rel.RepoID, &rel.RunID, &sourceType, &kind, &rel.SrcID, &rel.DstID, &rel.Weight,
		&rel.Metadata.Support, &rel.Metadata.SupportSrc, &rel.Metadata.SupportDst, &rel.Metadata.PairCount,
		&rel.Metadata.PDstGivenSrc, &rel.Metadata.PSrcGivenDst, &jaccardW, &decayedW)
	if err != nil {
		return model.Relationship{}, err
	}

	rel.SourceType = model.RelationshipSourceType(sourceType)
	rel.Kind = model.RelationshipKind(kind)

	if jaccardW.Valid {
		v := jaccardW.Float64
		rel.Metadata.JaccardWeight = &v
	}

	if decayedW.Valid {
		v := decayedW.Float64
		rel.Metadata.DecayedWeight = &v
	}

	return rel, nil
}

// ComponentEdges returns every ComponentEdge row for repoID.
func (s *Store) ComponentEdges(ctx context.Context, repoID string) ([]model.ComponentEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, run_id, src_component, dst_component, component_pair_count, component_jaccard
		FROM component_edges WHERE repo_id = ?
		ORDER BY component_jaccard DESC
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("query component_edges: %w", err)
	}
	defer rows.Close()

	var out []model.ComponentEdge

	for rows.Next() {
		var e model.ComponentEdge

		err := rows.Scan(&e.ID, &e.RepoID, &e.RunID, &e.SrcComponent, &e.DstComponent,
			&e.ComponentPairCount, &e.ComponentJaccard)
		if err != nil {
			return nil, fmt.Errorf("scan component_edge: %w", err)
		}

		out = append(out, e)
	}

	return out, rows.Err()
}
