package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/sumatoshi-tech/codecouple/internal/extract"
	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// EntityResolver adapts Store to extract.EntityResolver, backing the
// HistoryExtractor's identity resolution directly with SQL upserts. It keeps
// its own in-memory cache of repo_id+qualified_name -> id, since the
// Extractor calls GetOrCreateEntity once per path per commit and a round
// trip to SQLite for every one would dominate extraction time.
type EntityResolver struct {
	store *Store
	ctx   context.Context //nolint:containedctx // bound to one Extract() run's lifetime, mirrors extract.Extractor's own single-call contract.

	cache map[string]int64 // "repoID\x00kind\x00qualifiedName" -> id

	hits, misses int64
}

// NewEntityResolver returns a resolver bound to ctx for the duration of one
// extraction run.
func NewEntityResolver(ctx context.Context, s *Store) *EntityResolver {
	return &EntityResolver{store: s, ctx: ctx, cache: make(map[string]int64)}
}

// Stats returns the resolver's in-memory cache hit/miss counts accumulated
// over its lifetime, for AnalysisMetrics.RecordRun.
func (r *EntityResolver) Stats() (hits, misses int64) {
	return r.hits, r.misses
}

var _ extract.EntityResolver = (*EntityResolver)(nil)

func cacheKey(repoID string, kind model.EntityKind, qualifiedName string) string {
	return repoID + "\x00" + string(kind) + "\x00" + qualifiedName
}

// GetOrCreateEntity returns the stable id for (repoID, kind, qualifiedName),
// inserting a fresh row on first sight.
func (r *EntityResolver) GetOrCreateEntity(repoID string, kind model.EntityKind, qualifiedName string) (int64, error) {
	key := cacheKey(repoID, kind, qualifiedName)
	if id, ok := r.cache[key]; ok {
		r.hits++
		return id, nil
	}

	r.misses++

	row := r.store.db.QueryRowContext(r.ctx, `
		SELECT id FROM entities WHERE repo_id = ? AND kind = ? AND qualified_name = ?
	`, repoID, string(kind), qualifiedName)

	var id int64

	err := row.Scan(&id)
	if err == nil {
		r.cache[key] = id

		return id, nil
	}

	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup entity: %w", err)
	}

	res, err := r.store.db.ExecContext(r.ctx, `
		INSERT INTO entities (repo_id, kind, qualified_name, exists_at_head)
		VALUES (?, ?, ?, 1)
	`, repoID, string(kind), qualifiedName)
	if err != nil {
		return 0, fmt.Errorf("insert entity: %w", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted entity id: %w", err)
	}

	r.cache[key] = id

	return id, nil
}

// Rename updates an entity's qualified_name in place, preserving its id and
// accumulated stats — the whole point of a stable logical identity.
func (r *EntityResolver) Rename(entityID int64, newQualifiedName string) error {
	_, err := r.store.db.ExecContext(r.ctx, `
		UPDATE entities SET qualified_name = ? WHERE id = ?
	`, newQualifiedName, entityID)
	if err != nil {
		return fmt.Errorf("rename entity %d: %w", entityID, err)
	}

	for k, v := range r.cache {
		if v == entityID {
			delete(r.cache, k)
		}
	}

	return nil
}

// SetExistsAtHead flips the entity's existence flag, maintained incrementally
// as deletes/adds are observed walking history forward.
func (r *EntityResolver) SetExistsAtHead(entityID int64, exists bool) error {
	_, err := r.store.db.ExecContext(r.ctx, `
		UPDATE entities SET exists_at_head = ? WHERE id = ?
	`, boolToInt(exists), entityID)
	if err != nil {
		return fmt.Errorf("set exists_at_head for entity %d: %w", entityID, err)
	}

	return nil
}

// RecordLineage inserts one FileLineage row.
func (r *EntityResolver) RecordLineage(lineage model.FileLineage) error {
	_, err := r.store.db.ExecContext(r.ctx, `
		INSERT INTO file_lineage
			(repo_id, old_entity_id, new_entity_id, old_path, new_path, commit_oid, similarity, detected_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, lineage.RepoID, lineage.OldEntityID, lineage.NewEntityID, lineage.OldPath, lineage.NewPath,
		lineage.CommitOid, lineage.Similarity, string(lineage.DetectedKind))
	if err != nil {
		return fmt.Errorf("insert file_lineage: %w", err)
	}

	return nil
}

// ApplyStats folds one StatsDelta into an entity's running EntityStats,
// merging the per-author commit count into the JSON-encoded authors map.
func (r *EntityResolver) ApplyStats(entityID int64, delta extract.StatsDelta) error {
	row := r.store.db.QueryRowContext(r.ctx, `
		SELECT total_commits, first_change_at, last_change_at, insertions, deletions, authors_json
		FROM entities WHERE id = ?
	`, entityID)

	var (
		totalCommits          int64
		firstChangeAt         sql.NullTime
		lastChangeAt          sql.NullTime
		insertions, deletions int64
		authorsJSON           string
	)

	err := row.Scan(&totalCommits, &firstChangeAt, &lastChangeAt, &insertions, &deletions, &authorsJSON)
	if err != nil {
		return fmt.Errorf("read entity stats %d: %w", entityID, err)
	}

	authors := map[string]int{}
	if authorsJSON != "" {
		_ = json.Unmarshal([]byte(authorsJSON), &authors)
	}

	if delta.CountsCommit {
		totalCommits++
	}

	insertions += delta.Insertions
	deletions += delta.Deletions
	authors[strconv.FormatInt(delta.AuthorID, 10)]++

	first := delta.When
	if firstChangeAt.Valid && firstChangeAt.Time.Before(first) {
		first = firstChangeAt.Time
	}

	last := delta.When
	if lastChangeAt.Valid && lastChangeAt.Time.After(last) {
		last = lastChangeAt.Time
	}

	encoded, err := json.Marshal(authors)
	if err != nil {
		return fmt.Errorf("encode authors map: %w", err)
	}

	_, err = r.store.db.ExecContext(r.ctx, `
		UPDATE entities
		SET total_commits = ?, first_change_at = ?, last_change_at = ?,
		    insertions = ?, deletions = ?, authors_json = ?
		WHERE id = ?
	`, totalCommits, first, last, insertions, deletions, string(encoded), entityID)
	if err != nil {
		return fmt.Errorf("update entity stats %d: %w", entityID, err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
