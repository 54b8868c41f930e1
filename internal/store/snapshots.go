package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/pkg/persist"
)

// snapshotsDir is the subdirectory, relative to the database directory,
// holding one JSON file per ClusteringSnapshot's cluster payload — the
// cluster list can be large, so only metadata used for listing/filtering
// lives in SQLite.
const snapshotsDir = "snapshots"

// SaveSnapshot writes a ClusteringSnapshot: its queryable metadata to
// SQLite, its Clusters payload to a JSON file on disk (grounded on
// pkg/persist's SaveState/JSONCodec).
func (s *Store) SaveSnapshot(ctx context.Context, dbDir string, snap model.ClusteringSnapshot) error {
	tagsJSON, err := json.Marshal(snap.Tags)
	if err != nil {
		return fmt.Errorf("encode snapshot tags: %w", err)
	}

	paramsJSON, err := json.Marshal(snap.Parameters)
	if err != nil {
		return fmt.Errorf("encode snapshot parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clustering_snapshots
			(snapshot_id, repo_id, name, tags_json, algorithm, parameters_json, created_at, repo_head_oid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_id) DO UPDATE SET name = excluded.name, tags_json = excluded.tags_json
	`, snap.SnapshotID, snap.RepoID, snap.Name, string(tagsJSON), snap.Algorithm, string(paramsJSON),
		snap.CreatedAt, snap.RepoHeadOid)
	if err != nil {
		return fmt.Errorf("insert clustering_snapshot %s: %w", snap.SnapshotID, err)
	}

	dir := filepath.Join(dbDir, snapshotsDir)
	if err := ensureDir(dir); err != nil {
		return err
	}

	if err := persist.SaveState(dir, snap.SnapshotID, persist.NewJSONCodec(), snap.Clusters); err != nil {
		return fmt.Errorf("save snapshot clusters %s: %w", snap.SnapshotID, err)
	}

	return nil
}

// LoadSnapshot reads back one ClusteringSnapshot, including its Clusters
// payload from disk.
func (s *Store) LoadSnapshot(ctx context.Context, dbDir, snapshotID string) (model.ClusteringSnapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT snapshot_id, repo_id, name, tags_json, algorithm, parameters_json, created_at, repo_head_oid
		FROM clustering_snapshots WHERE snapshot_id = ?
	`, snapshotID)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return model.ClusteringSnapshot{}, false, nil
	}

	if err != nil {
		return model.ClusteringSnapshot{}, false, fmt.Errorf("query snapshot %s: %w", snapshotID, err)
	}

	dir := filepath.Join(dbDir, snapshotsDir)

	var clusters []model.Cluster

	if err := persist.LoadState(dir, snapshotID, persist.NewJSONCodec(), &clusters); err != nil {
		return model.ClusteringSnapshot{}, false, fmt.Errorf("load snapshot clusters %s: %w", snapshotID, err)
	}

	snap.Clusters = clusters

	return snap, true, nil
}

// ListSnapshots returns every snapshot's metadata (without Clusters) for a
// repository, newest first.
func (s *Store) ListSnapshots(ctx context.Context, repoID string) ([]model.ClusteringSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, repo_id, name, tags_json, algorithm, parameters_json, created_at, repo_head_oid
		FROM clustering_snapshots WHERE repo_id = ? ORDER BY created_at DESC
	`, repoID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots for %s: %w", repoID, err)
	}
	defer rows.Close()

	var out []model.ClusteringSnapshot

	for rows.Next() {
		snap, err := scanSnapshotRows(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}

		out = append(out, snap)
	}

	return out, rows.Err()
}

// RenameSnapshot updates a snapshot's editable name/tags fields.
func (s *Store) RenameSnapshot(ctx context.Context, snapshotID, name string, tags []string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE clustering_snapshots SET name = ?, tags_json = ? WHERE snapshot_id = ?
	`, name, string(tagsJSON), snapshotID)
	if err != nil {
		return fmt.Errorf("rename snapshot %s: %w", snapshotID, err)
	}

	return nil
}

// DeleteSnapshot removes a snapshot's metadata row and its on-disk cluster
// payload. It is not an error to delete a snapshot id that does not exist.
func (s *Store) DeleteSnapshot(ctx context.Context, dbDir, snapshotID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM clustering_snapshots WHERE snapshot_id = ?`, snapshotID)
	if err != nil {
		return fmt.Errorf("delete clustering_snapshot %s: %w", snapshotID, err)
	}

	path := filepath.Join(dbDir, snapshotsDir, snapshotID+persist.NewJSONCodec().Extension())

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove snapshot clusters file %s: %w", snapshotID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row *sql.Row) (model.ClusteringSnapshot, error) {
	return scanSnapshotGeneric(row)
}

func scanSnapshotRows(rows *sql.Rows) (model.ClusteringSnapshot, error) {
	return scanSnapshotGeneric(rows)
}

func scanSnapshotGeneric(r rowScanner) (model.ClusteringSnapshot, error) {
	var (
		snap       model.ClusteringSnapshot
		tagsJSON   string
		paramsJSON string
	)

	err := r.Scan(&snap.SnapshotID, &snap.RepoID, &snap.Name, &tagsJSON, &snap.Algorithm, &paramsJSON,
		&snap.CreatedAt, &snap.RepoHeadOid)
	if err != nil {
		return model.ClusteringSnapshot{}, err
	}

	_ = json.Unmarshal([]byte(tagsJSON), &snap.Tags)

	var params map[string]any

	_ = json.Unmarshal([]byte(paramsJSON), &params)
	snap.Parameters = params

	return snap, nil
}
