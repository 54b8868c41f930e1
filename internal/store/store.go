// Package store persists the pipeline's durable state: entities,
// relationships and their component projection, lineage, validation logs,
// analysis tasks and clustering snapshots live in SQLite; raw commit/change
// history lives in columnar Parquet (internal/store/parquet). Both are
// addressed relative to one on-disk directory per repository.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Store wraps the SQLite connection used for everything except raw commit
// history. Opened once per repository and shared across pipeline stages and
// the QueryAPI.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the SQLite database at dir/meta.db, enabling WAL
// journaling and foreign keys, then applies the schema.
func Open(ctx context.Context, dir string) (*Store, error) {
	path := filepath.Join(dir, "meta.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // go-sqlite3 + WAL: serialize writers, matching the single in-flight task per repo invariant.

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()

			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, path: path}

	if err := s.ensureSchemaVersion(ctx); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) ensureSchemaVersion(ctx context.Context) error {
	var count int

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_info").Scan(&count)
	if err != nil {
		return fmt.Errorf("read schema_info: %w", err)
	}

	if count == 0 {
		_, err = s.db.ExecContext(ctx, "INSERT INTO schema_info (version) VALUES (?)", currentSchemaVersion)
		if err != nil {
			return fmt.Errorf("seed schema_info: %w", err)
		}
	}

	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database directory's db file path, for diagnostics.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the underlying SQLite connection is reachable, for health
// checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RepoMeta returns the HEAD oid that SetRepoMeta recorded for the
// repository after its last successful run.
func (s *Store) RepoMeta(ctx context.Context, repoID string) (headOid string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT head_oid FROM repo_meta WHERE repo_id = ?`, repoID)

	err = row.Scan(&headOid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("query repo_meta: %w", err)
	}

	return headOid, true, nil
}

// SetRepoMeta upserts the repository's head oid after a successful run.
func (s *Store) SetRepoMeta(ctx context.Context, repoID, headOid string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repo_meta (repo_id, head_oid, last_extracted_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(repo_id) DO UPDATE SET head_oid = excluded.head_oid, last_extracted_at = CURRENT_TIMESTAMP
	`, repoID, headOid)
	if err != nil {
		return fmt.Errorf("upsert repo_meta: %w", err)
	}

	return nil
}
