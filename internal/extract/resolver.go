package extract

import (
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// StatsDelta accumulates the per-entity stats a single change contributes,
// applied by the resolver to Entity.Stats.
type StatsDelta struct {
	AuthorID   int64
	When       time.Time
	Insertions int64
	Deletions  int64
	// CountsCommit makes ApplyStats bump TotalCommits. The extractor sets it
	// for every change, bulk commits (file_count > max_changeset_size)
	// included; the ChangesetShaper keeps bulk commits out of coupling math.
	CountsCommit bool
}

// EntityResolver owns entity identity and append-only persistence. The
// HistoryExtractor calls it once per touched path per commit; a production
// implementation backs it with the SQL entities table, upserting rather than
// reassigning ids (ids are never reused).
type EntityResolver interface {
	// GetOrCreateEntity returns the stable logical id for (repoID, kind,
	// qualifiedName), creating a new append-only row on first sight.
	GetOrCreateEntity(repoID string, kind model.EntityKind, qualifiedName string) (int64, error)
	// Rename moves an existing entity's current qualified name, without
	// allocating a new id — the logical identity is the same file.
	Rename(entityID int64, newQualifiedName string) error
	// SetExistsAtHead flags whether the entity's current path is present in
	// the final tree walked (set once extraction reaches HEAD).
	SetExistsAtHead(entityID int64, exists bool) error
	// RecordLineage appends a FileLineage row.
	RecordLineage(lineage model.FileLineage) error
	// ApplyStats folds a StatsDelta into the entity's running totals.
	ApplyStats(entityID int64, delta StatsDelta) error
}
