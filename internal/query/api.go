// Package query implements the read-only QueryAPI: every operation a UI or
// CLI consumer can run against a repository's stored analysis, without
// ever mutating it or re-running the pipeline.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/observability"
	"github.com/sumatoshi-tech/codecouple/internal/store"
)

// API is the QueryAPI's single entry point, bound to one repository's
// on-disk store directory.
type API struct {
	Store   *store.Store
	DBDir   string
	metrics *observability.REDMetrics
}

// New binds a QueryAPI to an already-open Store.
func New(s *store.Store, dbDir string) *API {
	return &API{Store: s, DBDir: dbDir}
}

// WithMetrics attaches RED (rate/error/duration) instrumentation to every
// subsequent QueryAPI call. Passing nil disables instrumentation, which is
// also the default for an API built with New.
func (a *API) WithMetrics(m *observability.REDMetrics) *API {
	a.metrics = m

	return a
}

// track starts RED instrumentation for op and returns a func to be deferred;
// it records the outcome found at *errp when the caller returns. A nil
// metrics set (the common case for a one-shot CLI query) makes track free.
func (a *API) track(ctx context.Context, op string, errp *error) func() {
	if a.metrics == nil {
		return func() {}
	}

	done := a.metrics.TrackInflight(ctx, op)
	start := time.Now()

	return func() {
		done()

		status := "ok"
		if *errp != nil {
			status = "error"
		}

		a.metrics.RecordRequest(ctx, op, status, time.Since(start))
	}
}

// Hotspots ranks entities by total churn (insertions + deletions).
func (a *API) Hotspots(ctx context.Context, repoID string, limit int) (entities []model.Entity, err error) {
	defer a.track(ctx, "query.hotspots", &err)()

	entities, err = a.Store.Hotspots(ctx, repoID, limit)

	return entities, err
}

// FileTreeQuery narrows FileTree.
type FileTreeQuery struct {
	Search   string
	HeadOnly bool
	Limit    int
	Offset   int
}

// FileTree lists entities, optionally filtered by a substring of their
// qualified name, paginated.
func (a *API) FileTree(ctx context.Context, repoID string, q FileTreeQuery) (entities []model.Entity, err error) {
	defer a.track(ctx, "query.file_tree", &err)()

	entities, err = a.Store.ListEntities(ctx, repoID, store.EntityFilter{
		Search: q.Search, HeadOnly: q.HeadOnly, Limit: q.Limit, Offset: q.Offset,
	})

	return entities, err
}

// Coupling returns up to limit Relationships touching entityID (100 when
// limit <= 0), strongest first.
func (a *API) Coupling(ctx context.Context, repoID string, entityID int64, limit int) (rels []model.Relationship, err error) {
	defer a.track(ctx, "query.coupling", &err)()

	rels, err = a.Store.RelationshipsForEntity(ctx, repoID, entityID, limit)

	return rels, err
}

// ComponentCoupling returns the folder/module-level coupling projection.
func (a *API) ComponentCoupling(ctx context.Context, repoID string) (edges []model.ComponentEdge, err error) {
	defer a.track(ctx, "query.component_coupling", &err)()

	edges, err = a.Store.ComponentEdges(ctx, repoID)

	return edges, err
}

// ErrSnapshotNotFound is returned when a requested snapshot, entity or
// relationship does not exist.
var ErrSnapshotNotFound = fmt.Errorf("snapshot not found")

// Snapshots lists every ClusteringSnapshot's metadata for a repository.
func (a *API) Snapshots(ctx context.Context, repoID string) (snaps []model.ClusteringSnapshot, err error) {
	defer a.track(ctx, "query.snapshots", &err)()

	snaps, err = a.Store.ListSnapshots(ctx, repoID)

	return snaps, err
}

// Snapshot loads one ClusteringSnapshot including its cluster payload.
func (a *API) Snapshot(ctx context.Context, snapshotID string) (snap model.ClusteringSnapshot, err error) {
	defer a.track(ctx, "query.snapshot", &err)()

	var ok bool

	snap, ok, err = a.Store.LoadSnapshot(ctx, a.DBDir, snapshotID)
	if err != nil {
		return model.ClusteringSnapshot{}, err
	}

	if !ok {
		err = fmt.Errorf("%w: %s", ErrSnapshotNotFound, snapshotID)

		return model.ClusteringSnapshot{}, err
	}

	return snap, nil
}

// RenameSnapshot updates a snapshot's editable name/tags.
func (a *API) RenameSnapshot(ctx context.Context, snapshotID, name string, tags []string) (err error) {
	defer a.track(ctx, "query.rename_snapshot", &err)()

	err = a.Store.RenameSnapshot(ctx, snapshotID, name, tags)

	return err
}

// DeleteSnapshot permanently removes a stored ClusteringSnapshot, its
// metadata and its on-disk cluster payload alike.
func (a *API) DeleteSnapshot(ctx context.Context, snapshotID string) (err error) {
	defer a.track(ctx, "query.delete_snapshot", &err)()

	err = a.Store.DeleteSnapshot(ctx, a.DBDir, snapshotID)

	return err
}
