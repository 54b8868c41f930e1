package query

import (
	"context"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/store/parquet"
)

// FileHistory is the full commit history of one logical entity, spanning
// every path it has ever held — the lineage chain is followed regardless
// of window_days, which only bounds the EdgeBuilder's coupling math (§9
// open question, resolved).
type FileHistory struct {
	Entity  model.Entity
	Lineage []model.FileLineage
	Commits []model.Commit
}

// FileHistory walks entityID's lineage chain (renames and copy provenance)
// and returns every commit that touched any entity id in that chain.
func (a *API) FileHistory(ctx context.Context, entityID int64) (fh FileHistory, err error) {
	defer a.track(ctx, "query.file_history", &err)()

	entity, ok, err := a.Store.EntityByID(ctx, entityID)
	if err != nil {
		return FileHistory{}, fmt.Errorf("load entity %d: %w", entityID, err)
	}

	if !ok {
		return FileHistory{}, fmt.Errorf("%w: entity %d", ErrSnapshotNotFound, entityID)
	}

	lineage, err := a.Store.LineageForEntity(ctx, entityID)
	if err != nil {
		return FileHistory{}, fmt.Errorf("load lineage for %d: %w", entityID, err)
	}

	chainIDs := map[int64]bool{entityID: true}
	for _, l := range lineage {
		chainIDs[l.OldEntityID] = true
		chainIDs[l.NewEntityID] = true
	}

	changes, err := parquet.ReadChanges(a.DBDir)
	if err != nil {
		return FileHistory{}, fmt.Errorf("read changes: %w", err)
	}

	touched := map[string]bool{}

	for _, c := range changes {
		if chainIDs[c.EntityID] {
			touched[c.CommitOid] = true
		}
	}

	commits, err := parquet.ReadCommits(a.DBDir)
	if err != nil {
		return FileHistory{}, fmt.Errorf("read commits: %w", err)
	}

	var matched []model.Commit

	for _, c := range commits {
		if touched[c.Oid] {
			matched = append(matched, c)
		}
	}

	return FileHistory{Entity: entity, Lineage: lineage, Commits: matched}, nil
}
