package query

import (
	"context"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/store/parquet"
)

// Evidence is the set of commits that justify one coupling edge — the
// concrete answer to "why are these two files considered coupled?".
type Evidence struct {
	Relationship model.Relationship
	Commits      []model.Commit
}

// Evidence loads every commit that touched both a and b, backing the
// Relationship's aggregate statistics with the raw history they summarize.
// It linear-scans the repository's parquet changes — acceptable since
// evidence is an on-demand drill-down, never a hot path.
func (a *API) Evidence(ctx context.Context, repoID string, srcID, dstID int64) (ev Evidence, err error) {
	defer a.track(ctx, "query.evidence", &err)()

	rel, ok, err := a.Store.RelationshipBetween(ctx, repoID, srcID, dstID)
	if err != nil {
		return Evidence{}, err
	}

	if !ok {
		return Evidence{}, fmt.Errorf("%w: no relationship between %d and %d", ErrSnapshotNotFound, srcID, dstID)
	}

	changes, err := parquet.ReadChanges(a.DBDir)
	if err != nil {
		return Evidence{}, fmt.Errorf("read changes: %w", err)
	}

	touchesBoth := commitsTouchingBoth(changes, srcID, dstID)

	commits, err := parquet.ReadCommits(a.DBDir)
	if err != nil {
		return Evidence{}, fmt.Errorf("read commits: %w", err)
	}

	var matched []model.Commit

	for _, c := range commits {
		if touchesBoth[c.Oid] {
			matched = append(matched, c)
		}
	}

	return Evidence{Relationship: rel, Commits: matched}, nil
}

func commitsTouchingBoth(changes []model.Change, a, b int64) map[string]bool {
	hasA := map[string]bool{}
	hasB := map[string]bool{}

	for _, c := range changes {
		if c.EntityID == a {
			hasA[c.CommitOid] = true
		}

		if c.EntityID == b {
			hasB[c.CommitOid] = true
		}
	}

	out := map[string]bool{}

	for oid := range hasA {
		if hasB[oid] {
			out[oid] = true
		}
	}

	return out
}
