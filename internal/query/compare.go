package query

import (
	"context"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// ClusterDiff summarizes how one snapshot's cluster membership differs from
// another's for a single entity.
type ClusterDiff struct {
	EntityID int64
	FromName string // "" if the entity had no cluster in the earlier snapshot.
	ToName   string // "" if the entity had no cluster in the later snapshot.
	Moved    bool
}

// Compare diffs two ClusteringSnapshots' membership, entity by entity. Only
// entities whose cluster assignment changed are included.
func (a *API) Compare(ctx context.Context, fromID, toID string) (diffs []ClusterDiff, err error) {
	defer a.track(ctx, "query.compare", &err)()

	from, err := a.Snapshot(ctx, fromID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", fromID, err)
	}

	to, err := a.Snapshot(ctx, toID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", toID, err)
	}

	fromCluster := clusterNameByEntity(from.Clusters)
	toCluster := clusterNameByEntity(to.Clusters)

	seen := map[int64]bool{}

	for id, fromName := range fromCluster {
		seen[id] = true

		toName := toCluster[id]
		if fromName != toName {
			diffs = append(diffs, ClusterDiff{EntityID: id, FromName: fromName, ToName: toName, Moved: true})
		}
	}

	for id, toName := range toCluster {
		if seen[id] {
			continue
		}

		diffs = append(diffs, ClusterDiff{EntityID: id, FromName: "", ToName: toName, Moved: true})
	}

	return diffs, nil
}

func clusterNameByEntity(clusters []model.Cluster) map[int64]string {
	out := make(map[int64]string)

	for _, c := range clusters {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("cluster-%d", c.ID)
		}

		for _, id := range c.MemberIDs {
			out[id] = name
		}
	}

	return out
}
