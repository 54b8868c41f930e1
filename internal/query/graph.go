package query

import (
	"context"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// CouplingGraph is a bounded neighborhood subgraph around one entity,
// returned for visualization.
type CouplingGraph struct {
	Nodes []model.Entity
	Edges []model.Relationship
}

const defaultGraphDepth = 1

// CouplingGraph BFS-expands entityID's coupling neighborhood out to depth
// hops (default 1: direct neighbors only), capping the neighbor list
// considered at each hop to perNodeLimit strongest edges to keep the
// subgraph readable.
func (a *API) CouplingGraph(ctx context.Context, repoID string, entityID int64, depth, perNodeLimit int) (graph CouplingGraph, err error) {
	defer a.track(ctx, "query.coupling_graph", &err)()

	if depth <= 0 {
		depth = defaultGraphDepth
	}

	if perNodeLimit <= 0 {
		perNodeLimit = 20
	}

	visitedNodes := map[int64]bool{entityID: true}
	edgeSet := map[[2]int64]model.Relationship{}

	frontier := []int64{entityID}

	for hop := 0; hop < depth; hop++ {
		var next []int64

		for _, id := range frontier {
			rels, err := a.Store.RelationshipsForEntity(ctx, repoID, id, perNodeLimit)
			if err != nil {
				return CouplingGraph{}, fmt.Errorf("coupling graph hop %d for %d: %w", hop, id, err)
			}

			for _, r := range rels {
				key := [2]int64{r.SrcID, r.DstID}
				edgeSet[key] = r

				other := r.DstID
				if other == id {
					other = r.SrcID
				}

				if !visitedNodes[other] {
					visitedNodes[other] = true

					next = append(next, other)
				}
			}
		}

		frontier = next
	}

	nodes := make([]model.Entity, 0, len(visitedNodes))

	for id := range visitedNodes {
		e, ok, err := a.Store.EntityByID(ctx, id)
		if err != nil {
			return CouplingGraph{}, fmt.Errorf("load entity %d: %w", id, err)
		}

		if ok {
			nodes = append(nodes, e)
		}
	}

	edges := make([]model.Relationship, 0, len(edgeSet))
	for _, r := range edgeSet {
		edges = append(edges, r)
	}

	return CouplingGraph{Nodes: nodes, Edges: edges}, nil
}
