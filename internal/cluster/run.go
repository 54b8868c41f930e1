package cluster

import (
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// GraphFromRelationships builds a Graph over every entity touched by rels,
// using Weight (jaccard) as the edge weight the algorithms optimize over.
func GraphFromRelationships(rels []model.Relationship) *Graph {
	g := NewGraph()
	for _, r := range rels {
		g.AddEdge(r.SrcID, r.DstID, r.Weight)
	}

	return g
}

// Run resolves algorithmName, executes it over rels, and returns fully
// aggregated model.Cluster rows — the single entry point the Orchestrator
// drives for the Clusterer stage.
func Run(algorithmName string, rels []model.Relationship, params Params, in AggregateInput) ([]model.Cluster, error) {
	algo, err := Get(algorithmName)
	if err != nil {
		return nil, err
	}

	g := GraphFromRelationships(rels)

	partition, err := algo.Run(g, params)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", algo.Name(), err)
	}

	in.Relationships = rels

	return BuildClusters(partition, in), nil
}
