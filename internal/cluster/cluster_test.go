package cluster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumatoshi-tech/codecouple/internal/cluster"
)

func buildGraph(edges [][3]int64) *cluster.Graph {
	g := cluster.NewGraph()
	for _, e := range edges {
		g.AddEdge(e[0], e[1], float64(e[2]))
	}

	return g
}

func TestGraph_DegreeAndTotalWeight(t *testing.T) {
	t.Parallel()

	g := buildGraph([][3]int64{{1, 2, 1}, {2, 3, 2}})

	assert.InDelta(t, 1.0, g.Degree(1), 1e-9)
	assert.InDelta(t, 3.0, g.Degree(2), 1e-9)
	assert.InDelta(t, 3.0, g.TotalWeight(), 1e-9, "each edge counted once regardless of adjacency symmetry")
}

func TestGraph_WeightIsSymmetric(t *testing.T) {
	t.Parallel()

	g := cluster.NewGraph()
	g.AddEdge(1, 2, 0.75)

	assert.InDelta(t, 0.75, g.Weight(1, 2), 1e-9)
	assert.InDelta(t, 0.75, g.Weight(2, 1), 1e-9)
}

func TestComponentsAlgorithm_GroupsConnectedNodes(t *testing.T) {
	t.Parallel()

	standalone := cluster.NewGraph()
	standalone.AddEdge(1, 2, 1)
	standalone.AddEdge(2, 3, 1)

	algo := &cluster.ComponentsAlgorithm{}

	partition, err := algo.Run(standalone, cluster.Params{})
	require.NoError(t, err)
	require.Len(t, partition, 1)
	assert.ElementsMatch(t, []int64{1, 2, 3}, partition[0])
}

func TestComponentsAlgorithm_SeparatesDisjointGroups(t *testing.T) {
	t.Parallel()

	g := buildGraph([][3]int64{{1, 2, 1}, {3, 4, 1}})

	algo := &cluster.ComponentsAlgorithm{}

	partition, err := algo.Run(g, cluster.Params{})
	require.NoError(t, err)
	require.Len(t, partition, 2)

	sizes := []int{len(partition[0]), len(partition[1])}
	assert.ElementsMatch(t, []int{2, 2}, sizes)
}

func TestRegistry_GetKnownAlgorithms(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"components", "louvain", "label_propagation", "hierarchical", "dbscan"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			algo, err := cluster.Get(name)
			require.NoError(t, err)
			assert.Equal(t, name, algo.Name())
		})
	}
}

func TestRegistry_GetUnknownAlgorithmErrors(t *testing.T) {
	t.Parallel()

	_, err := cluster.Get("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrUnknownAlgorithm)
}

func TestParams_FloatAndIntFallbacks(t *testing.T) {
	t.Parallel()

	p := cluster.Params{"resolution": 1.5, "min_size": 3}

	assert.InDelta(t, 1.5, p.Float("resolution", 0), 1e-9)
	assert.InDelta(t, 9.9, p.Float("missing", 9.9), 1e-9)
	assert.Equal(t, 3, p.Int("min_size", 0))
	assert.Equal(t, 7, p.Int("missing", 7))
}
