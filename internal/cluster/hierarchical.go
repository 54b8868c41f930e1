package cluster

// HierarchicalAlgorithm performs average-linkage agglomerative clustering
// over the graph's edges: the two clusters connected by the highest average
// edge weight are merged repeatedly until no remaining cross-cluster
// average reaches the cut threshold. Only clusters with at least one
// connecting edge are ever considered — there is no dense distance matrix,
// so isolated components never merge regardless of threshold.
type HierarchicalAlgorithm struct{}

func (a *HierarchicalAlgorithm) Name() string { return "hierarchical" }

const defaultCutThreshold = 0.3

func (a *HierarchicalAlgorithm) Run(g *Graph, params Params) (Partition, error) {
	threshold := params.Float("cut_threshold", defaultCutThreshold)

	nodes := g.Nodes()
	clusterOf := make(map[int64]int64, len(nodes))
	members := make(map[int64]map[int64]bool, len(nodes))

	for _, n := range nodes {
		clusterOf[n] = n
		members[n] = map[int64]bool{n: true}
	}

	for {
		bestA, bestB, bestAvg, found := bestClusterPair(g, clusterOf)
		if !found || bestAvg < threshold {
			break
		}

		mergeClusters(clusterOf, members, bestA, bestB)
	}

	return clustersToPartition(members), nil
}

// bestClusterPair scans every graph edge, buckets it by the pair of
// clusters its endpoints currently belong to, and returns the pair with the
// highest average edge weight.
func bestClusterPair(g *Graph, clusterOf map[int64]int64) (a, b int64, avg float64, found bool) {
	type acc struct {
		sum   float64
		count int
	}

	pairs := make(map[[2]int64]*acc)

	seen := make(map[[2]int64]bool)

	for node, neighbors := range g.adj {
		ca := clusterOf[node]

		for neighbor, w := range neighbors {
			cb := clusterOf[neighbor]
			if ca == cb {
				continue
			}

			key := [2]int64{min64(ca, cb), max64(ca, cb)}

			edgeKey := [2]int64{min64(node, neighbor), max64(node, neighbor)}
			if seen[edgeKey] {
				continue
			}

			seen[edgeKey] = true

			if pairs[key] == nil {
				pairs[key] = &acc{}
			}

			pairs[key].sum += w
			pairs[key].count++
		}
	}

	var (
		bestKey   [2]int64
		bestAvg   float64
		bestFound bool
	)

	for key, a := range pairs {
		avg := a.sum / float64(a.count)
		if !bestFound || avg > bestAvg || (avg == bestAvg && (key[0] < bestKey[0] || (key[0] == bestKey[0] && key[1] < bestKey[1]))) {
			bestKey = key
			bestAvg = avg
			bestFound = true
		}
	}

	if !bestFound {
		return 0, 0, 0, false
	}

	return bestKey[0], bestKey[1], bestAvg, true
}

func mergeClusters(clusterOf map[int64]int64, members map[int64]map[int64]bool, a, b int64) {
	for node := range members[b] {
		clusterOf[node] = a
		members[a][node] = true
	}

	delete(members, b)
}

func clustersToPartition(members map[int64]map[int64]bool) Partition {
	out := make(Partition, 0, len(members))

	for _, set := range members {
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}

		out = append(out, ids)
	}

	return out
}
