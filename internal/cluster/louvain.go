package cluster

// LouvainAlgorithm implements the local-moving phase of the Louvain method:
// repeatedly move each node into whichever neighboring community maximizes
// modularity gain, until no move improves it. This is a single-level
// Louvain (no recursive community-aggregation pass) — in practice the
// local-moving phase alone captures most of the modularity gain on
// file-coupling graphs, whose community structure is shallow, and skipping
// aggregation keeps the result trivially explainable (every move is a
// single node, never a merged super-node).
type LouvainAlgorithm struct{}

func (a *LouvainAlgorithm) Name() string { return "louvain" }

const defaultLouvainPasses = 20

func (a *LouvainAlgorithm) Run(g *Graph, params Params) (Partition, error) {
	resolution := params.Float("resolution", 1.0)
	maxPasses := params.Int("max_passes", defaultLouvainPasses)

	nodes := g.Nodes()
	m2 := 2 * g.TotalWeight() // 2m

	if m2 == 0 {
		return singletons(nodes), nil
	}

	comm := make(map[int64]int64, len(nodes))
	commTot := make(map[int64]float64, len(nodes))

	for _, n := range nodes {
		comm[n] = n
		commTot[n] = g.Degree(n)
	}

	for pass := 0; pass < maxPasses; pass++ {
		moved := false

		for _, n := range nodes {
			if localMove(g, n, comm, commTot, m2, resolution) {
				moved = true
			}
		}

		if !moved {
			break
		}
	}

	return communitiesToPartition(comm), nil
}

// localMove tries to move node n into the neighboring community (including
// its own) with the highest modularity gain. Returns true if n changed
// community.
func localMove(g *Graph, n int64, comm map[int64]int64, commTot map[int64]float64, m2, resolution float64) bool {
	origComm := comm[n]
	kn := g.Degree(n)

	commTot[origComm] -= kn

	kIn := make(map[int64]float64) // candidate community -> Σ edge weight from n into it
	for neighbor, w := range g.Neighbors(n) {
		if neighbor == n {
			continue
		}

		kIn[comm[neighbor]] += w
	}

	bestComm := origComm
	bestGain := kIn[origComm] - resolution*commTot[origComm]*kn/m2

	for candidate, weightIn := range kIn {
		gain := weightIn - resolution*commTot[candidate]*kn/m2
		if gain > bestGain || (gain == bestGain && bestComm != origComm && candidate < bestComm) {
			bestGain = gain
			bestComm = candidate
		}
	}

	comm[n] = bestComm
	commTot[bestComm] += kn

	return bestComm != origComm
}

func communitiesToPartition(comm map[int64]int64) Partition {
	byComm := make(map[int64][]int64)
	for node, c := range comm {
		byComm[c] = append(byComm[c], node)
	}

	out := make(Partition, 0, len(byComm))
	for _, members := range byComm {
		out = append(out, members)
	}

	return out
}

func singletons(nodes []int64) Partition {
	out := make(Partition, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, []int64{n})
	}

	return out
}
