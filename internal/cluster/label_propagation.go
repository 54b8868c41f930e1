package cluster

import "sort"

// LabelPropagationAlgorithm implements asynchronous label propagation: nodes
// are visited in ascending id order and update their label in place, so later
// nodes in the same pass see earlier updates. Every node starts with its own
// label and repeatedly adopts the label carrying
// the greatest total neighbor edge weight, ties broken toward the smaller
// label id for determinism. Cheap and parameter-light compared to Louvain,
// at the cost of occasionally unstable results near ties — max_iterations
// bounds the oscillation rather than chasing true convergence.
type LabelPropagationAlgorithm struct{}

func (a *LabelPropagationAlgorithm) Name() string { return "label_propagation" }

const defaultLPMaxIterations = 100

func (a *LabelPropagationAlgorithm) Run(g *Graph, params Params) (Partition, error) {
	maxIter := params.Int("max_iterations", defaultLPMaxIterations)

	nodes := g.Nodes()
	label := make(map[int64]int64, len(nodes))

	for _, n := range nodes {
		label[n] = n
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		order := append([]int64(nil), nodes...)
		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] }) // deterministic visit order

		for _, n := range order {
			neighbors := g.Neighbors(n)
			if len(neighbors) == 0 {
				continue
			}

			tally := make(map[int64]float64)
			for neighbor, w := range neighbors {
				tally[label[neighbor]] += w
			}

			best := bestLabel(tally)

			if best != label[n] {
				label[n] = best
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return communitiesToPartition(label), nil
}

func bestLabel(tally map[int64]float64) int64 {
	var (
		best      int64
		bestScore float64
		set       bool
	)

	for lbl, score := range tally {
		if !set || score > bestScore || (score == bestScore && lbl < best) {
			best = lbl
			bestScore = score
			set = true
		}
	}

	return best
}
