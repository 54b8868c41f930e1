package edge

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// toRelationships turns accumulated pair statistics into Relationship rows,
// filtering by min_cooccurrence and computing every §4.3 metric.
func (b *Builder) toRelationships(pairs map[string]pairAccum, surviving map[int64]bool) []model.Relationship {
	minCo := b.opts.minCooccurrence()
	out := make([]model.Relationship, 0, len(pairs))

	for key, acc := range pairs {
		if acc.PairCount < minCo {
			continue
		}

		src, dst, ok := splitPairKey(key)
		if !ok {
			continue
		}

		supSrc := b.support[src]
		supDst := b.support[dst]

		rel := model.Relationship{
			SourceType: model.SourceGit,
			Kind:       model.CoChanged,
			SrcID:      src,
			DstID:      dst,
			Weight:     jaccard(acc.PairCount, supSrc, supDst),
			Metadata: model.RelationshipMetadata{
				Support:      maxInt(supSrc, supDst),
				SupportSrc:   supSrc,
				SupportDst:   supDst,
				PairCount:    acc.PairCount,
				PDstGivenSrc: conditional(acc.PairCount, supSrc),
				PSrcGivenDst: conditional(acc.PairCount, supDst),
			},
		}

		if b.sumWeight[src]+b.sumWeight[dst] > 0 {
			jw := weightedJaccard(acc.SumWeight, b.sumWeight[src], b.sumWeight[dst])
			rel.Metadata.JaccardWeight = &jw
		}

		if b.opts.DecayHalfLife > 0 {
			dw := acc.SumDecay
			rel.Metadata.DecayedWeight = &dw
		}

		out = append(out, rel)
	}

	return out
}

// jaccard is |A∩B| / |A∪B| where the intersection is the pair's co-change
// count and the union is support_src + support_dst - pair_count.
func jaccard(pairCount, supSrc, supDst int) float64 {
	union := supSrc + supDst - pairCount
	if union <= 0 {
		return 0
	}

	return float64(pairCount) / float64(union)
}

// weightedJaccard substitutes changeset weights for raw counts: Σw over
// shared changesets divided by the union of each entity's total Σw.
func weightedJaccard(sumShared, sumSrc, sumDst float64) float64 {
	union := sumSrc + sumDst - sumShared
	if union <= 0 {
		return 0
	}

	return sumShared / union
}

// conditional is P(other | this) = pair_count / support_this.
func conditional(pairCount, support int) float64 {
	if support <= 0 {
		return 0
	}

	return float64(pairCount) / float64(support)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}

func splitPairKey(key string) (int64, int64, bool) {
	parts := strings.SplitN(key, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	lo, err1 := strconv.ParseInt(parts[0], 10, 64)
	hi, err2 := strconv.ParseInt(parts[1], 10, 64)

	if err1 != nil || err2 != nil {
		return 0, 0, false
	}

	return lo, hi, true
}

// applyTopK retains an edge iff it ranks in the top_k (by Weight) neighbor
// list for at least one of its two endpoints — a symmetric cap that avoids
// starving either side of its strongest relationships (§4.3 "top-k is
// applied per endpoint, then the results are unioned, not intersected").
func applyTopK(rels []model.Relationship, k int) []model.Relationship {
	if k <= 0 {
		return rels
	}

	byEndpoint := make(map[int64][]int) // entity id -> indexes into rels, ranked by weight desc.
	for i, r := range rels {
		byEndpoint[r.SrcID] = append(byEndpoint[r.SrcID], i)
		byEndpoint[r.DstID] = append(byEndpoint[r.DstID], i)
	}

	keep := make(map[int]bool, len(rels))

	for _, idxs := range byEndpoint {
		sort.SliceStable(idxs, func(i, j int) bool {
			return rels[idxs[i]].Weight > rels[idxs[j]].Weight
		})

		limit := k
		if limit > len(idxs) {
			limit = len(idxs)
		}

		for _, i := range idxs[:limit] {
			keep[i] = true
		}
	}

	out := make([]model.Relationship, 0, len(keep))

	for i, r := range rels {
		if keep[i] {
			out = append(out, r)
		}
	}

	return out
}
