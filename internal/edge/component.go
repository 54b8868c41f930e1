package edge

import (
	"strings"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// componentOf truncates a qualified path to its first depth path segments,
// e.g. componentOf("internal/store/parquet/writer.go", 2) == "internal/store".
// A path with no more than depth segments collapses to its parent directory
// (a top-level file collapses to "").
func componentOf(path string, depth int) string {
	if path == "" || depth <= 0 {
		return ""
	}

	segments := strings.Split(path, "/")
	if len(segments) <= depth {
		return strings.Join(segments[:len(segments)-1], "/")
	}

	return strings.Join(segments[:depth], "/")
}

// ProjectComponents aggregates file-level Relationships up to component
// granularity: co-change counts roll up by folder prefix, intra-component
// edges are excluded (a file's coupling to its own sibling is not
// interesting at this zoom level), and ComponentJaccard is the PairCount-
// weighted average of the constituent file-level Jaccard weights.
func (b *Builder) ProjectComponents(rels []model.Relationship, entityPath map[int64]string) []model.ComponentEdge {
	depth := b.opts.ComponentDepth
	if depth <= 0 {
		depth = 2
	}

	minCo := b.opts.MinComponentCooccurrence
	if minCo <= 0 {
		minCo = 1
	}

	type accum struct {
		edge       model.ComponentEdge
		weightSum  float64
		countSum   int
	}

	agg := make(map[string]*accum)

	for _, r := range rels {
		srcPath, ok1 := entityPath[r.SrcID]
		dstPath, ok2 := entityPath[r.DstID]

		if !ok1 || !ok2 {
			continue
		}

		srcComp := componentOf(srcPath, depth)
		dstComp := componentOf(dstPath, depth)

		if srcComp == "" || dstComp == "" || srcComp == dstComp {
			continue
		}

		lo, hi := srcComp, dstComp
		if lo > hi {
			lo, hi = hi, lo
		}

		key := lo + "\x00" + hi

		a, ok := agg[key]
		if !ok {
			a = &accum{edge: model.ComponentEdge{SrcComponent: lo, DstComponent: hi}}
			agg[key] = a
		}

		a.edge.ComponentPairCount += r.Metadata.PairCount
		a.weightSum += r.Weight * float64(r.Metadata.PairCount)
		a.countSum += r.Metadata.PairCount
	}

	out := make([]model.ComponentEdge, 0, len(agg))

	for _, a := range agg {
		if a.edge.ComponentPairCount < minCo {
			continue
		}

		if a.countSum > 0 {
			a.edge.ComponentJaccard = a.weightSum / float64(a.countSum)
		}

		out = append(out, a.edge)
	}

	return out
}
