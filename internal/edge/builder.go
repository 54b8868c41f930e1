// Package edge computes the weighted co-change graph — pairwise support,
// Jaccard and conditional-probability statistics over LogicalChangesets —
// and projects it to folder/component granularity.
package edge

import (
	"fmt"
	"math"
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/analyzers/common/spillstore"
	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// Options configures one EdgeBuilder run, drawn from config.EdgeConfig.
type Options struct {
	MinRevisions             int
	MinCooccurrence          int
	ComponentDepth           int
	MinComponentCooccurrence int
	TopKPerFile              int
	DecayHalfLife            time.Duration // 0 disables time-decayed weights.
	Now                      time.Time     // decay reference point; zero means "latest changeset time".
	SpillThresholdPairs      int           // pair-map entry count above which cold buckets spill to disk.
}

func (o Options) minRevisions() int {
	if o.MinRevisions <= 0 {
		return 5
	}

	return o.MinRevisions
}

func (o Options) minCooccurrence() int {
	if o.MinCooccurrence <= 0 {
		return 1
	}

	return o.MinCooccurrence
}

func (o Options) topK() int {
	if o.TopKPerFile <= 0 {
		return 50
	}

	return o.TopKPerFile
}

func (o Options) spillThreshold() int {
	if o.SpillThresholdPairs <= 0 {
		return 2_000_000
	}

	return o.SpillThresholdPairs
}

// pairAccum is the per-pair running total kept while streaming changesets.
type pairAccum struct {
	PairCount int
	SumWeight float64 // Σw (plain w, for jaccard_weighted) over shared changesets.
	SumDecay  float64 // Σ decayed w over shared changesets.
}

// Builder accumulates co-change statistics across a stream of
// LogicalChangesets. It is order-independent: Add may be called with
// changesets in any order, including from concurrent shards whose pair maps
// are merged afterward (§5 "pair-accumulation is associative and
// commutative").
type Builder struct {
	opts Options

	support   map[int64]int     // entity -> # changesets containing it
	sumWeight map[int64]float64 // entity -> Σw over changesets containing it

	pairs *spillstore.SpillStore[pairAccum]
}

// New creates an empty Builder.
func New(opts Options) *Builder {
	return &Builder{
		opts:      opts,
		support:   make(map[int64]int),
		sumWeight: make(map[int64]float64),
		pairs:     spillstore.New[pairAccum](),
	}
}

// pairKey canonicalizes an unordered pair into a single map key, matching
// the relationship table's src_id < dst_id invariant.
func pairKey(a, b int64) (string, int64, int64) {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}

	return fmt.Sprintf("%d:%d", lo, hi), lo, hi
}

// Build runs the two-pass computation over changesets: first accumulate
// per-entity support, prune entities under min_revisions, then accumulate
// pairwise statistics only over surviving entities. Returns file-level
// Relationships (not yet component-projected); dropping oversize changesets
// and logging them is the shaper's job, not this one's.
func (b *Builder) Build(changesets []model.LogicalChangeset) ([]model.Relationship, error) {
	b.accumulateSupport(changesets)

	minRev := b.opts.minRevisions()
	surviving := make(map[int64]bool, len(b.support))

	for id, s := range b.support {
		if s >= minRev {
			surviving[id] = true
		}
	}

	now := b.opts.Now
	if now.IsZero() {
		now = latestTime(changesets)
	}

	err := b.accumulatePairs(changesets, surviving, now)
	if err != nil {
		return nil, fmt.Errorf("accumulate pairs: %w", err)
	}

	merged, err := b.pairs.CollectWith(mergePairAccum)
	if err != nil {
		return nil, fmt.Errorf("collect pairs: %w", err)
	}

	rels := b.toRelationships(merged, surviving)
	rels = applyTopK(rels, b.opts.topK())

	return rels, nil
}

func (b *Builder) accumulateSupport(changesets []model.LogicalChangeset) {
	for _, cs := range changesets {
		w := cs.Weight
		if w <= 0 {
			w = 1
		}

		for _, id := range cs.EntityIDs {
			b.support[id]++
			b.sumWeight[id] += w
		}
	}
}

func (b *Builder) accumulatePairs(changesets []model.LogicalChangeset, surviving map[int64]bool, now time.Time) error {
	for _, cs := range changesets {
		members := filterSurviving(cs.EntityIDs, surviving)
		if len(members) < 2 {
			continue
		}

		w := cs.Weight
		if w <= 0 {
			w = 1
		}

		decayW := w
		if b.opts.DecayHalfLife > 0 && !cs.Time.IsZero() {
			decayW = w * decayFactor(now.Sub(cs.Time), b.opts.DecayHalfLife)
		}

		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				key, _, _ := pairKey(members[i], members[j])

				acc, _ := b.pairs.Get(key)
				acc.PairCount++
				acc.SumWeight += w
				acc.SumDecay += decayW
				b.pairs.Put(key, acc)
			}
		}

		if b.pairs.Len() > b.opts.spillThreshold() {
			if err := b.pairs.Spill(); err != nil {
				return err
			}
		}
	}

	return nil
}

// mergePairAccum combines two accumulations for the same pair key that
// landed in different spill chunks — plain addition, since every field is
// a running sum.
func mergePairAccum(existing, incoming pairAccum) pairAccum {
	return pairAccum{
		PairCount: existing.PairCount + incoming.PairCount,
		SumWeight: existing.SumWeight + incoming.SumWeight,
		SumDecay:  existing.SumDecay + incoming.SumDecay,
	}
}

func filterSurviving(ids []int64, surviving map[int64]bool) []int64 {
	out := make([]int64, 0, len(ids))

	for _, id := range ids {
		if surviving[id] {
			out = append(out, id)
		}
	}

	return out
}

// decayFactor implements exp(-ln2 * Δt / half_life).
func decayFactor(age time.Duration, halfLife time.Duration) float64 {
	if age < 0 {
		age = 0
	}

	ratio := age.Hours() / halfLife.Hours()

	return math.Exp(-math.Ln2 * ratio)
}

func latestTime(changesets []model.LogicalChangeset) time.Time {
	var t time.Time

	for _, cs := range changesets {
		if cs.Time.After(t) {
			t = cs.Time
		}
	}

	return t
}
