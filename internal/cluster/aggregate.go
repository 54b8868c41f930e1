package cluster

import (
	"sort"
	"strconv"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

const (
	defaultTopHotFiles = 10
	defaultTopCommits  = 10
	defaultTopAuthors  = 10
)

// EntityInfo is the minimal per-entity view BuildClusters needs beyond
// membership: its display path and accumulated stats.
type EntityInfo struct {
	Path  string
	Stats model.EntityStats
}

// AggregateInput bundles everything BuildClusters draws on besides the
// Partition itself. Commits/Changes/AuthorNames may be nil — TopCommits and
// CommonAuthors are simply left empty in that case, so callers that only
// have the edge graph on hand can still get HotFiles and AvgCoupling.
type AggregateInput struct {
	Relationships []model.Relationship
	Entities      map[int64]EntityInfo
	Commits       []model.Commit
	Changes       []model.Change
	AuthorNames   map[int64]string
}

// BuildClusters turns a raw Partition into model.Cluster rows with every
// descriptive aggregate §4.4 calls for, assigning sequential ids and a
// heuristic name per cluster.
func BuildClusters(partition Partition, in AggregateInput) []model.Cluster {
	relByPair := indexRelationships(in.Relationships)
	commitsByMember := indexCommitsByEntity(in.Changes)

	out := make([]model.Cluster, 0, len(partition))

	for i, members := range partition {
		memberSet := toSet(members)

		c := model.Cluster{
			ID:        i,
			MemberIDs: members,
			Size:      len(members),
		}

		c.AvgCoupling = avgCoupling(members, relByPair)
		c.TotalChurn, c.HotFiles = churnAndHotFiles(members, in.Entities)
		c.CommonAuthors = commonAuthors(members, in.Entities, in.AuthorNames)
		c.TopCommits = topCommits(memberSet, commitsByMember, in.Commits)
		c.Name = heuristicName(members, in.Entities)

		out = append(out, c)
	}

	return out
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}

	return set
}

func indexRelationships(rels []model.Relationship) map[[2]int64]float64 {
	out := make(map[[2]int64]float64, len(rels))
	for _, r := range rels {
		out[[2]int64{r.SrcID, r.DstID}] = r.Weight
	}

	return out
}

func avgCoupling(members []int64, relByPair map[[2]int64]float64) float64 {
	if len(members) < 2 {
		return 0
	}

	var (
		sum   float64
		count int
	)

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			lo, hi := members[i], members[j]
			if lo > hi {
				lo, hi = hi, lo
			}

			if w, ok := relByPair[[2]int64{lo, hi}]; ok {
				sum += w
				count++
			}
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

func churnAndHotFiles(members []int64, entities map[int64]EntityInfo) (int64, []model.HotFile) {
	var total int64

	hot := make([]model.HotFile, 0, len(members))

	for _, id := range members {
		info, ok := entities[id]
		if !ok {
			continue
		}

		churn := info.Stats.Insertions + info.Stats.Deletions
		total += churn
		hot = append(hot, model.HotFile{Path: info.Path, Churn: churn})
	}

	sort.SliceStable(hot, func(i, j int) bool { return hot[i].Churn > hot[j].Churn })

	if len(hot) > defaultTopHotFiles {
		hot = hot[:defaultTopHotFiles]
	}

	return total, hot
}

func commonAuthors(members []int64, entities map[int64]EntityInfo, names map[int64]string) []model.CommonAuthor {
	tally := make(map[int64]int)

	for _, id := range members {
		info, ok := entities[id]
		if !ok {
			continue
		}

		for authorKey, count := range info.Stats.Authors {
			authorID, err := strconv.ParseInt(authorKey, 10, 64)
			if err != nil {
				continue
			}

			tally[authorID] += count
		}
	}

	out := make([]model.CommonAuthor, 0, len(tally))

	for id, count := range tally {
		name := names[id]
		if name == "" {
			name = strconv.FormatInt(id, 10)
		}

		out = append(out, model.CommonAuthor{Name: name, CommitCount: count})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CommitCount > out[j].CommitCount })

	if len(out) > defaultTopAuthors {
		out = out[:defaultTopAuthors]
	}

	return out
}

func indexCommitsByEntity(changes []model.Change) map[string]map[int64]bool {
	out := make(map[string]map[int64]bool)

	for _, c := range changes {
		if out[c.CommitOid] == nil {
			out[c.CommitOid] = make(map[int64]bool)
		}

		out[c.CommitOid][c.EntityID] = true
	}

	return out
}

func topCommits(memberSet map[int64]bool, commitsByMember map[string]map[int64]bool, commits []model.Commit) []model.TopCommit {
	type hit struct {
		oid   string
		count int
	}

	var hits []hit

	for oid, entities := range commitsByMember {
		count := 0

		for id := range entities {
			if memberSet[id] {
				count++
			}
		}

		if count >= 2 {
			hits = append(hits, hit{oid: oid, count: count})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].count > hits[j].count })

	if len(hits) > defaultTopCommits {
		hits = hits[:defaultTopCommits]
	}

	byOid := make(map[string]model.Commit, len(commits))
	for _, c := range commits {
		byOid[c.Oid] = c
	}

	out := make([]model.TopCommit, 0, len(hits))

	for _, h := range hits {
		c := byOid[h.oid]
		out = append(out, model.TopCommit{
			Oid: h.oid, Message: c.Subject, FileCount: h.count,
			Author: strconv.FormatInt(c.AuthorID, 10),
		})
	}

	return out
}

// heuristicName picks the longest common directory prefix among member
// paths as the cluster's display name, falling back to the first member's
// full path when members share no directory.
func heuristicName(members []int64, entities map[int64]EntityInfo) string {
	var paths []string

	for _, id := range members {
		if info, ok := entities[id]; ok && info.Path != "" {
			paths = append(paths, info.Path)
		}
	}

	if len(paths) == 0 {
		return "cluster"
	}

	prefix := commonDirPrefix(paths)
	if prefix != "" {
		return prefix
	}

	return paths[0]
}
