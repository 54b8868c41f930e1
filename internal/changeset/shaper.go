// Package changeset groups raw per-commit Change rows into LogicalChangesets
// — the unit the EdgeBuilder treats as a single coupling event — under one
// of three grouping modes, with bulk- and oversize-changeset downweighting.
package changeset

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// Mode selects how raw commits are grouped into LogicalChangesets.
type Mode string

const (
	ByCommit           Mode = "by_commit"
	ByAuthorTimeWindow Mode = "by_author_time_window"
	ByTicketID         Mode = "by_ticket_id"
)

// Options configures the Shaper.
type Options struct {
	Mode                    Mode
	MaxLogicalChangesetSize int
	AuthorTimeWindow        time.Duration
	TicketIDPattern         *regexp.Regexp
	MaxChangesetSize        int // same bulk-commit threshold as extraction, to skip bulk commits up front.
}

func (o Options) maxLogicalSize() int {
	if o.MaxLogicalChangesetSize <= 0 {
		return 100
	}

	return o.MaxLogicalChangesetSize
}

func (o Options) window() time.Duration {
	if o.AuthorTimeWindow <= 0 {
		return 24 * time.Hour
	}

	return o.AuthorTimeWindow
}

// commitInput is the minimal per-commit view the Shaper needs: the set of
// entities touched (already deduplicated) plus the grouping keys.
type commitInput struct {
	oid      string
	authorID int64
	when     time.Time
	subject  string
	entities []int64
	bulk     bool
}

// Shape groups commits and changes into LogicalChangesets. Changes belonging
// to a bulk commit (file_count > max_changeset_size, tracked in commits) are
// excluded entirely — they never contribute to a changeset, per §4.1's "a
// single monolithic rename ... must not produce spurious coupled pairs".
func Shape(commits []model.Commit, changes []model.Change, opts Options) ([]model.LogicalChangeset, []model.ValidationLog) {
	bulkSet := bulkCommits(commits, opts.MaxChangesetSize)
	inputs := buildCommitInputs(commits, changes, bulkSet)

	switch opts.Mode {
	case ByAuthorTimeWindow:
		return shapeByAuthorWindow(inputs, opts)
	case ByTicketID:
		return shapeByTicket(inputs, opts)
	default:
		return shapeByCommit(inputs, opts)
	}
}

func bulkCommits(commits []model.Commit, maxChangesetSize int) map[string]bool {
	if maxChangesetSize <= 0 {
		maxChangesetSize = 50
	}

	bulk := make(map[string]bool)

	for _, c := range commits {
		if int(c.FileCount) > maxChangesetSize {
			bulk[c.Oid] = true
		}
	}

	return bulk
}

func buildCommitInputs(commits []model.Commit, changes []model.Change, bulkSet map[string]bool) []commitInput {
	entitiesByCommit := make(map[string][]int64)
	seen := make(map[string]map[int64]bool)

	for _, c := range changes {
		if bulkSet[c.CommitOid] {
			continue
		}

		if seen[c.CommitOid] == nil {
			seen[c.CommitOid] = make(map[int64]bool)
		}

		if seen[c.CommitOid][c.EntityID] {
			continue
		}

		seen[c.CommitOid][c.EntityID] = true
		entitiesByCommit[c.CommitOid] = append(entitiesByCommit[c.CommitOid], c.EntityID)
	}

	inputs := make([]commitInput, 0, len(commits))

	for _, c := range commits {
		if bulkSet[c.Oid] {
			continue
		}

		entities := entitiesByCommit[c.Oid]
		if len(entities) == 0 {
			continue
		}

		inputs = append(inputs, commitInput{
			oid: c.Oid, authorID: c.AuthorID,
			when: time.Unix(c.AuthorTS, 0).UTC(), subject: c.Subject,
			entities: entities, bulk: false,
		})
	}

	return inputs
}

// weight implements §4.2's w = 1 / log2(|files| + 1), with weight 1 for
// singletons (log2(2) = 1).
func weight(n int) float64 {
	if n <= 0 {
		return 1
	}

	return 1 / math.Log2(float64(n)+1)
}

func shapeByCommit(inputs []commitInput, opts Options) ([]model.LogicalChangeset, []model.ValidationLog) {
	out := make([]model.LogicalChangeset, 0, len(inputs))

	var drops []model.ValidationLog

	maxSize := opts.maxLogicalSize()

	for _, in := range inputs {
		if len(in.entities) > maxSize {
			drops = append(drops, droppedLog(in.oid, len(in.entities), maxSize))

			continue
		}

		out = append(out, model.LogicalChangeset{
			GroupKey: in.oid, EntityIDs: in.entities, Weight: weight(len(in.entities)), Time: in.when,
		})
	}

	return out, drops
}

func droppedLog(key string, size, limit int) model.ValidationLog {
	return model.ValidationLog{
		CommitOid: key,
		Stage:     model.StageChangeset,
		Reason:    fmt.Sprintf("logical changeset of %d files exceeds max_logical_changeset_size %d", size, limit),
		Severity:  model.SeverityWarn,
		CreatedAt: time.Now(),
	}
}

// sortStable orders inputs by (authorID, when) so grouping is deterministic
// regardless of the caller's commit order — EdgeBuilder only needs the
// resulting groups, never the original order (§4.2 "Output is not
// guaranteed sorted").
func sortStable(inputs []commitInput) {
	sort.SliceStable(inputs, func(i, j int) bool {
		if inputs[i].authorID != inputs[j].authorID {
			return inputs[i].authorID < inputs[j].authorID
		}

		return inputs[i].when.Before(inputs[j].when)
	})
}
