package changeset

import (
	"crypto/sha1" //nolint:gosec // synthetic group key, not a security boundary.
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// shapeByAuthorWindow groups commits by the same author falling within a
// sliding window of each other, unioning their touched entities — for
// developers who split one logical change across several commits.
func shapeByAuthorWindow(inputs []commitInput, opts Options) ([]model.LogicalChangeset, []model.ValidationLog) {
	sortStable(inputs)

	window := opts.window()
	maxSize := opts.maxLogicalSize()

	var (
		out   []model.LogicalChangeset
		drops []model.ValidationLog
	)

	i := 0
	for i < len(inputs) {
		j := i + 1
		authorID := inputs[i].authorID
		windowStart := inputs[i].when

		entitySet := map[int64]bool{}
		for _, id := range inputs[i].entities {
			entitySet[id] = true
		}

		members := []string{inputs[i].oid}
		latest := windowStart

		for j < len(inputs) && inputs[j].authorID == authorID && inputs[j].when.Sub(windowStart) <= window {
			for _, id := range inputs[j].entities {
				entitySet[id] = true
			}

			members = append(members, inputs[j].oid)
			latest = inputs[j].when
			j++
		}

		entities := setToSlice(entitySet)
		groupKey := syntheticKey("atw", members)

		if len(entities) > maxSize {
			drops = append(drops, droppedLog(groupKey, len(entities), maxSize))
		} else {
			out = append(out, model.LogicalChangeset{
				GroupKey: groupKey, EntityIDs: entities, Weight: weight(len(entities)), Time: latest,
			})
		}

		i = j
	}

	return out, drops
}

// shapeByTicket extracts a ticket id from each commit subject via regex and
// groups all commits sharing it, regardless of author or time. Commits with
// no match fall back to per-commit grouping (§9 open question, resolved).
func shapeByTicket(inputs []commitInput, opts Options) ([]model.LogicalChangeset, []model.ValidationLog) {
	pattern := opts.TicketIDPattern
	maxSize := opts.maxLogicalSize()

	byTicket := make(map[string][]commitInput)

	var singles []commitInput

	for _, in := range inputs {
		ticket := ""
		if pattern != nil {
			if m := pattern.FindStringSubmatch(in.subject); len(m) > 1 {
				ticket = m[1]
			} else if len(m) == 1 {
				ticket = m[0]
			}
		}

		if ticket == "" {
			singles = append(singles, in)

			continue
		}

		byTicket[ticket] = append(byTicket[ticket], in)
	}

	var (
		out   []model.LogicalChangeset
		drops []model.ValidationLog
	)

	for ticket, group := range byTicket {
		entitySet := map[int64]bool{}
		members := make([]string, 0, len(group))

		var latest time.Time

		for _, in := range group {
			members = append(members, in.oid)

			if in.when.After(latest) {
				latest = in.when
			}

			for _, id := range in.entities {
				entitySet[id] = true
			}
		}

		entities := setToSlice(entitySet)
		groupKey := "ticket:" + ticket

		if len(entities) > maxSize {
			drops = append(drops, droppedLog(groupKey, len(entities), maxSize))

			continue
		}

		out = append(out, model.LogicalChangeset{
			GroupKey: groupKey, EntityIDs: entities, Weight: weight(len(entities)), Time: latest,
		})
	}

	singleOut, singleDrops := shapeByCommit(singles, opts)
	out = append(out, singleOut...)
	drops = append(drops, singleDrops...)

	return out, drops
}

func setToSlice(set map[int64]bool) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}

	return out
}

func syntheticKey(prefix string, members []string) string {
	h := sha1.New() //nolint:gosec // not a security boundary.
	for _, m := range members {
		h.Write([]byte(m))
	}

	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(h.Sum(nil))[:12])
}
