package extract

import (
	"fmt"
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/gitlib"
	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// resolveChanges turns one commit's raw diff into Change rows, driving
// entity resolution (get_or_create, rename, lineage) as it goes. Invalid
// paths are dropped and reported as ValidationLog entries; bulk commits
// still produce Change rows and count toward total_commits, and the
// ChangesetShaper excludes them from coupling math by the commit's
// file_count, not here.
func (e *Extractor) resolveChanges(
	repoID string,
	commit *gitlib.Commit,
	authorID int64,
	diffs gitlib.Changes,
	paths *pathEntity,
	bulk bool,
) ([]model.Change, []model.ValidationLog) {
	changes := make([]model.Change, 0, len(diffs))
	validations := make([]model.ValidationLog, 0)
	oid := commit.Hash().String()
	when := commit.Author().When

	for _, d := range diffs {
		if bad := e.invalidSide(d); bad != "" {
			validations = append(validations, model.ValidationLog{
				RepoID:    repoID,
				CommitOid: oid,
				Stage:     model.StageExtract,
				Reason:    fmt.Sprintf("rejected path (%s)", bad),
				Severity:  model.SeverityWarn,
				CreatedAt: time.Now(),
			})

			continue
		}

		if !e.pathsAllowed(d) {
			continue
		}

		change, lineage := e.resolveOne(repoID, oid, when, d, paths)
		changes = append(changes, change)

		if lineage != nil {
			_ = e.resolver.RecordLineage(*lineage)
		}

		delta := StatsDelta{
			AuthorID:     authorID,
			When:         when,
			Insertions:   int64(d.Insertions),
			Deletions:    int64(d.Deletions),
			CountsCommit: true,
		}
		_ = e.resolver.ApplyStats(change.EntityID, delta)
	}

	return changes, validations
}

// invalidSide returns the ValidationLog reason if either side of the delta
// fails path validation.
func (e *Extractor) invalidSide(d *gitlib.Change) InvalidPathReason {
	if d.From.Name != "" {
		if reason := ValidatePath(d.From.Name); reason != "" {
			return reason
		}
	}

	if d.To.Name != "" {
		if reason := ValidatePath(d.To.Name); reason != "" {
			return reason
		}
	}

	return ""
}

func (e *Extractor) pathsAllowed(d *gitlib.Change) bool {
	if d.To.Name != "" && !e.filter.Allowed(d.To.Name) {
		return false
	}

	if d.From.Name != "" && d.To.Name == "" && !e.filter.Allowed(d.From.Name) {
		return false
	}

	return true
}

func (e *Extractor) resolveOne(
	repoID, oid string,
	when time.Time,
	d *gitlib.Change,
	paths *pathEntity,
) (model.Change, *model.FileLineage) {
	if e.seen != nil && d.To.Name != "" {
		e.seen.Add([]byte(d.To.Name))
	}

	switch d.Action {
	case gitlib.Insert:
		id := e.getOrCreate(repoID, d.To.Name, paths)

		return model.Change{
			CommitOid: oid, EntityID: id, ChangeType: model.ChangeAdd,
			Insertions: int32(d.Insertions), Deletions: int32(d.Deletions), //nolint:gosec
		}, nil

	case gitlib.Modify:
		id := e.getOrCreate(repoID, d.To.Name, paths)

		return model.Change{
			CommitOid: oid, EntityID: id, ChangeType: model.ChangeModify,
			Insertions: int32(d.Insertions), Deletions: int32(d.Deletions), //nolint:gosec
		}, nil

	case gitlib.Delete:
		id := e.getOrCreate(repoID, d.From.Name, paths)
		delete(paths.byPath, d.From.Name)
		_ = e.resolver.SetExistsAtHead(id, false)

		return model.Change{
			CommitOid: oid, EntityID: id, ChangeType: model.ChangeDelete,
			Insertions: int32(d.Insertions), Deletions: int32(d.Deletions), //nolint:gosec
		}, nil

	case gitlib.Rename:
		return e.resolveRename(repoID, oid, when, d, paths)

	case gitlib.Copy:
		return e.resolveCopy(repoID, oid, when, d, paths)

	default:
		id := e.getOrCreate(repoID, d.To.Name, paths)

		return model.Change{CommitOid: oid, EntityID: id, ChangeType: model.ChangeModify}, nil
	}
}

func (e *Extractor) resolveRename(
	repoID, oid string,
	when time.Time,
	d *gitlib.Change,
	paths *pathEntity,
) (model.Change, *model.FileLineage) {
	id := e.getOrCreate(repoID, d.From.Name, paths)

	delete(paths.byPath, d.From.Name)
	_ = e.resolver.Rename(id, d.To.Name)
	paths.byPath[d.To.Name] = id

	lineage := &model.FileLineage{
		RepoID: repoID, OldEntityID: id, NewEntityID: id,
		OldPath: d.From.Name, NewPath: d.To.Name,
		CommitOid: oid, Similarity: d.Similarity, DetectedKind: model.ChangeRename,
	}

	change := model.Change{
		CommitOid: oid, EntityID: id, ChangeType: model.ChangeRename,
		Insertions: int32(d.Insertions), Deletions: int32(d.Deletions), //nolint:gosec
		OldEntityID: &id,
	}

	return change, lineage
}

func (e *Extractor) resolveCopy(
	repoID, oid string,
	when time.Time,
	d *gitlib.Change,
	paths *pathEntity,
) (model.Change, *model.FileLineage) {
	srcID := e.getOrCreate(repoID, d.From.Name, paths)
	newID := e.getOrCreate(repoID, d.To.Name, paths)

	lineage := &model.FileLineage{
		RepoID: repoID, OldEntityID: srcID, NewEntityID: newID,
		OldPath: d.From.Name, NewPath: d.To.Name,
		CommitOid: oid, Similarity: d.Similarity, DetectedKind: model.ChangeCopy,
	}

	change := model.Change{
		CommitOid: oid, EntityID: newID, ChangeType: model.ChangeCopy,
		Insertions: int32(d.Insertions), Deletions: int32(d.Deletions), //nolint:gosec
		OldEntityID: &srcID,
	}

	return change, lineage
}

func (e *Extractor) getOrCreate(repoID, path string, paths *pathEntity) int64 {
	if id, ok := paths.byPath[path]; ok {
		return id
	}

	id, err := e.resolver.GetOrCreateEntity(repoID, model.EntityFile, path)
	if err != nil {
		return 0
	}

	paths.byPath[path] = id

	return id
}
