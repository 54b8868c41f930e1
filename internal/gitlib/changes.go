package gitlib

import (
	"fmt"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified in place.
	Modify
	// Rename indicates a file was renamed, optionally with content changes.
	Rename
	// Copy indicates a file was copied from another path in the same commit.
	Copy
)

// Change represents a single file change between two trees.
type Change struct {
	Action ChangeAction
	From   ChangeEntry
	To     ChangeEntry
	// Similarity is the libgit2 similarity score (0-100) for Rename/Copy deltas.
	Similarity int
	// Insertions and Deletions are per-file line counts from the patch stats;
	// 0 for binary files libgit2 cannot diff as text.
	Insertions int
	Deletions  int
}

// ChangeEntry represents one side of a change (old or new file).
type ChangeEntry struct {
	Name string
	Hash Hash
	Size int64
	Mode uint16
}

// Changes is a collection of Change objects.
type Changes []*Change

// TreeDiff computes the changes between two trees using libgit2's native
// rename/copy detection at the given similarity threshold (non-positive uses
// 0.9). Skips diff when both tree OIDs are equal (e.g. metadata-only
// merge commits).
func TreeDiff(repo *Repository, oldTree, newTree *Tree, renameSimilarity float64) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return make(Changes, 0), nil
	}

	diff, err := repo.DiffTreeToTreeDetectRenames(oldTree, newTree, renameSimilarity)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer diff.Free()

	numDeltas, numErr := diff.NumDeltas()
	if numErr != nil {
		return nil, fmt.Errorf("get num deltas: %w", numErr)
	}

	changes := make(Changes, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			continue
		}

		change := deltaToChange(delta)
		if change != nil {
			if delta.Status == git2go.DeltaModified || delta.Status == git2go.DeltaRenamed || delta.Status == git2go.DeltaAdded || delta.Status == git2go.DeltaDeleted {
				ins, del, statErr := diff.DeltaStats(i)
				if statErr == nil {
					change.Insertions, change.Deletions = ins, del
				}
			}

			changes = append(changes, change)
		}
	}

	return changes, nil
}

func deltaToChange(delta DiffDelta) *Change {
	switch delta.Status {
	case git2go.DeltaAdded:
		return &Change{
			Action: Insert,
			To:     ChangeEntry{Name: delta.NewFile.Path, Hash: delta.NewFile.Hash, Size: delta.NewFile.Size},
		}
	case git2go.DeltaDeleted:
		return &Change{
			Action: Delete,
			From:   ChangeEntry{Name: delta.OldFile.Path, Hash: delta.OldFile.Hash, Size: delta.OldFile.Size},
		}
	case git2go.DeltaModified:
		return &Change{
			Action: Modify,
			From:   ChangeEntry{Name: delta.OldFile.Path, Hash: delta.OldFile.Hash, Size: delta.OldFile.Size},
			To:     ChangeEntry{Name: delta.NewFile.Path, Hash: delta.NewFile.Hash, Size: delta.NewFile.Size},
		}
	case git2go.DeltaRenamed:
		return &Change{
			Action:     Rename,
			From:       ChangeEntry{Name: delta.OldFile.Path, Hash: delta.OldFile.Hash, Size: delta.OldFile.Size},
			To:         ChangeEntry{Name: delta.NewFile.Path, Hash: delta.NewFile.Hash, Size: delta.NewFile.Size},
			Similarity: int(delta.Flags.Similarity()),
		}
	case git2go.DeltaCopied:
		return &Change{
			Action:     Copy,
			From:       ChangeEntry{Name: delta.OldFile.Path, Hash: delta.OldFile.Hash, Size: delta.OldFile.Size},
			To:         ChangeEntry{Name: delta.NewFile.Path, Hash: delta.NewFile.Hash, Size: delta.NewFile.Size},
			Similarity: int(delta.Flags.Similarity()),
		}
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUntracked,
		git2go.DeltaTypeChange, git2go.DeltaUnreadable, git2go.DeltaConflicted:
		return nil
	default:
		return nil
	}
}

// InitialTreeChanges creates changes for an initial commit (all files are insertions).
func InitialTreeChanges(repo *Repository, tree *Tree) (Changes, error) {
	if tree == nil {
		return nil, nil
	}

	changes := make(Changes, 0)

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		if !entry.IsBlob() {
			return nil
		}

		changes = append(changes, &Change{
			Action: Insert,
			To: ChangeEntry{
				Name: path,
				Hash: entry.Hash(),
			},
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return changes, nil
}

// walkTree recursively walks a tree and calls the callback for each entry.
func walkTree(repo *Repository, tree *Tree, prefix string, cb func(path string, entry *TreeEntry) error) error {
	count := tree.EntryCount()

	for i := range count {
		entry := tree.EntryByIndex(i)
		if entry == nil {
			continue
		}

		walkErr := processTreeEntry(repo, entry, prefix, cb)
		if walkErr != nil {
			return walkErr
		}
	}

	return nil
}

// processTreeEntry handles a single tree entry, either calling cb for blobs or recursing for subtrees.
func processTreeEntry(repo *Repository, entry *TreeEntry, prefix string, cb func(path string, entry *TreeEntry) error) error {
	path := entry.Name()
	if prefix != "" {
		path = prefix + "/" + path
	}

	if entry.IsBlob() {
		return cb(path, entry)
	}

	if entry.Type() != git2go.ObjectTree {
		return nil
	}

	subtree, lookupErr := repo.LookupTree(entry.Hash())
	if lookupErr != nil {
		return nil // Skip entries we can't look up.
	}
	defer subtree.Free()

	return walkTree(repo, subtree, path, cb)
}

// TreeFiles returns all files in a tree, without loading their content.
func TreeFiles(repo *Repository, tree *Tree) ([]*File, error) {
	var files []*File

	err := walkTree(repo, tree, "", func(path string, entry *TreeEntry) error {
		files = append(files, &File{
			Name: path,
			Hash: entry.Hash(),
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
