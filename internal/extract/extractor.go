// Package extract walks a repository's commit DAG and turns it into the
// columnar commits/changes tables and the entity graph every downstream
// pipeline stage references, resolving renames and copies into stable
// logical file identities along the way.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/sumatoshi-tech/codecouple/internal/gitlib"
	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/pkg/alg/bloom"
)

// defaultRenameSimilarity mirrors the (0,1] threshold default from §4.1.
const defaultRenameSimilarity = 0.9

// bloomEstimatedFiles seeds the bloom filter's bit array; it grows the false
// positive rate gracefully rather than failing outright if a repo has more
// distinct paths than estimated.
const bloomEstimatedFiles = 200_000

const bloomFalsePositiveRate = 0.01

// Options configures a single extraction run.
type Options struct {
	RenameSimilarity float64
	MaxChangesetSize int
	Since            *time.Time
	Until            *time.Time
	Include          []string
	Exclude          []string
}

func (o Options) similarity() float64 {
	if o.RenameSimilarity <= 0 {
		return defaultRenameSimilarity
	}

	return o.RenameSimilarity
}

func (o Options) maxChangesetSize() int {
	if o.MaxChangesetSize <= 0 {
		return 50
	}

	return o.MaxChangesetSize
}

// Result is everything one extraction run produced, ready to hand to the
// ChangesetShaper (Commits/Changes) and to ValidationLog storage.
type Result struct {
	Commits     []model.Commit
	Changes     []model.Change
	Validations []model.ValidationLog
	HeadOid     string
}

// Extractor is the HistoryExtractor: it owns no persistence itself beyond
// what it hands to an EntityResolver, so it can run against any resolver
// implementation (in-memory for tests, SQL-backed in production).
type Extractor struct {
	resolver EntityResolver
	opts     Options
	filter   PathFilter
	seen     *bloom.Filter
	people   *identityIndex
}

// New constructs an Extractor bound to a resolver and run options.
func New(resolver EntityResolver, opts Options) *Extractor {
	filter, err := bloom.NewWithEstimates(bloomEstimatedFiles, bloomFalsePositiveRate)
	if err != nil {
		filter = nil
	}

	return &Extractor{
		resolver: resolver,
		opts:     opts,
		filter:   NewPathFilter(opts.Include, opts.Exclude),
		seen:     filter,
		people:   newIdentityIndex(),
	}
}

// pathEntity tracks, for the duration of one run, which entity currently
// occupies a given path — the extractor's own fast index into the resolver,
// since the resolver is the durable store but the walk needs rename lookups
// at every commit.
type pathEntity struct {
	byPath map[string]int64
}

func newPathEntity() *pathEntity {
	return &pathEntity{byPath: make(map[string]int64)}
}

// Extract walks repo's history from oldest to newest commit, emitting
// Commit/Change rows and driving entity resolution. Per-commit failures are
// recorded to the validation log and skipped; repository-level failures
// (missing HEAD, unreadable object) are returned as fatal errors.
func (e *Extractor) Extract(ctx context.Context, repo *gitlib.Repository, repoID string) (*Result, error) {
	commits, err := e.orderedCommits(repo)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}

	result := &Result{}
	paths := newPathEntity()

	for _, commit := range commits {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		row, changes, validations, procErr := e.processCommit(repo, repoID, commit, paths)
		if procErr != nil {
			result.Validations = append(result.Validations, model.ValidationLog{
				RepoID:    repoID,
				CommitOid: commit.Hash().String(),
				Stage:     model.StageExtract,
				Reason:    procErr.Error(),
				Severity:  model.SeverityWarn,
				CreatedAt: time.Now(),
			})

			continue
		}

		result.Commits = append(result.Commits, row)
		result.Changes = append(result.Changes, changes...)
		result.Validations = append(result.Validations, validations...)
	}

	head, err := repo.Head()
	if err == nil {
		result.HeadOid = head.String()
		e.markHeadExistence(paths)
	}

	return result, nil
}

// orderedCommits returns commits oldest-first, the order lineage resolution
// needs: an entity's logical id is assigned at the commit where it is first
// seen, which only makes sense walking forward in time.
func (e *Extractor) orderedCommits(repo *gitlib.Repository) ([]*gitlib.Commit, error) {
	iter, err := repo.Log(&gitlib.LogOptions{Since: e.opts.Since})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var commits []*gitlib.Commit

	err = iter.ForEach(func(c *gitlib.Commit) error {
		if e.opts.Until != nil && c.Author().When.After(*e.opts.Until) {
			return nil
		}

		commits = append(commits, c)

		return nil
	})
	if err != nil {
		return nil, err
	}

	gitlib.ReverseCommits(commits)

	return commits, nil
}

func (e *Extractor) processCommit(
	repo *gitlib.Repository,
	repoID string,
	commit *gitlib.Commit,
	paths *pathEntity,
) (model.Commit, []model.Change, []model.ValidationLog, error) {
	newTree, err := commit.Tree()
	if err != nil {
		return model.Commit{}, nil, nil, fmt.Errorf("read tree: %w", err)
	}
	defer newTree.Free()

	oldTree, diffs, err := e.diffAgainstParent(repo, commit, newTree)
	if err != nil {
		return model.Commit{}, nil, nil, err
	}

	if oldTree != nil {
		defer oldTree.Free()
	}

	bulk := len(diffs) > e.opts.maxChangesetSize()

	author := commit.Author()
	committer := commit.Committer()
	authorID := e.people.resolve(author.Name, author.Email)

	changes, validations := e.resolveChanges(repoID, commit, authorID, diffs, paths, bulk)

	row := model.Commit{
		Oid:         commit.Hash().String(),
		AuthorID:    authorID,
		AuthorTS:    author.When.Unix(),
		CommitterID: e.people.resolve(committer.Name, committer.Email),
		CommitterTS: committer.When.Unix(),
		Subject:     commit.Message(),
		ParentOids:  parentOids(commit),
		FileCount:   int32(len(diffs)), //nolint:gosec // bounded by diff size.
		IsMerge:     commit.IsMerge(),
	}

	return row, changes, validations, nil
}

func (e *Extractor) diffAgainstParent(
	repo *gitlib.Repository,
	commit *gitlib.Commit,
	newTree *gitlib.Tree,
) (*gitlib.Tree, gitlib.Changes, error) {
	if commit.NumParents() == 0 {
		diffs, err := gitlib.InitialTreeChanges(repo, newTree)
		if err != nil {
			return nil, nil, fmt.Errorf("initial tree changes: %w", err)
		}

		return nil, diffs, nil
	}

	parent, err := commit.Parent(0)
	if err != nil {
		return nil, nil, fmt.Errorf("load first parent: %w", err)
	}
	defer parent.Free()

	oldTree, err := parent.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("read parent tree: %w", err)
	}

	diffs, err := gitlib.TreeDiff(repo, oldTree, newTree, e.opts.similarity())
	if err != nil {
		oldTree.Free()

		return nil, nil, fmt.Errorf("tree diff: %w", err)
	}

	return oldTree, diffs, nil
}

func parentOids(commit *gitlib.Commit) []string {
	oids := make([]string, 0, commit.NumParents())
	for i := range commit.NumParents() {
		oids = append(oids, commit.ParentHash(i).String())
	}

	return oids
}

func (e *Extractor) markHeadExistence(paths *pathEntity) {
	for _, entityID := range paths.byPath {
		_ = e.resolver.SetExistsAtHead(entityID, true)
	}
}
