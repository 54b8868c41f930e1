package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/sumatoshi-tech/codecouple/internal/changeset"
	"github.com/sumatoshi-tech/codecouple/internal/cluster"
	"github.com/sumatoshi-tech/codecouple/internal/config"
	"github.com/sumatoshi-tech/codecouple/internal/edge"
	"github.com/sumatoshi-tech/codecouple/internal/extract"
	"github.com/sumatoshi-tech/codecouple/internal/gitlib"
	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/store"
	"github.com/sumatoshi-tech/codecouple/internal/store/parquet"
)

// bytesPerSpilledPair approximates the in-memory footprint of one pairAccum
// bucket entry, so SpillThresholdBytes (the unit operators configure) can be
// translated into the edge package's pair-count threshold.
const bytesPerSpilledPair = 96

// stageExtract runs the HistoryExtractor against repoPath, persisting
// resolved entities through a store-backed EntityResolver as it walks.
func (o *Orchestrator) stageExtract(
	ctx context.Context,
	task *model.AnalysisTask,
	repoID, repoPath string,
	cfg *config.Config,
) ([]model.Commit, []model.Change, []model.ValidationLog, string, int64, int64, error) {
	stageCtx, cancel := withStageTimeout(ctx, cfg.Extraction.Timeout)
	defer cancel()

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageExtract, 0, 0, 0); err != nil {
		return nil, nil, nil, "", 0, 0, fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	repo, err := gitlib.LoadRepository(repoPath)
	if err != nil {
		return nil, nil, nil, "", 0, 0, fmt.Errorf("%w: open repository: %v", ErrInput, err)
	}
	defer repo.Free()

	since, until, err := parseWindow(cfg.Repository)
	if err != nil {
		return nil, nil, nil, "", 0, 0, fmt.Errorf("%w: %v", ErrInput, err)
	}

	opts := extract.Options{
		RenameSimilarity: cfg.Extraction.RenameSimilarity,
		MaxChangesetSize: cfg.Extraction.MaxChangesetSize,
		Since:            since,
		Until:            until,
		Include:          cfg.Repository.IncludePatterns,
		Exclude:          cfg.Repository.ExcludePatterns,
	}

	resolver := store.NewEntityResolver(stageCtx, o.store)
	result, err := extract.New(resolver, opts).Extract(stageCtx, repo, repoID)
	hits, misses := resolver.Stats()

	if result == nil {
		return nil, nil, nil, "", hits, misses, classifyErr(stageCtx, fmt.Errorf("extract: %w", err))
	}

	if err != nil {
		return result.Commits, result.Changes, result.Validations, result.HeadOid, hits, misses,
			classifyErr(stageCtx, fmt.Errorf("extract: %w", err))
	}

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageExtract, 1, int64(len(result.Commits)), int64(len(result.Commits))); err != nil {
		return nil, nil, nil, "", hits, misses, fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	return result.Commits, result.Changes, result.Validations, result.HeadOid, hits, misses, nil
}

// parseWindow resolves RepositoryConfig's window into extract.Options'
// absolute bounds: window_days (if set) wins over explicit since/until,
// giving operators a rolling-N-days shorthand without dropping the ability
// to pin an exact range.
func parseWindow(repoCfg config.RepositoryConfig) (*time.Time, *time.Time, error) {
	if repoCfg.WindowDays > 0 {
		since := time.Now().AddDate(0, 0, -repoCfg.WindowDays)
		return &since, nil, nil
	}

	var since, until *time.Time

	if repoCfg.Since != "" {
		t, err := time.Parse(time.RFC3339, repoCfg.Since)
		if err != nil {
			return nil, nil, fmt.Errorf("parse since %q: %w", repoCfg.Since, err)
		}

		since = &t
	}

	if repoCfg.Until != "" {
		t, err := time.Parse(time.RFC3339, repoCfg.Until)
		if err != nil {
			return nil, nil, fmt.Errorf("parse until %q: %w", repoCfg.Until, err)
		}

		until = &t
	}

	return since, until, nil
}

// stageChangeset groups raw commits/changes into LogicalChangesets. Shaping
// is pure CPU work over in-memory slices, so it has no internal cancellation
// point; the run context is checked only at entry.
func (o *Orchestrator) stageChangeset(
	ctx context.Context,
	task *model.AnalysisTask,
	commits []model.Commit,
	changes []model.Change,
	cfg *config.Config,
) ([]model.LogicalChangeset, []model.ValidationLog, error) {
	select {
	case <-ctx.Done():
		return nil, nil, classifyErr(ctx, fmt.Errorf("changeset: %w", ctx.Err()))
	default:
	}

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageChangeset, 0, 0, int64(len(commits))); err != nil {
		return nil, nil, fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	pattern, err := regexp.Compile(cfg.Changeset.TicketIDPattern)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: compile ticket_id_pattern: %v", ErrInput, err)
	}

	opts := changeset.Options{
		Mode:                    changeset.Mode(cfg.Changeset.Mode),
		MaxLogicalChangesetSize: cfg.Changeset.MaxLogicalChangesetSize,
		AuthorTimeWindow:        time.Duration(cfg.Changeset.AuthorTimeWindowHours) * time.Hour,
		TicketIDPattern:         pattern,
		MaxChangesetSize:        cfg.Extraction.MaxChangesetSize,
	}

	changesets, validations := changeset.Shape(commits, changes, opts)

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageChangeset, 1, int64(len(changesets)), int64(len(commits))); err != nil {
		return nil, nil, fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	return changesets, validations, nil
}

// stageEdge runs the EdgeBuilder over changesets and projects the result to
// component granularity using entity paths already persisted by extraction.
func (o *Orchestrator) stageEdge(
	ctx context.Context,
	task *model.AnalysisTask,
	repoID string,
	changesets []model.LogicalChangeset,
	cfg *config.Config,
) ([]model.Relationship, []model.ComponentEdge, error) {
	stageCtx, cancel := withStageTimeout(ctx, cfg.Edge.Timeout)
	defer cancel()

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageEdge, 0, 0, int64(len(changesets))); err != nil {
		return nil, nil, fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	opts := edge.Options{
		MinRevisions:             cfg.Edge.MinRevisions,
		MinCooccurrence:          cfg.Edge.MinCooccurrence,
		ComponentDepth:           cfg.Edge.ComponentDepth,
		MinComponentCooccurrence: cfg.Edge.MinComponentCooccurrence,
		TopKPerFile:              cfg.Edge.TopKEdgesPerFile,
		DecayHalfLife:            time.Duration(cfg.Edge.DecayHalfLifeDays * float64(24*time.Hour)),
		SpillThresholdPairs:      int(cfg.Edge.SpillThresholdBytes / bytesPerSpilledPair),
	}

	builder := edge.New(opts)

	rels, err := builder.Build(changesets)
	if err != nil {
		return nil, nil, classifyErr(stageCtx, fmt.Errorf("build edges: %w", err))
	}

	select {
	case <-stageCtx.Done():
		return nil, nil, classifyErr(stageCtx, fmt.Errorf("edge: %w", stageCtx.Err()))
	default:
	}

	entityPaths, err := o.store.EntityPaths(stageCtx, repoID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load entity paths: %v", ErrOperational, err)
	}

	componentEdges := builder.ProjectComponents(rels, entityPaths)

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageEdge, 1, int64(len(rels)), int64(len(changesets))); err != nil {
		return nil, nil, fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	return rels, componentEdges, nil
}

// stageCluster partitions the coupling graph, aggregates descriptive
// statistics per cluster, and saves the result as a new ClusteringSnapshot.
func (o *Orchestrator) stageCluster(
	ctx context.Context,
	task *model.AnalysisTask,
	repoID, runID, headOid string,
	rels []model.Relationship,
	cfg *config.Config,
) error {
	stageCtx, cancel := withStageTimeout(ctx, cfg.Cluster.Timeout)
	defer cancel()

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageCluster, 0, 0, int64(len(rels))); err != nil {
		return fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	entities, err := o.store.AllEntities(stageCtx, repoID)
	if err != nil {
		return fmt.Errorf("%w: load entities: %v", ErrOperational, err)
	}

	entityInfo := make(map[int64]cluster.EntityInfo, len(entities))
	for _, e := range entities {
		entityInfo[e.ID] = cluster.EntityInfo{Path: e.QualifiedName, Stats: e.Stats}
	}

	commits, err := parquet.ReadCommits(o.dbDir)
	if err != nil {
		return fmt.Errorf("%w: read commits: %v", ErrOperational, err)
	}

	changes, err := parquet.ReadChanges(o.dbDir)
	if err != nil {
		return fmt.Errorf("%w: read changes: %v", ErrOperational, err)
	}

	params := clusterParams(cfg.Cluster)

	in := cluster.AggregateInput{
		Entities: entityInfo,
		Commits:  commits,
		Changes:  changes,
	}

	clusters, err := cluster.Run(string(cfg.Cluster.Algorithm), rels, params, in)
	if err != nil {
		return classifyErr(stageCtx, fmt.Errorf("cluster: %w", err))
	}

	snap := model.ClusteringSnapshot{
		SnapshotID:  uuid.NewString(),
		RepoID:      repoID,
		Name:        fmt.Sprintf("run-%s", runID),
		Algorithm:   string(cfg.Cluster.Algorithm),
		Parameters:  params,
		CreatedAt:   time.Now(),
		RepoHeadOid: headOid,
		Clusters:    clusters,
	}

	if err := o.store.SaveSnapshot(stageCtx, o.dbDir, snap); err != nil {
		return fmt.Errorf("%w: save snapshot: %v", ErrOperational, err)
	}

	if err := o.store.UpdateTaskProgress(ctx, task.TaskID, model.StageCluster, 1, int64(len(clusters)), int64(len(rels))); err != nil {
		return fmt.Errorf("%w: update task progress: %v", ErrOperational, err)
	}

	return nil
}

// clusterParams maps config.ClusterConfig onto the Params keys each
// algorithm reads for itself (Louvain's resolution, label propagation's
// max_iterations, hierarchical's cut_threshold, DBSCAN's min_similarity
// (1 - eps) and min_points), so every algorithm
// can pull the same Config without the Orchestrator special-casing which
// fields a given algorithm cares about.
func clusterParams(c config.ClusterConfig) cluster.Params {
	return cluster.Params{
		"resolution":     c.Resolution,
		"max_iterations": float64(c.MaxIterations),
		"cut_threshold":  c.CutThreshold,
		"min_similarity": 1 - c.Eps,
		"min_points":     float64(c.MinSamples),
		"seed":           float64(c.Seed),
	}
}
