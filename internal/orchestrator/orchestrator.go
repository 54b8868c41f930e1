// Package orchestrator sequences the four pipeline stages — extraction,
// changeset shaping, edge building and clustering — as one AnalysisTask,
// enforcing a single in-flight run per repository and cooperative
// cancellation throughout.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sumatoshi-tech/codecouple/internal/config"
	"github.com/sumatoshi-tech/codecouple/internal/model"
	"github.com/sumatoshi-tech/codecouple/internal/observability"
	"github.com/sumatoshi-tech/codecouple/internal/store"
	"github.com/sumatoshi-tech/codecouple/internal/store/parquet"
)

// Error taxonomy. Every error Run returns wraps exactly one of these, so
// callers (the CLI, a future API server) can branch on cause without
// string matching.
var (
	ErrInput          = errors.New("invalid input")
	ErrOperational    = errors.New("operational failure")
	ErrCancelled      = errors.New("run cancelled")
	ErrTimeout        = errors.New("stage timed out")
	ErrAlreadyRunning = errors.New("analysis already running for repository")
)

// Orchestrator drives one Store's worth of repositories through the
// pipeline. Safe for concurrent use across different repositories; at most
// one run is ever in flight for a given repo id.
type Orchestrator struct {
	store *store.Store
	dbDir string

	red     *observability.REDMetrics
	metrics *observability.AnalysisMetrics

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

// New binds an Orchestrator to an already-open Store whose commits/changes
// parquet files live under dbDir.
func New(s *store.Store, dbDir string) *Orchestrator {
	return &Orchestrator{store: s, dbDir: dbDir, inFlight: make(map[string]context.CancelFunc)}
}

// WithMetrics attaches RED and pipeline-stage metrics to the Orchestrator.
// Both arguments may be nil, in which case Run records nothing.
func (o *Orchestrator) WithMetrics(red *observability.REDMetrics, am *observability.AnalysisMetrics) *Orchestrator {
	o.red = red
	o.metrics = am

	return o
}

// HealthCheck reports whether the Orchestrator's backing Store is reachable.
// Suitable as an observability.ReadyCheck.
func (o *Orchestrator) HealthCheck(ctx context.Context) error {
	return o.store.Ping(ctx)
}

// Run executes one full pipeline pass for repoPath, persisting results
// under repoID. It blocks until the run finishes, fails, is cancelled via
// Cancel, or a stage exceeds its configured timeout.
func (o *Orchestrator) Run(ctx context.Context, repoID, repoPath string, cfg *config.Config) (model.AnalysisTask, error) {
	if repoID == "" || repoPath == "" {
		return model.AnalysisTask{}, fmt.Errorf("%w: repoID and repoPath are required", ErrInput)
	}

	runCtx, cancel, err := o.claim(repoID, ctx)
	if err != nil {
		return model.AnalysisTask{}, err
	}

	defer o.release(repoID)
	defer cancel()
	defer o.red.TrackInflight(runCtx, "orchestrator.run")()

	task := model.AnalysisTask{
		TaskID: uuid.NewString(), RepoID: repoID, AnalyzerType: "coupling",
		State: model.TaskRunning, Stage: model.StageExtract, StartedAt: time.Now(),
	}

	if err := o.store.CreateTask(runCtx, task); err != nil {
		return task, fmt.Errorf("%w: create task: %v", ErrOperational, err)
	}

	runStart := time.Now()

	result, err := o.runPipeline(runCtx, &task, repoID, repoPath, cfg)

	status := "ok"
	if err != nil {
		status = "error"
	}

	o.red.RecordRequest(runCtx, "orchestrator.run", status, time.Since(runStart))

	finishState := model.TaskCompleted

	taskErr := ""
	if err != nil {
		finishState = model.TaskFailed
		taskErr = err.Error()
	}

	var (
		entityCount int64
		relCount    int64
	)

	if result != nil {
		entityCount = result.entityCount
		relCount = int64(len(result.relationships))

		o.metrics.RecordRun(runCtx, observability.AnalysisStats{
			Commits:           result.commitCount,
			StageDurations:    result.stageDurations,
			EntityCacheHits:   result.cacheHits,
			EntityCacheMisses: result.cacheMisses,
		})
	}

	if finErr := o.store.FinishTask(context.WithoutCancel(runCtx), task.TaskID, finishState, entityCount, relCount, taskErr); finErr != nil && err == nil {
		return task, fmt.Errorf("%w: finish task: %v", ErrOperational, finErr)
	}

	return task, err
}

// Cancel requests cooperative cancellation of the in-flight run for
// repoID, if any. Returns false if no run is in flight.
func (o *Orchestrator) Cancel(repoID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	cancel, ok := o.inFlight[repoID]
	if ok {
		cancel()
	}

	return ok
}

func (o *Orchestrator) claim(repoID string, parent context.Context) (context.Context, context.CancelFunc, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, busy := o.inFlight[repoID]; busy {
		return nil, nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, repoID)
	}

	runCtx, cancel := context.WithCancel(parent)
	o.inFlight[repoID] = cancel

	return runCtx, cancel, nil
}

func (o *Orchestrator) release(repoID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.inFlight, repoID)
}

type pipelineResult struct {
	commitCount    int64
	entityCount    int64
	relationships  []model.Relationship
	stageDurations map[model.TaskStage]time.Duration
	cacheHits      int64
	cacheMisses    int64
}

func (o *Orchestrator) runPipeline(
	ctx context.Context,
	task *model.AnalysisTask,
	repoID, repoPath string,
	cfg *config.Config,
) (*pipelineResult, error) {
	durations := make(map[model.TaskStage]time.Duration, 4)

	extractStart := time.Now()

	commits, changes, validations, headOid, cacheHits, cacheMisses, err := o.stageExtract(ctx, task, repoID, repoPath, cfg)
	durations[model.StageExtract] = time.Since(extractStart)

	if err != nil {
		return nil, err
	}

	if err := o.store.AppendValidationLogs(ctx, repoID, validations); err != nil {
		return nil, fmt.Errorf("%w: append validation logs: %v", ErrOperational, err)
	}

	if err := persistRawHistory(o.dbDir, commits, changes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOperational, err)
	}

	changesetStart := time.Now()
	changesets, csValidations, err := o.stageChangeset(ctx, task, commits, changes, cfg)
	durations[model.StageChangeset] = time.Since(changesetStart)

	if err != nil {
		return nil, err
	}

	if err := o.store.AppendValidationLogs(ctx, repoID, csValidations); err != nil {
		return nil, fmt.Errorf("%w: append validation logs: %v", ErrOperational, err)
	}

	edgeStart := time.Now()
	rels, componentEdges, err := o.stageEdge(ctx, task, repoID, changesets, cfg)
	durations[model.StageEdge] = time.Since(edgeStart)

	if err != nil {
		return nil, err
	}

	runID := task.TaskID

	if err := o.store.ReplaceRelationships(ctx, repoID, runID, rels); err != nil {
		return nil, fmt.Errorf("%w: persist relationships: %v", ErrOperational, err)
	}

	if err := o.store.ReplaceComponentEdges(ctx, repoID, runID, componentEdges); err != nil {
		return nil, fmt.Errorf("%w: persist component edges: %v", ErrOperational, err)
	}

	clusterStart := time.Now()
	clusterErr := o.stageCluster(ctx, task, repoID, runID, headOid, rels, cfg)
	durations[model.StageCluster] = time.Since(clusterStart)

	if clusterErr != nil {
		return nil, clusterErr
	}

	if err := o.store.SetRepoMeta(ctx, repoID, headOid); err != nil {
		return nil, fmt.Errorf("%w: update repo meta: %v", ErrOperational, err)
	}

	entityPaths, err := o.store.EntityPaths(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("%w: load entity paths: %v", ErrOperational, err)
	}

	return &pipelineResult{
		commitCount:    int64(len(commits)),
		entityCount:    int64(len(entityPaths)),
		relationships:  rels,
		stageDurations: durations,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
	}, nil
}

func persistRawHistory(dbDir string, commits []model.Commit, changes []model.Change) error {
	if err := parquet.WriteCommits(dbDir, commits); err != nil {
		return fmt.Errorf("write commits parquet: %w", err)
	}

	if err := parquet.WriteChanges(dbDir, changes); err != nil {
		return fmt.Errorf("write changes parquet: %w", err)
	}

	return nil
}

// withStageTimeout wraps ctx with a deadline if timeout > 0, translating
// ctx.Err() at call sites into the orchestrator's own taxonomy.
func withStageTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

// classifyErr maps a context error observed after a stage call to the
// orchestrator's taxonomy; any other error is wrapped as operational.
func classifyErr(ctx context.Context, stageErr error) error {
	if stageErr == nil {
		return nil
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, stageErr)
	case errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("%w: %v", ErrCancelled, stageErr)
	default:
		return fmt.Errorf("%w: %v", ErrOperational, stageErr)
	}
}
