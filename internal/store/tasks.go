package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// CreateTask inserts a new AnalysisTask row with the task's own state and
// stage.
func (s *Store) CreateTask(ctx context.Context, t model.AnalysisTask) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis_tasks
			(task_id, repo_id, analyzer_type, config_json, state, stage, progress,
			 processed, total, entity_count, relationship_count, started_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TaskID, t.RepoID, t.AnalyzerType, t.ConfigJSON, string(t.State), string(t.Stage), t.Progress,
		t.Processed, t.Total, t.EntityCount, t.RelationshipCount, t.StartedAt, t.Error)
	if err != nil {
		return fmt.Errorf("insert analysis_task %s: %w", t.TaskID, err)
	}

	return nil
}

// UpdateTaskProgress is called frequently by the Orchestrator as it walks a
// stage; it touches only the progress columns to keep writes cheap.
func (s *Store) UpdateTaskProgress(ctx context.Context, taskID string, stage model.TaskStage, progress float64, processed, total int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks SET stage = ?, progress = ?, processed = ?, total = ? WHERE task_id = ?
	`, string(stage), progress, processed, total, taskID)
	if err != nil {
		return fmt.Errorf("update task progress %s: %w", taskID, err)
	}

	return nil
}

// FinishTask marks a task completed or failed, recording final counts.
func (s *Store) FinishTask(ctx context.Context, taskID string, state model.TaskState, entityCount, relationshipCount int64, taskErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE analysis_tasks
		SET state = ?, stage = ?, progress = 1, entity_count = ?, relationship_count = ?,
		    finished_at = CURRENT_TIMESTAMP, error = ?
		WHERE task_id = ?
	`, string(state), string(model.StageDone), entityCount, relationshipCount, taskErr, taskID)
	if err != nil {
		return fmt.Errorf("finish task %s: %w", taskID, err)
	}

	return nil
}

// GetTask fetches one AnalysisTask by id.
func (s *Store) GetTask(ctx context.Context, taskID string) (model.AnalysisTask, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, repo_id, analyzer_type, config_json, state, stage, progress,
		       processed, total, entity_count, relationship_count, started_at, finished_at, error
		FROM analysis_tasks WHERE task_id = ?
	`, taskID)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return model.AnalysisTask{}, false, nil
	}

	if err != nil {
		return model.AnalysisTask{}, false, fmt.Errorf("query task %s: %w", taskID, err)
	}

	return t, true, nil
}

// LatestTaskForRepo returns the most recently started task for a repository.
func (s *Store) LatestTaskForRepo(ctx context.Context, repoID string) (model.AnalysisTask, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT task_id, repo_id, analyzer_type, config_json, state, stage, progress,
		       processed, total, entity_count, relationship_count, started_at, finished_at, error
		FROM analysis_tasks WHERE repo_id = ? ORDER BY started_at DESC LIMIT 1
	`, repoID)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return model.AnalysisTask{}, false, nil
	}

	if err != nil {
		return model.AnalysisTask{}, false, fmt.Errorf("query latest task for %s: %w", repoID, err)
	}

	return t, true, nil
}

func scanTask(row *sql.Row) (model.AnalysisTask, error) {
	var (
		t          model.AnalysisTask
		state      string
		stage      string
		finishedAt sql.NullTime
	)

	err := row.Scan(&t.TaskID, &t.RepoID, &t.AnalyzerType, &t.ConfigJSON, &state, &stage, &t.Progress,
		&t.Processed, &t.Total, &t.EntityCount, &t.RelationshipCount, &t.StartedAt, &finishedAt, &t.Error)
	if err != nil {
		return model.AnalysisTask{}, err
	}

	t.State = model.TaskState(state)
	t.Stage = model.TaskStage(stage)

	if finishedAt.Valid {
		t.FinishedAt = &finishedAt.Time
	}

	return t, nil
}
