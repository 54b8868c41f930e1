package store

import (
	"context"
	"fmt"

	"github.com/sumatoshi-tech/codecouple/internal/model"
)

// AppendValidationLogs bulk-inserts ValidationLog rows, the only diagnostic
// surface for partial-failure data loss during extraction and shaping.
func (s *Store) AppendValidationLogs(ctx context.Context, repoID string, logs []model.ValidationLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO validation_log (repo_id, commit_oid, stage, reason, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert validation_log: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		_, err := stmt.ExecContext(ctx, repoID, l.CommitOid, string(l.Stage), l.Reason, string(l.Severity), l.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert validation_log: %w", err)
		}
	}

	return tx.Commit()
}

// ValidationLogs returns up to limit ValidationLogs recorded for repoID (500
// when limit <= 0), newest first.
func (s *Store) ValidationLogs(ctx context.Context, repoID string, limit int) ([]model.ValidationLog, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_id, commit_oid, stage, reason, severity, created_at
		FROM validation_log WHERE repo_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("query validation_log: %w", err)
	}
	defer rows.Close()

	var out []model.ValidationLog

	for rows.Next() {
		var (
			l        model.ValidationLog
			stage    string
			severity string
		)

		err := rows.Scan(&l.ID, &l.RepoID, &l.CommitOid, &stage, &l.Reason, &severity, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan validation_log: %w", err)
		}

		l.Stage = model.TaskStage(stage)
		l.Severity = model.Severity(severity)
		out = append(out, l)
	}

	return out, rows.Err()
}
