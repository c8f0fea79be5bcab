package repository

import (
	"context"
	"fmt"
	"time"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgx/v5"
)

// ExecutionLogRepository implements the ExecutionLogRepository interface
type ExecutionLogRepository struct {
	q queryable
}

// NewExecutionLogRepository creates a new execution log repository
func NewExecutionLogRepository(db *database.DB) *ExecutionLogRepository {
	return &ExecutionLogRepository{q: db.Pool}
}

func newExecutionLogRepositoryWithTx(tx queryable) *ExecutionLogRepository {
	return &ExecutionLogRepository{q: tx}
}

// Create opens a new execution log row
func (r *ExecutionLogRepository) Create(ctx context.Context, log *models.GrantExecutionLog) error {
	query := `
		INSERT INTO grant_execution_logs (grant_id, run_at, test_mode)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	if err := r.q.QueryRow(ctx, query, log.GrantID, log.RunAt, log.TestMode).Scan(&log.ID); err != nil {
		return fmt.Errorf("failed to create execution log for grant %d: %w", log.GrantID, err)
	}
	return nil
}

// GetByID retrieves an execution log
func (r *ExecutionLogRepository) GetByID(ctx context.Context, id int64) (*models.GrantExecutionLog, error) {
	query := `
		SELECT id, grant_id, run_at, test_mode, finished_at, failure_reason
		FROM grant_execution_logs
		WHERE id = $1
	`

	var l models.GrantExecutionLog
	err := r.q.QueryRow(ctx, query, id).Scan(
		&l.ID,
		&l.GrantID,
		&l.RunAt,
		&l.TestMode,
		&l.FinishedAt,
		&l.FailureReason,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution log %d: %w", id, err)
	}
	return &l, nil
}

// Finish stamps the end of an execution
func (r *ExecutionLogRepository) Finish(ctx context.Context, id int64, finishedAt time.Time, failureReason *string) error {
	result, err := r.q.Exec(ctx, `
		UPDATE grant_execution_logs
		SET finished_at = $2, failure_reason = $3
		WHERE id = $1
	`, id, finishedAt, failureReason)
	if err != nil {
		return fmt.Errorf("failed to finish execution log %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("execution log %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListByEvent returns execution summaries for every grant of the event
func (r *ExecutionLogRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.ExecutionSummary, error) {
	query := `
		SELECT l.id, l.grant_id, g.package_id, l.run_at, l.test_mode, l.finished_at, l.failure_reason,
		       (SELECT COUNT(*) FROM awarded_records a WHERE a.execution_log_id = l.id),
		       (SELECT COUNT(*) FROM declined_records d WHERE d.execution_log_id = l.id)
		FROM grant_execution_logs l
		JOIN grants g ON g.id = l.grant_id
		WHERE g.event_id = $1
		ORDER BY l.run_at DESC, l.id DESC
	`

	rows, err := r.q.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions for event %d: %w", eventID, err)
	}
	defer rows.Close()

	summaries := make([]*models.ExecutionSummary, 0)
	for rows.Next() {
		var s models.ExecutionSummary
		err := rows.Scan(
			&s.LogID,
			&s.GrantID,
			&s.PackageID,
			&s.RunAt,
			&s.TestMode,
			&s.FinishedAt,
			&s.FailureReason,
			&s.AwardedCount,
			&s.DeclinedCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution summaries: %w", err)
	}
	return summaries, nil
}

// DeleteByPackage removes the logs of every grant of the package. Award and
// decline rows referencing them must be deleted first.
func (r *ExecutionLogRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	result, err := r.q.Exec(ctx, `
		DELETE FROM grant_execution_logs
		WHERE grant_id IN (SELECT id FROM grants WHERE package_id = $1)
	`, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete execution logs of package %d: %w", packageID, err)
	}
	return result.RowsAffected(), nil
}
