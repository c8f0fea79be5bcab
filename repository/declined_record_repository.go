package repository

import (
	"context"
	"fmt"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgx/v5"
)

// DeclinedRecordRepository implements the DeclinedRecordRepository interface
type DeclinedRecordRepository struct {
	q queryable
}

// NewDeclinedRecordRepository creates a new declined record repository
func NewDeclinedRecordRepository(db *database.DB) *DeclinedRecordRepository {
	return &DeclinedRecordRepository{q: db.Pool}
}

func newDeclinedRecordRepositoryWithTx(tx queryable) *DeclinedRecordRepository {
	return &DeclinedRecordRepository{q: tx}
}

// Insert records a decline for the execution
func (r *DeclinedRecordRepository) Insert(ctx context.Context, declined *models.DeclinedRecord) error {
	query := `
		INSERT INTO declined_records (execution_log_id, contestant_id, session_id, category_id,
		                              attendance_met, payment_met, survey_met)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT uq_declined_records_log_triple DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		declined.ExecutionLogID,
		declined.ContestantID,
		declined.SessionID,
		declined.CategoryID,
		declined.AttendanceMet,
		declined.PaymentMet,
		declined.SurveyMet,
	).Scan(&declined.ID, &declined.CreatedAt)
	if err == pgx.ErrNoRows {
		// already declined by this execution
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert decline for contestant %d session %d category %d: %w",
			declined.ContestantID, declined.SessionID, declined.CategoryID, err)
	}
	return nil
}

// ListByExecution returns the declines written by one execution
func (r *DeclinedRecordRepository) ListByExecution(ctx context.Context, executionLogID int64) ([]*models.DeclinedRecord, error) {
	query := `
		SELECT id, execution_log_id, contestant_id, session_id, category_id,
		       attendance_met, payment_met, survey_met, created_at
		FROM declined_records
		WHERE execution_log_id = $1
		ORDER BY contestant_id, session_id, category_id
	`

	rows, err := r.q.Query(ctx, query, executionLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list declines of execution %d: %w", executionLogID, err)
	}
	defer rows.Close()

	declines := make([]*models.DeclinedRecord, 0)
	for rows.Next() {
		var d models.DeclinedRecord
		err := rows.Scan(
			&d.ID,
			&d.ExecutionLogID,
			&d.ContestantID,
			&d.SessionID,
			&d.CategoryID,
			&d.AttendanceMet,
			&d.PaymentMet,
			&d.SurveyMet,
			&d.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan declined record: %w", err)
		}
		declines = append(declines, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating declined records: %w", err)
	}
	return declines, nil
}

// DeleteByPackage removes every decline written by any grant of the package
func (r *DeclinedRecordRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	result, err := r.q.Exec(ctx, `
		DELETE FROM declined_records
		WHERE execution_log_id IN (
			SELECT l.id FROM grant_execution_logs l
			JOIN grants g ON g.id = l.grant_id
			WHERE g.package_id = $1
		)
	`, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete declines of package %d: %w", packageID, err)
	}
	return result.RowsAffected(), nil
}
