package repository

import (
	"context"
	"fmt"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgx/v5"
)

// AwardRepository implements the AwardRepository interface
type AwardRepository struct {
	q queryable
}

// NewAwardRepository creates a new award repository
func NewAwardRepository(db *database.DB) *AwardRepository {
	return &AwardRepository{q: db.Pool}
}

func newAwardRepositoryWithTx(tx queryable) *AwardRepository {
	return &AwardRepository{q: tx}
}

// Insert writes an award. The unique triple constraint is the final guard
// against double awarding; a conflict returns models.ErrDuplicateAward.
func (r *AwardRepository) Insert(ctx context.Context, award *models.AwardedRecord) error {
	query := `
		INSERT INTO awarded_records (execution_log_id, contestant_id, session_id, category_id, credit_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT ON CONSTRAINT uq_awarded_records_triple DO NOTHING
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		award.ExecutionLogID,
		award.ContestantID,
		award.SessionID,
		award.CategoryID,
		award.CreditValue,
	).Scan(&award.ID, &award.CreatedAt)
	if err == pgx.ErrNoRows {
		return models.ErrDuplicateAward
	}
	if err != nil {
		return fmt.Errorf("failed to insert award for contestant %d session %d category %d: %w",
			award.ContestantID, award.SessionID, award.CategoryID, err)
	}
	return nil
}

// GetByID retrieves an award by its ID
func (r *AwardRepository) GetByID(ctx context.Context, id int64) (*models.AwardedRecord, error) {
	query := `
		SELECT id, execution_log_id, contestant_id, session_id, category_id, credit_value, created_at
		FROM awarded_records
		WHERE id = $1
	`

	award, err := scanAward(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get award %d: %w", id, err)
	}
	return award, nil
}

func scanAward(row pgx.Row) (*models.AwardedRecord, error) {
	var a models.AwardedRecord
	err := row.Scan(
		&a.ID,
		&a.ExecutionLogID,
		&a.ContestantID,
		&a.SessionID,
		&a.CategoryID,
		&a.CreditValue,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes an award
func (r *AwardRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx, `DELETE FROM awarded_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete award %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("award %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListByExecution returns the awards written by one execution
func (r *AwardRepository) ListByExecution(ctx context.Context, executionLogID int64) ([]*models.AwardedRecord, error) {
	query := `
		SELECT id, execution_log_id, contestant_id, session_id, category_id, credit_value, created_at
		FROM awarded_records
		WHERE execution_log_id = $1
		ORDER BY contestant_id, session_id, category_id
	`

	rows, err := r.q.Query(ctx, query, executionLogID)
	if err != nil {
		return nil, fmt.Errorf("failed to list awards of execution %d: %w", executionLogID, err)
	}
	defer rows.Close()

	awards := make([]*models.AwardedRecord, 0)
	for rows.Next() {
		award, err := scanAward(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award: %w", err)
		}
		awards = append(awards, award)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating awards: %w", err)
	}
	return awards, nil
}

// DeleteByPackage removes every award written by any grant of the package
func (r *AwardRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	result, err := r.q.Exec(ctx, `
		DELETE FROM awarded_records
		WHERE execution_log_id IN (
			SELECT l.id FROM grant_execution_logs l
			JOIN grants g ON g.id = l.grant_id
			WHERE g.package_id = $1
		)
	`, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete awards of package %d: %w", packageID, err)
	}
	return result.RowsAffected(), nil
}
