package repository

import (
	"context"
	"fmt"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgx/v5"
)

// AwardExceptionRepository implements the AwardExceptionRepository interface
type AwardExceptionRepository struct {
	q queryable
}

// NewAwardExceptionRepository creates a new award exception repository
func NewAwardExceptionRepository(db *database.DB) *AwardExceptionRepository {
	return &AwardExceptionRepository{q: db.Pool}
}

func newAwardExceptionRepositoryWithTx(tx queryable) *AwardExceptionRepository {
	return &AwardExceptionRepository{q: tx}
}

const awardExceptionColumns = `id, contestant_id, package_id, category_id, session_id, justification, admin_user_id, created_at`

func scanAwardException(row pgx.Row) (*models.AwardException, error) {
	var e models.AwardException
	err := row.Scan(
		&e.ID,
		&e.ContestantID,
		&e.PackageID,
		&e.CategoryID,
		&e.SessionID,
		&e.Justification,
		&e.AdminUserID,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert adds an exception. An existing entry for the same key keeps its id
// and takes the new justification and admin.
func (r *AwardExceptionRepository) Upsert(ctx context.Context, exception *models.AwardException) error {
	query := `
		INSERT INTO award_exceptions (contestant_id, package_id, category_id, session_id, justification, admin_user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT uq_award_exceptions_key
		DO UPDATE SET justification = EXCLUDED.justification,
		              admin_user_id = EXCLUDED.admin_user_id
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		exception.ContestantID,
		exception.PackageID,
		exception.CategoryID,
		exception.SessionID,
		exception.Justification,
		exception.AdminUserID,
	).Scan(&exception.ID, &exception.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert award exception: %w", err)
	}
	return nil
}

// GetByID retrieves an exception by its ID
func (r *AwardExceptionRepository) GetByID(ctx context.Context, id int64) (*models.AwardException, error) {
	query := `SELECT ` + awardExceptionColumns + ` FROM award_exceptions WHERE id = $1`

	exception, err := scanAwardException(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get award exception %d: %w", id, err)
	}
	return exception, nil
}

// ListByPackage returns the exceptions of a package
func (r *AwardExceptionRepository) ListByPackage(ctx context.Context, packageID int64) ([]*models.AwardException, error) {
	query := `
		SELECT ` + awardExceptionColumns + `
		FROM award_exceptions
		WHERE package_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.q.Query(ctx, query, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions of package %d: %w", packageID, err)
	}
	defer rows.Close()

	exceptions := make([]*models.AwardException, 0)
	for rows.Next() {
		exception, err := scanAwardException(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award exception: %w", err)
		}
		exceptions = append(exceptions, exception)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating award exceptions: %w", err)
	}
	return exceptions, nil
}

// Delete removes an exception, reporting whether it existed
func (r *AwardExceptionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM award_exceptions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete award exception %d: %w", id, err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteByPackage removes every exception of the package
func (r *AwardExceptionRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	result, err := r.q.Exec(ctx, `DELETE FROM award_exceptions WHERE package_id = $1`, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete exceptions of package %d: %w", packageID, err)
	}
	return result.RowsAffected(), nil
}
