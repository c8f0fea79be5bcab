package repository

import (
	"context"
	"fmt"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgx/v5"
)

// AwardPackageRepository implements the AwardPackageRepository interface
type AwardPackageRepository struct {
	q queryable
}

// NewAwardPackageRepository creates a new award package repository
func NewAwardPackageRepository(db *database.DB) *AwardPackageRepository {
	return &AwardPackageRepository{q: db.Pool}
}

func newAwardPackageRepositoryWithTx(tx queryable) *AwardPackageRepository {
	return &AwardPackageRepository{q: tx}
}

const awardPackageColumns = `p.id, p.event_id, p.name, p.attendance_criterion, p.payment_in_full_required,
		       p.survey_required, p.archived, p.created_at, p.updated_at,
		       COALESCE((SELECT array_agg(apc.category_id ORDER BY apc.category_id)
		                 FROM award_package_categories apc
		                 WHERE apc.package_id = p.id), '{}'::bigint[])`

func scanAwardPackage(row pgx.Row) (*models.AwardPackage, error) {
	var p models.AwardPackage
	err := row.Scan(
		&p.ID,
		&p.EventID,
		&p.Name,
		&p.AttendanceCriterion,
		&p.PaymentInFullRequired,
		&p.SurveyRequired,
		&p.Archived,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.CategoryIDs,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a package. Category links are added separately.
func (r *AwardPackageRepository) Create(ctx context.Context, pkg *models.AwardPackage) error {
	query := `
		INSERT INTO award_packages (event_id, name, attendance_criterion, payment_in_full_required, survey_required)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, archived, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		pkg.EventID,
		pkg.Name,
		pkg.AttendanceCriterion,
		pkg.PaymentInFullRequired,
		pkg.SurveyRequired,
	).Scan(&pkg.ID, &pkg.Archived, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create award package: %w", err)
	}

	pkg.CategoryIDs = []int64{}
	return nil
}

// Update changes a package's name and criteria
func (r *AwardPackageRepository) Update(ctx context.Context, pkg *models.AwardPackage) error {
	query := `
		UPDATE award_packages
		SET name = $2,
		    attendance_criterion = $3,
		    payment_in_full_required = $4,
		    survey_required = $5,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		pkg.ID,
		pkg.Name,
		pkg.AttendanceCriterion,
		pkg.PaymentInFullRequired,
		pkg.SurveyRequired,
	).Scan(&pkg.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("award package %d: %w", pkg.ID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update award package %d: %w", pkg.ID, err)
	}
	return nil
}

// GetByID retrieves a package with its category links
func (r *AwardPackageRepository) GetByID(ctx context.Context, id int64) (*models.AwardPackage, error) {
	query := `SELECT ` + awardPackageColumns + ` FROM award_packages p WHERE p.id = $1`

	pkg, err := scanAwardPackage(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get award package %d: %w", id, err)
	}
	return pkg, nil
}

// ListByEvent returns the packages of an event
func (r *AwardPackageRepository) ListByEvent(ctx context.Context, eventID int64, includeArchived bool) ([]*models.AwardPackage, error) {
	query := `
		SELECT ` + awardPackageColumns + `
		FROM award_packages p
		WHERE p.event_id = $1 AND ($2 OR NOT p.archived)
		ORDER BY p.name, p.id
	`

	rows, err := r.q.Query(ctx, query, eventID, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list award packages for event %d: %w", eventID, err)
	}
	defer rows.Close()

	packages := make([]*models.AwardPackage, 0)
	for rows.Next() {
		pkg, err := scanAwardPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan award package: %w", err)
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating award packages: %w", err)
	}
	return packages, nil
}

// Archive soft-deletes a package
func (r *AwardPackageRepository) Archive(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx, `UPDATE award_packages SET archived = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive award package %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("award package %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// Delete hard-deletes a package along with its category links and grants.
// Callers must make sure no grant of the package has executed.
func (r *AwardPackageRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM grants WHERE package_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete grants of award package %d: %w", id, err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM award_exceptions WHERE package_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete exceptions of award package %d: %w", id, err)
	}

	result, err := r.q.Exec(ctx, `DELETE FROM award_packages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete award package %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("award package %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// LinkCategory attaches a category to a package
func (r *AwardPackageRepository) LinkCategory(ctx context.Context, packageID, categoryID int64) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO award_package_categories (package_id, category_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, packageID, categoryID)
	if err != nil {
		return fmt.Errorf("failed to link category %d to package %d: %w", categoryID, packageID, err)
	}
	return nil
}

// UnlinkCategory detaches a category from a package
func (r *AwardPackageRepository) UnlinkCategory(ctx context.Context, packageID, categoryID int64) (bool, error) {
	result, err := r.q.Exec(ctx, `
		DELETE FROM award_package_categories
		WHERE package_id = $1 AND category_id = $2
	`, packageID, categoryID)
	if err != nil {
		return false, fmt.Errorf("failed to unlink category %d from package %d: %w", categoryID, packageID, err)
	}
	return result.RowsAffected() > 0, nil
}

// GetActivePackageForCategory returns another non-archived package linking the category
func (r *AwardPackageRepository) GetActivePackageForCategory(ctx context.Context, categoryID, excludePackageID int64) (*models.AwardPackage, error) {
	query := `
		SELECT ` + awardPackageColumns + `
		FROM award_packages p
		JOIN award_package_categories link ON link.package_id = p.id
		WHERE link.category_id = $1
		  AND p.id <> $2
		  AND NOT p.archived
		ORDER BY p.id
		LIMIT 1
	`

	pkg, err := scanAwardPackage(r.q.QueryRow(ctx, query, categoryID, excludePackageID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active package for category %d: %w", categoryID, err)
	}
	return pkg, nil
}

// HasExecutions reports whether any grant of the package has an execution log
func (r *AwardPackageRepository) HasExecutions(ctx context.Context, packageID int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM grant_execution_logs l
			JOIN grants g ON g.id = l.grant_id
			WHERE g.package_id = $1
		)
	`, packageID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check executions of package %d: %w", packageID, err)
	}
	return exists, nil
}
