package repository

import (
	"context"
	"fmt"
	"time"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgx/v5"
)

// GrantRepository implements the GrantRepository interface
type GrantRepository struct {
	q queryable
}

// NewGrantRepository creates a new grant repository
func NewGrantRepository(db *database.DB) *GrantRepository {
	return &GrantRepository{q: db.Pool}
}

func newGrantRepositoryWithTx(tx queryable) *GrantRepository {
	return &GrantRepository{q: tx}
}

const grantColumns = `g.id, g.event_id, g.package_id, g.admin_id, g.certificate_template_id, g.email_template_id,
		       g.notify, g.run_type, g.schedule, g.next_run_at, g.test_mode, g.archived,
		       g.created_at, g.updated_at`

func scanGrant(row pgx.Row) (*models.Grant, error) {
	var g models.Grant
	err := row.Scan(
		&g.ID,
		&g.EventID,
		&g.PackageID,
		&g.AdminID,
		&g.CertificateTemplateID,
		&g.EmailTemplateID,
		&g.Notify,
		&g.RunType,
		&g.Schedule,
		&g.NextRunAt,
		&g.TestMode,
		&g.Archived,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new grant
func (r *GrantRepository) Create(ctx context.Context, grant *models.Grant) error {
	query := `
		INSERT INTO grants (event_id, package_id, admin_id, certificate_template_id, email_template_id,
		                    notify, run_type, schedule, next_run_at, test_mode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, archived, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		grant.EventID,
		grant.PackageID,
		grant.AdminID,
		grant.CertificateTemplateID,
		grant.EmailTemplateID,
		grant.Notify,
		grant.RunType,
		grant.Schedule,
		grant.NextRunAt,
		grant.TestMode,
	).Scan(&grant.ID, &grant.Archived, &grant.CreatedAt, &grant.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create grant: %w", err)
	}
	return nil
}

// GetByID retrieves a grant by its ID
func (r *GrantRepository) GetByID(ctx context.Context, id int64) (*models.Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants g WHERE g.id = $1`

	grant, err := scanGrant(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant %d: %w", id, err)
	}
	return grant, nil
}

// ListByEvent returns the grants of an event, archived ones included
func (r *GrantRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants g WHERE g.event_id = $1 ORDER BY g.id`
	return r.list(ctx, query, eventID)
}

// GetDue returns the recurring grants due at now. Grants of archived packages
// are never due. The NOT EXISTS guard skips grants whose current occurrence
// already has a log row.
func (r *GrantRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Grant, error) {
	return r.list(ctx, dueQuery("NOT EXISTS"), now)
}

// GetCompletedDue returns the recurring grants due at now whose current
// occurrence already has a log row, either from a manual run or from a sweep
// that stopped before advancing the schedule
func (r *GrantRepository) GetCompletedDue(ctx context.Context, now time.Time) ([]*models.Grant, error) {
	return r.list(ctx, dueQuery("EXISTS"), now)
}

func dueQuery(exists string) string {
	return `
		SELECT ` + grantColumns + `
		FROM grants g
		JOIN award_packages p ON p.id = g.package_id
		WHERE NOT g.archived
		  AND NOT p.archived
		  AND g.run_type = 'recurring'
		  AND g.next_run_at <= $1
		  AND ` + exists + ` (
		      SELECT 1 FROM grant_execution_logs l
		      WHERE l.grant_id = g.id AND l.run_at >= g.next_run_at
		  )
		ORDER BY g.next_run_at, g.id
	`
}

func (r *GrantRepository) list(ctx context.Context, query string, args ...any) ([]*models.Grant, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	grants := make([]*models.Grant, 0)
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}
	return grants, nil
}

// Archive soft-deletes a grant
func (r *GrantRepository) Archive(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx, `UPDATE grants SET archived = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive grant %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("grant %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// ArchiveByPackage archives the grants of a package so none of them runs
// against criteria that no longer own their categories
func (r *GrantRepository) ArchiveByPackage(ctx context.Context, packageID int64) (int64, error) {
	result, err := r.q.Exec(ctx, `
		UPDATE grants SET archived = TRUE, updated_at = NOW()
		WHERE package_id = $1 AND NOT archived
	`, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to archive grants of package %d: %w", packageID, err)
	}
	return result.RowsAffected(), nil
}

// UpdateNextRunAt moves a grant to its next occurrence
func (r *GrantRepository) UpdateNextRunAt(ctx context.Context, id int64, nextRunAt time.Time) error {
	result, err := r.q.Exec(ctx, `UPDATE grants SET next_run_at = $2, updated_at = NOW() WHERE id = $1`, id, nextRunAt)
	if err != nil {
		return fmt.Errorf("failed to update next run of grant %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("grant %d: %w", id, models.ErrNotFound)
	}
	return nil
}
