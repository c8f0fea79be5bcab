package repository

import (
	"context"
	"errors"
	"fmt"

	"creditengine/database"
	"creditengine/models"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// CreditCategoryRepository implements the CreditCategoryRepository interface
type CreditCategoryRepository struct {
	q queryable
}

// NewCreditCategoryRepository creates a new credit category repository
func NewCreditCategoryRepository(db *database.DB) *CreditCategoryRepository {
	return &CreditCategoryRepository{q: db.Pool}
}

func newCreditCategoryRepositoryWithTx(tx queryable) *CreditCategoryRepository {
	return &CreditCategoryRepository{q: tx}
}

const creditCategoryColumns = `id, event_id, name, code, description, archived, created_at, updated_at`

func scanCreditCategory(row pgx.Row) (*models.CreditCategory, error) {
	var c models.CreditCategory
	err := row.Scan(
		&c.ID,
		&c.EventID,
		&c.Name,
		&c.Code,
		&c.Description,
		&c.Archived,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a category and its restriction sets
func (r *CreditCategoryRepository) Create(ctx context.Context, category *models.CreditCategory) error {
	query := `
		INSERT INTO credit_categories (event_id, name, code, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, archived, created_at, updated_at
	`

	err := r.q.QueryRow(ctx, query,
		category.EventID,
		category.Name,
		category.Code,
		category.Description,
	).Scan(&category.ID, &category.Archived, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: category code %q already exists for event %d", models.ErrConfigurationConflict, category.Code, category.EventID)
		}
		return fmt.Errorf("failed to create credit category: %w", err)
	}

	return r.replaceRestrictions(ctx, category)
}

// Update replaces a category's descriptive fields and restriction sets
func (r *CreditCategoryRepository) Update(ctx context.Context, category *models.CreditCategory) error {
	query := `
		UPDATE credit_categories
		SET name = $2, code = $3, description = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query, category.ID, category.Name, category.Code, category.Description).Scan(&category.UpdatedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("credit category %d: %w", category.ID, models.ErrNotFound)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: category code %q already exists for event %d", models.ErrConfigurationConflict, category.Code, category.EventID)
		}
		return fmt.Errorf("failed to update credit category %d: %w", category.ID, err)
	}

	return r.replaceRestrictions(ctx, category)
}

func (r *CreditCategoryRepository) replaceRestrictions(ctx context.Context, category *models.CreditCategory) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM credit_category_profiles WHERE category_id = $1`, category.ID); err != nil {
		return fmt.Errorf("failed to clear profiles of category %d: %w", category.ID, err)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM credit_category_jurisdictions WHERE category_id = $1`, category.ID); err != nil {
		return fmt.Errorf("failed to clear jurisdictions of category %d: %w", category.ID, err)
	}

	if len(category.ProfileIDs) > 0 {
		_, err := r.q.Exec(ctx, `
			INSERT INTO credit_category_profiles (category_id, profile_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
		`, category.ID, category.ProfileIDs)
		if err != nil {
			return fmt.Errorf("failed to store profiles of category %d: %w", category.ID, err)
		}
	}
	if len(category.JurisdictionCodes) > 0 {
		_, err := r.q.Exec(ctx, `
			INSERT INTO credit_category_jurisdictions (category_id, jurisdiction_code)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`, category.ID, category.JurisdictionCodes)
		if err != nil {
			return fmt.Errorf("failed to store jurisdictions of category %d: %w", category.ID, err)
		}
	}

	return nil
}

// GetByID retrieves a category by its ID
func (r *CreditCategoryRepository) GetByID(ctx context.Context, id int64) (*models.CreditCategory, error) {
	return r.getOne(ctx, `SELECT `+creditCategoryColumns+` FROM credit_categories WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a category with a row lock. Concurrent link
// attempts on the same category serialize on this lock.
func (r *CreditCategoryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.CreditCategory, error) {
	return r.getOne(ctx, `SELECT `+creditCategoryColumns+` FROM credit_categories WHERE id = $1 FOR UPDATE`, id)
}

func (r *CreditCategoryRepository) getOne(ctx context.Context, query string, id int64) (*models.CreditCategory, error) {
	category, err := scanCreditCategory(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credit category %d: %w", id, err)
	}

	if err := r.loadRestrictions(ctx, []*models.CreditCategory{category}); err != nil {
		return nil, err
	}
	return category, nil
}

// GetByIDs retrieves the given categories
func (r *CreditCategoryRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.CreditCategory, error) {
	if len(ids) == 0 {
		return []*models.CreditCategory{}, nil
	}
	query := `SELECT ` + creditCategoryColumns + ` FROM credit_categories WHERE id = ANY($1) ORDER BY id`
	return r.list(ctx, query, ids)
}

// ListByEvent returns the categories of an event
func (r *CreditCategoryRepository) ListByEvent(ctx context.Context, eventID int64, includeArchived bool) ([]*models.CreditCategory, error) {
	query := `
		SELECT ` + creditCategoryColumns + `
		FROM credit_categories
		WHERE event_id = $1 AND ($2 OR NOT archived)
		ORDER BY name, id
	`
	return r.list(ctx, query, eventID, includeArchived)
}

func (r *CreditCategoryRepository) list(ctx context.Context, query string, args ...any) ([]*models.CreditCategory, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query credit categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*models.CreditCategory, 0)
	for rows.Next() {
		category, err := scanCreditCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit category: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credit categories: %w", err)
	}
	rows.Close()

	if err := r.loadRestrictions(ctx, categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// loadRestrictions fills the profile and jurisdiction sets of the given categories
func (r *CreditCategoryRepository) loadRestrictions(ctx context.Context, categories []*models.CreditCategory) error {
	if len(categories) == 0 {
		return nil
	}

	byID := make(map[int64]*models.CreditCategory, len(categories))
	ids := make([]int64, 0, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
		ids = append(ids, c.ID)
		c.ProfileIDs = []int64{}
		c.JurisdictionCodes = []string{}
	}

	rows, err := r.q.Query(ctx, `
		SELECT category_id, profile_id FROM credit_category_profiles
		WHERE category_id = ANY($1) ORDER BY profile_id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query category profiles: %w", err)
	}
	for rows.Next() {
		var categoryID, profileID int64
		if err := rows.Scan(&categoryID, &profileID); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan category profile: %w", err)
		}
		byID[categoryID].ProfileIDs = append(byID[categoryID].ProfileIDs, profileID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating category profiles: %w", err)
	}

	rows, err = r.q.Query(ctx, `
		SELECT category_id, jurisdiction_code FROM credit_category_jurisdictions
		WHERE category_id = ANY($1) ORDER BY jurisdiction_code
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to query category jurisdictions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var categoryID int64
		var code string
		if err := rows.Scan(&categoryID, &code); err != nil {
			return fmt.Errorf("failed to scan category jurisdiction: %w", err)
		}
		byID[categoryID].JurisdictionCodes = append(byID[categoryID].JurisdictionCodes, code)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating category jurisdictions: %w", err)
	}

	return nil
}

// Archive soft-deletes a category
func (r *CreditCategoryRepository) Archive(ctx context.Context, id int64) error {
	result, err := r.q.Exec(ctx, `UPDATE credit_categories SET archived = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to archive credit category %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("credit category %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// IsReferencedBySession reports whether any session offers credit in the category
func (r *CreditCategoryRepository) IsReferencedBySession(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM session_credits WHERE category_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session credits for category %d: %w", id, err)
	}
	return exists, nil
}
