package service

import (
	"context"
	"fmt"

	"creditengine/models"

	log "github.com/sirupsen/logrus"
)

// catalogService implements the CatalogService interface
type catalogService struct {
	uowFactory UnitOfWorkFactory
}

// NewCatalogService creates a new catalog service
func NewCatalogService(uowFactory UnitOfWorkFactory) CatalogService {
	return &catalogService{uowFactory: uowFactory}
}

// CreateCategory creates a credit category
func (s *catalogService) CreateCategory(ctx context.Context, input CategoryInput) (*models.CreditCategory, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	category := &models.CreditCategory{
		EventID:           input.EventID,
		Name:              input.Name,
		Code:              input.Code,
		Description:       input.Description,
		ProfileIDs:        input.ProfileIDs,
		JurisdictionCodes: input.JurisdictionCodes,
	}
	if err := uow.CreditCategoryRepository().Create(ctx, category); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"categoryID": category.ID,
		"eventID":    category.EventID,
		"code":       category.Code,
	}).Info("Created credit category")
	return category, nil
}

// UpdateCategory replaces a category's fields and restriction sets. The
// owning event never changes.
func (s *catalogService) UpdateCategory(ctx context.Context, id int64, input CategoryInput) (*models.CreditCategory, error) {
	if err := validateInput(input, "EventID"); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	category, err := uow.CreditCategoryRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("credit category %d: %w", id, models.ErrNotFound)
	}
	if input.EventID != 0 && input.EventID != category.EventID {
		return nil, fmt.Errorf("%w: category %d belongs to event %d", models.ErrInvalidInput, id, category.EventID)
	}

	category.Name = input.Name
	category.Code = input.Code
	category.Description = input.Description
	category.ProfileIDs = input.ProfileIDs
	category.JurisdictionCodes = input.JurisdictionCodes
	if err := uow.CreditCategoryRepository().Update(ctx, category); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return category, nil
}

// GetCategory returns a category by ID
func (s *catalogService) GetCategory(ctx context.Context, id int64) (*models.CreditCategory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	category, err := uow.CreditCategoryRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, fmt.Errorf("credit category %d: %w", id, models.ErrNotFound)
	}
	return category, nil
}

// ListCategories returns the non-archived categories of an event
func (s *catalogService) ListCategories(ctx context.Context, eventID int64) ([]*models.CreditCategory, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.CreditCategoryRepository().ListByEvent(ctx, eventID, false)
}

// ArchiveCategory archives a category no session offers credit in
func (s *catalogService) ArchiveCategory(ctx context.Context, id int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	category, err := uow.CreditCategoryRepository().GetByIDForUpdate(ctx, id)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("credit category %d: %w", id, models.ErrNotFound)
	}

	referenced, err := uow.CreditCategoryRepository().IsReferencedBySession(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: credit category %d is attached to registration items", models.ErrInUseConflict, id)
	}

	if err := uow.CreditCategoryRepository().Archive(ctx, id); err != nil {
		return err
	}
	return uow.Commit()
}

// CreatePackage creates a package and links its initial categories
func (s *catalogService) CreatePackage(ctx context.Context, input PackageInput) (*models.AwardPackage, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg := &models.AwardPackage{
		EventID:               input.EventID,
		Name:                  input.Name,
		AttendanceCriterion:   input.AttendanceCriterion,
		PaymentInFullRequired: input.PaymentInFullRequired,
		SurveyRequired:        input.SurveyRequired,
	}
	if err := uow.AwardPackageRepository().Create(ctx, pkg); err != nil {
		return nil, err
	}

	for _, categoryID := range input.CategoryIDs {
		if err := linkCategory(ctx, uow, pkg, categoryID); err != nil {
			return nil, err
		}
		pkg.CategoryIDs = append(pkg.CategoryIDs, categoryID)
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"packageID":  pkg.ID,
		"eventID":    pkg.EventID,
		"categories": pkg.CategoryIDs,
	}).Info("Created award package")
	return pkg, nil
}

// UpdatePackage changes a package's name and criteria
func (s *catalogService) UpdatePackage(ctx context.Context, id int64, input PackageInput) (*models.AwardPackage, error) {
	if err := validateInput(input, "EventID"); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("award package %d: %w", id, models.ErrNotFound)
	}
	if input.EventID != 0 && input.EventID != pkg.EventID {
		return nil, fmt.Errorf("%w: package %d belongs to event %d", models.ErrInvalidInput, id, pkg.EventID)
	}

	pkg.Name = input.Name
	pkg.AttendanceCriterion = input.AttendanceCriterion
	pkg.PaymentInFullRequired = input.PaymentInFullRequired
	pkg.SurveyRequired = input.SurveyRequired
	if err := uow.AwardPackageRepository().Update(ctx, pkg); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return pkg, nil
}

// GetPackage returns a package by ID
func (s *catalogService) GetPackage(ctx context.Context, id int64) (*models.AwardPackage, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("award package %d: %w", id, models.ErrNotFound)
	}
	return pkg, nil
}

// ListPackages returns the non-archived packages of an event
func (s *catalogService) ListPackages(ctx context.Context, eventID int64) ([]*models.AwardPackage, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.AwardPackageRepository().ListByEvent(ctx, eventID, false)
}

// LinkCategory attaches a category to a package
func (s *catalogService) LinkCategory(ctx context.Context, packageID, categoryID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, packageID)
	if err != nil {
		return err
	}
	if pkg == nil {
		return fmt.Errorf("award package %d: %w", packageID, models.ErrNotFound)
	}

	if err := linkCategory(ctx, uow, pkg, categoryID); err != nil {
		return err
	}
	return uow.Commit()
}

// linkCategory enforces that a category belongs to at most one active package.
// The category row lock serializes concurrent links of the same category.
func linkCategory(ctx context.Context, uow UnitOfWork, pkg *models.AwardPackage, categoryID int64) error {
	if pkg.Archived {
		return fmt.Errorf("%w: award package %d is archived", models.ErrInvalidInput, pkg.ID)
	}

	category, err := uow.CreditCategoryRepository().GetByIDForUpdate(ctx, categoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return fmt.Errorf("credit category %d: %w", categoryID, models.ErrNotFound)
	}
	if category.EventID != pkg.EventID {
		return fmt.Errorf("%w: category %d belongs to event %d, package %d to event %d",
			models.ErrInvalidInput, categoryID, category.EventID, pkg.ID, pkg.EventID)
	}
	if category.Archived {
		return fmt.Errorf("%w: credit category %d is archived", models.ErrInvalidInput, categoryID)
	}

	other, err := uow.AwardPackageRepository().GetActivePackageForCategory(ctx, categoryID, pkg.ID)
	if err != nil {
		return err
	}
	if other != nil {
		return fmt.Errorf("%w: credit category %d is already linked to active package %d",
			models.ErrConfigurationConflict, categoryID, other.ID)
	}

	return uow.AwardPackageRepository().LinkCategory(ctx, pkg.ID, categoryID)
}

// UnlinkCategory detaches a category from a package
func (s *catalogService) UnlinkCategory(ctx context.Context, packageID, categoryID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	removed, err := uow.AwardPackageRepository().UnlinkCategory(ctx, packageID, categoryID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("category %d on package %d: %w", categoryID, packageID, models.ErrNotFound)
	}
	return uow.Commit()
}

// ArchivePackage archives a package together with its grants, freeing its
// categories for other packages
func (s *catalogService) ArchivePackage(ctx context.Context, id int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.AwardPackageRepository().Archive(ctx, id); err != nil {
		return err
	}
	archived, err := uow.GrantRepository().ArchiveByPackage(ctx, id)
	if err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"packageID":      id,
		"archivedGrants": archived,
	}).Info("Award package archived")
	return nil
}

// DeletePackage removes a package that no grant has executed against
func (s *catalogService) DeletePackage(ctx context.Context, id int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if pkg == nil {
		return fmt.Errorf("award package %d: %w", id, models.ErrNotFound)
	}

	executed, err := uow.AwardPackageRepository().HasExecutions(ctx, id)
	if err != nil {
		return err
	}
	if executed {
		return fmt.Errorf("%w: award package %d has execution history, reset it first", models.ErrInUseConflict, id)
	}

	if err := uow.AwardPackageRepository().Delete(ctx, id); err != nil {
		return err
	}
	return uow.Commit()
}
