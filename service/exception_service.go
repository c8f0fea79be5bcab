package service

import (
	"context"
	"fmt"
	"slices"

	"creditengine/models"

	log "github.com/sirupsen/logrus"
)

// exceptionService implements the ExceptionService interface
type exceptionService struct {
	uowFactory UnitOfWorkFactory
}

// NewExceptionService creates a new exception service
func NewExceptionService(uowFactory UnitOfWorkFactory) ExceptionService {
	return &exceptionService{uowFactory: uowFactory}
}

// AddException records an override for one triple. Nothing is awarded until
// the package is next evaluated.
func (s *exceptionService) AddException(ctx context.Context, input ExceptionInput) (*models.AwardException, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("award package %d: %w", input.PackageID, models.ErrNotFound)
	}
	if !slices.Contains(pkg.CategoryIDs, input.CategoryID) {
		return nil, fmt.Errorf("%w: credit category %d is not part of package %d",
			models.ErrConfigurationConflict, input.CategoryID, input.PackageID)
	}

	exception := &models.AwardException{
		ContestantID:  input.ContestantID,
		PackageID:     input.PackageID,
		CategoryID:    input.CategoryID,
		SessionID:     input.SessionID,
		Justification: input.Justification,
		AdminUserID:   input.AdminUserID,
	}
	if err := uow.AwardExceptionRepository().Upsert(ctx, exception); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"exceptionID":  exception.ID,
		"packageID":    exception.PackageID,
		"contestantID": exception.ContestantID,
		"sessionID":    exception.SessionID,
		"categoryID":   exception.CategoryID,
		"adminUserID":  exception.AdminUserID,
	}).Info("Recorded award exception")
	return exception, nil
}

// GetException returns an exception by ID
func (s *exceptionService) GetException(ctx context.Context, id int64) (*models.AwardException, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	exception, err := uow.AwardExceptionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exception == nil {
		return nil, fmt.Errorf("award exception %d: %w", id, models.ErrNotFound)
	}
	return exception, nil
}

// ListExceptions returns the exceptions of a package
func (s *exceptionService) ListExceptions(ctx context.Context, packageID int64) ([]*models.AwardException, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.AwardExceptionRepository().ListByPackage(ctx, packageID)
}

// DeleteException removes an exception. Credit already awarded because of it stays.
func (s *exceptionService) DeleteException(ctx context.Context, id int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	deleted, err := uow.AwardExceptionRepository().Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("award exception %d: %w", id, models.ErrNotFound)
	}
	return uow.Commit()
}
