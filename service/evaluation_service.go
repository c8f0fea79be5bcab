package service

import (
	"context"
	"fmt"

	"creditengine/models"
)

// evaluationService implements the EvaluationService interface
type evaluationService struct {
	uowFactory UnitOfWorkFactory
}

// NewEvaluationService creates a new evaluation service
func NewEvaluationService(uowFactory UnitOfWorkFactory) EvaluationService {
	return &evaluationService{uowFactory: uowFactory}
}

// PreviewAward returns the anticipated awards and declines of a package. The
// read transaction is always rolled back.
func (s *evaluationService) PreviewAward(ctx context.Context, filter models.CandidateFilter) (*models.Evaluation, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	eval, _, err := evaluatePackage(ctx, uow, filter)
	return eval, err
}

// evaluatePackage loads everything the evaluator needs for a package and runs it
func evaluatePackage(ctx context.Context, uow UnitOfWork, filter models.CandidateFilter) (*models.Evaluation, *models.AwardPackage, error) {
	pkg, err := uow.AwardPackageRepository().GetByID(ctx, filter.PackageID)
	if err != nil {
		return nil, nil, err
	}
	if pkg == nil {
		return nil, nil, fmt.Errorf("award package %d: %w", filter.PackageID, models.ErrNotFound)
	}

	categories, err := uow.CreditCategoryRepository().GetByIDs(ctx, pkg.CategoryIDs)
	if err != nil {
		return nil, nil, err
	}

	exceptions, err := uow.AwardExceptionRepository().ListByPackage(ctx, pkg.ID)
	if err != nil {
		return nil, nil, err
	}

	facts, err := uow.AttendanceRepository().ListCandidates(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	return Evaluate(pkg, categories, facts, exceptions), pkg, nil
}
