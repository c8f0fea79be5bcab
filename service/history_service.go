package service

import (
	"context"
	"fmt"

	"creditengine/models"
)

// historyService implements the HistoryService interface
type historyService struct {
	uowFactory UnitOfWorkFactory
}

// NewHistoryService creates a new history service
func NewHistoryService(uowFactory UnitOfWorkFactory) HistoryService {
	return &historyService{uowFactory: uowFactory}
}

// ExecutionHistory lists every execution of the event's grants, newest first
func (s *historyService) ExecutionHistory(ctx context.Context, eventID int64) ([]*models.ExecutionSummary, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.ExecutionLogRepository().ListByEvent(ctx, eventID)
}

// ExecutionDetail returns one execution with the records it wrote
func (s *historyService) ExecutionDetail(ctx context.Context, logID int64) (*models.ExecutionDetail, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	executionLog, err := uow.ExecutionLogRepository().GetByID(ctx, logID)
	if err != nil {
		return nil, err
	}
	if executionLog == nil {
		return nil, fmt.Errorf("execution log %d: %w", logID, models.ErrNotFound)
	}

	awarded, err := uow.AwardRepository().ListByExecution(ctx, logID)
	if err != nil {
		return nil, err
	}
	declined, err := uow.DeclinedRecordRepository().ListByExecution(ctx, logID)
	if err != nil {
		return nil, err
	}

	return &models.ExecutionDetail{
		Log:      executionLog,
		Awarded:  awarded,
		Declined: declined,
	}, nil
}
