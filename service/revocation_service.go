package service

import (
	"context"
	"errors"
	"fmt"

	"creditengine/events"
	"creditengine/models"

	log "github.com/sirupsen/logrus"
)

// revocationService implements the RevocationService interface
type revocationService struct {
	uowFactory UnitOfWorkFactory
}

// NewRevocationService creates a new revocation service
func NewRevocationService(uowFactory UnitOfWorkFactory) RevocationService {
	return &revocationService{uowFactory: uowFactory}
}

// Unaward deletes an award and flags the registration so the next run does
// not grant it again
func (s *revocationService) Unaward(ctx context.Context, awardID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	award, err := uow.AwardRepository().GetByID(ctx, awardID)
	if err != nil {
		return err
	}
	if award == nil {
		return fmt.Errorf("award %d: %w", awardID, models.ErrNotFound)
	}

	if err := uow.AwardRepository().Delete(ctx, awardID); err != nil {
		return err
	}

	err = uow.AttendanceRepository().SetDoNotAward(ctx, award.ContestantID, award.SessionID, true)
	if errors.Is(err, models.ErrNotFound) {
		// registration removed upstream; nothing left to re-award from
		log.WithFields(log.Fields{
			"awardID":      awardID,
			"contestantID": award.ContestantID,
			"sessionID":    award.SessionID,
		}).Warn("No registration to flag for revoked award")
	} else if err != nil {
		return err
	}

	uow.EventBus().Publish(events.AwardRevokedEvent{
		AwardID:      award.ID,
		ContestantID: award.ContestantID,
		SessionID:    award.SessionID,
		CategoryID:   award.CategoryID,
	})

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"awardID":      awardID,
		"contestantID": award.ContestantID,
		"sessionID":    award.SessionID,
		"categoryID":   award.CategoryID,
	}).Info("Revoked award")
	return nil
}

// ResetPackage rewinds a package to a never-run state in one transaction
func (s *revocationService) ResetPackage(ctx context.Context, packageID int64) (*models.ResetResult, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("award package %d: %w", packageID, models.ErrNotFound)
	}

	result := &models.ResetResult{}
	// flags are found through the history deleted below
	if result.FlagsCleared, err = uow.AttendanceRepository().ClearDoNotAwardForPackage(ctx, packageID); err != nil {
		return nil, err
	}
	if result.AwardsDeleted, err = uow.AwardRepository().DeleteByPackage(ctx, packageID); err != nil {
		return nil, err
	}
	if result.DeclinesDeleted, err = uow.DeclinedRecordRepository().DeleteByPackage(ctx, packageID); err != nil {
		return nil, err
	}
	if result.LogsDeleted, err = uow.ExecutionLogRepository().DeleteByPackage(ctx, packageID); err != nil {
		return nil, err
	}
	if result.ExceptionsDeleted, err = uow.AwardExceptionRepository().DeleteByPackage(ctx, packageID); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.PackageResetEvent{
		PackageID:         packageID,
		AwardsDeleted:     result.AwardsDeleted,
		DeclinesDeleted:   result.DeclinesDeleted,
		LogsDeleted:       result.LogsDeleted,
		ExceptionsDeleted: result.ExceptionsDeleted,
		FlagsCleared:      result.FlagsCleared,
	})

	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"packageID":         packageID,
		"awardsDeleted":     result.AwardsDeleted,
		"declinesDeleted":   result.DeclinesDeleted,
		"logsDeleted":       result.LogsDeleted,
		"exceptionsDeleted": result.ExceptionsDeleted,
		"flagsCleared":      result.FlagsCleared,
	}).Info("Reset award package")
	return result, nil
}
