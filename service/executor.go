package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditengine/events"
	"creditengine/models"

	log "github.com/sirupsen/logrus"
)

// executor implements the GrantExecutor interface.
//
// An execution is not one transaction. The log row, every batch of writes and
// the final stamp each commit on their own, so a failure leaves earlier
// batches in place. The unique triple constraint on awarded_records keeps
// that safe.
type executor struct {
	uowFactory UnitOfWorkFactory
	locker     GrantLocker
	batchSize  int
	now        func() time.Time
}

// NewExecutor creates a grant executor writing batchSize candidates per transaction
func NewExecutor(uowFactory UnitOfWorkFactory, locker GrantLocker, batchSize int) GrantExecutor {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &executor{
		uowFactory: uowFactory,
		locker:     locker,
		batchSize:  batchSize,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// workItem is one candidate headed for either awarded_records or declined_records
type workItem struct {
	candidate *models.Candidate
	award     bool
}

// Execute runs a grant under its lease. testMode is decided by the caller:
// the sweep passes the grant's own flag, manual runs pass the administrator's
// choice. On failure the returned result holds the counts of the batches that
// did commit.
func (e *executor) Execute(ctx context.Context, grantID int64, testMode bool) (*models.ExecutionResult, error) {
	release, err := e.locker.TryLock(ctx, grantID)
	if err != nil {
		return nil, err
	}
	defer release()

	grant, err := e.loadGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}

	logEntry, err := e.openLog(ctx, grant, testMode)
	if err != nil {
		return nil, err
	}

	result := &models.ExecutionResult{LogID: logEntry.ID, GrantID: grant.ID}
	logger := log.WithFields(log.Fields{
		"grantID":   grant.ID,
		"packageID": grant.PackageID,
		"logID":     logEntry.ID,
		"testMode":  testMode,
	})

	runErr := e.run(ctx, grant, testMode, result, logger)

	var failureReason *string
	if runErr != nil {
		reason := runErr.Error()
		failureReason = &reason
		logger.WithError(runErr).Error("Grant execution aborted")
	}

	if err := e.finish(ctx, grant, result, testMode, failureReason); err != nil {
		logger.WithError(err).Error("Failed to finalize execution log")
		if runErr == nil {
			runErr = err
		}
	}

	logger.WithFields(log.Fields{
		"awarded":    result.AwardedCount,
		"declined":   result.DeclinedCount,
		"duplicates": result.DuplicateCount,
	}).Info("Grant execution finished")

	return result, runErr
}

func (e *executor) loadGrant(ctx context.Context, grantID int64) (*models.Grant, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	grant, err := uow.GrantRepository().GetByID(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, fmt.Errorf("grant %d: %w", grantID, models.ErrNotFound)
	}
	if grant.Archived {
		return nil, fmt.Errorf("%w: grant %d is archived", models.ErrInvalidInput, grantID)
	}

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, grant.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, fmt.Errorf("award package %d: %w", grant.PackageID, models.ErrNotFound)
	}
	// an archived package's categories may already belong to another package
	if pkg.Archived {
		return nil, fmt.Errorf("%w: award package %d of grant %d is archived", models.ErrInvalidInput, pkg.ID, grantID)
	}
	return grant, nil
}

func (e *executor) openLog(ctx context.Context, grant *models.Grant, testMode bool) (*models.GrantExecutionLog, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	logEntry := &models.GrantExecutionLog{
		GrantID:  grant.ID,
		RunAt:    e.now(),
		TestMode: testMode,
	}
	if err := uow.ExecutionLogRepository().Create(ctx, logEntry); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit execution log: %w", err)
	}
	return logEntry, nil
}

// run evaluates the package and writes the outcome batch by batch
func (e *executor) run(ctx context.Context, grant *models.Grant, testMode bool, result *models.ExecutionResult, logger *log.Entry) error {
	eval, err := e.evaluate(ctx, grant)
	if err != nil {
		return err
	}
	if testMode {
		eval = RestrictToRepresentative(eval)
	}

	items := make([]workItem, 0, len(eval.ToAward)+len(eval.ToDecline))
	for _, c := range eval.ToAward {
		items = append(items, workItem{candidate: c, award: true})
	}
	for _, c := range eval.ToDecline {
		items = append(items, workItem{candidate: c})
	}

	logger.WithFields(log.Fields{
		"toAward":   len(eval.ToAward),
		"toDecline": len(eval.ToDecline),
	}).Debug("Evaluated grant package")

	for start := 0; start < len(items); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+e.batchSize, len(items))
		if err := e.writeBatch(ctx, result, items[start:end], logger); err != nil {
			return err
		}
	}
	return nil
}

func (e *executor) evaluate(ctx context.Context, grant *models.Grant) (*models.Evaluation, error) {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	eval, _, err := evaluatePackage(ctx, uow, models.CandidateFilter{PackageID: grant.PackageID})
	return eval, err
}

// writeBatch writes one batch in its own transaction. Counts are folded into
// the result only once the batch commits.
func (e *executor) writeBatch(ctx context.Context, result *models.ExecutionResult, batch []workItem, logger *log.Entry) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	var awards []*models.AwardedRecord
	declined, duplicates := 0, 0

	for _, item := range batch {
		c := item.candidate
		if !item.award {
			err := uow.DeclinedRecordRepository().Insert(ctx, &models.DeclinedRecord{
				ExecutionLogID: result.LogID,
				ContestantID:   c.ContestantID,
				SessionID:      c.SessionID,
				CategoryID:     c.CategoryID,
				AttendanceMet:  c.AttendanceMet,
				PaymentMet:     c.PaymentMet,
				SurveyMet:      c.SurveyMet,
			})
			if err != nil {
				return err
			}
			declined++
			continue
		}

		award := &models.AwardedRecord{
			ExecutionLogID: result.LogID,
			ContestantID:   c.ContestantID,
			SessionID:      c.SessionID,
			CategoryID:     c.CategoryID,
			CreditValue:    c.CreditValue,
		}
		err := uow.AwardRepository().Insert(ctx, award)
		if errors.Is(err, models.ErrDuplicateAward) {
			duplicates++
			logger.WithFields(log.Fields{
				"contestantID": c.ContestantID,
				"sessionID":    c.SessionID,
				"categoryID":   c.CategoryID,
			}).Info("Skipping already awarded credit")
			continue
		}
		if err != nil {
			return err
		}
		awards = append(awards, award)
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	result.Awards = append(result.Awards, awards...)
	result.AwardedCount += len(awards)
	result.DeclinedCount += declined
	result.DuplicateCount += duplicates
	return nil
}

// finish stamps the log and queues the hand-off event. It runs even when the
// execution's context was cancelled.
func (e *executor) finish(ctx context.Context, grant *models.Grant, result *models.ExecutionResult, testMode bool, failureReason *string) error {
	ctx = context.WithoutCancel(ctx)

	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.ExecutionLogRepository().Finish(ctx, result.LogID, e.now(), failureReason); err != nil {
		return err
	}
	uow.EventBus().Publish(events.NewGrantExecutedEvent(grant, result, testMode, failureReason != nil))

	return uow.Commit()
}
