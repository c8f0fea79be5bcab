package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creditengine/models"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// SweepResult summarizes one scheduler pass over due grants
type SweepResult struct {
	Due      int
	Executed int
	Failed   int
	Skipped  int // lease held by another execution
	Advanced int // occurrence already run, schedule moved only
}

// grantService implements the GrantService interface
type grantService struct {
	uowFactory      UnitOfWorkFactory
	executor        GrantExecutor
	defaultSchedule string
	now             func() time.Time
}

// NewGrantService creates a new grant service. defaultSchedule is the cron
// spec given to recurring grants created without one.
func NewGrantService(uowFactory UnitOfWorkFactory, executor GrantExecutor, defaultSchedule string) GrantService {
	return &grantService{
		uowFactory:      uowFactory,
		executor:        executor,
		defaultSchedule: defaultSchedule,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// ParseSchedule parses a grant recurrence in standard five-field cron syntax
// or one of the @-descriptors such as @daily or @every 6h
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", models.ErrInvalidInput, spec, err)
	}
	return schedule, nil
}

// NextRun returns the first occurrence of the schedule strictly after the
// later of now and the grant's current next run. Missed occurrences collapse
// into one run.
func NextRun(schedule cron.Schedule, now, current time.Time) time.Time {
	from := now
	if current.After(from) {
		from = current
	}
	return schedule.Next(from)
}

// CreateGrant stores a grant. A once grant created in test mode runs
// immediately and its result is returned.
func (s *grantService) CreateGrant(ctx context.Context, input GrantInput) (*models.Grant, *models.ExecutionResult, error) {
	if err := validateInput(input); err != nil {
		return nil, nil, err
	}

	now := s.now()
	grant := &models.Grant{
		EventID:               input.EventID,
		PackageID:             input.PackageID,
		AdminID:               input.AdminID,
		CertificateTemplateID: input.CertificateTemplateID,
		EmailTemplateID:       input.EmailTemplateID,
		Notify:                input.Notify,
		RunType:               input.RunType,
		TestMode:              input.TestMode,
		NextRunAt:             now,
	}
	if input.StartAt != nil {
		grant.NextRunAt = input.StartAt.UTC()
	}

	if grant.IsRecurring() {
		grant.Schedule = input.Schedule
		if grant.Schedule == "" {
			grant.Schedule = s.defaultSchedule
		}
		schedule, err := ParseSchedule(grant.Schedule)
		if err != nil {
			return nil, nil, err
		}
		if input.StartAt == nil {
			grant.NextRunAt = schedule.Next(now)
		}
	} else if input.Schedule != "" {
		return nil, nil, fmt.Errorf("%w: once grants take no schedule", models.ErrInvalidInput)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	pkg, err := uow.AwardPackageRepository().GetByID(ctx, input.PackageID)
	if err != nil {
		return nil, nil, err
	}
	if pkg == nil {
		return nil, nil, fmt.Errorf("award package %d: %w", input.PackageID, models.ErrNotFound)
	}
	if pkg.Archived {
		return nil, nil, fmt.Errorf("%w: award package %d is archived", models.ErrInvalidInput, pkg.ID)
	}
	if pkg.EventID != input.EventID {
		return nil, nil, fmt.Errorf("%w: award package %d belongs to event %d", models.ErrInvalidInput, pkg.ID, pkg.EventID)
	}

	if err := uow.GrantRepository().Create(ctx, grant); err != nil {
		return nil, nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.WithFields(log.Fields{
		"grantID":   grant.ID,
		"packageID": grant.PackageID,
		"runType":   grant.RunType,
		"schedule":  grant.Schedule,
		"nextRunAt": grant.NextRunAt,
		"testMode":  grant.TestMode,
	}).Info("Created grant")

	if grant.RunType == models.RunTypeOnce && grant.TestMode {
		result, err := s.executor.Execute(ctx, grant.ID, true)
		return grant, result, err
	}
	return grant, nil, nil
}

// RunGrantNow executes a grant immediately. testMode overrides the grant's
// own flag, so a grant created in test mode can later run for real. The
// recurring schedule is untouched.
func (s *grantService) RunGrantNow(ctx context.Context, grantID int64, testMode bool) (*models.ExecutionResult, error) {
	return s.executor.Execute(ctx, grantID, testMode)
}

// ArchiveGrant soft-deletes a grant; its history stays
func (s *grantService) ArchiveGrant(ctx context.Context, grantID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GrantRepository().Archive(ctx, grantID); err != nil {
		return err
	}
	return uow.Commit()
}

// GetGrant returns a grant by ID
func (s *grantService) GetGrant(ctx context.Context, grantID int64) (*models.Grant, error) {
	uow := s.uowFactory.Create()
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
	return grant, nil
}

// ListGrants returns every grant of an event
func (s *grantService) ListGrants(ctx context.Context, eventID int64) ([]*models.Grant, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.GrantRepository().ListByEvent(ctx, eventID)
}

// DueGrants returns the recurring grants due at now
func (s *grantService) DueGrants(ctx context.Context, now time.Time) ([]*models.Grant, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.GrantRepository().GetDue(ctx, now)
}

// Sweep executes every due grant and advances its schedule. A grant whose
// lease is held is left for the next sweep. A failed execution still
// advances, so one broken grant cannot monopolize the sweep. Grants whose
// occurrence already ran are advanced without executing again.
func (s *grantService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	completed, err := s.completedDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get completed grants: %w", err)
	}
	due, err := s.DueGrants(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get due grants: %w", err)
	}

	result := &SweepResult{Due: len(due)}
	for _, grant := range completed {
		if err := s.advance(ctx, grant, now); err != nil {
			log.WithError(err).WithField("grantID", grant.ID).Error("Failed to advance grant schedule")
			continue
		}
		result.Advanced++
	}

	for _, grant := range due {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		logger := log.WithFields(log.Fields{
			"grantID":   grant.ID,
			"nextRunAt": grant.NextRunAt,
		})

		_, execErr := s.executor.Execute(ctx, grant.ID, grant.TestMode)
		switch {
		case errors.Is(execErr, models.ErrGrantBusy):
			logger.Info("Grant is already executing, leaving it for the next sweep")
			result.Skipped++
			continue
		case execErr != nil:
			logger.WithError(execErr).Error("Scheduled grant execution failed")
			result.Failed++
		default:
			result.Executed++
		}

		if err := s.advance(ctx, grant, now); err != nil {
			logger.WithError(err).Error("Failed to advance grant schedule")
		}
	}

	log.WithFields(log.Fields{
		"due":      result.Due,
		"executed": result.Executed,
		"failed":   result.Failed,
		"skipped":  result.Skipped,
		"advanced": result.Advanced,
	}).Info("Grant sweep completed")

	return result, nil
}

func (s *grantService) completedDue(ctx context.Context, now time.Time) ([]*models.Grant, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	return uow.GrantRepository().GetCompletedDue(ctx, now)
}

func (s *grantService) advance(ctx context.Context, grant *models.Grant, now time.Time) error {
	spec := grant.Schedule
	if spec == "" {
		spec = s.defaultSchedule
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return err
	}
	next := NextRun(schedule, now, grant.NextRunAt)

	// the execution already happened; its schedule must move even on shutdown
	ctx = context.WithoutCancel(ctx)

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GrantRepository().UpdateNextRunAt(ctx, grant.ID, next); err != nil {
		return err
	}
	return uow.Commit()
}
