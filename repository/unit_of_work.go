package repository

import (
	"context"
	"errors"
	"fmt"

	"creditengine/database"
	"creditengine/events"
	"creditengine/service"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db               *database.DB
	tx               pgx.Tx
	ctx              context.Context
	transactionalBus *events.TransactionalBus
	categoryRepo     service.CreditCategoryRepository
	packageRepo      service.AwardPackageRepository
	grantRepo        service.GrantRepository
	executionLogRepo service.ExecutionLogRepository
	awardRepo        service.AwardRepository
	declinedRepo     service.DeclinedRecordRepository
	exceptionRepo    service.AwardExceptionRepository
	attendanceRepo   service.AttendanceRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.categoryRepo = newCreditCategoryRepositoryWithTx(tx)
	u.packageRepo = newAwardPackageRepositoryWithTx(tx)
	u.grantRepo = newGrantRepositoryWithTx(tx)
	u.executionLogRepo = newExecutionLogRepositoryWithTx(tx)
	u.awardRepo = newAwardRepositoryWithTx(tx)
	u.declinedRepo = newDeclinedRecordRepositoryWithTx(tx)
	u.exceptionRepo = newAwardExceptionRepositoryWithTx(tx)
	u.attendanceRepo = newAttendanceRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and flushes pending events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	if u.transactionalBus != nil {
		if err := u.transactionalBus.Flush(u.ctx); err != nil {
			log.WithError(err).Error("Failed to flush events after commit")
		}
	}

	return nil
}

// Rollback rolls back the transaction. Calling it after Commit is a no-op.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	// rollback must run even when the work's context was cancelled
	err := u.tx.Rollback(context.WithoutCancel(u.ctx))
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil

	if u.transactionalBus != nil {
		u.transactionalBus.Discard()
	}

	return nil
}

func (u *unitOfWork) CreditCategoryRepository() service.CreditCategoryRepository {
	if u.categoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.categoryRepo
}

func (u *unitOfWork) AwardPackageRepository() service.AwardPackageRepository {
	if u.packageRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.packageRepo
}

func (u *unitOfWork) GrantRepository() service.GrantRepository {
	if u.grantRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.grantRepo
}

func (u *unitOfWork) ExecutionLogRepository() service.ExecutionLogRepository {
	if u.executionLogRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.executionLogRepo
}

func (u *unitOfWork) AwardRepository() service.AwardRepository {
	if u.awardRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.awardRepo
}

func (u *unitOfWork) DeclinedRecordRepository() service.DeclinedRecordRepository {
	if u.declinedRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.declinedRepo
}

func (u *unitOfWork) AwardExceptionRepository() service.AwardExceptionRepository {
	if u.exceptionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.exceptionRepo
}

func (u *unitOfWork) AttendanceRepository() service.AttendanceRepository {
	if u.attendanceRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.attendanceRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
