package service

import (
	"context"
	"time"

	"creditengine/events"
	"creditengine/models"
)

// CreditCategoryRepository defines the interface for credit category data access
type CreditCategoryRepository interface {
	// Create inserts a category together with its profile and jurisdiction sets
	Create(ctx context.Context, category *models.CreditCategory) error

	// Update replaces a category's fields and restriction sets
	Update(ctx context.Context, category *models.CreditCategory) error

	// GetByID retrieves a category by ID, nil if missing
	GetByID(ctx context.Context, id int64) (*models.CreditCategory, error)

	// GetByIDForUpdate retrieves a category and locks its row
	GetByIDForUpdate(ctx context.Context, id int64) (*models.CreditCategory, error)

	// GetByIDs retrieves several categories, silently skipping missing ids
	GetByIDs(ctx context.Context, ids []int64) ([]*models.CreditCategory, error)

	// ListByEvent returns the categories of an event
	ListByEvent(ctx context.Context, eventID int64, includeArchived bool) ([]*models.CreditCategory, error)

	// Archive soft-deletes a category
	Archive(ctx context.Context, id int64) error

	// IsReferencedBySession reports whether any session offers credit in the category
	IsReferencedBySession(ctx context.Context, id int64) (bool, error)
}

// AwardPackageRepository defines the interface for award criteria package data access
type AwardPackageRepository interface {
	Create(ctx context.Context, pkg *models.AwardPackage) error
	Update(ctx context.Context, pkg *models.AwardPackage) error
	GetByID(ctx context.Context, id int64) (*models.AwardPackage, error)
	ListByEvent(ctx context.Context, eventID int64, includeArchived bool) ([]*models.AwardPackage, error)
	Archive(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error

	// LinkCategory attaches a category to a package; linking twice is a no-op
	LinkCategory(ctx context.Context, packageID, categoryID int64) error

	// UnlinkCategory detaches a category, reporting whether a link existed
	UnlinkCategory(ctx context.Context, packageID, categoryID int64) (bool, error)

	// GetActivePackageForCategory returns the non-archived package, other than
	// excludePackageID, that links the category
	GetActivePackageForCategory(ctx context.Context, categoryID, excludePackageID int64) (*models.AwardPackage, error)

	// HasExecutions reports whether any grant of the package has run
	HasExecutions(ctx context.Context, packageID int64) (bool, error)
}

// GrantRepository defines the interface for grant data access
type GrantRepository interface {
	Create(ctx context.Context, grant *models.Grant) error
	GetByID(ctx context.Context, id int64) (*models.Grant, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*models.Grant, error)
	Archive(ctx context.Context, id int64) error

	// ArchiveByPackage archives every grant of a package and returns how many changed
	ArchiveByPackage(ctx context.Context, packageID int64) (int64, error)

	// UpdateNextRunAt moves a recurring grant to its next occurrence
	UpdateNextRunAt(ctx context.Context, id int64, nextRunAt time.Time) error

	// GetDue returns recurring, non-archived grants of active packages whose
	// next run is at or before now and that have not yet run for that occurrence
	GetDue(ctx context.Context, now time.Time) ([]*models.Grant, error)

	// GetCompletedDue returns the due grants that already ran for their
	// current occurrence and only need their schedule advanced
	GetCompletedDue(ctx context.Context, now time.Time) ([]*models.Grant, error)
}

// ExecutionLogRepository defines the interface for grant execution log data access
type ExecutionLogRepository interface {
	Create(ctx context.Context, log *models.GrantExecutionLog) error
	GetByID(ctx context.Context, id int64) (*models.GrantExecutionLog, error)

	// Finish stamps the log as finished, with an optional failure reason
	Finish(ctx context.Context, id int64, finishedAt time.Time, failureReason *string) error

	// ListByEvent returns execution summaries of all grants of an event, newest first
	ListByEvent(ctx context.Context, eventID int64) ([]*models.ExecutionSummary, error)

	// DeleteByPackage removes every log of every grant of the package
	DeleteByPackage(ctx context.Context, packageID int64) (int64, error)
}

// AwardRepository defines the interface for awarded record data access
type AwardRepository interface {
	// Insert writes an award unless one exists for its triple, in which case
	// it returns models.ErrDuplicateAward
	Insert(ctx context.Context, award *models.AwardedRecord) error

	GetByID(ctx context.Context, id int64) (*models.AwardedRecord, error)
	Delete(ctx context.Context, id int64) error
	ListByExecution(ctx context.Context, executionLogID int64) ([]*models.AwardedRecord, error)
	DeleteByPackage(ctx context.Context, packageID int64) (int64, error)
}

// DeclinedRecordRepository defines the interface for declined record data access
type DeclinedRecordRepository interface {
	Insert(ctx context.Context, declined *models.DeclinedRecord) error
	ListByExecution(ctx context.Context, executionLogID int64) ([]*models.DeclinedRecord, error)
	DeleteByPackage(ctx context.Context, packageID int64) (int64, error)
}

// AwardExceptionRepository defines the interface for exception log data access
type AwardExceptionRepository interface {
	// Upsert adds an exception, replacing the justification of an existing one
	Upsert(ctx context.Context, exception *models.AwardException) error

	GetByID(ctx context.Context, id int64) (*models.AwardException, error)
	ListByPackage(ctx context.Context, packageID int64) ([]*models.AwardException, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteByPackage(ctx context.Context, packageID int64) (int64, error)
}

// AttendanceRepository reads the externally owned registration facts
type AttendanceRepository interface {
	// ListCandidates returns facts for every not-yet-awarded triple of the package
	ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]*models.CandidateFacts, error)

	// SetDoNotAward flips the flag on a contestant's session registration
	SetDoNotAward(ctx context.Context, contestantID, sessionID int64, value bool) error

	// ClearDoNotAwardForPackage clears the flag on registrations of sessions
	// the package reaches through its categories, exceptions or history
	ClearDoNotAwardForPackage(ctx context.Context, packageID int64) (int64, error)
}

// GrantLocker provides the per-grant execution lease
type GrantLocker interface {
	// TryLock acquires the lease without waiting. It returns models.ErrGrantBusy
	// when another execution holds it.
	TryLock(ctx context.Context, grantID int64) (release func(), err error)
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork scopes repositories to a single transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	CreditCategoryRepository() CreditCategoryRepository
	AwardPackageRepository() AwardPackageRepository
	GrantRepository() GrantRepository
	ExecutionLogRepository() ExecutionLogRepository
	AwardRepository() AwardRepository
	DeclinedRecordRepository() DeclinedRecordRepository
	AwardExceptionRepository() AwardExceptionRepository
	AttendanceRepository() AttendanceRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// CatalogService manages credit categories and award criteria packages
type CatalogService interface {
	CreateCategory(ctx context.Context, input CategoryInput) (*models.CreditCategory, error)
	UpdateCategory(ctx context.Context, id int64, input CategoryInput) (*models.CreditCategory, error)
	GetCategory(ctx context.Context, id int64) (*models.CreditCategory, error)
	ListCategories(ctx context.Context, eventID int64) ([]*models.CreditCategory, error)
	ArchiveCategory(ctx context.Context, id int64) error

	CreatePackage(ctx context.Context, input PackageInput) (*models.AwardPackage, error)
	UpdatePackage(ctx context.Context, id int64, input PackageInput) (*models.AwardPackage, error)
	GetPackage(ctx context.Context, id int64) (*models.AwardPackage, error)
	ListPackages(ctx context.Context, eventID int64) ([]*models.AwardPackage, error)
	LinkCategory(ctx context.Context, packageID, categoryID int64) error
	UnlinkCategory(ctx context.Context, packageID, categoryID int64) error
	ArchivePackage(ctx context.Context, id int64) error
	DeletePackage(ctx context.Context, id int64) error
}

// ExceptionService manages administrator award overrides
type ExceptionService interface {
	AddException(ctx context.Context, input ExceptionInput) (*models.AwardException, error)
	GetException(ctx context.Context, id int64) (*models.AwardException, error)
	ListExceptions(ctx context.Context, packageID int64) ([]*models.AwardException, error)
	DeleteException(ctx context.Context, id int64) error
}

// EvaluationService evaluates packages without side effects
type EvaluationService interface {
	// PreviewAward computes the award/decline split without writing anything
	PreviewAward(ctx context.Context, filter models.CandidateFilter) (*models.Evaluation, error)
}

// GrantExecutor runs one grant
type GrantExecutor interface {
	Execute(ctx context.Context, grantID int64, testMode bool) (*models.ExecutionResult, error)
}

// GrantService manages grants and their schedule
type GrantService interface {
	CreateGrant(ctx context.Context, input GrantInput) (*models.Grant, *models.ExecutionResult, error)
	RunGrantNow(ctx context.Context, grantID int64, testMode bool) (*models.ExecutionResult, error)
	ArchiveGrant(ctx context.Context, grantID int64) error
	GetGrant(ctx context.Context, grantID int64) (*models.Grant, error)
	ListGrants(ctx context.Context, eventID int64) ([]*models.Grant, error)
	DueGrants(ctx context.Context, now time.Time) ([]*models.Grant, error)
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

// RevocationService reverses awards
type RevocationService interface {
	Unaward(ctx context.Context, awardID int64) error
	ResetPackage(ctx context.Context, packageID int64) (*models.ResetResult, error)
}

// HistoryService is the read contract over the execution audit trail
type HistoryService interface {
	ExecutionHistory(ctx context.Context, eventID int64) ([]*models.ExecutionSummary, error)
	ExecutionDetail(ctx context.Context, logID int64) (*models.ExecutionDetail, error)
}
