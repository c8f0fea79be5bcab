package service

import (
	"context"
	"time"

	"creditengine/events"
	"creditengine/models"

	"github.com/stretchr/testify/mock"
)

// MockCreditCategoryRepository is a mock implementation of CreditCategoryRepository
type MockCreditCategoryRepository struct {
	mock.Mock
}

func (m *MockCreditCategoryRepository) Create(ctx context.Context, category *models.CreditCategory) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCreditCategoryRepository) Update(ctx context.Context, category *models.CreditCategory) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}

func (m *MockCreditCategoryRepository) GetByID(ctx context.Context, id int64) (*models.CreditCategory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditCategory), args.Error(1)
}

func (m *MockCreditCategoryRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.CreditCategory, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CreditCategory), args.Error(1)
}

func (m *MockCreditCategoryRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.CreditCategory, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditCategory), args.Error(1)
}

func (m *MockCreditCategoryRepository) ListByEvent(ctx context.Context, eventID int64, includeArchived bool) ([]*models.CreditCategory, error) {
	args := m.Called(ctx, eventID, includeArchived)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CreditCategory), args.Error(1)
}

func (m *MockCreditCategoryRepository) Archive(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCreditCategoryRepository) IsReferencedBySession(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockAwardPackageRepository is a mock implementation of AwardPackageRepository
type MockAwardPackageRepository struct {
	mock.Mock
}

func (m *MockAwardPackageRepository) Create(ctx context.Context, pkg *models.AwardPackage) error {
	args := m.Called(ctx, pkg)
	return args.Error(0)
}

func (m *MockAwardPackageRepository) Update(ctx context.Context, pkg *models.AwardPackage) error {
	args := m.Called(ctx, pkg)
	return args.Error(0)
}

func (m *MockAwardPackageRepository) GetByID(ctx context.Context, id int64) (*models.AwardPackage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AwardPackage), args.Error(1)
}

func (m *MockAwardPackageRepository) ListByEvent(ctx context.Context, eventID int64, includeArchived bool) ([]*models.AwardPackage, error) {
	args := m.Called(ctx, eventID, includeArchived)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AwardPackage), args.Error(1)
}

func (m *MockAwardPackageRepository) Archive(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAwardPackageRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAwardPackageRepository) LinkCategory(ctx context.Context, packageID, categoryID int64) error {
	args := m.Called(ctx, packageID, categoryID)
	return args.Error(0)
}

func (m *MockAwardPackageRepository) UnlinkCategory(ctx context.Context, packageID, categoryID int64) (bool, error) {
	args := m.Called(ctx, packageID, categoryID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAwardPackageRepository) GetActivePackageForCategory(ctx context.Context, categoryID, excludePackageID int64) (*models.AwardPackage, error) {
	args := m.Called(ctx, categoryID, excludePackageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AwardPackage), args.Error(1)
}

func (m *MockAwardPackageRepository) HasExecutions(ctx context.Context, packageID int64) (bool, error) {
	args := m.Called(ctx, packageID)
	return args.Bool(0), args.Error(1)
}

// MockGrantRepository is a mock implementation of GrantRepository
type MockGrantRepository struct {
	mock.Mock
}

func (m *MockGrantRepository) Create(ctx context.Context, grant *models.Grant) error {
	args := m.Called(ctx, grant)
	return args.Error(0)
}

func (m *MockGrantRepository) GetByID(ctx context.Context, id int64) (*models.Grant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Grant), args.Error(1)
}

func (m *MockGrantRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.Grant, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Grant), args.Error(1)
}

func (m *MockGrantRepository) Archive(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGrantRepository) ArchiveByPackage(ctx context.Context, packageID int64) (int64, error) {
	args := m.Called(ctx, packageID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGrantRepository) UpdateNextRunAt(ctx context.Context, id int64, nextRunAt time.Time) error {
	args := m.Called(ctx, id, nextRunAt)
	return args.Error(0)
}

func (m *MockGrantRepository) GetDue(ctx context.Context, now time.Time) ([]*models.Grant, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Grant), args.Error(1)
}

func (m *MockGrantRepository) GetCompletedDue(ctx context.Context, now time.Time) ([]*models.Grant, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Grant), args.Error(1)
}

// MockExecutionLogRepository is a mock implementation of ExecutionLogRepository
type MockExecutionLogRepository struct {
	mock.Mock
}

func (m *MockExecutionLogRepository) Create(ctx context.Context, log *models.GrantExecutionLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockExecutionLogRepository) GetByID(ctx context.Context, id int64) (*models.GrantExecutionLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GrantExecutionLog), args.Error(1)
}

func (m *MockExecutionLogRepository) Finish(ctx context.Context, id int64, finishedAt time.Time, failureReason *string) error {
	args := m.Called(ctx, id, finishedAt, failureReason)
	return args.Error(0)
}

func (m *MockExecutionLogRepository) ListByEvent(ctx context.Context, eventID int64) ([]*models.ExecutionSummary, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ExecutionSummary), args.Error(1)
}

func (m *MockExecutionLogRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	args := m.Called(ctx, packageID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAwardRepository is a mock implementation of AwardRepository
type MockAwardRepository struct {
	mock.Mock
}

func (m *MockAwardRepository) Insert(ctx context.Context, award *models.AwardedRecord) error {
	args := m.Called(ctx, award)
	return args.Error(0)
}

func (m *MockAwardRepository) GetByID(ctx context.Context, id int64) (*models.AwardedRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AwardedRecord), args.Error(1)
}

func (m *MockAwardRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockAwardRepository) ListByExecution(ctx context.Context, executionLogID int64) ([]*models.AwardedRecord, error) {
	args := m.Called(ctx, executionLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AwardedRecord), args.Error(1)
}

func (m *MockAwardRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	args := m.Called(ctx, packageID)
	return args.Get(0).(int64), args.Error(1)
}

// MockDeclinedRecordRepository is a mock implementation of DeclinedRecordRepository
type MockDeclinedRecordRepository struct {
	mock.Mock
}

func (m *MockDeclinedRecordRepository) Insert(ctx context.Context, declined *models.DeclinedRecord) error {
	args := m.Called(ctx, declined)
	return args.Error(0)
}

func (m *MockDeclinedRecordRepository) ListByExecution(ctx context.Context, executionLogID int64) ([]*models.DeclinedRecord, error) {
	args := m.Called(ctx, executionLogID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DeclinedRecord), args.Error(1)
}

func (m *MockDeclinedRecordRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	args := m.Called(ctx, packageID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAwardExceptionRepository is a mock implementation of AwardExceptionRepository
type MockAwardExceptionRepository struct {
	mock.Mock
}

func (m *MockAwardExceptionRepository) Upsert(ctx context.Context, exception *models.AwardException) error {
	args := m.Called(ctx, exception)
	return args.Error(0)
}

func (m *MockAwardExceptionRepository) GetByID(ctx context.Context, id int64) (*models.AwardException, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AwardException), args.Error(1)
}

func (m *MockAwardExceptionRepository) ListByPackage(ctx context.Context, packageID int64) ([]*models.AwardException, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AwardException), args.Error(1)
}

func (m *MockAwardExceptionRepository) Delete(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAwardExceptionRepository) DeleteByPackage(ctx context.Context, packageID int64) (int64, error) {
	args := m.Called(ctx, packageID)
	return args.Get(0).(int64), args.Error(1)
}

// MockAttendanceRepository is a mock implementation of AttendanceRepository
type MockAttendanceRepository struct {
	mock.Mock
}

func (m *MockAttendanceRepository) ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]*models.CandidateFacts, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CandidateFacts), args.Error(1)
}

func (m *MockAttendanceRepository) SetDoNotAward(ctx context.Context, contestantID, sessionID int64, value bool) error {
	args := m.Called(ctx, contestantID, sessionID, value)
	return args.Error(0)
}

func (m *MockAttendanceRepository) ClearDoNotAwardForPackage(ctx context.Context, packageID int64) (int64, error) {
	args := m.Called(ctx, packageID)
	return args.Get(0).(int64), args.Error(1)
}

// MockGrantLocker is a mock implementation of GrantLocker
type MockGrantLocker struct {
	mock.Mock
}

func (m *MockGrantLocker) TryLock(ctx context.Context, grantID int64) (func(), error) {
	args := m.Called(ctx, grantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(func()), args.Error(1)
}

// MockGrantExecutor is a mock implementation of GrantExecutor
type MockGrantExecutor struct {
	mock.Mock
}

func (m *MockGrantExecutor) Execute(ctx context.Context, grantID int64, testMode bool) (*models.ExecutionResult, error) {
	args := m.Called(ctx, grantID, testMode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExecutionResult), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockRepositories groups the repositories a MockUnitOfWork hands out
type MockRepositories struct {
	Categories *MockCreditCategoryRepository
	Packages   *MockAwardPackageRepository
	Grants     *MockGrantRepository
	Logs       *MockExecutionLogRepository
	Awards     *MockAwardRepository
	Declines   *MockDeclinedRecordRepository
	Exceptions *MockAwardExceptionRepository
	Attendance *MockAttendanceRepository
	EventBus   *MockEventPublisher
}

// NewMockRepositories creates a full set of empty repository mocks
func NewMockRepositories() *MockRepositories {
	return &MockRepositories{
		Categories: new(MockCreditCategoryRepository),
		Packages:   new(MockAwardPackageRepository),
		Grants:     new(MockGrantRepository),
		Logs:       new(MockExecutionLogRepository),
		Awards:     new(MockAwardRepository),
		Declines:   new(MockDeclinedRecordRepository),
		Exceptions: new(MockAwardExceptionRepository),
		Attendance: new(MockAttendanceRepository),
		EventBus:   new(MockEventPublisher),
	}
}

// AssertExpectations asserts every repository mock
func (r *MockRepositories) AssertExpectations(t mock.TestingT) {
	r.Categories.AssertExpectations(t)
	r.Packages.AssertExpectations(t)
	r.Grants.AssertExpectations(t)
	r.Logs.AssertExpectations(t)
	r.Awards.AssertExpectations(t)
	r.Declines.AssertExpectations(t)
	r.Exceptions.AssertExpectations(t)
	r.Attendance.AssertExpectations(t)
	r.EventBus.AssertExpectations(t)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	repos *MockRepositories
}

// SetRepositories wires the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(repos *MockRepositories) {
	m.repos = repos
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) CreditCategoryRepository() CreditCategoryRepository {
	return m.repos.Categories
}

func (m *MockUnitOfWork) AwardPackageRepository() AwardPackageRepository {
	return m.repos.Packages
}

func (m *MockUnitOfWork) GrantRepository() GrantRepository {
	return m.repos.Grants
}

func (m *MockUnitOfWork) ExecutionLogRepository() ExecutionLogRepository {
	return m.repos.Logs
}

func (m *MockUnitOfWork) AwardRepository() AwardRepository {
	return m.repos.Awards
}

func (m *MockUnitOfWork) DeclinedRecordRepository() DeclinedRecordRepository {
	return m.repos.Declines
}

func (m *MockUnitOfWork) AwardExceptionRepository() AwardExceptionRepository {
	return m.repos.Exceptions
}

func (m *MockUnitOfWork) AttendanceRepository() AttendanceRepository {
	return m.repos.Attendance
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.repos.EventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
