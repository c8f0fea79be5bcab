package service

import (
	"context"
	"errors"
	"testing"

	"creditengine/events"
	"creditengine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type executorFixture struct {
	factory  *MockUnitOfWorkFactory
	uow      *MockUnitOfWork
	repos    *MockRepositories
	locker   *MockGrantLocker
	released bool
	grant    *models.Grant
	pkg      *models.AwardPackage
}

// newExecutorFixture prepares a grant over package 9 whose single category 10
// is unrestricted and whose criteria require a session check-in
func newExecutorFixture(candidates ...*models.CandidateFacts) *executorFixture {
	factory, uow, repos := newMockUoW()
	f := &executorFixture{
		factory: factory,
		uow:     uow,
		repos:   repos,
		locker:  new(MockGrantLocker),
		grant:   &models.Grant{ID: 1, EventID: 7, PackageID: 9, RunType: models.RunTypeOnce, Notify: true},
		pkg:     &models.AwardPackage{
			ID:                  9,
			EventID:             7,
			AttendanceCriterion: models.AttendanceSessionCheckIn,
			CategoryIDs:         []int64{10},
		},
	}

	f.locker.On("TryLock", mock.Anything, int64(1)).Return(func() { f.released = true }, nil)
	repos.Grants.On("GetByID", mock.Anything, int64(1)).Return(f.grant, nil)
	repos.Logs.On("Create", mock.Anything, mock.AnythingOfType("*models.GrantExecutionLog")).Run(func(args mock.Arguments) {
		args.Get(1).(*models.GrantExecutionLog).ID = 55
	}).Return(nil)
	repos.Packages.On("GetByID", mock.Anything, int64(9)).Return(f.pkg, nil)
	repos.Categories.On("GetByIDs", mock.Anything, []int64{10}).Return([]*models.CreditCategory{{ID: 10, EventID: 7}}, nil)
	repos.Exceptions.On("ListByPackage", mock.Anything, int64(9)).Return([]*models.AwardException{}, nil)
	repos.Attendance.On("ListCandidates", mock.Anything, models.CandidateFilter{PackageID: 9}).Return(candidates, nil)
	return f
}

func attended(contestantID, sessionID int64) *models.CandidateFacts {
	f := facts(contestantID, sessionID, 10)
	f.SessionCheckedInAt = checkedIn()
	return f
}

func publishedEvent(t *testing.T, repos *MockRepositories) events.GrantExecutedEvent {
	t.Helper()
	for _, call := range repos.EventBus.Calls {
		if e, ok := call.Arguments.Get(0).(events.GrantExecutedEvent); ok {
			return e
		}
	}
	t.Fatal("no GrantExecutedEvent published")
	return events.GrantExecutedEvent{}
}

func TestExecutor_Execute_WritesAwardsAndDeclinesInBatches(t *testing.T) {
	f := newExecutorFixture(attended(1, 100), attended(2, 100), attended(3, 100), facts(4, 100, 10))
	f.repos.Awards.On("Insert", mock.Anything, mock.AnythingOfType("*models.AwardedRecord")).Return(nil)
	f.repos.Declines.On("Insert", mock.Anything, mock.MatchedBy(func(d *models.DeclinedRecord) bool {
		return d.ContestantID == 4 && !d.AttendanceMet && d.PaymentMet && d.SurveyMet && d.ExecutionLogID == 55
	})).Return(nil)
	f.repos.Logs.On("Finish", mock.Anything, int64(55), mock.Anything, (*string)(nil)).Return(nil)
	f.repos.EventBus.On("Publish", mock.Anything).Return()

	exec := NewExecutor(f.factory, f.locker, 2)
	result, err := exec.Execute(context.Background(), 1, false)

	require.NoError(t, err)
	assert.Equal(t, int64(55), result.LogID)
	assert.Equal(t, 3, result.AwardedCount)
	assert.Equal(t, 1, result.DeclinedCount)
	assert.Zero(t, result.DuplicateCount)
	assert.True(t, f.released)

	// one log commit, two batch commits, one finish commit
	f.uow.AssertNumberOfCalls(t, "Commit", 4)

	event := publishedEvent(t, f.repos)
	assert.Equal(t, int64(55), event.ExecutionLogID)
	assert.Equal(t, 3, event.AwardedCount)
	assert.Len(t, event.Awards, 3)
	assert.True(t, event.Notify)
	assert.False(t, event.Failed)
	f.repos.AssertExpectations(t)
}

func TestExecutor_Execute_CountsDuplicates(t *testing.T) {
	f := newExecutorFixture(attended(1, 100), attended(2, 100))
	f.repos.Awards.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AwardedRecord) bool {
		return a.ContestantID == 1
	})).Return(models.ErrDuplicateAward)
	f.repos.Awards.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AwardedRecord) bool {
		return a.ContestantID == 2
	})).Return(nil)
	f.repos.Logs.On("Finish", mock.Anything, int64(55), mock.Anything, (*string)(nil)).Return(nil)
	f.repos.EventBus.On("Publish", mock.Anything).Return()

	exec := NewExecutor(f.factory, f.locker, 10)
	result, err := exec.Execute(context.Background(), 1, false)

	require.NoError(t, err)
	assert.Equal(t, 1, result.AwardedCount)
	assert.Equal(t, 1, result.DuplicateCount)
	require.Len(t, result.Awards, 1)
	assert.Equal(t, int64(2), result.Awards[0].ContestantID)
}

func TestExecutor_Execute_TestModeUsesLowestContestant(t *testing.T) {
	f := newExecutorFixture(attended(8, 100), attended(3, 100), facts(3, 101, 10), attended(5, 100))
	f.repos.Awards.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AwardedRecord) bool {
		return a.ContestantID == 3
	})).Return(nil)
	f.repos.Declines.On("Insert", mock.Anything, mock.MatchedBy(func(d *models.DeclinedRecord) bool {
		return d.ContestantID == 3 && d.SessionID == 101
	})).Return(nil)
	f.repos.Logs.On("Finish", mock.Anything, int64(55), mock.Anything, (*string)(nil)).Return(nil)
	f.repos.EventBus.On("Publish", mock.Anything).Return()

	exec := NewExecutor(f.factory, f.locker, 10)
	result, err := exec.Execute(context.Background(), 1, true)

	require.NoError(t, err)
	assert.Equal(t, 1, result.AwardedCount)
	assert.Equal(t, 1, result.DeclinedCount)
	f.repos.Logs.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(l *models.GrantExecutionLog) bool {
		return l.TestMode
	}))
	assert.True(t, publishedEvent(t, f.repos).TestMode)
}

func TestExecutor_Execute_ArgumentDecidesTestMode(t *testing.T) {
	f := newExecutorFixture(attended(8, 100), attended(3, 100))
	f.grant.TestMode = true
	f.repos.Awards.On("Insert", mock.Anything, mock.AnythingOfType("*models.AwardedRecord")).Return(nil)
	f.repos.Logs.On("Finish", mock.Anything, int64(55), mock.Anything, (*string)(nil)).Return(nil)
	f.repos.EventBus.On("Publish", mock.Anything).Return()

	exec := NewExecutor(f.factory, f.locker, 10)
	result, err := exec.Execute(context.Background(), 1, false)

	require.NoError(t, err)
	assert.Equal(t, 2, result.AwardedCount)
	f.repos.Awards.AssertNumberOfCalls(t, "Insert", 2)
	f.repos.Logs.AssertCalled(t, "Create", mock.Anything, mock.MatchedBy(func(l *models.GrantExecutionLog) bool {
		return !l.TestMode
	}))
	assert.False(t, publishedEvent(t, f.repos).TestMode)
}

func TestExecutor_Execute_FailureKeepsCommittedBatches(t *testing.T) {
	f := newExecutorFixture(attended(1, 100), attended(2, 100), attended(3, 100))
	dbErr := errors.New("deadlock detected")
	f.repos.Awards.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AwardedRecord) bool {
		return a.ContestantID != 3
	})).Return(nil)
	f.repos.Awards.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AwardedRecord) bool {
		return a.ContestantID == 3
	})).Return(dbErr)
	f.repos.Logs.On("Finish", mock.Anything, int64(55), mock.Anything, mock.MatchedBy(func(reason *string) bool {
		return reason != nil && *reason == "deadlock detected"
	})).Return(nil)
	f.repos.EventBus.On("Publish", mock.Anything).Return()

	exec := NewExecutor(f.factory, f.locker, 2)
	result, err := exec.Execute(context.Background(), 1, false)

	assert.ErrorIs(t, err, dbErr)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.AwardedCount)
	event := publishedEvent(t, f.repos)
	assert.True(t, event.Failed)
	assert.Equal(t, 2, event.AwardedCount)
	assert.True(t, f.released)
}

func TestExecutor_Execute_CancellationStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newExecutorFixture(attended(1, 100), attended(2, 100), attended(3, 100))
	f.repos.Awards.On("Insert", mock.Anything, mock.AnythingOfType("*models.AwardedRecord")).Run(func(args mock.Arguments) {
		if args.Get(1).(*models.AwardedRecord).ContestantID == 2 {
			cancel()
		}
	}).Return(nil)
	f.repos.Logs.On("Finish", mock.Anything, int64(55), mock.Anything, mock.MatchedBy(func(reason *string) bool {
		return reason != nil
	})).Return(nil)
	f.repos.EventBus.On("Publish", mock.Anything).Return()

	exec := NewExecutor(f.factory, f.locker, 2)
	result, err := exec.Execute(ctx, 1, false)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.AwardedCount)
	f.repos.Awards.AssertNumberOfCalls(t, "Insert", 2)
	f.repos.Logs.AssertCalled(t, "Finish", mock.Anything, int64(55), mock.Anything, mock.Anything)
}

func TestExecutor_Execute_BusyGrant(t *testing.T) {
	factory := new(MockUnitOfWorkFactory)
	locker := new(MockGrantLocker)
	locker.On("TryLock", mock.Anything, int64(1)).Return(nil, models.ErrGrantBusy)

	exec := NewExecutor(factory, locker, 10)
	result, err := exec.Execute(context.Background(), 1, false)

	assert.ErrorIs(t, err, models.ErrGrantBusy)
	assert.Nil(t, result)
	factory.AssertNotCalled(t, "Create")
}

func TestExecutor_Execute_ArchivedGrant(t *testing.T) {
	f := newExecutorFixture()
	f.grant.Archived = true

	exec := NewExecutor(f.factory, f.locker, 10)
	_, err := exec.Execute(context.Background(), 1, false)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	f.repos.Logs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.True(t, f.released)
}

func TestExecutor_Execute_ArchivedPackage(t *testing.T) {
	f := newExecutorFixture(attended(1, 100))
	f.pkg.Archived = true

	exec := NewExecutor(f.factory, f.locker, 10)
	result, err := exec.Execute(context.Background(), 1, false)

	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Nil(t, result)
	f.repos.Logs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.repos.Awards.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	assert.True(t, f.released)
}

func TestExecutor_Execute_MissingGrant(t *testing.T) {
	factory, _, repos := newMockUoW()
	locker := new(MockGrantLocker)
	locker.On("TryLock", mock.Anything, int64(2)).Return(func() {}, nil)
	repos.Grants.On("GetByID", mock.Anything, int64(2)).Return(nil, nil)

	exec := NewExecutor(factory, locker, 10)
	_, err := exec.Execute(context.Background(), 2, false)

	assert.ErrorIs(t, err, models.ErrNotFound)
}
