package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"creditengine/database"
	"creditengine/events"
	"creditengine/models"
	"creditengine/repository/testutil"
	"creditengine/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// creditFixture is one event with a session check-in package over a single
// CLE category offered by two sessions
type creditFixture struct {
	db *database.DB

	catalog    service.CatalogService
	exceptions service.ExceptionService
	grants     service.GrantService
	revocation service.RevocationService
	history    service.HistoryService

	pkg      *models.AwardPackage
	category *models.CreditCategory
	grant    *models.Grant

	alice, bob, carol int64
	morning, evening  int64

	mu       sync.Mutex
	executed []events.GrantExecutedEvent
}

func setupCreditFixture(t *testing.T) *creditFixture {
	testDB := testutil.SetupTestDatabase(t)
	db := testDB.DB
	ctx := context.Background()

	f := &creditFixture{db: db}
	bus := events.NewBus()
	bus.Subscribe(events.EventTypeGrantExecuted, func(_ context.Context, e events.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.executed = append(f.executed, e.(events.GrantExecutedEvent))
	})

	uowFactory := NewUnitOfWorkFactory(db, bus)
	executor := service.NewExecutor(uowFactory, NewGrantLock(db), 2)
	f.catalog = service.NewCatalogService(uowFactory)
	f.exceptions = service.NewExceptionService(uowFactory)
	f.grants = service.NewGrantService(uowFactory, executor, "@daily")
	f.revocation = service.NewRevocationService(uowFactory)
	f.history = service.NewHistoryService(uowFactory)

	var err error
	f.category, err = f.catalog.CreateCategory(ctx, service.CategoryInput{EventID: 7, Name: "Legal", Code: "CLE"})
	require.NoError(t, err)

	f.morning = testutil.InsertSession(t, db, 7, "Morning", false)
	f.evening = testutil.InsertSession(t, db, 7, "Evening", false)
	testutil.InsertSessionCredit(t, db, f.morning, f.category.ID, "1.0")
	testutil.InsertSessionCredit(t, db, f.evening, f.category.ID, "2.5")

	f.alice = testutil.InsertContestant(t, db, testutil.Contestant{EventID: 7})
	f.bob = testutil.InsertContestant(t, db, testutil.Contestant{EventID: 7})
	f.carol = testutil.InsertContestant(t, db, testutil.Contestant{EventID: 7})

	testutil.InsertRegistration(t, db, testutil.Registration{ContestantID: f.alice, SessionID: f.morning, CheckedIn: true})
	testutil.InsertRegistration(t, db, testutil.Registration{ContestantID: f.alice, SessionID: f.evening, CheckedIn: true})
	testutil.InsertRegistration(t, db, testutil.Registration{ContestantID: f.bob, SessionID: f.morning, CheckedIn: true})
	testutil.InsertRegistration(t, db, testutil.Registration{ContestantID: f.bob, SessionID: f.evening})
	testutil.InsertRegistration(t, db, testutil.Registration{ContestantID: f.carol, SessionID: f.morning, CheckedIn: true, Scratched: true})

	f.pkg, err = f.catalog.CreatePackage(ctx, service.PackageInput{
		EventID:             7,
		Name:                "Attended sessions",
		AttendanceCriterion: models.AttendanceSessionCheckIn,
		CategoryIDs:         []int64{f.category.ID},
	})
	require.NoError(t, err)

	f.grant, _, err = f.grants.CreateGrant(ctx, service.GrantInput{
		EventID:   7,
		PackageID: f.pkg.ID,
		AdminID:   1,
		RunType:   models.RunTypeOnce,
		Notify:    true,
	})
	require.NoError(t, err)

	return f
}

func (f *creditFixture) executedEvents() []events.GrantExecutedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.GrantExecutedEvent(nil), f.executed...)
}

func TestGrantExecution_EndToEnd(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	// first run awards alice twice and bob's morning, declines bob's evening
	first, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, first.AwardedCount)
	assert.Equal(t, 1, first.DeclinedCount)

	detail, err := f.history.ExecutionDetail(ctx, first.LogID)
	require.NoError(t, err)
	require.NotNil(t, detail.Log.FinishedAt)
	assert.Nil(t, detail.Log.FailureReason)
	assert.Len(t, detail.Awarded, 3)
	require.Len(t, detail.Declined, 1)
	assert.Equal(t, f.bob, detail.Declined[0].ContestantID)
	assert.False(t, detail.Declined[0].AttendanceMet)

	// the hand-off event is emitted after commit
	assert.Eventually(t, func() bool { return len(f.executedEvents()) == 1 }, 5*time.Second, 20*time.Millisecond)
	handoff := f.executedEvents()[0]
	assert.Equal(t, first.LogID, handoff.ExecutionLogID)
	assert.Len(t, handoff.Awards, 3)
	assert.True(t, handoff.Notify)

	// a rerun awards nothing new
	second, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	assert.Zero(t, second.AwardedCount)
	assert.Equal(t, 1, second.DeclinedCount)

	// an exception overrides bob's missing check-in
	_, err = f.exceptions.AddException(ctx, service.ExceptionInput{
		ContestantID:  f.bob,
		PackageID:     f.pkg.ID,
		CategoryID:    f.category.ID,
		SessionID:     f.evening,
		Justification: "Badge scanner outage",
		AdminUserID:   1,
	})
	require.NoError(t, err)

	third, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, third.AwardedCount)
	assert.Zero(t, third.DeclinedCount)

	// unawarding suppresses the triple on later runs
	var aliceMorning *models.AwardedRecord
	for _, a := range detail.Awarded {
		if a.ContestantID == f.alice && a.SessionID == f.morning {
			aliceMorning = a
		}
	}
	require.NotNil(t, aliceMorning)
	require.NoError(t, f.revocation.Unaward(ctx, aliceMorning.ID))

	fourth, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	assert.Zero(t, fourth.AwardedCount)
	assert.Zero(t, fourth.DeclinedCount)

	err = f.revocation.Unaward(ctx, aliceMorning.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	history, err := f.history.ExecutionHistory(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, history, 4)

	// reset rewinds the package to a never-run state
	reset, err := f.revocation.ResetPackage(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), reset.AwardsDeleted)
	assert.Equal(t, int64(2), reset.DeclinesDeleted)
	assert.Equal(t, int64(4), reset.LogsDeleted)
	assert.Equal(t, int64(1), reset.ExceptionsDeleted)
	assert.Equal(t, int64(1), reset.FlagsCleared)

	again, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, again.AwardedCount)
	assert.Equal(t, 1, again.DeclinedCount)

	// the package has history now and can no longer be deleted
	err = f.catalog.DeletePackage(ctx, f.pkg.ID)
	assert.ErrorIs(t, err, models.ErrInUseConflict)
}

func TestGrantExecution_TestModeWritesOneContestant(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	result, err := f.grants.RunGrantNow(ctx, f.grant.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AwardedCount)
	assert.Zero(t, result.DeclinedCount)

	detail, err := f.history.ExecutionDetail(ctx, result.LogID)
	require.NoError(t, err)
	assert.True(t, detail.Log.TestMode)
	for _, a := range detail.Awarded {
		assert.Equal(t, f.alice, a.ContestantID)
	}

	// the same grant can later run for real
	live, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, live.AwardedCount)
	assert.Equal(t, 1, live.DeclinedCount)

	detail, err = f.history.ExecutionDetail(ctx, live.LogID)
	require.NoError(t, err)
	assert.False(t, detail.Log.TestMode)
}

func TestGrantExecution_CategoryBelongsToOneActivePackage(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	_, err := f.catalog.CreatePackage(ctx, service.PackageInput{
		EventID:             7,
		Name:                "Competing package",
		AttendanceCriterion: models.AttendanceNone,
		CategoryIDs:         []int64{f.category.ID},
	})
	assert.ErrorIs(t, err, models.ErrConfigurationConflict)

	// archiving the first package frees the category
	require.NoError(t, f.catalog.ArchivePackage(ctx, f.pkg.ID))
	pkg, err := f.catalog.CreatePackage(ctx, service.PackageInput{
		EventID:             7,
		Name:                "Replacement package",
		AttendanceCriterion: models.AttendanceNone,
		CategoryIDs:         []int64{f.category.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{f.category.ID}, pkg.CategoryIDs)

	// sessions still offer credit in the category
	err = f.catalog.ArchiveCategory(ctx, f.category.ID)
	assert.ErrorIs(t, err, models.ErrInUseConflict)
}

func TestGrantExecution_SweepRunsDueRecurringGrants(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-time.Hour)
	recurring, _, err := f.grants.CreateGrant(ctx, service.GrantInput{
		EventID:   7,
		PackageID: f.pkg.ID,
		AdminID:   1,
		RunType:   models.RunTypeRecurring,
		Schedule:  "@hourly",
		StartAt:   &start,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	result, err := f.grants.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Due)
	assert.Equal(t, 1, result.Executed)

	reloaded, err := f.grants.GetGrant(ctx, recurring.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.NextRunAt.After(now))

	// nothing is due until the next occurrence
	due, err := f.grants.DueGrants(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestGrantExecution_ArchivedPackageStopsItsGrants(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	start := time.Now().UTC().Add(-time.Hour)
	recurring, _, err := f.grants.CreateGrant(ctx, service.GrantInput{
		EventID:   7,
		PackageID: f.pkg.ID,
		AdminID:   1,
		RunType:   models.RunTypeRecurring,
		Schedule:  "@hourly",
		StartAt:   &start,
	})
	require.NoError(t, err)

	// archived outside the catalog, so the grant itself stays active
	_, err = f.db.Exec(ctx, `UPDATE award_packages SET archived = TRUE WHERE id = $1`, f.pkg.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	due, err := f.grants.DueGrants(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	result, err := f.grants.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, result.Due)
	assert.Zero(t, result.Executed)

	_, err = f.grants.RunGrantNow(ctx, recurring.ID, false)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Zero(t, testutil.CountRows(t, f.db, "awarded_records"))
	assert.Zero(t, testutil.CountRows(t, f.db, "grant_execution_logs"))

	// archiving through the catalog archives the grants with the package
	_, err = f.db.Exec(ctx, `UPDATE award_packages SET archived = FALSE WHERE id = $1`, f.pkg.ID)
	require.NoError(t, err)
	require.NoError(t, f.catalog.ArchivePackage(ctx, f.pkg.ID))

	grants, err := f.grants.ListGrants(ctx, 7)
	require.NoError(t, err)
	require.Len(t, grants, 2)
	for _, g := range grants {
		assert.True(t, g.Archived, "grant %d", g.ID)
	}
}

func TestGrantExecution_PaymentDeclineDoesNotBlockLaterAward(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	// move the category to a package requiring payment in full
	require.NoError(t, f.catalog.ArchivePackage(ctx, f.pkg.ID))
	pkg, err := f.catalog.CreatePackage(ctx, service.PackageInput{
		EventID:               7,
		Name:                  "Paid attendance",
		AttendanceCriterion:   models.AttendanceSessionCheckIn,
		PaymentInFullRequired: true,
		CategoryIDs:           []int64{f.category.ID},
	})
	require.NoError(t, err)
	grant, _, err := f.grants.CreateGrant(ctx, service.GrantInput{
		EventID:   7,
		PackageID: pkg.ID,
		AdminID:   1,
		RunType:   models.RunTypeOnce,
	})
	require.NoError(t, err)

	dave := testutil.InsertContestant(t, f.db, testutil.Contestant{EventID: 7, BalanceDue: decimal.RequireFromString("40.00")})
	testutil.InsertRegistration(t, f.db, testutil.Registration{ContestantID: dave, SessionID: f.morning, CheckedIn: true})

	first, err := f.grants.RunGrantNow(ctx, grant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, first.AwardedCount)
	assert.Equal(t, 2, first.DeclinedCount)

	detail, err := f.history.ExecutionDetail(ctx, first.LogID)
	require.NoError(t, err)
	var daveDeclined *models.DeclinedRecord
	for _, d := range detail.Declined {
		if d.ContestantID == dave {
			daveDeclined = d
		}
	}
	require.NotNil(t, daveDeclined)
	assert.True(t, daveDeclined.AttendanceMet)
	assert.False(t, daveDeclined.PaymentMet)

	// the balance is settled outside the engine
	_, err = f.db.Exec(ctx, `UPDATE contestants SET balance_due = 0 WHERE id = $1`, dave)
	require.NoError(t, err)

	second, err := f.grants.RunGrantNow(ctx, grant.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, second.AwardedCount)
	assert.Equal(t, 1, second.DeclinedCount)

	detail, err = f.history.ExecutionDetail(ctx, second.LogID)
	require.NoError(t, err)
	require.Len(t, detail.Awarded, 1)
	assert.Equal(t, dave, detail.Awarded[0].ContestantID)
	assert.Equal(t, f.morning, detail.Awarded[0].SessionID)
}

func TestGrantExecution_ResetClearsFlagsOfUnlinkedCategory(t *testing.T) {
	f := setupCreditFixture(t)
	ctx := context.Background()

	first, err := f.grants.RunGrantNow(ctx, f.grant.ID, false)
	require.NoError(t, err)
	detail, err := f.history.ExecutionDetail(ctx, first.LogID)
	require.NoError(t, err)

	var aliceMorning *models.AwardedRecord
	for _, a := range detail.Awarded {
		if a.ContestantID == f.alice && a.SessionID == f.morning {
			aliceMorning = a
		}
	}
	require.NotNil(t, aliceMorning)
	require.NoError(t, f.revocation.Unaward(ctx, aliceMorning.ID))
	require.True(t, testutil.DoNotAward(t, f.db, f.alice, f.morning))

	// the package moves on to another category before it is reset
	ethics, err := f.catalog.CreateCategory(ctx, service.CategoryInput{EventID: 7, Name: "Ethics", Code: "ETH"})
	require.NoError(t, err)
	require.NoError(t, f.catalog.LinkCategory(ctx, f.pkg.ID, ethics.ID))
	require.NoError(t, f.catalog.UnlinkCategory(ctx, f.pkg.ID, f.category.ID))

	reset, err := f.revocation.ResetPackage(ctx, f.pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset.FlagsCleared)
	assert.False(t, testutil.DoNotAward(t, f.db, f.alice, f.morning))
}
