package testutil

import (
	"context"
	"testing"
	"time"

	"creditengine/database"
	"creditengine/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Contestant describes a registrant seeded into the upstream contestants table
type Contestant struct {
	EventID          int64
	ProfileID        *int64
	JurisdictionCode *string
	EventCheckedIn   bool
	BalanceDue       decimal.Decimal
}

// Registration describes one contestant's registration for a session
type Registration struct {
	ContestantID    int64
	SessionID       int64
	Incomplete      bool
	Scratched       bool
	CheckedIn       bool
	CheckedOut      bool
	SurveyResponded bool
	DoNotAward      bool
}

// CheckInTime is the attendance timestamp every seeded check-in uses
var CheckInTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func stamp(set bool) *time.Time {
	if !set {
		return nil
	}
	t := CheckInTime
	return &t
}

// InsertContestant seeds a contestant and returns its id
func InsertContestant(t *testing.T, db *database.DB, c Contestant) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO contestants (event_id, profile_id, jurisdiction_code, event_checked_in_at, balance_due)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.EventID, c.ProfileID, c.JurisdictionCode, stamp(c.EventCheckedIn), c.BalanceDue).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertSession seeds a session and returns its id
func InsertSession(t *testing.T, db *database.DB, eventID int64, name string, hasSurvey bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO sessions (event_id, name, has_survey)
		VALUES ($1, $2, $3)
		RETURNING id
	`, eventID, name, hasSurvey).Scan(&id)
	require.NoError(t, err)
	return id
}

// InsertSessionCredit attaches credit in a category to a session
func InsertSessionCredit(t *testing.T, db *database.DB, sessionID, categoryID int64, creditValue string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO session_credits (session_id, category_id, credit_value)
		VALUES ($1, $2, $3)
	`, sessionID, categoryID, decimal.RequireFromString(creditValue))
	require.NoError(t, err)
}

// InsertRegistration seeds a session registration
func InsertRegistration(t *testing.T, db *database.DB, r Registration) {
	t.Helper()
	status := "complete"
	if r.Incomplete {
		status = "incomplete"
	}
	_, err := db.Exec(context.Background(), `
		INSERT INTO registration_sessions
			(contestant_id, session_id, status, scratched, checked_in_at, checked_out_at, survey_responded, do_not_award)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ContestantID, r.SessionID, status, r.Scratched, stamp(r.CheckedIn), stamp(r.CheckedOut), r.SurveyResponded, r.DoNotAward)
	require.NoError(t, err)
}

// DoNotAward reads the flag of one registration
func DoNotAward(t *testing.T, db *database.DB, contestantID, sessionID int64) bool {
	t.Helper()
	var flag bool
	err := db.QueryRow(context.Background(), `
		SELECT do_not_award FROM registration_sessions WHERE contestant_id = $1 AND session_id = $2
	`, contestantID, sessionID).Scan(&flag)
	require.NoError(t, err)
	return flag
}

// CountRows counts the rows of a table
func CountRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	err := db.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n)
	require.NoError(t, err)
	return n
}

// CreateTestCategory builds an unrestricted category
func CreateTestCategory(eventID int64, code string) *models.CreditCategory {
	return &models.CreditCategory{
		EventID: eventID,
		Name:    code + " credit",
		Code:    code,
	}
}

// CreateTestPackage builds a package with the given attendance criterion
func CreateTestPackage(eventID int64, criterion models.AttendanceCriterion) *models.AwardPackage {
	return &models.AwardPackage{
		EventID:             eventID,
		Name:                "Package " + string(criterion),
		AttendanceCriterion: criterion,
	}
}

// CreateTestGrant builds a once grant for a package
func CreateTestGrant(eventID, packageID int64) *models.Grant {
	return &models.Grant{
		EventID:   eventID,
		PackageID: packageID,
		AdminID:   1,
		RunType:   models.RunTypeOnce,
		NextRunAt: time.Now().UTC(),
	}
}
