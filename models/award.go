package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AwardedRecord is a granted credit. At most one exists per (contestant, session, category).
type AwardedRecord struct {
	ID             int64           `db:"id"`
	ExecutionLogID int64           `db:"execution_log_id"`
	ContestantID   int64           `db:"contestant_id"`
	SessionID      int64           `db:"session_id"`
	CategoryID     int64           `db:"category_id"`
	CreditValue    decimal.Decimal `db:"credit_value"`
	CreatedAt      time.Time       `db:"created_at"`
}

// Key returns the uniqueness key of the award
func (a *AwardedRecord) Key() TripleKey {
	return TripleKey{ContestantID: a.ContestantID, SessionID: a.SessionID, CategoryID: a.CategoryID}
}

// DeclinedRecord is an evaluated-and-ineligible outcome kept for audit.
// It never blocks a later award of the same triple.
type DeclinedRecord struct {
	ID             int64     `db:"id"`
	ExecutionLogID int64     `db:"execution_log_id"`
	ContestantID   int64     `db:"contestant_id"`
	SessionID      int64     `db:"session_id"`
	CategoryID     int64     `db:"category_id"`
	AttendanceMet  bool      `db:"attendance_met"`
	PaymentMet     bool      `db:"payment_met"`
	SurveyMet      bool      `db:"survey_met"`
	CreatedAt      time.Time `db:"created_at"`
}
