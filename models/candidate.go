package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripleKey identifies one (contestant, session, category) credit slot
type TripleKey struct {
	ContestantID int64
	SessionID    int64
	CategoryID   int64
}

// CandidateFilter narrows the candidate population of a package.
// Nil fields do not filter.
type CandidateFilter struct {
	PackageID    int64
	CategoryID   *int64
	SessionID    *int64
	ContestantID *int64
}

// CandidateFacts are the external attendance facts for one not-yet-awarded triple
type CandidateFacts struct {
	TripleKey
	CreditValue         decimal.Decimal `db:"credit_value"`
	ProfileID           *int64          `db:"profile_id"`
	JurisdictionCode    *string         `db:"jurisdiction_code"`
	EventCheckedInAt    *time.Time      `db:"event_checked_in_at"`
	SessionCheckedInAt  *time.Time      `db:"checked_in_at"`
	SessionCheckedOutAt *time.Time      `db:"checked_out_at"`
	BalanceDue          decimal.Decimal `db:"balance_due"`
	SurveyResponded     bool            `db:"survey_responded"`
	SessionHasSurvey    bool            `db:"has_survey"`
	DoNotAward          bool            `db:"do_not_award"`
}

// Candidate is an evaluated triple
type Candidate struct {
	TripleKey
	CreditValue   decimal.Decimal
	AttendanceMet bool
	PaymentMet    bool
	SurveyMet     bool
	ByException   bool
}

// Evaluation is the award/decline split for a package
type Evaluation struct {
	PackageID int64
	ToAward   []*Candidate
	ToDecline []*Candidate
}
