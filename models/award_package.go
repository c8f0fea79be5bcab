package models

import "time"

// AttendanceCriterion is the attendance evidence a package requires
type AttendanceCriterion string

const (
	AttendanceNone                 AttendanceCriterion = "none"
	AttendanceEventCheckIn         AttendanceCriterion = "event_check_in"
	AttendanceSessionCheckIn       AttendanceCriterion = "session_check_in"
	AttendanceSessionCheckInAndOut AttendanceCriterion = "session_check_in_and_out"
)

// IsValid reports whether the criterion is one of the known values
func (a AttendanceCriterion) IsValid() bool {
	switch a {
	case AttendanceNone, AttendanceEventCheckIn, AttendanceSessionCheckIn, AttendanceSessionCheckInAndOut:
		return true
	}
	return false
}

// AwardPackage is a named bundle of eligibility criteria bound to one or more credit categories
type AwardPackage struct {
	ID                    int64               `db:"id"`
	EventID               int64               `db:"event_id"`
	Name                  string              `db:"name"`
	AttendanceCriterion   AttendanceCriterion `db:"attendance_criterion"`
	PaymentInFullRequired bool                `db:"payment_in_full_required"`
	SurveyRequired        bool                `db:"survey_required"`
	Archived              bool                `db:"archived"`
	CategoryIDs           []int64             `db:"-"`
	CreatedAt             time.Time           `db:"created_at"`
	UpdatedAt             time.Time           `db:"updated_at"`
}
