package models

import "time"

// AwardException is an administrator override forcing eligibility for one
// (contestant, session, category) triple under a package
type AwardException struct {
	ID            int64     `db:"id"`
	ContestantID  int64     `db:"contestant_id"`
	PackageID     int64     `db:"package_id"`
	CategoryID    int64     `db:"category_id"`
	SessionID     int64     `db:"session_id"`
	Justification string    `db:"justification"`
	AdminUserID   int64     `db:"admin_user_id"`
	CreatedAt     time.Time `db:"created_at"`
}

// Key returns the triple the exception applies to
func (e *AwardException) Key() TripleKey {
	return TripleKey{ContestantID: e.ContestantID, SessionID: e.SessionID, CategoryID: e.CategoryID}
}
