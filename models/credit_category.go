package models

import (
	"slices"
	"time"
)

// CreditCategory is a named class of continuing-education credit scoped by
// attendee profile and jurisdiction. Empty sets are unrestricted.
type CreditCategory struct {
	ID                int64     `db:"id"`
	EventID           int64     `db:"event_id"`
	Name              string    `db:"name"`
	Code              string    `db:"code"`
	Description       string    `db:"description"`
	Archived          bool      `db:"archived"`
	ProfileIDs        []int64   `db:"-"`
	JurisdictionCodes []string  `db:"-"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// Admits reports whether an attendee with the given profile and jurisdiction
// may receive credit in this category
func (c *CreditCategory) Admits(profileID *int64, jurisdictionCode *string) bool {
	if len(c.ProfileIDs) > 0 {
		if profileID == nil || !slices.Contains(c.ProfileIDs, *profileID) {
			return false
		}
	}
	if len(c.JurisdictionCodes) > 0 {
		if jurisdictionCode == nil || !slices.Contains(c.JurisdictionCodes, *jurisdictionCode) {
			return false
		}
	}
	return true
}
