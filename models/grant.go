package models

import "time"

// RunType determines how a grant is triggered
type RunType string

const (
	RunTypeOnce      RunType = "once"
	RunTypeRecurring RunType = "recurring"
)

// Grant is a configured, possibly recurring, instruction to evaluate and
// award credit for a package
type Grant struct {
	ID                    int64     `db:"id"`
	EventID               int64     `db:"event_id"`
	PackageID             int64     `db:"package_id"`
	AdminID               int64     `db:"admin_id"`
	CertificateTemplateID *int64    `db:"certificate_template_id"`
	EmailTemplateID       *int64    `db:"email_template_id"`
	Notify                bool      `db:"notify"`
	RunType               RunType   `db:"run_type"`
	Schedule              string    `db:"schedule"` // cron spec, recurring grants only
	NextRunAt             time.Time `db:"next_run_at"`
	TestMode              bool      `db:"test_mode"`
	Archived              bool      `db:"archived"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

// IsRecurring reports whether the sweep should pick this grant up
func (g *Grant) IsRecurring() bool {
	return g.RunType == RunTypeRecurring
}

// GrantExecutionLog is the append-only audit anchor of one grant run
type GrantExecutionLog struct {
	ID            int64      `db:"id"`
	GrantID       int64      `db:"grant_id"`
	RunAt         time.Time  `db:"run_at"`
	TestMode      bool       `db:"test_mode"`
	FinishedAt    *time.Time `db:"finished_at"`
	FailureReason *string    `db:"failure_reason"`
}

// ExecutionResult summarizes one grant execution
type ExecutionResult struct {
	LogID          int64
	GrantID        int64
	AwardedCount   int
	DeclinedCount  int
	DuplicateCount int
	Awards         []*AwardedRecord
}

// ExecutionSummary is one row of the execution history of an event
type ExecutionSummary struct {
	LogID         int64      `db:"id"`
	GrantID       int64      `db:"grant_id"`
	PackageID     int64      `db:"package_id"`
	RunAt         time.Time  `db:"run_at"`
	TestMode      bool       `db:"test_mode"`
	FinishedAt    *time.Time `db:"finished_at"`
	FailureReason *string    `db:"failure_reason"`
	AwardedCount  int        `db:"awarded_count"`
	DeclinedCount int        `db:"declined_count"`
}

// ExecutionDetail lists everything one execution wrote
type ExecutionDetail struct {
	Log      *GrantExecutionLog
	Awarded  []*AwardedRecord
	Declined []*DeclinedRecord
}

// ResetResult counts what a package reset removed
type ResetResult struct {
	AwardsDeleted     int64
	DeclinesDeleted   int64
	LogsDeleted       int64
	ExceptionsDeleted int64
	FlagsCleared      int64
}
