package repository

import (
	"context"
	"fmt"

	"creditengine/database"
	"creditengine/models"
)

// AttendanceRepository reads registration and attendance facts owned by the
// wider event backend. The only column it writes is do_not_award.
type AttendanceRepository struct {
	q queryable
}

// NewAttendanceRepository creates a new attendance repository
func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{q: db.Pool}
}

func newAttendanceRepositoryWithTx(tx queryable) *AttendanceRepository {
	return &AttendanceRepository{q: tx}
}

// ListCandidates returns the facts of every (contestant, session, category)
// triple of the package that has credit to give and has not been awarded.
// Optional filter fields narrow the population; nil means no narrowing.
func (r *AttendanceRepository) ListCandidates(ctx context.Context, filter models.CandidateFilter) ([]*models.CandidateFacts, error) {
	query := `
		SELECT rs.contestant_id, rs.session_id, sc.category_id, sc.credit_value,
		       c.profile_id, c.jurisdiction_code, c.event_checked_in_at,
		       rs.checked_in_at, rs.checked_out_at,
		       c.balance_due, rs.survey_responded, s.has_survey, rs.do_not_award
		FROM award_package_categories apc
		JOIN session_credits sc ON sc.category_id = apc.category_id
		JOIN sessions s ON s.id = sc.session_id
		JOIN registration_sessions rs ON rs.session_id = sc.session_id
		JOIN contestants c ON c.id = rs.contestant_id
		WHERE apc.package_id = $1
		  AND sc.credit_value > 0
		  AND rs.status = 'complete'
		  AND NOT rs.scratched
		  AND ($2::bigint IS NULL OR sc.category_id = $2)
		  AND ($3::bigint IS NULL OR sc.session_id = $3)
		  AND ($4::bigint IS NULL OR rs.contestant_id = $4)
		  AND NOT EXISTS (
		      SELECT 1 FROM awarded_records a
		      WHERE a.contestant_id = rs.contestant_id
		        AND a.session_id = rs.session_id
		        AND a.category_id = sc.category_id
		  )
		ORDER BY rs.contestant_id, rs.session_id, sc.category_id
	`

	rows, err := r.q.Query(ctx, query, filter.PackageID, filter.CategoryID, filter.SessionID, filter.ContestantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates for package %d: %w", filter.PackageID, err)
	}
	defer rows.Close()

	candidates := make([]*models.CandidateFacts, 0)
	for rows.Next() {
		var f models.CandidateFacts
		err := rows.Scan(
			&f.ContestantID,
			&f.SessionID,
			&f.CategoryID,
			&f.CreditValue,
			&f.ProfileID,
			&f.JurisdictionCode,
			&f.EventCheckedInAt,
			&f.SessionCheckedInAt,
			&f.SessionCheckedOutAt,
			&f.BalanceDue,
			&f.SurveyResponded,
			&f.SessionHasSurvey,
			&f.DoNotAward,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate facts: %w", err)
		}
		candidates = append(candidates, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate facts: %w", err)
	}
	return candidates, nil
}

// SetDoNotAward sets the flag on one session registration
func (r *AttendanceRepository) SetDoNotAward(ctx context.Context, contestantID, sessionID int64, value bool) error {
	result, err := r.q.Exec(ctx, `
		UPDATE registration_sessions
		SET do_not_award = $3
		WHERE contestant_id = $1 AND session_id = $2
	`, contestantID, sessionID, value)
	if err != nil {
		return fmt.Errorf("failed to set do_not_award for contestant %d session %d: %w", contestantID, sessionID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("registration of contestant %d for session %d: %w", contestantID, sessionID, models.ErrNotFound)
	}
	return nil
}

// ClearDoNotAwardForPackage clears the flag on registrations of every session
// the package reaches: sessions carrying credit in a linked category, sessions
// named by the package's exceptions and sessions its executions awarded or
// declined. Call it before the package's history is deleted. A flag whose only
// trace was an unawarded record of a since-unlinked category is not reached.
func (r *AttendanceRepository) ClearDoNotAwardForPackage(ctx context.Context, packageID int64) (int64, error) {
	result, err := r.q.Exec(ctx, `
		UPDATE registration_sessions rs
		SET do_not_award = FALSE
		WHERE rs.do_not_award
		  AND rs.session_id IN (
		      SELECT sc.session_id
		      FROM session_credits sc
		      JOIN award_package_categories apc ON apc.category_id = sc.category_id
		      WHERE apc.package_id = $1
		      UNION
		      SELECT e.session_id FROM award_exceptions e WHERE e.package_id = $1
		      UNION
		      SELECT a.session_id
		      FROM awarded_records a
		      JOIN grant_execution_logs l ON l.id = a.execution_log_id
		      JOIN grants g ON g.id = l.grant_id
		      WHERE g.package_id = $1
		      UNION
		      SELECT d.session_id
		      FROM declined_records d
		      JOIN grant_execution_logs l ON l.id = d.execution_log_id
		      JOIN grants g ON g.id = l.grant_id
		      WHERE g.package_id = $1
		  )
	`, packageID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear do_not_award for package %d: %w", packageID, err)
	}
	return result.RowsAffected(), nil
}
