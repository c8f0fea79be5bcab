package service

import (
	"creditengine/models"
)

// Evaluate splits the candidate facts of a package into awards and declines.
//
// A triple is eligible when all three sub-checks pass and the registration is
// not flagged doNotAward, or when an exception exists for it. Triples outside a
// restricted category's profile or jurisdiction set are not candidates at all.
// Flagged triples without an exception appear in neither output.
func Evaluate(pkg *models.AwardPackage, categories []*models.CreditCategory, facts []*models.CandidateFacts, exceptions []*models.AwardException) *models.Evaluation {
	byID := make(map[int64]*models.CreditCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	overridden := make(map[models.TripleKey]bool, len(exceptions))
	for _, e := range exceptions {
		if e.PackageID == pkg.ID {
			overridden[e.Key()] = true
		}
	}

	result := &models.Evaluation{PackageID: pkg.ID}
	for _, f := range facts {
		if !f.CreditValue.IsPositive() {
			continue
		}
		category, ok := byID[f.CategoryID]
		if !ok || !category.Admits(f.ProfileID, f.JurisdictionCode) {
			continue
		}

		candidate := &models.Candidate{
			TripleKey:     f.TripleKey,
			CreditValue:   f.CreditValue,
			AttendanceMet: attendanceMet(pkg.AttendanceCriterion, f),
			PaymentMet:    !pkg.PaymentInFullRequired || !f.BalanceDue.IsPositive(),
			SurveyMet:     !pkg.SurveyRequired || f.SurveyResponded || !f.SessionHasSurvey,
			ByException:   overridden[f.TripleKey],
		}

		switch {
		case candidate.ByException:
			result.ToAward = append(result.ToAward, candidate)
		case f.DoNotAward:
			// revoked by an administrator; held until reset or exception
		case candidate.AttendanceMet && candidate.PaymentMet && candidate.SurveyMet:
			result.ToAward = append(result.ToAward, candidate)
		default:
			result.ToDecline = append(result.ToDecline, candidate)
		}
	}

	return result
}

func attendanceMet(criterion models.AttendanceCriterion, f *models.CandidateFacts) bool {
	switch criterion {
	case models.AttendanceEventCheckIn:
		return f.EventCheckedInAt != nil
	case models.AttendanceSessionCheckIn:
		return f.SessionCheckedInAt != nil
	case models.AttendanceSessionCheckInAndOut:
		return f.SessionCheckedInAt != nil && f.SessionCheckedOutAt != nil
	default:
		return true
	}
}

// RestrictToRepresentative keeps only the candidates of the lowest contestant
// id present in either output. Test-mode executions run against it.
func RestrictToRepresentative(eval *models.Evaluation) *models.Evaluation {
	var representative int64
	found := false
	for _, list := range [][]*models.Candidate{eval.ToAward, eval.ToDecline} {
		for _, c := range list {
			if !found || c.ContestantID < representative {
				representative = c.ContestantID
				found = true
			}
		}
	}

	restricted := &models.Evaluation{PackageID: eval.PackageID}
	if !found {
		return restricted
	}
	for _, c := range eval.ToAward {
		if c.ContestantID == representative {
			restricted.ToAward = append(restricted.ToAward, c)
		}
	}
	for _, c := range eval.ToDecline {
		if c.ContestantID == representative {
			restricted.ToDecline = append(restricted.ToDecline, c)
		}
	}
	return restricted
}
